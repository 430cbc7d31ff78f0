package handler

import (
	"net/http"
	"strings"

	"filingdesk/internal/app/ds"
	"filingdesk/internal/app/dto"
	"filingdesk/internal/app/metrics"
	"filingdesk/internal/app/plan"
	"filingdesk/internal/app/status"
	"filingdesk/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HeaderIdempotencyKey ties draft creation retries to one record.
const HeaderIdempotencyKey = "Idempotency-Key"

const maxIdempotencyKey = 64

func toSubmissionResponse(sub *ds.Submission) dto.SubmissionResponse {
	response := dto.SubmissionResponse{
		ID:            sub.ID,
		Status:        sub.Status.String(),
		PlanKey:       sub.PlanKey,
		Form:          sub.FormSnapshot.Data(),
		Documents:     make(map[string]dto.DocumentResponse, len(sub.Documents)),
		FailureReason: sub.FailureReason,
		CreatedAt:     sub.CreatedAt,
		UpdatedAt:     sub.UpdatedAt,
		SubmittedAt:   sub.SubmittedAt,
	}
	if response.Form == nil {
		response.Form = map[string]string{}
	}
	for _, doc := range sub.Documents {
		response.Documents[doc.DocKey] = dto.DocumentResponse{
			FileURL:    doc.FileURL,
			FileID:     doc.FileID,
			UploadedAt: doc.UploadedAt,
		}
	}
	if sub.OrderID != nil {
		ref := &dto.PaymentRefResponse{OrderID: *sub.OrderID, Currency: sub.Currency}
		if sub.PaymentID != nil {
			ref.PaymentID = *sub.PaymentID
		}
		if sub.Amount != nil {
			ref.Amount = *sub.Amount
		}
		response.Payment = ref
	}
	return response
}

// validateDetails runs the DETAILS step rules of planKey. It writes the
// response and returns false when the form is rejected.
func (h *APIHandler) validateDetails(c *gin.Context, planKey string, fields map[string]string) bool {
	p, ok := plan.Get(planKey)
	if !ok {
		h.errorResponse(c, http.StatusBadRequest, codeValidation, "unknown plan "+planKey)
		return false
	}
	result := workflow.NewValidator(p).Validate(workflow.StepDetails, fields)
	if !result.Valid {
		h.validationResponse(c, result.Errors)
		return false
	}
	return true
}

// ============ Submissions ============

// CreateSubmission creates a draft
// @Summary Create submission
// @Description Creates a DRAFT record. Replaying the same Idempotency-Key returns the existing record with 200.
// @Tags Submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param Idempotency-Key header string true "Client generated key"
// @Param request body dto.CreateSubmissionRequest true "Plan and form details"
// @Success 201 {object} dto.SubmissionResponse
// @Success 200 {object} dto.SubmissionResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/submissions [post]
func (h *APIHandler) CreateSubmission(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	idemKey := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if idemKey == "" || len(idemKey) > maxIdempotencyKey {
		h.errorResponse(c, http.StatusBadRequest, codeValidation, "Idempotency-Key header is required (max 64 chars)")
		return
	}

	var req dto.CreateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, codeValidation, "invalid request: "+err.Error())
		return
	}
	if !h.validateDetails(c, req.PlanKey, req.Fields) {
		return
	}

	sub, created, err := h.Repository.CreateSubmission(c.Request.Context(), user.ID, idemKey, req.PlanKey, req.Fields)
	if err != nil {
		h.repositoryError(c, "CreateSubmission", err)
		return
	}

	code := http.StatusOK
	if created {
		code = http.StatusCreated
		metrics.Transitions.WithLabelValues(status.Draft.String()).Inc()
		logrus.WithFields(logrus.Fields{"submission_id": sub.ID, "plan": sub.PlanKey}).Info("draft created")
	}
	c.JSON(code, toSubmissionResponse(sub))
}

// ListSubmissions lists the caller's submissions
// @Summary List submissions
// @Description Applicants see their own records, staff see every record.
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter"
// @Success 200 {object} dto.SubmissionListResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/submissions [get]
func (h *APIHandler) ListSubmissions(c *gin.Context) {
	user, ok := h.currentUser(c)
	if !ok {
		return
	}

	filter := c.Query("status")
	if filter != "" {
		if _, ok := status.Parse(filter); !ok {
			h.errorResponse(c, http.StatusBadRequest, codeValidation, "unknown status "+filter)
			return
		}
	}

	var owner *uint
	if !user.Staff() {
		owner = &user.ID
	}

	subs, err := h.Repository.ListSubmissions(c.Request.Context(), owner, filter)
	if err != nil {
		h.repositoryError(c, "ListSubmissions", err)
		return
	}

	response := dto.SubmissionListResponse{
		Submissions: make([]dto.SubmissionResponse, 0, len(subs)),
		Total:       len(subs),
	}
	for i := range subs {
		response.Submissions = append(response.Submissions, toSubmissionResponse(&subs[i]))
	}
	c.JSON(http.StatusOK, response)
}

// GetSubmission returns one record for resume
// @Summary Get submission
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Success 200 {object} dto.SubmissionResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/submissions/{id} [get]
func (h *APIHandler) GetSubmission(c *gin.Context) {
	sub, _, ok := h.loadOwned(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toSubmissionResponse(sub))
}

// UpdateSubmission saves form details
// @Summary Update submission details
// @Description Allowed in DRAFT, DOCS_PENDING and PAYMENT_PENDING. An edit while PAYMENT_PENDING supersedes the open order.
// @Tags Submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Param request body dto.UpdateSubmissionRequest true "Form details"
// @Success 200 {object} dto.SubmissionResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/submissions/{id} [put]
func (h *APIHandler) UpdateSubmission(c *gin.Context) {
	sub, _, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var req dto.UpdateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, codeValidation, "invalid request: "+err.Error())
		return
	}
	if !h.validateDetails(c, sub.PlanKey, req.Fields) {
		return
	}

	updated, err := h.Repository.UpdateDetails(c.Request.Context(), sub.ID, req.Fields)
	if err != nil {
		h.repositoryError(c, "UpdateSubmission", err)
		return
	}
	if updated.Status != sub.Status {
		metrics.Transitions.WithLabelValues(updated.Status.String()).Inc()
	}
	c.JSON(http.StatusOK, toSubmissionResponse(updated))
}
