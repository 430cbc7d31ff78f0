package handler

import (
	"net/http"
	"time"

	"filingdesk/internal/app/dto"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ============ Support ============

const documentURLTTL = 15 * time.Minute

// ListStuckSubmissions returns paid records that never reached SUBMITTED
// @Summary Stuck submissions
// @Description Support queue of PAYMENT_SUCCESSFUL records last updated before older_than ago, plus captured payments no submission accepted.
// @Tags Support
// @Produce json
// @Security BearerAuth
// @Param older_than query string false "Go duration, defaults to the configured threshold"
// @Success 200 {object} dto.StuckListResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /api/support/submissions/stuck [get]
func (h *APIHandler) ListStuckSubmissions(c *gin.Context) {
	olderThan := h.Config.Reaper.StuckAfter
	if raw := c.Query("older_than"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 {
			h.errorResponse(c, http.StatusBadRequest, codeValidation, "older_than must be a duration such as 30m")
			return
		}
		olderThan = d
	}

	subs, err := h.Repository.ListStuckPaid(c.Request.Context(), time.Now().Add(-olderThan))
	if err != nil {
		h.repositoryError(c, "ListStuckSubmissions", err)
		return
	}

	response := dto.StuckListResponse{
		Submissions: make([]dto.StuckSubmissionResponse, 0, len(subs)),
		Total:       len(subs),
	}
	for _, sub := range subs {
		item := dto.StuckSubmissionResponse{
			ID:        sub.ID,
			OwnerID:   sub.OwnerID,
			PlanKey:   sub.PlanKey,
			UpdatedAt: sub.UpdatedAt,
		}
		if sub.OrderID != nil {
			item.OrderID = *sub.OrderID
		}
		if sub.PaymentID != nil {
			item.PaymentID = *sub.PaymentID
		}
		if sub.Amount != nil {
			item.Amount = *sub.Amount
		}
		response.Submissions = append(response.Submissions, item)
	}

	orphans, err := h.Repository.ListOrphanPayments(c.Request.Context())
	if err != nil {
		h.repositoryError(c, "ListStuckSubmissions", err)
		return
	}
	response.Orphans = make([]dto.OrphanPaymentResponse, 0, len(orphans))
	for _, order := range orphans {
		item := dto.OrphanPaymentResponse{
			SubmissionID: order.SubmissionID,
			OrderID:      order.OrderID,
			Amount:       order.Amount,
			CapturedAt:   order.UpdatedAt,
		}
		if order.PaymentID != nil {
			item.PaymentID = *order.PaymentID
		}
		response.Orphans = append(response.Orphans, item)
	}
	c.JSON(http.StatusOK, response)
}

// GetDocumentURL issues a short-lived download link for a linked document
// @Summary Document download link
// @Tags Support
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Param key path string true "Document key"
// @Success 200 {object} dto.DocumentURLResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /api/support/submissions/{id}/documents/{key}/url [get]
func (h *APIHandler) GetDocumentURL(c *gin.Context) {
	if h.Storage == nil {
		h.errorResponse(c, http.StatusServiceUnavailable, codeInternal, "file storage is not configured")
		return
	}

	sub, err := h.Repository.GetSubmission(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.repositoryError(c, "GetDocumentURL", err)
		return
	}

	key := c.Param("key")
	var fileID string
	for _, doc := range sub.Documents {
		if doc.DocKey == key {
			fileID = doc.FileID
			break
		}
	}
	if fileID == "" {
		h.errorResponse(c, http.StatusNotFound, codeNotFound, "document is not linked")
		return
	}

	ok, err := h.Storage.Exists(c.Request.Context(), fileID)
	if err != nil {
		logrus.WithError(err).WithField("file_id", fileID).Error("GetDocumentURL: stat failed")
		h.errorResponse(c, http.StatusBadGateway, codeInternal, "file storage unavailable")
		return
	}
	if !ok {
		logrus.WithFields(logrus.Fields{"submission_id": sub.ID, "doc_key": key, "file_id": fileID}).
			Warn("linked document missing from storage")
		h.errorResponse(c, http.StatusNotFound, codeNotFound, "stored file is missing")
		return
	}

	url, err := h.Storage.PresignedURL(c.Request.Context(), fileID, documentURLTTL)
	if err != nil {
		logrus.WithError(err).WithField("file_id", fileID).Error("GetDocumentURL: presign failed")
		h.errorResponse(c, http.StatusBadGateway, codeInternal, "file storage unavailable")
		return
	}

	c.JSON(http.StatusOK, dto.DocumentURLResponse{
		Key:       key,
		FileID:    fileID,
		URL:       url,
		ExpiresAt: time.Now().Add(documentURLTTL),
	})
}
