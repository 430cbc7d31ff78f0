package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"filingdesk/internal/app/dto"
	"filingdesk/internal/app/metrics"
	"filingdesk/internal/app/plan"
	"filingdesk/internal/app/repository"
	"filingdesk/internal/app/storage"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// documentCategory is the object key prefix of uploads for one document slot.
func documentCategory(submissionID, key string) string {
	return submissionID + "/" + key
}

// splitCategory parses "<submission id>/<doc key>".
func splitCategory(category string) (string, string, bool) {
	id, key, ok := strings.Cut(category, "/")
	if !ok || id == "" || key == "" || !validSegment(id) || !validSegment(key) {
		return "", "", false
	}
	return id, key, true
}

func validSegment(s string) bool {
	if len(s) > 64 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// ============ Documents ============

// UploadFile stores a file in object storage
// @Summary Upload file
// @Description Stores a file for one document slot of the caller's submission and returns its reference. The reference is linked separately.
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "Document"
// @Param category formData string true "<submission id>/<document key>"
// @Success 201 {object} dto.FileResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 413 {object} dto.ErrorResponse
// @Failure 415 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/files [post]
func (h *APIHandler) UploadFile(c *gin.Context) {
	if h.Storage == nil {
		h.errorResponse(c, http.StatusServiceUnavailable, codeInternal, "file storage is not configured")
		return
	}

	user, ok := h.currentUser(c)
	if !ok {
		return
	}
	subID, key, ok := splitCategory(c.PostForm("category"))
	if !ok {
		h.errorResponse(c, http.StatusBadRequest, codeValidation, "category must be <submission id>/<document key>")
		return
	}
	sub, ok := h.ownedSubmission(c, user, subID)
	if !ok {
		return
	}
	if p, known := plan.Get(sub.PlanKey); !known || !p.IsDocumentKey(key) {
		h.repositoryError(c, "UploadFile", repository.ErrUnknownDocument)
		return
	}
	category := documentCategory(sub.ID, key)

	file, err := c.FormFile("file")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, codeValidation, "file not found in request")
		return
	}
	if file.Size > storage.MaxFileSize {
		h.errorResponse(c, http.StatusRequestEntityTooLarge, codeValidation, storage.ErrFileTooLarge.Error())
		return
	}

	openedFile, err := file.Open()
	if err != nil {
		h.errorResponse(c, http.StatusInternalServerError, codeInternal, "failed to read file")
		return
	}
	defer openedFile.Close()

	fileData, err := io.ReadAll(io.LimitReader(openedFile, storage.MaxFileSize+1))
	if err != nil {
		h.errorResponse(c, http.StatusInternalServerError, codeInternal, "failed to read file")
		return
	}

	uploaded, err := h.Storage.Upload(c.Request.Context(), fileData, file.Filename, category)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrEmptyFile):
		h.errorResponse(c, http.StatusBadRequest, codeValidation, err.Error())
		return
	case errors.Is(err, storage.ErrFileTooLarge):
		h.errorResponse(c, http.StatusRequestEntityTooLarge, codeValidation, err.Error())
		return
	case errors.Is(err, storage.ErrFileType):
		h.errorResponse(c, http.StatusUnsupportedMediaType, codeValidation, err.Error())
		return
	default:
		logrus.Error("UploadFile: ", err)
		h.errorResponse(c, http.StatusInternalServerError, codeInternal, "failed to store file")
		return
	}

	c.JSON(http.StatusCreated, dto.FileResponse{
		FileURL:      uploaded.FileURL,
		FileID:       uploaded.FileID,
		OriginalName: uploaded.OriginalName,
		ContentType:  uploaded.ContentType,
		Size:         uploaded.Size,
	})
}

// LinkDocument attaches an uploaded file to a submission
// @Summary Link document
// @Description Idempotent per key: linking the same file again is a no-op, a different file replaces the reference.
// @Tags Documents
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Param key path string true "Document key"
// @Param request body dto.LinkDocumentRequest true "File reference"
// @Success 200 {object} dto.SubmissionResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /api/submissions/{id}/documents/{key} [put]
func (h *APIHandler) LinkDocument(c *gin.Context) {
	sub, _, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var req dto.LinkDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, codeValidation, "invalid request: "+err.Error())
		return
	}

	key := c.Param("key")
	// Uploads land under "<id>/<key>/", so a file id from another slot or
	// another applicant is refused.
	if req.FileID != "" && !strings.HasPrefix(req.FileID, documentCategory(sub.ID, key)+"/") {
		h.errorResponse(c, http.StatusUnprocessableEntity, codeForeignFile, "file was not uploaded for this document")
		return
	}
	if _, err := h.Repository.LinkDocument(c.Request.Context(), sub.ID, key, req.FileURL, req.FileID); err != nil {
		h.repositoryError(c, "LinkDocument", err)
		return
	}

	updated, err := h.Repository.GetSubmission(c.Request.Context(), sub.ID)
	if err != nil {
		h.repositoryError(c, "LinkDocument", err)
		return
	}
	if updated.Status != sub.Status {
		metrics.Transitions.WithLabelValues(updated.Status.String()).Inc()
	}
	logrus.WithFields(logrus.Fields{"submission_id": sub.ID, "doc_key": key}).Info("document linked")
	c.JSON(http.StatusOK, toSubmissionResponse(updated))
}
