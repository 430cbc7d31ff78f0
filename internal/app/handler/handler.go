package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"filingdesk/internal/app/config"
	"filingdesk/internal/app/ds"
	"filingdesk/internal/app/dto"
	"filingdesk/internal/app/middleware"
	"filingdesk/internal/app/payment"
	"filingdesk/internal/app/redis"
	"filingdesk/internal/app/repository"
	"filingdesk/internal/app/storage"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	codeValidation          = "validation_failed"
	codeNotFound            = "not_found"
	codeInvalidTransition   = "invalid_transition"
	codeAmountMismatch      = "amount_mismatch"
	codePaymentMismatch     = "payment_mismatch"
	codeDocumentsIncomplete = "documents_incomplete"
	codeUnknownDocument     = "unknown_document"
	codeOrderFailed         = "order_failed"
	codeOrderInProgress     = "order_in_progress"
	codeIdempotency         = "idempotency_conflict"
	codeInvalidSignature    = "invalid_signature"
	codeUnauthorized        = "unauthorized"
	codeInternal            = "internal"
	codePaymentHeld         = "payment_held"
	codeForeignFile         = "foreign_file"
)

// FileStorage is the object store documents are uploaded into.
type FileStorage interface {
	Upload(ctx context.Context, data []byte, originalName, category string) (storage.UploadedFile, error)
	PresignedURL(ctx context.Context, fileID string, ttl time.Duration) (string, error)
	Exists(ctx context.Context, fileID string) (bool, error)
}

// APIHandler holds the REST API handlers.
type APIHandler struct {
	Repository  *repository.Repository
	Storage     FileStorage
	Payments    payment.Provider
	RedisClient *redis.Client
	AuthHandler *AuthHandler
	Config      *config.Config
}

func NewAPIHandler(r *repository.Repository, fileStorage FileStorage, provider payment.Provider, redisClient *redis.Client, authHandler *AuthHandler, cfg *config.Config) *APIHandler {
	return &APIHandler{
		Repository:  r,
		Storage:     fileStorage,
		Payments:    provider,
		RedisClient: redisClient,
		AuthHandler: authHandler,
		Config:      cfg,
	}
}

// ============ Helpers ============

func (h *APIHandler) errorResponse(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.ErrorResponse{
		Status:  "fail",
		Code:    code,
		Message: message,
	})
}

func (h *APIHandler) validationResponse(c *gin.Context, fields map[string]string) {
	c.JSON(http.StatusBadRequest, dto.ErrorResponse{
		Status:  "fail",
		Code:    codeValidation,
		Message: "form validation failed",
		Fields:  fields,
	})
}

func (h *APIHandler) successResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	response := dto.SuccessResponse{
		Status:  "success",
		Message: message,
	}
	if data != nil {
		response.Data = data
	}
	c.JSON(statusCode, response)
}

// repositoryError maps repository sentinels to status codes.
func (h *APIHandler) repositoryError(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		h.errorResponse(c, http.StatusNotFound, codeNotFound, "submission not found")
	case errors.Is(err, repository.ErrInvalidTransition):
		h.errorResponse(c, http.StatusConflict, codeInvalidTransition, err.Error())
	case errors.Is(err, repository.ErrAmountMismatch):
		h.errorResponse(c, http.StatusUnprocessableEntity, codeAmountMismatch, err.Error())
	case errors.Is(err, repository.ErrPaymentMismatch):
		h.errorResponse(c, http.StatusConflict, codePaymentMismatch, err.Error())
	case errors.Is(err, repository.ErrDocumentsIncomplete):
		h.errorResponse(c, http.StatusUnprocessableEntity, codeDocumentsIncomplete, err.Error())
	case errors.Is(err, repository.ErrUnknownDocument):
		h.errorResponse(c, http.StatusUnprocessableEntity, codeUnknownDocument, err.Error())
	case errors.Is(err, repository.ErrUnknownPlan):
		h.errorResponse(c, http.StatusBadRequest, codeValidation, err.Error())
	case errors.Is(err, repository.ErrOrphanPayment):
		h.errorResponse(c, http.StatusConflict, codePaymentHeld, "payment received but this submission can no longer accept it; support has been notified")
	case errors.Is(err, repository.ErrIdempotencyConflict):
		h.errorResponse(c, http.StatusConflict, codeIdempotency, err.Error())
	default:
		logrus.Errorf("%s: %v", op, err)
		h.errorResponse(c, http.StatusInternalServerError, codeInternal, "internal error")
	}
}

func (h *APIHandler) currentUser(c *gin.Context) (middleware.CurrentUser, bool) {
	user, ok := middleware.GetUserFromContext(c)
	if !ok {
		logrus.Warn("user not found in context")
		h.errorResponse(c, http.StatusUnauthorized, codeUnauthorized, "user not authenticated")
	}
	return user, ok
}

// loadOwned returns the submission in :id if the caller owns it or is staff.
// Other users get 404 so ids cannot be probed.
func (h *APIHandler) loadOwned(c *gin.Context) (*ds.Submission, middleware.CurrentUser, bool) {
	user, ok := h.currentUser(c)
	if !ok {
		return nil, user, false
	}
	sub, ok := h.ownedSubmission(c, user, c.Param("id"))
	return sub, user, ok
}

// ownedSubmission hides records of other applicants behind a 404.
func (h *APIHandler) ownedSubmission(c *gin.Context, user middleware.CurrentUser, id string) (*ds.Submission, bool) {
	sub, err := h.Repository.GetSubmission(c.Request.Context(), id)
	if err != nil {
		h.repositoryError(c, "load submission", err)
		return nil, false
	}
	if sub.OwnerID != user.ID && !user.Staff() {
		h.errorResponse(c, http.StatusNotFound, codeNotFound, "submission not found")
		return nil, false
	}
	return sub, true
}
