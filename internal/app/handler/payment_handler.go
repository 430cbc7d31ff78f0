package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"filingdesk/internal/app/ds"
	"filingdesk/internal/app/dto"
	"filingdesk/internal/app/metrics"
	"filingdesk/internal/app/payment"
	"filingdesk/internal/app/plan"
	"filingdesk/internal/app/repository"
	"filingdesk/internal/app/status"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	HeaderWebhookSignature = "X-Razorpay-Signature"
	HeaderWebhookEventID   = "X-Razorpay-Event-Id"

	eventDedupeTTL = 72 * time.Hour
)

func (h *APIHandler) orderLockTTL() time.Duration {
	return h.Config.Payment.Timeout + 5*time.Second
}

func transitioned(before *ds.Submission, after *ds.Submission) {
	if before.Status != after.Status {
		metrics.Transitions.WithLabelValues(after.Status.String()).Inc()
	}
}

// ============ Payment ============

// CreateOrder opens a provider order for the plan price
// @Summary Create payment order
// @Description Opens an order at the server side plan price, or returns the still-open order of a PAYMENT_PENDING record.
// @Tags Payment
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Success 200 {object} dto.OrderResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /api/submissions/{id}/payment/order [post]
func (h *APIHandler) CreateOrder(c *gin.Context) {
	sub, _, ok := h.loadOwned(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	log := logrus.WithField("submission_id", sub.ID)

	if h.RedisClient != nil {
		acquired, err := h.RedisClient.AcquireOrderLock(ctx, sub.ID, h.orderLockTTL())
		if err != nil {
			log.Error("CreateOrder: acquire lock: ", err)
			h.errorResponse(c, http.StatusInternalServerError, codeInternal, "internal error")
			return
		}
		if !acquired {
			h.errorResponse(c, http.StatusConflict, codeOrderInProgress, "an order is already being created for this submission")
			return
		}
		defer func() {
			if err := h.RedisClient.ReleaseOrderLock(ctx, sub.ID); err != nil {
				log.Warn("CreateOrder: release lock: ", err)
			}
		}()
	}

	target, err := h.Repository.PrepareOrder(ctx, sub.ID)
	if err != nil {
		h.repositoryError(c, "CreateOrder", err)
		return
	}

	if target.Existing != nil {
		metrics.Orders.WithLabelValues("reused").Inc()
		c.JSON(http.StatusOK, dto.OrderResponse{
			SubmissionID: sub.ID,
			OrderID:      target.Existing.OrderID,
			Amount:       target.Existing.Amount,
			Currency:     target.Existing.Currency,
			KeyID:        h.Payments.KeyID(),
			Reused:       true,
		})
		return
	}

	order, err := h.Payments.CreateOrder(ctx, payment.OrderRequest{
		Amount:   target.Amount,
		Currency: target.Currency,
		Receipt:  sub.ID,
		Notes:    map[string]string{"submission_id": sub.ID, "plan": sub.PlanKey},
	})
	if err != nil {
		metrics.Orders.WithLabelValues("failed").Inc()
		log.Error("CreateOrder: provider: ", err)
		h.errorResponse(c, http.StatusBadGateway, codeOrderFailed, "payment provider could not create the order")
		return
	}

	updated, err := h.Repository.SaveOrder(ctx, sub.ID, ds.PaymentOrder{
		OrderID:  order.ID,
		Amount:   target.Amount,
		Currency: target.Currency,
	})
	if err != nil {
		metrics.Orders.WithLabelValues("failed").Inc()
		h.repositoryError(c, "CreateOrder", err)
		return
	}
	metrics.Orders.WithLabelValues("created").Inc()
	transitioned(target.Submission, updated)
	log.WithField("order_id", order.ID).Info("order created")

	c.JSON(http.StatusOK, dto.OrderResponse{
		SubmissionID: sub.ID,
		OrderID:      order.ID,
		Amount:       target.Amount,
		Currency:     target.Currency,
		KeyID:        h.Payments.KeyID(),
	})
}

// ConfirmPayment records a successful checkout
// @Summary Confirm payment
// @Description Verifies the checkout signature and moves the record to PAYMENT_SUCCESSFUL. Replaying the same payment is a no-op.
// @Tags Payment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Param request body dto.ConfirmPaymentRequest true "Checkout result"
// @Success 200 {object} dto.SubmissionResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /api/submissions/{id}/payment/confirm [post]
func (h *APIHandler) ConfirmPayment(c *gin.Context) {
	sub, _, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var req dto.ConfirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, codeValidation, "invalid request: "+err.Error())
		return
	}

	// The webhook may have recorded this payment already.
	if sub.Status.Paid() && sub.PaymentID != nil && *sub.PaymentID == req.PaymentID {
		c.JSON(http.StatusOK, toSubmissionResponse(sub))
		return
	}

	if !payment.VerifyPaymentSignature(req.OrderID, req.PaymentID, req.Signature, h.Config.Payment.KeySecret) {
		logrus.WithFields(logrus.Fields{
			"submission_id": sub.ID,
			"order_id":      req.OrderID,
			"payment_id":    req.PaymentID,
		}).Warn("payment signature rejected")
		h.errorResponse(c, http.StatusBadRequest, codeInvalidSignature, "payment signature is invalid")
		return
	}

	updated, err := h.Repository.RecordPayment(c.Request.Context(), sub.ID, req.OrderID, req.PaymentID)
	if err != nil {
		h.repositoryError(c, "ConfirmPayment", err)
		return
	}
	transitioned(sub, updated)
	logrus.WithFields(logrus.Fields{
		"submission_id": sub.ID,
		"order_id":      req.OrderID,
		"payment_id":    req.PaymentID,
	}).Info("payment recorded")
	c.JSON(http.StatusOK, toSubmissionResponse(updated))
}

// Finalize submits a paid record
// @Summary Finalize submission
// @Description Moves a PAYMENT_SUCCESSFUL record to SUBMITTED. The amount must equal the plan price and the recorded payment.
// @Tags Payment
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Param request body dto.FinalizeRequest true "Payment reference"
// @Success 200 {object} dto.SubmissionResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /api/submissions/{id}/finalize [post]
func (h *APIHandler) Finalize(c *gin.Context) {
	sub, _, ok := h.loadOwned(c)
	if !ok {
		return
	}

	var req dto.FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, codeValidation, "invalid request: "+err.Error())
		return
	}

	updated, err := h.Repository.Finalize(c.Request.Context(), sub.ID, req.PaymentID, req.Amount)
	if err != nil {
		h.repositoryError(c, "Finalize", err)
		return
	}
	transitioned(sub, updated)
	if sub.Status != updated.Status {
		logrus.WithFields(logrus.Fields{"submission_id": sub.ID, "payment_id": req.PaymentID}).Info("submission finalized")
	}
	c.JSON(http.StatusOK, toSubmissionResponse(updated))
}

// ============ Provider callbacks ============

// PaymentWebhook records payments reported by the provider
// @Summary Payment webhook
// @Description Provider callback signed with the webhook secret. Records the payment when the checkout confirmation never arrived.
// @Tags Payment
// @Accept json
// @Produce json
// @Param X-Razorpay-Signature header string true "HMAC-SHA256 of the body"
// @Param X-Razorpay-Event-Id header string false "Delivery id used for de-duplication"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 401 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/async/payments [post]
func (h *APIHandler) PaymentWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, codeValidation, "failed to read body")
		return
	}

	secret := h.Config.Payment.WebhookSecret
	if secret == "" || !payment.VerifyWebhookSignature(body, c.GetHeader(HeaderWebhookSignature), secret) {
		metrics.WebhookEvents.WithLabelValues("rejected").Inc()
		h.errorResponse(c, http.StatusUnauthorized, codeInvalidSignature, "webhook signature is invalid")
		return
	}

	var event payment.WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		metrics.WebhookEvents.WithLabelValues("rejected").Inc()
		h.errorResponse(c, http.StatusBadRequest, codeValidation, "invalid event payload")
		return
	}
	if !event.Captured() {
		metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		h.successResponse(c, http.StatusOK, "event ignored", nil)
		return
	}

	entity := event.Payload.Payment.Entity
	ctx := c.Request.Context()
	log := logrus.WithFields(logrus.Fields{"order_id": entity.OrderID, "payment_id": entity.ID, "event": event.Event})

	eventID := c.GetHeader(HeaderWebhookEventID)
	if eventID == "" {
		eventID = event.Event + ":" + entity.ID
	}
	if h.RedisClient != nil {
		fresh, err := h.RedisClient.MarkEventSeen(ctx, eventID, eventDedupeTTL)
		if err != nil {
			log.Error("PaymentWebhook: dedupe: ", err)
			h.errorResponse(c, http.StatusInternalServerError, codeInternal, "internal error")
			return
		}
		if !fresh {
			metrics.WebhookEvents.WithLabelValues("duplicate").Inc()
			h.successResponse(c, http.StatusOK, "duplicate event", nil)
			return
		}
	}

	// retry lets the provider redeliver after a transient failure.
	retry := func(op string, err error) {
		log.Errorf("PaymentWebhook: %s: %v", op, err)
		if h.RedisClient != nil {
			if ferr := h.RedisClient.ForgetEvent(ctx, eventID); ferr != nil {
				log.Warn("PaymentWebhook: forget event: ", ferr)
			}
		}
		metrics.WebhookEvents.WithLabelValues("error").Inc()
		h.errorResponse(c, http.StatusInternalServerError, codeInternal, "internal error")
	}

	submissionID, err := h.Repository.FindSubmissionIDByOrder(ctx, entity.OrderID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warn("webhook for unknown order")
		metrics.WebhookEvents.WithLabelValues("ignored").Inc()
		h.successResponse(c, http.StatusOK, "unknown order", nil)
		return
	}
	if err != nil {
		retry("find order", err)
		return
	}
	log = log.WithField("submission_id", submissionID)

	sub, err := h.Repository.GetSubmission(ctx, submissionID)
	if err != nil {
		retry("load submission", err)
		return
	}
	if price, err := plan.Price(sub.PlanKey); err != nil || entity.Amount != price {
		log.WithField("amount", entity.Amount).Error("webhook amount does not match plan price")
		metrics.WebhookEvents.WithLabelValues("rejected").Inc()
		h.successResponse(c, http.StatusOK, "amount mismatch", nil)
		return
	}

	updated, err := h.Repository.RecordPayment(ctx, submissionID, entity.OrderID, entity.ID)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrOrphanPayment):
		log.WithField("status", sub.Status).Error("webhook payment held on an order the submission cannot accept")
		metrics.WebhookEvents.WithLabelValues("held").Inc()
		h.successResponse(c, http.StatusOK, "payment held for support", nil)
		return
	case errors.Is(err, repository.ErrInvalidTransition),
		errors.Is(err, repository.ErrPaymentMismatch),
		errors.Is(err, repository.ErrAmountMismatch):
		// A charge the record cannot accept needs a person.
		entry := log.WithField("status", sub.Status)
		if sub.Status.Terminal() && !sub.Status.Paid() {
			entry = entry.WithField("failure_reason", sub.FailureReason)
		}
		entry.Errorf("webhook payment not recorded: %v", err)
		metrics.WebhookEvents.WithLabelValues("rejected").Inc()
		h.successResponse(c, http.StatusOK, "payment not recorded", nil)
		return
	default:
		retry("record payment", err)
		return
	}

	transitioned(sub, updated)
	if updated.Status == status.PaymentSuccessful && sub.Status != updated.Status {
		log.Info("payment recorded from webhook")
	}
	metrics.WebhookEvents.WithLabelValues("recorded").Inc()
	h.successResponse(c, http.StatusOK, "payment recorded", nil)
}
