package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"filingdesk/internal/app/ds"
	"filingdesk/internal/app/plan"
	"filingdesk/internal/app/status"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Submission records

// CreateSubmission creates a draft, or returns the draft previously created by
// the same owner with the same idempotency key. created is false on replay.
func (r *Repository) CreateSubmission(ctx context.Context, ownerID uint, idemKey, planKey string, fields map[string]string) (*ds.Submission, bool, error) {
	if _, ok := plan.Get(planKey); !ok {
		return nil, false, ErrUnknownPlan
	}
	if idemKey == "" {
		idemKey = uuid.NewString()
	}

	existing, err := r.findByIdempotencyKey(ctx, ownerID, idemKey)
	if err == nil {
		if existing.PlanKey != planKey {
			return nil, false, ErrIdempotencyConflict
		}
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	now := r.now()
	sub := ds.Submission{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		IdempotencyKey: idemKey,
		PlanKey:        planKey,
		Status:         status.Draft,
		FormSnapshot:   datatypes.NewJSONType(copyFields(fields)),
		Currency:       plan.Currency,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = r.db.WithContext(ctx).Omit(clause.Associations).Create(&sub).Error
	if err != nil {
		// A concurrent replay of the same key won the unique index.
		if replay, ferr := r.findByIdempotencyKey(ctx, ownerID, idemKey); ferr == nil {
			return replay, false, nil
		}
		return nil, false, err
	}

	return &sub, true, nil
}

func (r *Repository) findByIdempotencyKey(ctx context.Context, ownerID uint, key string) (*ds.Submission, error) {
	var sub ds.Submission
	err := r.db.WithContext(ctx).Preload("Documents").
		Where("owner_id = ? AND idempotency_key = ?", ownerID, key).
		First(&sub).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

// GetSubmission loads a record with its documents.
func (r *Repository) GetSubmission(ctx context.Context, id string) (*ds.Submission, error) {
	var sub ds.Submission
	err := r.db.WithContext(ctx).Preload("Documents").First(&sub, "id = ?", id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

// ListSubmissions returns records newest first. ownerID == nil lists every owner.
func (r *Repository) ListSubmissions(ctx context.Context, ownerID *uint, st string) ([]ds.Submission, error) {
	query := r.db.WithContext(ctx).Preload("Documents").Order("created_at DESC")
	if ownerID != nil {
		query = query.Where("owner_id = ?", *ownerID)
	}
	if st != "" {
		query = query.Where("status = ?", st)
	}

	var subs []ds.Submission
	err := query.Find(&subs).Error
	return subs, err
}

// UpdateDetails replaces the form snapshot. Editing a PAYMENT_PENDING record
// returns it to DOCS_PENDING and supersedes its open order.
func (r *Repository) UpdateDetails(ctx context.Context, id string, fields map[string]string) (*ds.Submission, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub ds.Submission
		if err := tx.First(&sub, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		if !sub.Status.Editable() {
			return ErrInvalidTransition
		}

		updates := map[string]interface{}{
			"form_snapshot": datatypes.NewJSONType(copyFields(fields)),
			"updated_at":    r.now(),
		}
		if sub.Status == status.PaymentPending {
			updates["status"] = status.DocsPending
			updates["order_id"] = nil
		}

		res := tx.Model(&ds.Submission{}).
			Where("id = ? AND status = ?", id, sub.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}

		if sub.Status == status.PaymentPending {
			return supersedeOrders(tx, id, "")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetSubmission(ctx, id)
}

// LinkDocument attaches fileURL under key. Linking the same URL again is a
// no-op in any status; a different URL replaces the previous reference
// without touching other keys.
func (r *Repository) LinkDocument(ctx context.Context, id, key, fileURL, fileID string) (*ds.SubmissionDocument, error) {
	var doc ds.SubmissionDocument

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub ds.Submission
		if err := tx.First(&sub, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		p, ok := plan.Get(sub.PlanKey)
		if !ok {
			return ErrUnknownPlan
		}
		if !p.IsDocumentKey(key) {
			return ErrUnknownDocument
		}

		var existing ds.SubmissionDocument
		err := tx.Where("submission_id = ? AND doc_key = ?", id, key).First(&existing).Error
		if err == nil && existing.FileURL == fileURL {
			doc = existing
			return nil
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		if !sub.Status.Editable() {
			return ErrInvalidTransition
		}

		now := r.now()
		upsert := ds.SubmissionDocument{
			SubmissionID: id,
			DocKey:       key,
			FileURL:      fileURL,
			FileID:       fileID,
			UploadedAt:   now,
		}
		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "submission_id"}, {Name: "doc_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"file_url", "file_id", "uploaded_at"}),
		}).Create(&upsert).Error
		if err != nil {
			return err
		}

		updates := map[string]interface{}{
			"status":     status.DocsPending,
			"updated_at": now,
		}
		if sub.Status == status.PaymentPending {
			updates["order_id"] = nil
		}
		res := tx.Model(&ds.Submission{}).
			Where("id = ? AND status = ?", id, sub.Status).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}
		if sub.Status == status.PaymentPending {
			if err := supersedeOrders(tx, id, ""); err != nil {
				return err
			}
		}

		return tx.Where("submission_id = ? AND doc_key = ?", id, key).First(&doc).Error
	})
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Payment

// OrderTarget carries what is needed to open (or reuse) a provider order.
type OrderTarget struct {
	Submission *ds.Submission
	Amount     int64
	Currency   string
	// Existing is the still-open order of a PAYMENT_PENDING record.
	Existing *ds.PaymentOrder
}

// PrepareOrder checks that the record can be charged and resolves the amount
// from the plan table.
func (r *Repository) PrepareOrder(ctx context.Context, id string) (*OrderTarget, error) {
	sub, err := r.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status != status.DocsPending && sub.Status != status.PaymentPending {
		return nil, ErrInvalidTransition
	}
	p, ok := plan.Get(sub.PlanKey)
	if !ok {
		return nil, ErrUnknownPlan
	}

	if missing := p.MissingDocuments(linkedDocuments(sub)); len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrDocumentsIncomplete, strings.Join(missing, ", "))
	}

	target := &OrderTarget{
		Submission: sub,
		Amount:     p.Amount,
		Currency:   plan.Currency,
	}
	if sub.Status == status.PaymentPending && sub.OrderID != nil {
		var order ds.PaymentOrder
		err := r.db.WithContext(ctx).
			Where("order_id = ? AND status = ?", *sub.OrderID, ds.OrderCreated).
			First(&order).Error
		if err == nil && order.Amount == p.Amount {
			target.Existing = &order
		}
	}
	return target, nil
}

// SaveOrder stores a freshly created provider order and moves the record to
// PAYMENT_PENDING. Older open orders of the record are superseded.
func (r *Repository) SaveOrder(ctx context.Context, id string, order ds.PaymentOrder) (*ds.Submission, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := r.now()
		order.SubmissionID = id
		order.Status = ds.OrderCreated
		order.CreatedAt = now
		order.UpdatedAt = now
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		res := tx.Model(&ds.Submission{}).
			Where("id = ? AND status IN ?", id, []status.Status{status.DocsPending, status.PaymentPending}).
			Updates(map[string]interface{}{
				"status":     status.PaymentPending,
				"order_id":   order.OrderID,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}

		return supersedeOrders(tx, id, order.OrderID)
	})
	if err != nil {
		return nil, err
	}
	return r.GetSubmission(ctx, id)
}

// RecordPayment marks the record PAYMENT_SUCCESSFUL after the checkout (or the
// provider webhook) reported success. Replaying the same payment is a no-op.
//
// A capture on one of the record's orders that the record can no longer
// accept (it was edited back to DOCS_PENDING, expired, or already paid by
// another order) is stamped on the order as paid_orphan and reported with
// ErrOrphanPayment, so support can find it with ListOrphanPayments.
func (r *Repository) RecordPayment(ctx context.Context, id, orderID, paymentID string) (*ds.Submission, error) {
	orphaned := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub ds.Submission
		if err := tx.First(&sub, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		if sub.Status.Paid() && sub.PaymentID != nil && *sub.PaymentID == paymentID {
			return nil
		}

		price, err := plan.Price(sub.PlanKey)
		if err != nil {
			return ErrUnknownPlan
		}

		// Any order opened for this record is considered, including one
		// superseded by a later order: the charge has happened.
		var order ds.PaymentOrder
		err = tx.Where("order_id = ? AND submission_id = ?", orderID, id).First(&order).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPaymentMismatch
			}
			return err
		}
		if order.PaymentID != nil {
			if *order.PaymentID != paymentID {
				return ErrPaymentMismatch
			}
			if order.Status == ds.OrderOrphaned {
				orphaned = true
				return nil
			}
		}

		if sub.Status != status.PaymentPending {
			orphaned = true
			return tx.Model(&ds.PaymentOrder{}).
				Where("id = ?", order.ID).
				Updates(map[string]interface{}{"status": ds.OrderOrphaned, "payment_id": paymentID, "updated_at": r.now()}).Error
		}
		if order.Amount != price {
			return ErrAmountMismatch
		}

		now := r.now()
		res := tx.Model(&ds.Submission{}).
			Where("id = ? AND status IN ?", id, status.Sources(status.PaymentSuccessful)).
			Updates(map[string]interface{}{
				"status":     status.PaymentSuccessful,
				"order_id":   order.OrderID,
				"payment_id": paymentID,
				"amount":     order.Amount,
				"currency":   order.Currency,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}

		err = tx.Model(&ds.PaymentOrder{}).
			Where("id = ?", order.ID).
			Updates(map[string]interface{}{"status": ds.OrderPaid, "payment_id": paymentID, "updated_at": now}).Error
		if err != nil {
			return err
		}
		return supersedeOrders(tx, id, order.OrderID)
	})
	if err != nil {
		return nil, err
	}
	if orphaned {
		return nil, ErrOrphanPayment
	}
	return r.GetSubmission(ctx, id)
}

// Finalize marks a paid record SUBMITTED. amount must equal the plan price
// and the recorded payment. Finalizing an already submitted record with the
// same payment returns it unchanged.
func (r *Repository) Finalize(ctx context.Context, id, paymentID string, amount int64) (*ds.Submission, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sub ds.Submission
		if err := tx.First(&sub, "id = ?", id).Error; err != nil {
			return notFound(err)
		}
		price, err := plan.Price(sub.PlanKey)
		if err != nil {
			return ErrUnknownPlan
		}
		if amount != price {
			return ErrAmountMismatch
		}

		switch sub.Status {
		case status.Submitted:
			if sub.PaymentID != nil && *sub.PaymentID == paymentID {
				return nil
			}
			return ErrPaymentMismatch
		case status.PaymentSuccessful:
		default:
			return ErrInvalidTransition
		}

		if sub.PaymentID == nil || *sub.PaymentID != paymentID {
			return ErrPaymentMismatch
		}
		if sub.Amount == nil || *sub.Amount != price {
			return ErrAmountMismatch
		}

		now := r.now()
		res := tx.Model(&ds.Submission{}).
			Where("id = ? AND status IN ?", id, status.Sources(status.Submitted)).
			Updates(map[string]interface{}{
				"status":       status.Submitted,
				"submitted_at": now,
				"updated_at":   now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetSubmission(ctx, id)
}

// FindSubmissionIDByOrder resolves the record an order was opened for.
func (r *Repository) FindSubmissionIDByOrder(ctx context.Context, orderID string) (string, error) {
	var order ds.PaymentOrder
	err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&order).Error
	if err != nil {
		return "", notFound(err)
	}
	return order.SubmissionID, nil
}

// Reconciliation

// ExpireStale moves unpaid records in one of from, untouched since before,
// to FAILED. Records with a recorded payment are never expired.
func (r *Repository) ExpireStale(ctx context.Context, from []status.Status, before time.Time, reason string) (int64, error) {
	for _, st := range from {
		if !status.CanTransition(st, status.Failed) {
			return 0, fmt.Errorf("%w: %s cannot expire", ErrInvalidTransition, st)
		}
	}
	res := r.db.WithContext(ctx).Model(&ds.Submission{}).
		Where("status IN ? AND updated_at < ? AND payment_id IS NULL", from, before).
		Updates(map[string]interface{}{
			"status":         status.Failed,
			"failure_reason": reason,
			"updated_at":     r.now(),
		})
	return res.RowsAffected, res.Error
}

// ListStuckPaid returns records charged but not submitted since before.
func (r *Repository) ListStuckPaid(ctx context.Context, before time.Time) ([]ds.Submission, error) {
	var subs []ds.Submission
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status.PaymentSuccessful, before).
		Order("updated_at ASC").
		Find(&subs).Error
	return subs, err
}

// ListOrphanPayments returns captured payments no record accepted, oldest first.
func (r *Repository) ListOrphanPayments(ctx context.Context) ([]ds.PaymentOrder, error) {
	var orders []ds.PaymentOrder
	err := r.db.WithContext(ctx).
		Where("status = ?", ds.OrderOrphaned).
		Order("updated_at ASC").
		Find(&orders).Error
	return orders, err
}

func supersedeOrders(tx *gorm.DB, submissionID, keepOrderID string) error {
	q := tx.Model(&ds.PaymentOrder{}).Where("submission_id = ? AND status = ?", submissionID, ds.OrderCreated)
	if keepOrderID != "" {
		q = q.Where("order_id <> ?", keepOrderID)
	}
	return q.Update("status", ds.OrderSuperseded).Error
}

func linkedDocuments(sub *ds.Submission) map[string]string {
	linked := make(map[string]string, len(sub.Documents))
	for _, d := range sub.Documents {
		linked[d.DocKey] = d.FileURL
	}
	return linked
}

func copyFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
