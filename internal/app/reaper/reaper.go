// Package reaper expires abandoned submissions and reports paid records that
// never reached SUBMITTED.
package reaper

import (
	"context"
	"time"

	"filingdesk/internal/app/config"
	"filingdesk/internal/app/ds"
	"filingdesk/internal/app/metrics"
	"filingdesk/internal/app/status"

	"github.com/sirupsen/logrus"
)

// ReasonExpired is stored as failure_reason on reaped records.
const ReasonExpired = "expired"

// Store is the part of the repository the reaper needs.
type Store interface {
	ExpireStale(ctx context.Context, from []status.Status, before time.Time, reason string) (int64, error)
	ListStuckPaid(ctx context.Context, before time.Time) ([]ds.Submission, error)
	ListOrphanPayments(ctx context.Context) ([]ds.PaymentOrder, error)
}

type Reaper struct {
	store Store
	cfg   config.ReaperConfig
	log   *logrus.Entry
	now   func() time.Time
}

func New(store Store, cfg config.ReaperConfig) *Reaper {
	return &Reaper{
		store: store,
		cfg:   cfg,
		log:   logrus.WithField("component", "reaper"),
		now:   time.Now,
	}
}

// Report is the outcome of one pass.
type Report struct {
	DraftsExpired   int64
	PaymentsExpired int64
	Stuck           []ds.Submission
	Orphans         []ds.PaymentOrder
}

// Sweep runs one pass. Records with a recorded payment are never touched.
func (r *Reaper) Sweep(ctx context.Context) (Report, error) {
	var report Report
	now := r.now()

	n, err := r.store.ExpireStale(ctx, []status.Status{status.Draft, status.DocsPending}, now.Add(-r.cfg.DraftTTL), ReasonExpired)
	if err != nil {
		return report, err
	}
	report.DraftsExpired = n
	metrics.ReaperExpired.WithLabelValues("draft").Add(float64(n))

	n, err = r.store.ExpireStale(ctx, []status.Status{status.PaymentPending}, now.Add(-r.cfg.PaymentTTL), ReasonExpired)
	if err != nil {
		return report, err
	}
	report.PaymentsExpired = n
	metrics.ReaperExpired.WithLabelValues("payment").Add(float64(n))

	report.Stuck, err = r.store.ListStuckPaid(ctx, now.Add(-r.cfg.StuckAfter))
	if err != nil {
		return report, err
	}
	metrics.StuckSubmissions.Set(float64(len(report.Stuck)))

	report.Orphans, err = r.store.ListOrphanPayments(ctx)
	if err != nil {
		return report, err
	}
	metrics.OrphanPayments.Set(float64(len(report.Orphans)))

	if report.DraftsExpired+report.PaymentsExpired > 0 {
		r.log.WithFields(logrus.Fields{
			"drafts":   report.DraftsExpired,
			"payments": report.PaymentsExpired,
		}).Info("expired stale submissions")
	}
	for _, sub := range report.Stuck {
		fields := logrus.Fields{"submission_id": sub.ID, "since": sub.UpdatedAt}
		if sub.PaymentID != nil {
			fields["payment_id"] = *sub.PaymentID
		}
		r.log.WithFields(fields).Error("paid submission not submitted")
	}
	for _, order := range report.Orphans {
		fields := logrus.Fields{"submission_id": order.SubmissionID, "order_id": order.OrderID, "amount": order.Amount}
		if order.PaymentID != nil {
			fields["payment_id"] = *order.PaymentID
		}
		r.log.WithFields(fields).Error("captured payment held without a submission")
	}
	return report, nil
}

// Run sweeps every Interval until ctx is done.
func (r *Reaper) Run(ctx context.Context) {
	if r.cfg.Interval <= 0 {
		r.log.Warn("reaper interval not set, not starting")
		return
	}

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.sweepLogged(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepLogged(ctx)
		}
	}
}

func (r *Reaper) sweepLogged(ctx context.Context) {
	if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
		r.log.Error("sweep failed: ", err)
	}
}
