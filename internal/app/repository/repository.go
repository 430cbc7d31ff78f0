package repository

import (
	"errors"
	"fmt"
	"time"

	"filingdesk/internal/app/ds"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var (
	ErrNotFound            = errors.New("submission not found")
	ErrInvalidTransition   = errors.New("operation not allowed in current status")
	ErrAmountMismatch      = errors.New("amount does not match plan price")
	ErrPaymentMismatch     = errors.New("payment does not match submission")
	ErrDocumentsIncomplete = errors.New("required documents missing")
	ErrUnknownDocument     = errors.New("document key not declared by plan")
	ErrUnknownPlan         = errors.New("unknown plan")
	ErrIdempotencyConflict = errors.New("idempotency key reused with different plan")
	ErrUserExists          = errors.New("user already exists")
	ErrOrphanPayment       = errors.New("payment captured but the submission cannot accept it")
)

type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

func New(dsn string) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	return NewWithDB(db)
}

// NewWithDB wraps an already opened connection and migrates the schema.
func NewWithDB(db *gorm.DB) (*Repository, error) {
	err := db.AutoMigrate(ds.Models()...)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Repository{
		db:  db,
		now: time.Now,
	}, nil
}

// DB exposes the connection for health checks.
func (r *Repository) DB() *gorm.DB {
	return r.db
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
