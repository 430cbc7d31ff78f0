package ds

import "time"

// SubmissionDocument is the reference stored under one document key.
// (submission_id, doc_key) is unique: re-linking a key replaces it.
type SubmissionDocument struct {
	ID           uint      `gorm:"primaryKey"`
	SubmissionID string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_submission_doc_key"`
	DocKey       string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_submission_doc_key"`
	FileURL      string    `gorm:"type:varchar(512);not null"`
	FileID       string    `gorm:"type:varchar(128)"`
	UploadedAt   time.Time `gorm:"not null"`
}
