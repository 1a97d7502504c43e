package entity

import (
	"time"

	"github.com/google/uuid"
)

// ParseJob records one attempt to turn a landed file into a receipt.
type ParseJob struct {
	ID            uuid.UUID  `json:"id"`
	OwnerID       uuid.UUID  `json:"owner_id"`
	ReceiptID     *uuid.UUID `json:"receipt_id,omitempty"`
	Filename      string     `json:"filename"`
	FileLocation  string     `json:"file_location"`
	ContentHash   string     `json:"content_hash"`
	Status        string     `json:"status"`
	TextSource    *string    `json:"text_source,omitempty"`
	Language      *string    `json:"language,omitempty"`
	FailureKind   *string    `json:"failure_kind,omitempty"`
	FailureReason *string    `json:"failure_reason,omitempty"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}
