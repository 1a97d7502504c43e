package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Receipt represents a stored receipt for data transfer between layers.
type Receipt struct {
	ID                 uuid.UUID       `json:"id"`
	OwnerID            uuid.UUID       `json:"owner_id"`
	VendorID           uuid.UUID       `json:"vendor_id"`
	VendorName         string          `json:"vendor_name"`
	CategoryID         *uuid.UUID      `json:"category_id,omitempty"`
	CategoryName       string          `json:"category_name,omitempty"`
	TransactionDate    time.Time       `json:"transaction_date"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	OriginalFilename   string          `json:"original_filename"`
	FileLocation       string          `json:"file_location,omitempty"`
	RawText            string          `json:"raw_text,omitempty"`
	BillingPeriodStart *time.Time      `json:"billing_period_start,omitempty"`
	BillingPeriodEnd   *time.Time      `json:"billing_period_end,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}
