package entity

import (
	"time"

	"github.com/google/uuid"
)

// Owner represents the person receipts are filed under.
type Owner struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	DefaultCurrency string    `json:"default_currency"`
	CreatedAt       time.Time `json:"created_at"`
}
