package entity

import "github.com/google/uuid"

// Category is an owner's expense category, created on first use.
type Category struct {
	ID      uuid.UUID `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`
	Name    string    `json:"name"`
}

// Vendor is an owner's merchant, matched case-insensitively by name.
type Vendor struct {
	ID      uuid.UUID `json:"id"`
	OwnerID uuid.UUID `json:"owner_id"`
	Name    string    `json:"name"`
}
