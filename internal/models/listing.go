package models

import "time"

// Listing is a service offering published by a provider. Requests may
// reference a listing at creation time.
type Listing struct {
	ID         int64           `db:"id" json:"id"`
	Category   ServiceCategory `db:"category" json:"category"`
	Rating     float64         `db:"rating" json:"rating"`
	Images     string          `db:"images" json:"images"`
	ProviderID int64           `db:"provider_id" json:"provider_id"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}
