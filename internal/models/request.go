package models

import "time"

// RequestStatus enumerates the lifecycle states of a service request.
// PENDING is the only initial state; COMPLETED, REJECTED and CANCELLED are
// terminal. ACCEPTED is kept for wire compatibility with older clients but is
// never produced by the modeled flows.
type RequestStatus string

const (
	StatusPending    RequestStatus = "PENDING"
	StatusAccepted   RequestStatus = "ACCEPTED"
	StatusInProgress RequestStatus = "IN_PROGRESS"
	StatusCompleted  RequestStatus = "COMPLETED"
	StatusRejected   RequestStatus = "REJECTED"
	StatusCancelled  RequestStatus = "CANCELLED"
)

// ValidStatus reports whether the status is a known lifecycle state.
func ValidStatus(s RequestStatus) bool {
	switch s {
	case StatusPending, StatusAccepted, StatusInProgress,
		StatusCompleted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Request is the central entity tracked through the lifecycle.
//
// provider_id is set atomically with the PENDING -> IN_PROGRESS transition
// and never cleared afterwards. rating/review are non-null only once the
// requester has reviewed a COMPLETED request. completion_date is non-null
// iff status is COMPLETED.
type Request struct {
	ID             int64           `db:"request_id" json:"request_id"`
	Category       ServiceCategory `db:"category" json:"category"`
	Description    string          `db:"description" json:"description"`
	Urgency        string          `db:"urgency" json:"urgency"`
	Budget         *float64        `db:"budget" json:"budget,omitempty"`
	Status         RequestStatus   `db:"status" json:"status"`
	ScheduledDate  *time.Time      `db:"scheduled_date" json:"scheduled_date,omitempty"`
	CompletionDate *time.Time      `db:"completion_date" json:"completion_date,omitempty"`
	Rating         *int            `db:"rating" json:"rating,omitempty"`
	Review         *string         `db:"review" json:"review,omitempty"`
	RequesterID    int64           `db:"requester_id" json:"requester_id"`
	ProviderID     *int64          `db:"provider_id" json:"provider_id,omitempty"`
	ListingID      *int64          `db:"listing_id" json:"listing_id,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// RequestFilter captures the predicates the store knows how to apply.
type RequestFilter struct {
	Status       *RequestStatus
	RequesterID  *int64
	ProviderID   *int64
	Unassigned   bool
	OrderBy      string // "created_at" or "completion_date"
	OrderDesc    bool
}

// RequestPatch carries the mutable detail fields for a partial update.
// Status, provider and review fields are never touched through this path.
type RequestPatch struct {
	Category      *ServiceCategory `json:"category,omitempty"`
	Description   *string          `json:"description,omitempty"`
	Urgency       *string          `json:"urgency,omitempty"`
	Budget        *float64         `json:"budget,omitempty"`
	ScheduledDate *time.Time       `json:"scheduled_date,omitempty"`
}

// Empty reports whether the patch carries no fields.
func (p RequestPatch) Empty() bool {
	return p.Category == nil && p.Description == nil && p.Urgency == nil &&
		p.Budget == nil && p.ScheduledDate == nil
}

// ProviderStats is the aggregate view computed over a provider's COMPLETED
// requests. Zero values are meaningful: a provider with no completed work has
// CompletedCount 0, AverageRating 0 and TotalBudget 0.
type ProviderStats struct {
	ProviderID     int64   `json:"provider_id"`
	CompletedCount int     `json:"completed_count"`
	AverageRating  float64 `json:"average_rating"`
	TotalBudget    float64 `json:"total_budget"`
}

// RequestTotals summarises the request store by status for the admin overview.
type RequestTotals struct {
	TotalPending   int `json:"total_pending"`
	TotalCompleted int `json:"total_completed"`
	TotalRejected  int `json:"total_rejected"`
}
