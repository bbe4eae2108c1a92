package models

import "time"

// UserRole represents the three actor roles brokered by the platform.
type UserRole string

const (
	RoleRequester UserRole = "REQUESTER"
	RoleProvider  UserRole = "PROVIDER"
	RoleAdmin     UserRole = "ADMIN"
)

// ServiceCategory enumerates the kinds of work a request or listing covers.
type ServiceCategory string

const (
	CategoryPlumbing   ServiceCategory = "PLUMBING"
	CategoryElectrical ServiceCategory = "ELECTRICAL"
	CategoryCleaning   ServiceCategory = "CLEANING"
	CategoryPainting   ServiceCategory = "PAINTING"
	CategoryGardening  ServiceCategory = "GARDENING"
	CategoryCarpentry  ServiceCategory = "CARPENTRY"
)

// ValidCategory reports whether the category is a known service category.
func ValidCategory(c ServiceCategory) bool {
	switch c {
	case CategoryPlumbing, CategoryElectrical, CategoryCleaning,
		CategoryPainting, CategoryGardening, CategoryCarpentry:
		return true
	}
	return false
}

// User represents an application user stored in the users table.
// Provider aggregate fields (rating, jobs, income) are null for other roles.
type User struct {
	ID              int64            `db:"id" json:"id"`
	FullName        string           `db:"full_name" json:"full_name"`
	Email           string           `db:"email" json:"email"`
	Phone           string           `db:"phone" json:"phone"`
	PasswordHash    string           `db:"password_hash" json:"-"`
	Role            UserRole         `db:"role" json:"role"`
	Gender          string           `db:"gender" json:"gender"`
	ServiceCategory *ServiceCategory `db:"service_category" json:"service_category,omitempty"`
	ProviderRating  *float64         `db:"provider_rating" json:"provider_rating,omitempty"`
	JobsCompleted   *int             `db:"jobs_completed" json:"jobs_completed,omitempty"`
	TotalIncome     *float64         `db:"total_income" json:"total_income,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role   *UserRole
	Search string
	Limit  int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
