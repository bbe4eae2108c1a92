package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fixitnow/fixitnow-api/internal/models"
)

const listingColumns = `id, category, rating, images, provider_id, created_at, updated_at`

// ListingRepository provides database access for provider service listings.
type ListingRepository struct {
	db *sqlx.DB
}

// NewListingRepository creates a new instance of ListingRepository.
func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// Create inserts a new listing and fills in the generated identifier.
func (r *ListingRepository) Create(ctx context.Context, listing *models.Listing) error {
	now := time.Now().UTC()
	if listing.CreatedAt.IsZero() {
		listing.CreatedAt = now
	}
	listing.UpdatedAt = now

	const query = `INSERT INTO listings (category, rating, images, provider_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	if err := r.db.QueryRowxContext(ctx, query,
		listing.Category, listing.Rating, listing.Images, listing.ProviderID,
		listing.CreatedAt, listing.UpdatedAt,
	).Scan(&listing.ID); err != nil {
		return fmt.Errorf("create listing: %w", err)
	}
	return nil
}

// FindByID returns a listing by identifier.
func (r *ListingRepository) FindByID(ctx context.Context, id int64) (*models.Listing, error) {
	query := fmt.Sprintf(`SELECT %s FROM listings WHERE id = $1 LIMIT 1`, listingColumns)
	var listing models.Listing
	if err := r.db.GetContext(ctx, &listing, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find listing by id: %w", err)
	}
	return &listing, nil
}

// List returns all listings, newest first.
func (r *ListingRepository) List(ctx context.Context) ([]models.Listing, error) {
	query := fmt.Sprintf(`SELECT %s FROM listings ORDER BY created_at DESC`, listingColumns)
	var listings []models.Listing
	if err := r.db.SelectContext(ctx, &listings, query); err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	return listings, nil
}

// ListByProvider returns the provider's listings, newest first.
func (r *ListingRepository) ListByProvider(ctx context.Context, providerID int64) ([]models.Listing, error) {
	query := fmt.Sprintf(`SELECT %s FROM listings WHERE provider_id = $1 ORDER BY created_at DESC`, listingColumns)
	var listings []models.Listing
	if err := r.db.SelectContext(ctx, &listings, query, providerID); err != nil {
		return nil, fmt.Errorf("list listings by provider: %w", err)
	}
	return listings, nil
}

// UpdateRating stores a listing's rating.
func (r *ListingRepository) UpdateRating(ctx context.Context, id int64, rating float64) error {
	const query = `UPDATE listings SET rating = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, rating, time.Now().UTC()); err != nil {
		return fmt.Errorf("update listing rating: %w", err)
	}
	return nil
}

// Delete removes a listing record.
func (r *ListingRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM listings WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	return nil
}
