package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/fixitnow/fixitnow-api/internal/models"
)

const requestColumns = `request_id, category, description, urgency, budget, status, scheduled_date, completion_date, rating, review, requester_id, provider_id, listing_id, created_at, updated_at`

// RequestRepository is the authoritative store for service requests.
//
// Apart from Accept, every mutation is last-writer-wins against the single
// record; no version counter is kept, so concurrent conflicting updates
// overwrite each other.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository creates a new instance of RequestRepository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a new request and fills in the generated identifier.
func (r *RequestRepository) Create(ctx context.Context, req *models.Request) error {
	now := time.Now().UTC()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = now
	}
	req.UpdatedAt = now

	const query = `INSERT INTO requests (category, description, urgency, budget, status, scheduled_date, requester_id, listing_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING request_id`
	if err := r.db.QueryRowxContext(ctx, query,
		req.Category, req.Description, req.Urgency, req.Budget, req.Status,
		req.ScheduledDate, req.RequesterID, req.ListingID, req.CreatedAt, req.UpdatedAt,
	).Scan(&req.ID); err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

// FindByID returns a request by identifier.
func (r *RequestRepository) FindByID(ctx context.Context, id int64) (*models.Request, error) {
	query := fmt.Sprintf(`SELECT %s FROM requests WHERE request_id = $1 LIMIT 1`, requestColumns)
	var req models.Request
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find request by id: %w", err)
	}
	return &req, nil
}

// List returns requests matching the filter predicates.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, error) {
	baseQuery := `FROM requests WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.RequesterID != nil {
		conditions = append(conditions, fmt.Sprintf("requester_id = $%d", len(args)+1))
		args = append(args, *filter.RequesterID)
	}
	if filter.ProviderID != nil {
		conditions = append(conditions, fmt.Sprintf("provider_id = $%d", len(args)+1))
		args = append(args, *filter.ProviderID)
	}
	if filter.Unassigned {
		conditions = append(conditions, "provider_id IS NULL")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	orderBy := filter.OrderBy
	if orderBy != "created_at" && orderBy != "completion_date" {
		orderBy = "created_at"
	}
	direction := "ASC"
	if filter.OrderDesc {
		direction = "DESC"
	}

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s", requestColumns, baseQuery, orderBy, direction)

	var requests []models.Request
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, fmt.Errorf("list requests: %w", err)
	}
	return requests, nil
}

// Accept assigns the provider and moves the request to IN_PROGRESS in a
// single conditional update. Under concurrent accepts on the same request the
// PENDING guard lets exactly one caller win; the others observe false.
func (r *RequestRepository) Accept(ctx context.Context, id, providerID int64) (bool, error) {
	const query = `UPDATE requests SET provider_id = $2, status = $3, updated_at = $4
		WHERE request_id = $1 AND status = $5 AND provider_id IS NULL`
	res, err := r.db.ExecContext(ctx, query, id, providerID, models.StatusInProgress, time.Now().UTC(), models.StatusPending)
	if err != nil {
		return false, fmt.Errorf("accept request: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("accept request rows affected: %w", err)
	}
	return affected == 1, nil
}

// UpdateStatus writes the new status, stamping the completion date when one
// is supplied (entering COMPLETED) and clearing it otherwise.
func (r *RequestRepository) UpdateStatus(ctx context.Context, id int64, status models.RequestStatus, completionDate *time.Time) error {
	const query = `UPDATE requests SET status = $2, completion_date = $3, updated_at = $4 WHERE request_id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, completionDate, time.Now().UTC()); err != nil {
		return fmt.Errorf("update request status: %w", err)
	}
	return nil
}

// UpdateFields applies only the fields present in the patch. Status, provider
// and review columns are never written through this path.
func (r *RequestRepository) UpdateFields(ctx context.Context, id int64, patch models.RequestPatch) error {
	sets := []string{}
	args := []interface{}{id}

	appendSet := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Category != nil {
		appendSet("category", *patch.Category)
	}
	if patch.Description != nil {
		appendSet("description", *patch.Description)
	}
	if patch.Urgency != nil {
		appendSet("urgency", *patch.Urgency)
	}
	if patch.Budget != nil {
		appendSet("budget", *patch.Budget)
	}
	if patch.ScheduledDate != nil {
		appendSet("scheduled_date", *patch.ScheduledDate)
	}
	appendSet("updated_at", time.Now().UTC())

	query := fmt.Sprintf("UPDATE requests SET %s WHERE request_id = $1", strings.Join(sets, ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update request fields: %w", err)
	}
	return nil
}

// UpdateReview stores the rating and review text. Prior reviews are
// overwritten; re-reviewing is allowed.
func (r *RequestRepository) UpdateReview(ctx context.Context, id int64, rating int, review string) error {
	const query = `UPDATE requests SET rating = $2, review = $3, updated_at = $4 WHERE request_id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, rating, review, time.Now().UTC()); err != nil {
		return fmt.Errorf("update request review: %w", err)
	}
	return nil
}

// Delete hard-deletes the request record.
func (r *RequestRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM requests WHERE request_id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete request: %w", err)
	}
	return nil
}

// CompletedCount counts COMPLETED requests assigned to the provider.
func (r *RequestRepository) CompletedCount(ctx context.Context, providerID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM requests WHERE provider_id = $1 AND status = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, providerID, models.StatusCompleted); err != nil {
		return 0, fmt.Errorf("count completed requests: %w", err)
	}
	return count, nil
}

// AverageRating returns the mean of non-null ratings among the provider's
// COMPLETED requests, or 0 when there are none.
func (r *RequestRepository) AverageRating(ctx context.Context, providerID int64) (float64, error) {
	const query = `SELECT COALESCE(AVG(rating), 0) FROM requests WHERE provider_id = $1 AND status = $2 AND rating IS NOT NULL`
	var avg float64
	if err := r.db.GetContext(ctx, &avg, query, providerID, models.StatusCompleted); err != nil {
		return 0, fmt.Errorf("average rating: %w", err)
	}
	return avg, nil
}

// TotalBudget sums the non-null budgets of the provider's COMPLETED
// requests, or 0 when there are none.
func (r *RequestRepository) TotalBudget(ctx context.Context, providerID int64) (float64, error) {
	const query = `SELECT COALESCE(SUM(budget), 0) FROM requests WHERE provider_id = $1 AND status = $2 AND budget IS NOT NULL`
	var total float64
	if err := r.db.GetContext(ctx, &total, query, providerID, models.StatusCompleted); err != nil {
		return 0, fmt.Errorf("total budget: %w", err)
	}
	return total, nil
}

// Totals summarises the store by status for the admin overview.
func (r *RequestRepository) Totals(ctx context.Context) (*models.RequestTotals, error) {
	const query = `SELECT
		COUNT(*) FILTER (WHERE status = $1) AS total_pending,
		COUNT(*) FILTER (WHERE status = $2) AS total_completed,
		COUNT(*) FILTER (WHERE status = $3) AS total_rejected
		FROM requests`
	var totals models.RequestTotals
	if err := r.db.QueryRowxContext(ctx, query, models.StatusPending, models.StatusCompleted, models.StatusRejected).
		Scan(&totals.TotalPending, &totals.TotalCompleted, &totals.TotalRejected); err != nil {
		return nil, fmt.Errorf("request totals: %w", err)
	}
	return &totals, nil
}
