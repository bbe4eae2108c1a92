package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/fixitnow/fixitnow-api/internal/models"
	appErrors "github.com/fixitnow/fixitnow-api/pkg/errors"
	"github.com/fixitnow/fixitnow-api/pkg/export"
)

type statsRequestRepository interface {
	List(ctx context.Context, filter models.RequestFilter) ([]models.Request, error)
	CompletedCount(ctx context.Context, providerID int64) (int, error)
	AverageRating(ctx context.Context, providerID int64) (float64, error)
	TotalBudget(ctx context.Context, providerID int64) (float64, error)
	Totals(ctx context.Context) (*models.RequestTotals, error)
}

type statsUserRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
	TopProviders(ctx context.Context, limit int) ([]models.User, error)
}

// StatsCache is the subset of the cache layer the stats service needs. A nil
// cache disables overview caching.
type StatsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// StatsConfig tunes the statistics service.
type StatsConfig struct {
	TopProvidersLimit int
	OverviewCacheTTL  time.Duration
}

// Overview summarises the platform for the admin dashboard.
type Overview struct {
	Requests        models.RequestTotals `json:"requests"`
	TotalRequesters int                  `json:"total_requesters"`
	TotalProviders  int                  `json:"total_providers"`
}

const overviewCacheKey = "stats:overview"

// StatsService computes read-side aggregations over the request store. It
// never mutates requests; provider-scoped queries first verify the target
// actually holds the PROVIDER role.
type StatsService struct {
	requests statsRequestRepository
	users    statsUserRepository
	cache    StatsCache
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
	config   StatsConfig
}

// NewStatsService constructs a StatsService.
func NewStatsService(requests statsRequestRepository, users statsUserRepository, cache StatsCache, logger *zap.Logger, config StatsConfig) *StatsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.TopProvidersLimit <= 0 {
		config.TopProvidersLimit = 3
	}
	if config.OverviewCacheTTL <= 0 {
		config.OverviewCacheTTL = 5 * time.Minute
	}
	return &StatsService{
		requests: requests,
		users:    users,
		cache:    cache,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
		config:   config,
	}
}

// CompletedCount returns how many of the provider's requests are COMPLETED.
func (s *StatsService) CompletedCount(ctx context.Context, providerID int64) (int, error) {
	if err := s.ensureProvider(ctx, providerID); err != nil {
		return 0, err
	}
	count, err := s.requests.CompletedCount(ctx, providerID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count completed requests")
	}
	return count, nil
}

// AverageRating returns the mean rating over the provider's COMPLETED
// requests; 0 when the provider has none.
func (s *StatsService) AverageRating(ctx context.Context, providerID int64) (float64, error) {
	if err := s.ensureProvider(ctx, providerID); err != nil {
		return 0, err
	}
	avg, err := s.requests.AverageRating(ctx, providerID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute average rating")
	}
	return avg, nil
}

// TotalBudget returns the summed budget over the provider's COMPLETED
// requests; 0 when the provider has none.
func (s *StatsService) TotalBudget(ctx context.Context, providerID int64) (float64, error) {
	if err := s.ensureProvider(ctx, providerID); err != nil {
		return 0, err
	}
	total, err := s.requests.TotalBudget(ctx, providerID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute total budget")
	}
	return total, nil
}

// ProviderStats returns the full aggregate view for one provider.
func (s *StatsService) ProviderStats(ctx context.Context, providerID int64) (*models.ProviderStats, error) {
	if err := s.ensureProvider(ctx, providerID); err != nil {
		return nil, err
	}

	count, err := s.requests.CompletedCount(ctx, providerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count completed requests")
	}
	avg, err := s.requests.AverageRating(ctx, providerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute average rating")
	}
	total, err := s.requests.TotalBudget(ctx, providerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute total budget")
	}

	return &models.ProviderStats{
		ProviderID:     providerID,
		CompletedCount: count,
		AverageRating:  avg,
		TotalBudget:    total,
	}, nil
}

// TopProviders lists providers by stored aggregate rating, descending,
// capped to the configured limit.
func (s *StatsService) TopProviders(ctx context.Context) ([]models.User, error) {
	providers, err := s.users.TopProviders(ctx, s.config.TopProvidersLimit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list top providers")
	}
	return providers, nil
}

// GetOverview returns platform totals, served from cache when fresh.
func (s *StatsService) GetOverview(ctx context.Context) (*Overview, error) {
	if s.cache != nil {
		var cached Overview
		if err := s.cache.Get(ctx, overviewCacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	totals, err := s.requests.Totals(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute request totals")
	}
	requesters, err := s.users.CountByRole(ctx, models.RoleRequester)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count requesters")
	}
	providers, err := s.users.CountByRole(ctx, models.RoleProvider)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count providers")
	}

	overview := &Overview{
		Requests:        *totals,
		TotalRequesters: requesters,
		TotalProviders:  providers,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, overviewCacheKey, overview, s.config.OverviewCacheTTL); err != nil {
			s.logger.Warn("failed to cache stats overview", zap.Error(err))
		}
	}

	return overview, nil
}

// RequestReport renders all requests in the given status as a CSV or PDF
// table for the admin.
func (s *StatsService) RequestReport(ctx context.Context, status models.RequestStatus, format string) ([]byte, string, error) {
	if !models.ValidStatus(status) {
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "invalid request status")
	}

	requests, err := s.requests.List(ctx, models.RequestFilter{Status: &status, OrderBy: "created_at", OrderDesc: true})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}

	dataset := buildRequestDataset(requests)
	title := fmt.Sprintf("%s requests", status)

	switch format {
	case "csv", "":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported report format")
	}
}

func buildRequestDataset(requests []models.Request) export.Dataset {
	headers := []string{"ID", "Category", "Urgency", "Budget", "Requester", "Provider", "Rating", "Created"}
	rows := make([]map[string]string, 0, len(requests))
	for _, req := range requests {
		row := map[string]string{
			"ID":        strconv.FormatInt(req.ID, 10),
			"Category":  string(req.Category),
			"Urgency":   req.Urgency,
			"Budget":    "",
			"Requester": strconv.FormatInt(req.RequesterID, 10),
			"Provider":  "",
			"Rating":    "",
			"Created":   req.CreatedAt.Format(time.RFC3339),
		}
		if req.Budget != nil {
			row["Budget"] = strconv.FormatFloat(*req.Budget, 'f', 2, 64)
		}
		if req.ProviderID != nil {
			row["Provider"] = strconv.FormatInt(*req.ProviderID, 10)
		}
		if req.Rating != nil {
			row["Rating"] = strconv.Itoa(*req.Rating)
		}
		rows = append(rows, row)
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func (s *StatsService) ensureProvider(ctx context.Context, providerID int64) error {
	user, err := s.users.FindByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "provider not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load provider")
	}
	if user.Role != models.RoleProvider {
		return appErrors.Clone(appErrors.ErrRoleMismatch, "user is not a provider")
	}
	return nil
}
