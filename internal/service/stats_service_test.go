package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fixitnow/fixitnow-api/internal/models"
	appErrors "github.com/fixitnow/fixitnow-api/pkg/errors"
)

type mockStatsRequestRepo struct {
	listResult     []models.Request
	completedCount int
	avgRating      float64
	totalBudget    float64
	totals         models.RequestTotals
	totalsCalls    int
}

func (m *mockStatsRequestRepo) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, error) {
	return m.listResult, nil
}

func (m *mockStatsRequestRepo) CompletedCount(ctx context.Context, providerID int64) (int, error) {
	return m.completedCount, nil
}

func (m *mockStatsRequestRepo) AverageRating(ctx context.Context, providerID int64) (float64, error) {
	return m.avgRating, nil
}

func (m *mockStatsRequestRepo) TotalBudget(ctx context.Context, providerID int64) (float64, error) {
	return m.totalBudget, nil
}

func (m *mockStatsRequestRepo) Totals(ctx context.Context) (*models.RequestTotals, error) {
	m.totalsCalls++
	totals := m.totals
	return &totals, nil
}

type mockStatsUserRepo struct {
	users        map[int64]*models.User
	counts       map[models.UserRole]int
	topProviders []models.User
	lastLimit    int
}

func (m *mockStatsUserRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockStatsUserRepo) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	return m.counts[role], nil
}

func (m *mockStatsUserRepo) TopProviders(ctx context.Context, limit int) ([]models.User, error) {
	m.lastLimit = limit
	if limit < len(m.topProviders) {
		return m.topProviders[:limit], nil
	}
	return m.topProviders, nil
}

type mockStatsCache struct {
	entries map[string][]byte
}

func newMockStatsCache() *mockStatsCache {
	return &mockStatsCache{entries: make(map[string][]byte)}
}

func (m *mockStatsCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockStatsCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func newStatsService(requests *mockStatsRequestRepo, users *mockStatsUserRepo, cache StatsCache) *StatsService {
	return NewStatsService(requests, users, cache, zap.NewNop(), StatsConfig{TopProvidersLimit: 3, OverviewCacheTTL: time.Minute})
}

func statsUsers(users ...*models.User) *mockStatsUserRepo {
	m := &mockStatsUserRepo{users: make(map[int64]*models.User), counts: make(map[models.UserRole]int)}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func TestStatsServiceZeroOnEmpty(t *testing.T) {
	requests := &mockStatsRequestRepo{}
	users := statsUsers(testProvider)
	svc := newStatsService(requests, users, nil)
	ctx := context.Background()

	count, err := svc.CompletedCount(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, count)

	avg, err := svc.AverageRating(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, avg)

	total, err := svc.TotalBudget(ctx, 2)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestStatsServiceProviderStats(t *testing.T) {
	requests := &mockStatsRequestRepo{completedCount: 4, avgRating: 4.5, totalBudget: 900}
	users := statsUsers(testProvider)
	svc := newStatsService(requests, users, nil)

	stats, err := svc.ProviderStats(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.ProviderID)
	assert.Equal(t, 4, stats.CompletedCount)
	assert.Equal(t, 4.5, stats.AverageRating)
	assert.Equal(t, 900.0, stats.TotalBudget)
}

func TestStatsServiceRejectsNonProvider(t *testing.T) {
	requests := &mockStatsRequestRepo{}
	users := statsUsers(testRequester)
	svc := newStatsService(requests, users, nil)

	_, err := svc.CompletedCount(context.Background(), 1)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrRoleMismatch.Code, appErr.Code)
	assert.Equal(t, 400, appErr.Status)
}

func TestStatsServiceUnknownProvider(t *testing.T) {
	requests := &mockStatsRequestRepo{}
	users := statsUsers()
	svc := newStatsService(requests, users, nil)

	_, err := svc.AverageRating(context.Background(), 42)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStatsServiceTopProvidersCapped(t *testing.T) {
	requests := &mockStatsRequestRepo{}
	users := statsUsers()
	users.topProviders = []models.User{
		{ID: 2, Role: models.RoleProvider},
		{ID: 3, Role: models.RoleProvider},
		{ID: 4, Role: models.RoleProvider},
		{ID: 5, Role: models.RoleProvider},
	}
	svc := newStatsService(requests, users, nil)

	providers, err := svc.TopProviders(context.Background())
	require.NoError(t, err)
	assert.Len(t, providers, 3)
	assert.Equal(t, 3, users.lastLimit)
}

func TestStatsServiceOverviewCached(t *testing.T) {
	requests := &mockStatsRequestRepo{totals: models.RequestTotals{TotalPending: 2, TotalCompleted: 5, TotalRejected: 1}}
	users := statsUsers()
	users.counts[models.RoleRequester] = 10
	users.counts[models.RoleProvider] = 4
	cache := newMockStatsCache()
	svc := newStatsService(requests, users, cache)
	ctx := context.Background()

	first, err := svc.GetOverview(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, first.Requests.TotalCompleted)
	assert.Equal(t, 10, first.TotalRequesters)
	assert.Equal(t, 4, first.TotalProviders)

	// Second read is served from cache without touching the store.
	second, err := svc.GetOverview(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, requests.totalsCalls)
}

func TestStatsServiceRequestReportCSV(t *testing.T) {
	budget := 120.0
	rating := 5
	providerID := int64(2)
	requests := &mockStatsRequestRepo{listResult: []models.Request{{
		ID:          1,
		Category:    models.CategoryPlumbing,
		Urgency:     "high",
		Budget:      &budget,
		Status:      models.StatusCompleted,
		Rating:      &rating,
		RequesterID: 1,
		ProviderID:  &providerID,
		CreatedAt:   time.Now(),
	}}}
	svc := newStatsService(requests, statsUsers(), nil)

	payload, contentType, err := svc.RequestReport(context.Background(), models.StatusCompleted, "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	body := string(payload)
	assert.True(t, strings.Contains(body, "PLUMBING"))
	assert.True(t, strings.Contains(body, "120.00"))
}

func TestStatsServiceRequestReportInvalidStatus(t *testing.T) {
	svc := newStatsService(&mockStatsRequestRepo{}, statsUsers(), nil)

	_, _, err := svc.RequestReport(context.Background(), "BOGUS", "csv")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStatsServiceRequestReportUnsupportedFormat(t *testing.T) {
	svc := newStatsService(&mockStatsRequestRepo{}, statsUsers(), nil)

	_, _, err := svc.RequestReport(context.Background(), models.StatusCompleted, "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
