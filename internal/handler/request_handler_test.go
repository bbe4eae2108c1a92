package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fixitnow/fixitnow-api/internal/middleware"
	"github.com/fixitnow/fixitnow-api/internal/models"
	"github.com/fixitnow/fixitnow-api/internal/service"
)

type fakeRequestRepo struct {
	byID      map[int64]*models.Request
	nextID    int64
	acceptWon bool
}

func newFakeRequestRepo() *fakeRequestRepo {
	return &fakeRequestRepo{byID: make(map[int64]*models.Request), nextID: 1, acceptWon: true}
}

func (f *fakeRequestRepo) Create(ctx context.Context, req *models.Request) error {
	req.ID = f.nextID
	f.nextID++
	copied := *req
	f.byID[req.ID] = &copied
	return nil
}

func (f *fakeRequestRepo) FindByID(ctx context.Context, id int64) (*models.Request, error) {
	req, ok := f.byID[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *req
	return &copied, nil
}

func (f *fakeRequestRepo) List(ctx context.Context, filter models.RequestFilter) ([]models.Request, error) {
	var out []models.Request
	for _, req := range f.byID {
		out = append(out, *req)
	}
	return out, nil
}

func (f *fakeRequestRepo) Accept(ctx context.Context, id, providerID int64) (bool, error) {
	req, ok := f.byID[id]
	if !ok || !f.acceptWon || req.Status != models.StatusPending || req.ProviderID != nil {
		return false, nil
	}
	req.Status = models.StatusInProgress
	req.ProviderID = &providerID
	return true, nil
}

func (f *fakeRequestRepo) UpdateStatus(ctx context.Context, id int64, status models.RequestStatus, completionDate *time.Time) error {
	req := f.byID[id]
	req.Status = status
	req.CompletionDate = completionDate
	return nil
}

func (f *fakeRequestRepo) UpdateFields(ctx context.Context, id int64, patch models.RequestPatch) error {
	req := f.byID[id]
	if patch.Description != nil {
		req.Description = *patch.Description
	}
	return nil
}

func (f *fakeRequestRepo) UpdateReview(ctx context.Context, id int64, rating int, review string) error {
	req := f.byID[id]
	req.Rating = &rating
	req.Review = &review
	return nil
}

func (f *fakeRequestRepo) Delete(ctx context.Context, id int64) error {
	delete(f.byID, id)
	return nil
}

func (f *fakeRequestRepo) AverageRating(ctx context.Context, providerID int64) (float64, error) {
	return 0, nil
}

type fakeUserRepo struct {
	users map[int64]*models.User
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id int64) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeUserRepo) UpdateProviderRating(ctx context.Context, id int64, rating float64) error {
	return nil
}

func newRequestHandler(repo *fakeRequestRepo) *RequestHandler {
	users := &fakeUserRepo{users: map[int64]*models.User{
		1: {ID: 1, Role: models.RoleRequester},
		2: {ID: 2, Role: models.RoleProvider},
	}}
	return NewRequestHandler(service.NewRequestService(repo, users, nil, nil))
}

func testContext(t *testing.T, method, target, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

func TestRequestHandlerCreate(t *testing.T) {
	repo := newFakeRequestRepo()
	handler := newRequestHandler(repo)

	c, rec := testContext(t, http.MethodPost, "/requests",
		`{"category":"PLUMBING","description":"Leaking sink","urgency":"high"}`,
		&models.JWTClaims{UserID: 1, Role: models.RoleRequester})

	handler.Create(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	var envelope struct {
		Data models.Request `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, models.StatusPending, envelope.Data.Status)
	assert.Equal(t, int64(1), envelope.Data.RequesterID)
}

func TestRequestHandlerCreateInvalidPayload(t *testing.T) {
	handler := newRequestHandler(newFakeRequestRepo())

	c, rec := testContext(t, http.MethodPost, "/requests", `{not json`,
		&models.JWTClaims{UserID: 1, Role: models.RoleRequester})

	handler.Create(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestHandlerAccept(t *testing.T) {
	repo := newFakeRequestRepo()
	handler := newRequestHandler(repo)
	_ = repo.Create(context.Background(), &models.Request{
		Category: models.CategoryPlumbing, Description: "Leaking sink", Urgency: "high",
		Status: models.StatusPending, RequesterID: 1,
	})

	c, rec := testContext(t, http.MethodPost, "/requests/1/accept", "",
		&models.JWTClaims{UserID: 2, Role: models.RoleProvider})
	c.Params = gin.Params{{Key: "id", Value: "1"}}

	handler.Accept(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data models.Request `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, models.StatusInProgress, envelope.Data.Status)
}

func TestRequestHandlerAcceptConflict(t *testing.T) {
	repo := newFakeRequestRepo()
	handler := newRequestHandler(repo)
	providerID := int64(3)
	_ = repo.Create(context.Background(), &models.Request{
		Category: models.CategoryPlumbing, Description: "Taken", Urgency: "high",
		Status: models.StatusInProgress, RequesterID: 1, ProviderID: &providerID,
	})

	c, rec := testContext(t, http.MethodPost, "/requests/1/accept", "",
		&models.JWTClaims{UserID: 2, Role: models.RoleProvider})
	c.Params = gin.Params{{Key: "id", Value: "1"}}

	handler.Accept(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRequestHandlerGetForbiddenForStranger(t *testing.T) {
	repo := newFakeRequestRepo()
	handler := newRequestHandler(repo)
	_ = repo.Create(context.Background(), &models.Request{
		Category: models.CategoryPlumbing, Description: "Private", Urgency: "low",
		Status: models.StatusPending, RequesterID: 1,
	})

	c, rec := testContext(t, http.MethodGet, "/requests/1", "",
		&models.JWTClaims{UserID: 5, Role: models.RoleRequester})
	c.Params = gin.Params{{Key: "id", Value: "1"}}

	handler.Get(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequestHandlerGetInvalidID(t *testing.T) {
	handler := newRequestHandler(newFakeRequestRepo())

	c, rec := testContext(t, http.MethodGet, "/requests/abc", "",
		&models.JWTClaims{UserID: 1, Role: models.RoleRequester})
	c.Params = gin.Params{{Key: "id", Value: "abc"}}

	handler.Get(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestHandlerUpdateStatusMissingBody(t *testing.T) {
	repo := newFakeRequestRepo()
	handler := newRequestHandler(repo)
	_ = repo.Create(context.Background(), &models.Request{
		Category: models.CategoryPlumbing, Description: "Leaking sink", Urgency: "high",
		Status: models.StatusPending, RequesterID: 1,
	})

	c, rec := testContext(t, http.MethodPatch, "/requests/1/status", `{}`,
		&models.JWTClaims{UserID: 1, Role: models.RoleRequester})
	c.Params = gin.Params{{Key: "id", Value: "1"}}

	handler.UpdateStatus(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestHandlerReview(t *testing.T) {
	repo := newFakeRequestRepo()
	handler := newRequestHandler(repo)
	providerID := int64(2)
	_ = repo.Create(context.Background(), &models.Request{
		Category: models.CategoryPlumbing, Description: "Done", Urgency: "high",
		Status: models.StatusCompleted, RequesterID: 1, ProviderID: &providerID,
	})

	c, rec := testContext(t, http.MethodPost, "/requests/1/review",
		`{"rating":5,"review":"Great work"}`,
		&models.JWTClaims{UserID: 1, Role: models.RoleRequester})
	c.Params = gin.Params{{Key: "id", Value: "1"}}

	handler.Review(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data models.Request `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Data.Rating)
	assert.Equal(t, 5, *envelope.Data.Rating)
}

func TestRequestHandlerUnauthenticated(t *testing.T) {
	handler := newRequestHandler(newFakeRequestRepo())

	c, rec := testContext(t, http.MethodPost, "/requests", `{}`, nil)

	handler.Create(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
