package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fixitnow/fixitnow-api/internal/authz"
	"github.com/fixitnow/fixitnow-api/internal/models"
	appErrors "github.com/fixitnow/fixitnow-api/pkg/errors"
)

type requestRepository interface {
	Create(ctx context.Context, req *models.Request) error
	FindByID(ctx context.Context, id int64) (*models.Request, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.Request, error)
	Accept(ctx context.Context, id, providerID int64) (bool, error)
	UpdateStatus(ctx context.Context, id int64, status models.RequestStatus, completionDate *time.Time) error
	UpdateFields(ctx context.Context, id int64, patch models.RequestPatch) error
	UpdateReview(ctx context.Context, id int64, rating int, review string) error
	Delete(ctx context.Context, id int64) error
	AverageRating(ctx context.Context, providerID int64) (float64, error)
}

type requestUserRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
	UpdateProviderRating(ctx context.Context, id int64, rating float64) error
}

// CreateRequestInput is the payload for creating a request.
type CreateRequestInput struct {
	Category      models.ServiceCategory `json:"category" validate:"required"`
	Description   string                 `json:"description" validate:"required"`
	Urgency       string                 `json:"urgency" validate:"required"`
	Budget        *float64               `json:"budget" validate:"omitempty,gte=0"`
	ScheduledDate *time.Time             `json:"scheduled_date"`
	ListingID     *int64                 `json:"listing_id"`
}

// ReviewInput is the payload for reviewing a completed request.
type ReviewInput struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Review string `json:"review" validate:"required"`
}

// RequestService owns the request lifecycle: it is the only component that
// mutates a request's status, provider assignment or review fields. Every
// mutation is authorized through the authz decision point before it reaches
// the store.
type RequestService struct {
	requests  requestRepository
	users     requestUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRequestService constructs a RequestService.
func NewRequestService(requests requestRepository, users requestUserRepository, validate *validator.Validate, logger *zap.Logger) *RequestService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RequestService{requests: requests, users: users, validator: validate, logger: logger}
}

// Create opens a new request on behalf of the actor. The requester relation
// is always forced to the caller, never taken from the payload.
func (s *RequestService) Create(ctx context.Context, actor authz.Actor, input CreateRequestInput) (*models.Request, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request payload")
	}
	if !models.ValidCategory(input.Category) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid service category")
	}

	requester, err := s.users.FindByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "requester not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load requester")
	}
	if requester.Role != models.RoleRequester {
		return nil, appErrors.Clone(appErrors.ErrRoleMismatch, "only requesters can create requests")
	}
	if err := authz.Decide(actor, authz.OpCreate, nil); err != nil {
		return nil, err
	}

	request := &models.Request{
		Category:      input.Category,
		Description:   input.Description,
		Urgency:       input.Urgency,
		Budget:        input.Budget,
		Status:        models.StatusPending,
		ScheduledDate: input.ScheduledDate,
		RequesterID:   actor.ID,
		ListingID:     input.ListingID,
	}

	if err := s.requests.Create(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create request")
	}

	s.logger.Info("request created", zap.Int64("request_id", request.ID), zap.Int64("requester_id", actor.ID))
	return request, nil
}

// Accept assigns the provider and moves the request to IN_PROGRESS. The
// provider assignment and status change are one atomic store update; under
// racing accepts exactly one caller wins and the rest receive a conflict.
func (s *RequestService) Accept(ctx context.Context, requestID, providerID int64) (*models.Request, error) {
	request, err := s.findRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	provider, err := s.users.FindByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "provider not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load provider")
	}
	if provider.Role != models.RoleProvider {
		return nil, appErrors.Clone(appErrors.ErrRoleMismatch, "user is not a provider")
	}

	actor := authz.Actor{ID: providerID, Role: provider.Role}
	if err := authz.Decide(actor, authz.OpAccept, snapshot(request)); err != nil {
		return nil, err
	}

	won, err := s.requests.Accept(ctx, requestID, providerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to accept request")
	}
	if !won {
		// Lost the race: another provider took it between the read and the
		// conditional update.
		return nil, appErrors.Clone(appErrors.ErrConflict, "request is not in pending status")
	}

	s.logger.Info("request accepted", zap.Int64("request_id", requestID), zap.Int64("provider_id", providerID))
	return s.findRequest(ctx, requestID)
}

// TransitionStatus applies a status change. Entering COMPLETED stamps the
// completion date; leaving it clears the stamp. No transition table is
// enforced beyond authorization: an admin may move a request to any state.
func (s *RequestService) TransitionStatus(ctx context.Context, requestID int64, newStatus models.RequestStatus, actor authz.Actor) (*models.Request, error) {
	if !models.ValidStatus(newStatus) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid request status")
	}

	request, err := s.findRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := authz.Decide(actor, authz.OpTransition, snapshot(request)); err != nil {
		return nil, err
	}

	var completionDate *time.Time
	if newStatus == models.StatusCompleted {
		now := time.Now().UTC()
		completionDate = &now
	}

	if err := s.requests.UpdateStatus(ctx, requestID, newStatus, completionDate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request status")
	}

	s.logger.Info("request status updated",
		zap.Int64("request_id", requestID),
		zap.String("status", string(newStatus)),
		zap.Int64("actor_id", actor.ID))
	return s.findRequest(ctx, requestID)
}

// UpdateFields applies a partial update of the request's detail fields.
// Status and provider assignment are never mutated through this path.
func (s *RequestService) UpdateFields(ctx context.Context, requestID int64, patch models.RequestPatch, actor authz.Actor) (*models.Request, error) {
	if patch.Category != nil && !models.ValidCategory(*patch.Category) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid service category")
	}
	if patch.Budget != nil && *patch.Budget < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "budget must not be negative")
	}

	request, err := s.findRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := authz.Decide(actor, authz.OpUpdateFields, snapshot(request)); err != nil {
		return nil, err
	}

	if patch.Empty() {
		return request, nil
	}

	if err := s.requests.UpdateFields(ctx, requestID, patch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update request")
	}

	return s.findRequest(ctx, requestID)
}

// Remove hard-deletes the request.
func (s *RequestService) Remove(ctx context.Context, requestID int64, actor authz.Actor) error {
	request, err := s.findRequest(ctx, requestID)
	if err != nil {
		return err
	}

	if err := authz.Decide(actor, authz.OpDelete, snapshot(request)); err != nil {
		return err
	}

	if err := s.requests.Delete(ctx, requestID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete request")
	}

	s.logger.Info("request deleted", zap.Int64("request_id", requestID), zap.Int64("actor_id", actor.ID))
	return nil
}

// AddReview records the requester's rating and review for a COMPLETED
// request, then refreshes the provider's stored aggregate rating. A repeated
// review overwrites the previous one.
func (s *RequestService) AddReview(ctx context.Context, requestID int64, input ReviewInput, actor authz.Actor) (*models.Request, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	request, err := s.findRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if err := authz.Decide(actor, authz.OpReview, snapshot(request)); err != nil {
		return nil, err
	}

	if err := s.requests.UpdateReview(ctx, requestID, input.Rating, input.Review); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store review")
	}

	if request.ProviderID != nil {
		if avg, err := s.requests.AverageRating(ctx, *request.ProviderID); err != nil {
			s.logger.Warn("failed to recompute provider rating", zap.Error(err))
		} else if err := s.users.UpdateProviderRating(ctx, *request.ProviderID, avg); err != nil {
			s.logger.Warn("failed to store provider rating", zap.Error(err))
		}
	}

	return s.findRequest(ctx, requestID)
}

// FindOne returns a single request after a view-authorization check.
func (s *RequestService) FindOne(ctx context.Context, requestID int64, actor authz.Actor) (*models.Request, error) {
	request, err := s.findRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := authz.Decide(actor, authz.OpView, snapshot(request)); err != nil {
		return nil, err
	}
	return request, nil
}

// ListAll returns every request; admin only.
func (s *RequestService) ListAll(ctx context.Context, actor authz.Actor) ([]models.Request, error) {
	if actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can list all requests")
	}
	return s.list(ctx, models.RequestFilter{OrderBy: "created_at", OrderDesc: true})
}

// ListByRequester returns the requester's own requests.
func (s *RequestService) ListByRequester(ctx context.Context, requesterID int64) ([]models.Request, error) {
	if err := s.ensureRole(ctx, requesterID, models.RoleRequester, "user is not a requester"); err != nil {
		return nil, err
	}
	return s.list(ctx, models.RequestFilter{RequesterID: &requesterID, OrderBy: "created_at", OrderDesc: true})
}

// ListByProvider returns every request assigned to the provider.
func (s *RequestService) ListByProvider(ctx context.Context, providerID int64) ([]models.Request, error) {
	if err := s.ensureRole(ctx, providerID, models.RoleProvider, "user is not a provider"); err != nil {
		return nil, err
	}
	return s.list(ctx, models.RequestFilter{ProviderID: &providerID, OrderBy: "created_at", OrderDesc: true})
}

// ProviderAccepted returns the provider's IN_PROGRESS requests.
func (s *RequestService) ProviderAccepted(ctx context.Context, providerID int64) ([]models.Request, error) {
	if err := s.ensureRole(ctx, providerID, models.RoleProvider, "user is not a provider"); err != nil {
		return nil, err
	}
	status := models.StatusInProgress
	return s.list(ctx, models.RequestFilter{ProviderID: &providerID, Status: &status, OrderBy: "created_at", OrderDesc: true})
}

// ProviderCompleted returns the provider's COMPLETED requests, most recently
// completed first.
func (s *RequestService) ProviderCompleted(ctx context.Context, providerID int64) ([]models.Request, error) {
	if err := s.ensureRole(ctx, providerID, models.RoleProvider, "user is not a provider"); err != nil {
		return nil, err
	}
	status := models.StatusCompleted
	return s.list(ctx, models.RequestFilter{ProviderID: &providerID, Status: &status, OrderBy: "completion_date", OrderDesc: true})
}

// Unassigned returns the open queue: PENDING requests with no provider,
// newest first. Any provider may browse it.
func (s *RequestService) Unassigned(ctx context.Context) ([]models.Request, error) {
	status := models.StatusPending
	return s.list(ctx, models.RequestFilter{Status: &status, Unassigned: true, OrderBy: "created_at", OrderDesc: true})
}

// ListByStatus returns all requests in the given status, newest first.
func (s *RequestService) ListByStatus(ctx context.Context, status models.RequestStatus) ([]models.Request, error) {
	if !models.ValidStatus(status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid request status")
	}
	return s.list(ctx, models.RequestFilter{Status: &status, OrderBy: "created_at", OrderDesc: true})
}

func (s *RequestService) list(ctx context.Context, filter models.RequestFilter) ([]models.Request, error) {
	requests, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	return requests, nil
}

func (s *RequestService) findRequest(ctx context.Context, id int64) (*models.Request, error) {
	request, err := s.requests.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return request, nil
}

func (s *RequestService) ensureRole(ctx context.Context, userID int64, role models.UserRole, mismatchMsg string) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.Role != role {
		return appErrors.Clone(appErrors.ErrRoleMismatch, mismatchMsg)
	}
	return nil
}

func snapshot(req *models.Request) *authz.RequestSnapshot {
	return &authz.RequestSnapshot{
		RequesterID: req.RequesterID,
		ProviderID:  req.ProviderID,
		Status:      req.Status,
	}
}
