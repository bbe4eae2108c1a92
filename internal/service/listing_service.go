package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fixitnow/fixitnow-api/internal/models"
	appErrors "github.com/fixitnow/fixitnow-api/pkg/errors"
)

type listingRepository interface {
	Create(ctx context.Context, listing *models.Listing) error
	FindByID(ctx context.Context, id int64) (*models.Listing, error)
	List(ctx context.Context) ([]models.Listing, error)
	ListByProvider(ctx context.Context, providerID int64) ([]models.Listing, error)
	UpdateRating(ctx context.Context, id int64, rating float64) error
	Delete(ctx context.Context, id int64) error
}

type listingUserRepository interface {
	FindByID(ctx context.Context, id int64) (*models.User, error)
}

// CreateListingInput is the payload for publishing a service listing.
type CreateListingInput struct {
	Category models.ServiceCategory `json:"category" validate:"required"`
	Images   []string               `json:"images"`
}

// ListingService manages provider service listings.
type ListingService struct {
	listings  listingRepository
	users     listingUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewListingService constructs a ListingService.
func NewListingService(listings listingRepository, users listingUserRepository, validate *validator.Validate, logger *zap.Logger) *ListingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingService{listings: listings, users: users, validator: validate, logger: logger}
}

// Create publishes a listing owned by the calling provider.
func (s *ListingService) Create(ctx context.Context, providerID int64, input CreateListingInput) (*models.Listing, error) {
	if err := s.validator.Struct(input); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid listing payload")
	}
	if !models.ValidCategory(input.Category) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid service category")
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

	images := "[]"
	if len(input.Images) > 0 {
		raw, err := json.Marshal(input.Images)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid image list")
		}
		images = string(raw)
	}

	listing := &models.Listing{
		Category:   input.Category,
		Rating:     0,
		Images:     images,
		ProviderID: providerID,
	}

	if err := s.listings.Create(ctx, listing); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create listing")
	}

	s.logger.Info("listing created", zap.Int64("listing_id", listing.ID), zap.Int64("provider_id", providerID))
	return listing, nil
}

// Get returns a listing by identifier.
func (s *ListingService) Get(ctx context.Context, id int64) (*models.Listing, error) {
	listing, err := s.listings.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "listing not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load listing")
	}
	return listing, nil
}

// List returns all listings.
func (s *ListingService) List(ctx context.Context) ([]models.Listing, error) {
	listings, err := s.listings.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list listings")
	}
	return listings, nil
}

// ListByProvider returns the provider's listings.
func (s *ListingService) ListByProvider(ctx context.Context, providerID int64) ([]models.Listing, error) {
	listings, err := s.listings.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list listings")
	}
	return listings, nil
}

// UpdateRating stores a listing's rating; admin only.
func (s *ListingService) UpdateRating(ctx context.Context, id int64, rating float64, actorRole models.UserRole) (*models.Listing, error) {
	if actorRole != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can update listing ratings")
	}
	if rating < 0 || rating > 5 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "rating must be between 0 and 5")
	}

	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	if err := s.listings.UpdateRating(ctx, id, rating); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update listing rating")
	}
	return s.Get(ctx, id)
}

// Remove deletes a listing; allowed for admins and the owning provider.
func (s *ListingService) Remove(ctx context.Context, id int64, actorID int64, actorRole models.UserRole) error {
	listing, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if actorRole != models.RoleAdmin && listing.ProviderID != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "not authorized to delete this listing")
	}

	if err := s.listings.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete listing")
	}
	return nil
}
