package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fixitnow/fixitnow-api/internal/service"
	appErrors "github.com/fixitnow/fixitnow-api/pkg/errors"
	"github.com/fixitnow/fixitnow-api/pkg/response"
)

// ListingHandler wires HTTP endpoints to the listing service.
type ListingHandler struct {
	service *service.ListingService
}

// NewListingHandler creates a new handler.
func NewListingHandler(svc *service.ListingService) *ListingHandler {
	return &ListingHandler{service: svc}
}

// Create godoc
// @Summary Publish listing
// @Description Publish a service listing owned by the calling provider
// @Tags Listings
// @Accept json
// @Produce json
// @Param payload body service.CreateListingInput true "Listing payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /listings [post]
func (h *ListingHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var input service.CreateListingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid listing payload"))
		return
	}

	listing, err := h.service.Create(c.Request.Context(), claims.UserID, input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, listing)
}

// List godoc
// @Summary List listings
// @Description List all published service listings
// @Tags Listings
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /listings [get]
func (h *ListingHandler) List(c *gin.Context) {
	listings, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, listings, nil)
}

// Get godoc
// @Summary Get listing
// @Description Fetch a listing by identifier
// @Tags Listings
// @Produce json
// @Param id path int true "Listing ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /listings/{id} [get]
func (h *ListingHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid listing id"))
		return
	}

	listing, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, listing, nil)
}

// Mine godoc
// @Summary List own listings
// @Description List the calling provider's listings
// @Tags Listings
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /listings/mine [get]
func (h *ListingHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	listings, err := h.service.ListByProvider(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, listings, nil)
}

// UpdateRating godoc
// @Summary Update listing rating
// @Description Store a listing's rating; admin only
// @Tags Listings
// @Accept json
// @Produce json
// @Param id path int true "Listing ID"
// @Param payload body object true "New rating"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /listings/{id}/rating [patch]
func (h *ListingHandler) UpdateRating(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid listing id"))
		return
	}

	var payload struct {
		Rating float64 `json:"rating"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "rating is required"))
		return
	}

	listing, err := h.service.UpdateRating(c.Request.Context(), id, payload.Rating, actor.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, listing, nil)
}

// Delete godoc
// @Summary Delete listing
// @Description Remove a listing; allowed for admins and the owning provider
// @Tags Listings
// @Produce json
// @Param id path int true "Listing ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /listings/{id} [delete]
func (h *ListingHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid listing id"))
		return
	}

	if err := h.service.Remove(c.Request.Context(), id, actor.ID, actor.Role); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
