package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fixitnow/fixitnow-api/internal/models"
	"github.com/fixitnow/fixitnow-api/internal/service"
	appErrors "github.com/fixitnow/fixitnow-api/pkg/errors"
	"github.com/fixitnow/fixitnow-api/pkg/response"
)

// UserHandler wires HTTP endpoints to the user service.
type UserHandler struct {
	service *service.UserService
}

// NewUserHandler creates a new handler.
func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{service: svc}
}

// Get godoc
// @Summary Get user
// @Description Fetch a user profile by identifier
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid user id"))
		return
	}

	user, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}

// ListProviders godoc
// @Summary List providers
// @Description List provider accounts, optionally filtered by a search term
// @Tags Users
// @Produce json
// @Param search query string false "Name or email search"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /users/providers [get]
func (h *UserHandler) ListProviders(c *gin.Context) {
	users, err := h.service.ListByRole(c.Request.Context(), models.RoleProvider, c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, users, nil)
}

// ListRequesters godoc
// @Summary List requesters
// @Description List requester accounts, optionally filtered by a search term; admin only
// @Tags Users
// @Produce json
// @Param search query string false "Name or email search"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /users/requesters [get]
func (h *UserHandler) ListRequesters(c *gin.Context) {
	users, err := h.service.ListByRole(c.Request.Context(), models.RoleRequester, c.Query("search"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, users, nil)
}

// Delete godoc
// @Summary Delete user
// @Description Remove a user account; admin only
// @Tags Users
// @Produce json
// @Param id path int true "User ID"
// @Success 204 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid user id"))
		return
	}

	if err := h.service.Remove(c.Request.Context(), id, actor.Role); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}
