package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fixitnow/fixitnow-api/internal/models"
	"github.com/fixitnow/fixitnow-api/internal/service"
	appErrors "github.com/fixitnow/fixitnow-api/pkg/errors"
	"github.com/fixitnow/fixitnow-api/pkg/response"
)

// StatsHandler wires HTTP endpoints to the statistics service.
type StatsHandler struct {
	service *service.StatsService
}

// NewStatsHandler creates a new handler.
func NewStatsHandler(svc *service.StatsService) *StatsHandler {
	return &StatsHandler{service: svc}
}

// CompletedCount godoc
// @Summary Count completed requests
// @Description Number of COMPLETED requests for a provider
// @Tags Statistics
// @Produce json
// @Param id path int true "Provider ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /stats/providers/{id}/completed-count [get]
func (h *StatsHandler) CompletedCount(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid provider id"))
		return
	}

	count, err := h.service.CompletedCount(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"completed_count": count}, nil)
}

// AverageRating godoc
// @Summary Average provider rating
// @Description Mean rating over a provider's COMPLETED requests; 0 when none
// @Tags Statistics
// @Produce json
// @Param id path int true "Provider ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /stats/providers/{id}/average-rating [get]
func (h *StatsHandler) AverageRating(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid provider id"))
		return
	}

	avg, err := h.service.AverageRating(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"average_rating": avg}, nil)
}

// TotalBudget godoc
// @Summary Total provider income
// @Description Summed budget over a provider's COMPLETED requests; 0 when none
// @Tags Statistics
// @Produce json
// @Param id path int true "Provider ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /stats/providers/{id}/total-budget [get]
func (h *StatsHandler) TotalBudget(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid provider id"))
		return
	}

	total, err := h.service.TotalBudget(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"total_budget": total}, nil)
}

// ProviderStats godoc
// @Summary Provider statistics
// @Description Full aggregate view for one provider
// @Tags Statistics
// @Produce json
// @Param id path int true "Provider ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /stats/providers/{id} [get]
func (h *StatsHandler) ProviderStats(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid provider id"))
		return
	}

	stats, err := h.service.ProviderStats(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, stats, nil)
}

// TopProviders godoc
// @Summary Top providers
// @Description Highest-rated providers, capped to the configured limit
// @Tags Statistics
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /stats/top-providers [get]
func (h *StatsHandler) TopProviders(c *gin.Context) {
	providers, err := h.service.TopProviders(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, providers, nil)
}

// Overview godoc
// @Summary Platform overview
// @Description Request totals and user counts for the admin dashboard
// @Tags Statistics
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /stats/overview [get]
func (h *StatsHandler) Overview(c *gin.Context) {
	overview, err := h.service.GetOverview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, overview, nil)
}

// Report godoc
// @Summary Export request report
// @Description Render all requests in a status as CSV or PDF
// @Tags Statistics
// @Produce text/csv
// @Produce application/pdf
// @Param status query string true "Lifecycle status"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /stats/reports/requests [get]
func (h *StatsHandler) Report(c *gin.Context) {
	status := models.RequestStatus(c.Query("status"))
	format := c.DefaultQuery("format", "csv")

	payload, contentType, err := h.service.RequestReport(c.Request.Context(), status, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("requests-%s.%s", status, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
