package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tripdesk/backend/internal/service"
)

// @Summary Submit a trip request from the website
// @Description Public intake. Creates or reuses the visitor's account, a lead and its manual itinerary in one transaction.
// @Tags manual-itineraries
// @Accept json
// @Produce json
// @Param body body service.WebsiteSubmission true "Trip request"
// @Success 201 {object} service.IntakeResult
// @Failure 400 {object} middleware.ErrorBody
// @Failure 429 {object} middleware.ErrorBody
// @Router /api/manual-itineraries/website [post]
func (h *Handler) SubmitWebsiteItinerary(c *gin.Context) {
	var in service.WebsiteSubmission
	if err := h.bind(c, &in); err != nil {
		_ = c.Error(err)
		return
	}
	res, err := h.Intake.Submit(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// @Summary Create manual itinerary for a lead
// @Tags manual-itineraries
// @Accept json
// @Produce json
// @Param leadId path string true "Lead ID"
// @Param body body service.ItineraryInput true "Days"
// @Success 201 {object} models.ManualItinerary
// @Failure 400 {object} middleware.ErrorBody
// @Failure 404 {object} middleware.ErrorBody
// @Security BearerAuth
// @Router /api/manual-itineraries/lead/{leadId} [post]
func (h *Handler) CreateLeadItinerary(c *gin.Context) {
	var in service.ItineraryInput
	if err := h.bind(c, &in); err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()
	actor := actorFrom(c)
	if _, err := h.Leads.Get(ctx, c.Param("leadId"), actor); err != nil {
		_ = c.Error(err)
		return
	}
	it, err := h.Itineraries.CreateForLead(ctx, c.Param("leadId"), in, actor.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, it)
}

// @Summary Replace manual itinerary days
// @Tags manual-itineraries
// @Accept json
// @Produce json
// @Param leadId path string true "Lead ID"
// @Param body body service.ItineraryInput true "Days"
// @Success 200 {object} models.ManualItinerary
// @Security BearerAuth
// @Router /api/manual-itineraries/lead/{leadId} [put]
func (h *Handler) ReplaceLeadItinerary(c *gin.Context) {
	var in service.ItineraryInput
	if err := h.bind(c, &in); err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()
	actor := actorFrom(c)
	if _, err := h.Leads.Get(ctx, c.Param("leadId"), actor); err != nil {
		_ = c.Error(err)
		return
	}
	it, err := h.Itineraries.ReplaceForLead(ctx, c.Param("leadId"), in, actor.ID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, it)
}

// @Summary Manual itinerary of a lead
// @Tags manual-itineraries
// @Produce json
// @Param leadId path string true "Lead ID"
// @Success 200 {object} models.ManualItinerary
// @Failure 404 {object} middleware.ErrorBody
// @Security BearerAuth
// @Router /api/manual-itineraries/lead/{leadId} [get]
func (h *Handler) GetLeadItinerary(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := h.Leads.Get(ctx, c.Param("leadId"), actorFrom(c)); err != nil {
		_ = c.Error(err)
		return
	}
	it, err := h.Itineraries.GetByLead(ctx, c.Param("leadId"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, it)
}

// @Summary Delete manual itinerary
// @Tags manual-itineraries
// @Produce json
// @Param id path string true "Itinerary ID"
// @Success 200 {object} map[string]any
// @Failure 403 {object} middleware.ErrorBody
// @Security BearerAuth
// @Router /api/manual-itineraries/{id} [delete]
func (h *Handler) DeleteItinerary(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	it, err := h.Itineraries.Get(ctx, id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if _, err := h.Leads.Get(ctx, it.LeadID, actorFrom(c)); err != nil {
		_ = c.Error(err)
		return
	}
	if err := h.Itineraries.Delete(ctx, id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
}
