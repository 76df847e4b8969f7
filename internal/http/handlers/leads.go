package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tripdesk/backend/internal/models"
	"github.com/tripdesk/backend/internal/service"
)

type LeadList struct {
	Items []models.Lead `json:"items"`
	Total int           `json:"total"`
}

type assignRequest struct {
	SalesRepID string `json:"salesRepId" validate:"required"`
}

type remarkRequest struct {
	Text string `json:"text" validate:"required"`
}

// @Summary Create lead
// @Tags leads
// @Accept json
// @Produce json
// @Param body body service.LeadInput true "Lead"
// @Success 201 {object} models.Lead
// @Failure 400 {object} middleware.ErrorBody
// @Security BearerAuth
// @Router /api/leads [post]
func (h *Handler) CreateLead(c *gin.Context) {
	var in service.LeadInput
	if err := h.bind(c, &in); err != nil {
		_ = c.Error(err)
		return
	}
	lead, err := h.Leads.Create(c.Request.Context(), in, actorFrom(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, lead)
}

// @Summary List leads
// @Tags leads
// @Produce json
// @Param status query string false "Status"
// @Param assignedTo query string false "Sales rep id"
// @Param q query string false "Search name, email or destination"
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {object} LeadList
// @Security BearerAuth
// @Router /api/leads [get]
func (h *Handler) ListLeads(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		_ = c.Error(err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		_ = c.Error(err)
		return
	}
	f := models.LeadFilter{
		Status:     c.Query("status"),
		AssignedTo: c.Query("assignedTo"),
		Q:          c.Query("q"),
		Limit:      limit,
		Offset:     offset,
	}
	items, total, err := h.Leads.List(c.Request.Context(), f, actorFrom(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, LeadList{Items: items, Total: total})
}

// @Summary Lead details
// @Tags leads
// @Produce json
// @Param id path string true "Lead ID"
// @Success 200 {object} models.Lead
// @Failure 404 {object} middleware.ErrorBody
// @Security BearerAuth
// @Router /api/leads/{id} [get]
func (h *Handler) GetLead(c *gin.Context) {
	lead, err := h.Leads.Get(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// @Summary Update lead
// @Tags leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param body body service.LeadPatch true "Fields to change"
// @Success 200 {object} models.Lead
// @Security BearerAuth
// @Router /api/leads/{id} [put]
func (h *Handler) UpdateLead(c *gin.Context) {
	var patch service.LeadPatch
	if err := h.bind(c, &patch); err != nil {
		_ = c.Error(err)
		return
	}
	lead, err := h.Leads.Update(c.Request.Context(), c.Param("id"), patch, actorFrom(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// @Summary Assign lead to a sales rep
// @Tags leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param body body assignRequest true "Sales rep"
// @Success 200 {object} models.Lead
// @Security BearerAuth
// @Router /api/leads/{id}/assign [put]
func (h *Handler) AssignLead(c *gin.Context) {
	var req assignRequest
	if err := h.bind(c, &req); err != nil {
		_ = c.Error(err)
		return
	}
	lead, err := h.Leads.Assign(c.Request.Context(), c.Param("id"), req.SalesRepID, actorFrom(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, lead)
}

// @Summary Add remark
// @Tags leads
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param body body remarkRequest true "Remark"
// @Success 201 {object} models.Lead
// @Security BearerAuth
// @Router /api/leads/{id}/remarks [post]
func (h *Handler) AddRemark(c *gin.Context) {
	var req remarkRequest
	if err := h.bind(c, &req); err != nil {
		_ = c.Error(err)
		return
	}
	lead, err := h.Leads.AddRemark(c.Request.Context(), c.Param("id"), req.Text, actorFrom(c))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, lead)
}

// @Summary Delete lead
// @Tags leads
// @Param id path string true "Lead ID"
// @Success 200 {object} map[string]string
// @Security BearerAuth
// @Router /api/leads/{id} [delete]
func (h *Handler) DeleteLead(c *gin.Context) {
	id := c.Param("id")
	if err := h.Leads.Delete(c.Request.Context(), id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "deleted": true})
}
