package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tripdesk/backend/internal/service"
)

// @Summary Assignment settings
// @Tags settings
// @Produce json
// @Success 200 {object} models.AssignmentSettings
// @Security BearerAuth
// @Router /api/settings/assignment [get]
func (h *Handler) GetAssignmentSettings(c *gin.Context) {
	s, err := h.Settings.Get(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// @Summary Update assignment settings
// @Tags settings
// @Accept json
// @Produce json
// @Param body body service.AssignmentSettingsInput true "Settings"
// @Success 200 {object} models.AssignmentSettings
// @Failure 400 {object} middleware.ErrorBody
// @Security BearerAuth
// @Router /api/settings/assignment [put]
func (h *Handler) UpdateAssignmentSettings(c *gin.Context) {
	var in service.AssignmentSettingsInput
	if err := h.bind(c, &in); err != nil {
		_ = c.Error(err)
		return
	}
	s, err := h.Settings.Update(c.Request.Context(), in)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, s)
}
