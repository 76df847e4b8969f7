package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tripdesk/backend/internal/apperr"
	"github.com/tripdesk/backend/internal/auth"
	"github.com/tripdesk/backend/internal/http/middleware"
	"github.com/tripdesk/backend/internal/models"
	"github.com/tripdesk/backend/internal/service"
)

// packageRequest is the body of POST /api/packages. With customizeForLeadId set
// it derives a customized package for that lead from originalPackageId.
type packageRequest struct {
	service.PackageInput
	CustomizeForLeadID string `json:"customizeForLeadId"`
	OriginalPackageID  string `json:"originalPackageId"`
	ExpectedVersion    *int   `json:"expectedVersion"`
}

type packageUpdateRequest struct {
	service.PackageInput
	ExpectedVersion *int `json:"expectedVersion"`
}

type customizeRequest struct {
	PackageID           string               `json:"packageId" validate:"required"`
	Edits               service.PackageInput `json:"edits"`
	ExpectedVersion     *int                 `json:"expectedVersion"`
	RebaseOntoPackageID string               `json:"rebaseOntoPackageId"`
}

func customizeStatus(res service.CustomizeResult) int {
	if res.Created {
		return http.StatusCreated
	}
	return http.StatusOK
}

// @Summary List packages
// @Tags packages
// @Produce json
// @Param customized query bool false "Only customized (true) or catalog (false) packages"
// @Param destination query string false "Destination, case-insensitive exact match"
// @Param category query string false "Category"
// @Param leadId query string false "Customized for lead"
// @Success 200 {array} models.Package
// @Security BearerAuth
// @Router /api/packages [get]
func (h *Handler) ListPackages(c *gin.Context) {
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
	f := models.PackageFilter{
		Destination: c.Query("destination"),
		Category:    c.Query("category"),
		LeadID:      c.Query("leadId"),
		Limit:       limit,
		Offset:      offset,
	}
	if raw := c.Query("customized"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			_ = c.Error(apperr.Validation("Invalid query", apperr.FieldError{Field: "customized", Message: "must be true or false"}))
			return
		}
		f.Customized = &v
	}
	items, err := h.Packages.ListPackages(c.Request.Context(), f)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// @Summary Package details
// @Tags packages
// @Produce json
// @Param id path string true "Package ID"
// @Success 200 {object} models.Package
// @Failure 404 {object} middleware.ErrorBody
// @Security BearerAuth
// @Router /api/packages/{id} [get]
func (h *Handler) GetPackage(c *gin.Context) {
	pkg, err := h.Packages.GetPackage(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, pkg)
}

// @Summary Create package
// @Description Creates a catalog package, or a customized package for a lead when customizeForLeadId is set.
// @Tags packages
// @Accept json
// @Produce json
// @Param body body packageRequest true "Package"
// @Success 201 {object} models.Package
// @Failure 400 {object} middleware.ErrorBody
// @Security BearerAuth
// @Router /api/packages [post]
func (h *Handler) CreatePackage(c *gin.Context) {
	var req packageRequest
	if err := h.bind(c, &req); err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()

	if req.CustomizeForLeadID != "" {
		if _, err := h.Leads.Get(ctx, req.CustomizeForLeadID, actorFrom(c)); err != nil {
			_ = c.Error(err)
			return
		}
		res, err := h.Packages.Customize(ctx, service.CustomizeInput{
			LeadID:          req.CustomizeForLeadID,
			SourcePackageID: req.OriginalPackageID,
			Edits:           req.PackageInput,
			ExpectedVersion: req.ExpectedVersion,
		})
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(customizeStatus(res), res.Package)
		return
	}

	if p, _ := middleware.PrincipalFrom(c); !p.Has(auth.PermPackagesManage) {
		_ = c.Error(apperr.Forbidden("Missing permission " + auth.PermPackagesManage))
		return
	}
	pkg, err := h.Packages.CreateCatalogPackage(ctx, req.PackageInput)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, pkg)
}

// @Summary Update catalog package
// @Tags packages
// @Accept json
// @Produce json
// @Param id path string true "Package ID"
// @Param body body packageUpdateRequest true "Fields to change"
// @Success 200 {object} models.Package
// @Failure 409 {object} middleware.ErrorBody
// @Security BearerAuth
// @Router /api/packages/{id} [put]
func (h *Handler) UpdatePackage(c *gin.Context) {
	var req packageUpdateRequest
	if err := h.bind(c, &req); err != nil {
		_ = c.Error(err)
		return
	}
	pkg, err := h.Packages.UpdateCatalogPackage(c.Request.Context(), c.Param("id"), req.PackageInput, req.ExpectedVersion)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, pkg)
}

// @Summary Update customized package
// @Tags packages
// @Accept json
// @Produce json
// @Param id path string true "Customized package ID"
// @Param body body packageUpdateRequest true "Fields to change"
// @Success 200 {object} service.CustomizeResult
// @Failure 403 {object} middleware.ErrorBody
// @Failure 409 {object} middleware.ErrorBody
// @Security BearerAuth
// @Router /api/customized-packages/{id} [put]
func (h *Handler) UpdateCustomizedPackage(c *gin.Context) {
	var req packageUpdateRequest
	if err := h.bind(c, &req); err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()
	pkg, err := h.Packages.GetPackage(ctx, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if pkg.CustomizedForLeadID != nil {
		if _, err := h.Leads.Get(ctx, *pkg.CustomizedForLeadID, actorFrom(c)); err != nil {
			_ = c.Error(err)
			return
		}
	}
	res, err := h.Packages.UpdateCustomized(ctx, pkg.ID, req.PackageInput, req.ExpectedVersion)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Customize a package for a lead
// @Description Derives a customized package from packageId, or updates the lead's existing one, and points the lead at it.
// @Tags packages
// @Accept json
// @Produce json
// @Param id path string true "Lead ID"
// @Param body body customizeRequest true "Source package and edits"
// @Success 201 {object} service.CustomizeResult
// @Success 200 {object} service.CustomizeResult
// @Failure 409 {object} middleware.ErrorBody
// @Security BearerAuth
// @Router /api/leads/{id}/customize [post]
func (h *Handler) CustomizeForLead(c *gin.Context) {
	var req customizeRequest
	if err := h.bind(c, &req); err != nil {
		_ = c.Error(err)
		return
	}
	ctx := c.Request.Context()
	leadID := c.Param("id")
	if _, err := h.Leads.Get(ctx, leadID, actorFrom(c)); err != nil {
		_ = c.Error(err)
		return
	}
	res, err := h.Packages.Customize(ctx, service.CustomizeInput{
		LeadID:              leadID,
		SourcePackageID:     req.PackageID,
		Edits:               req.Edits,
		ExpectedVersion:     req.ExpectedVersion,
		RebaseOntoPackageID: req.RebaseOntoPackageID,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(customizeStatus(res), res)
}
