package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/tripdesk/backend/internal/auth"
	"github.com/tripdesk/backend/internal/config"
	"github.com/tripdesk/backend/internal/http/handlers"
	"github.com/tripdesk/backend/internal/http/middleware"
	"github.com/tripdesk/backend/internal/models"
	"github.com/tripdesk/backend/internal/service"

	_ "github.com/tripdesk/backend/docs"
)

// NewHandler wires the services over one store.
func NewHandler(cfg config.Config, store service.Store, logger zerolog.Logger) *handlers.Handler {
	assigner := &service.Assigner{
		Settings:         store,
		Reps:             store,
		Logger:           logger.With().Str("component", "assignment").Logger(),
		InactivityWindow: cfg.RepInactivityWindow,
		CASRetries:       cfg.AssignmentCASRetries,
		TolerateRace:     cfg.AssignmentTolerateRace,
	}
	return &handlers.Handler{
		Store: store,
		Leads: &service.LeadService{
			Tx:            store,
			Leads:         store,
			Users:         store,
			Packages:      store,
			Notifications: store,
			Assigner:      assigner,
			Logger:        logger,
		},
		Packages: &service.Customizer{
			Tx:       store,
			Packages: store,
			Leads:    store,
			Logger:   logger,
		},
		Itineraries: &service.ItineraryService{
			Tx:          store,
			Leads:       store,
			Itineraries: store,
			Logger:      logger,
		},
		Intake: &service.IntakeService{
			Tx:            store,
			Users:         store,
			Leads:         store,
			Itineraries:   store,
			Notifications: store,
			Assigner:      assigner,
			Logger:        logger.With().Str("component", "intake").Logger(),
		},
		Settings:  &service.AssignmentSettingsService{Store: store},
		Validator: handlers.NewValidator(),
		Logger:    logger,
	}
}

func Router(cfg config.Config, h *handlers.Handler, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-Id"},
		ExposeHeaders:    []string{"X-Request-Id", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))
	r.Use(middleware.Errors(logger, cfg.Production()))

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api")
	api.POST("/manual-itineraries/website",
		middleware.RateLimit(middleware.NewClientLimiter(cfg.WebsiteRatePerMinute)),
		h.SubmitWebsiteItinerary)

	staff := api.Group("")
	staff.Use(middleware.Auth([]byte(cfg.JWTSecret)), middleware.RequireRole(models.RoleAdmin, models.RoleSalesRep))
	{
		staff.POST("/leads", h.CreateLead)
		staff.GET("/leads", h.ListLeads)
		staff.GET("/leads/:id", h.GetLead)
		staff.PUT("/leads/:id", h.UpdateLead)
		staff.POST("/leads/:id/remarks", h.AddRemark)
		staff.POST("/leads/:id/customize", h.CustomizeForLead)

		staff.POST("/manual-itineraries/lead/:leadId", h.CreateLeadItinerary)
		staff.PUT("/manual-itineraries/lead/:leadId", h.ReplaceLeadItinerary)
		staff.GET("/manual-itineraries/lead/:leadId", h.GetLeadItinerary)
		staff.DELETE("/manual-itineraries/:id", h.DeleteItinerary)

		staff.GET("/packages", h.ListPackages)
		staff.GET("/packages/:id", h.GetPackage)
		staff.POST("/packages", h.CreatePackage)
		staff.PUT("/customized-packages/:id", h.UpdateCustomizedPackage)
	}

	staff.PUT("/leads/:id/assign", middleware.RequirePermission(auth.PermLeadsAssign), h.AssignLead)
	staff.DELETE("/leads/:id", middleware.RequirePermission(auth.PermLeadsDelete), h.DeleteLead)
	staff.PUT("/packages/:id", middleware.RequirePermission(auth.PermPackagesManage), h.UpdatePackage)

	settings := staff.Group("/settings", middleware.RequirePermission(auth.PermSettingsManage))
	settings.GET("/assignment", h.GetAssignmentSettings)
	settings.PUT("/assignment", h.UpdateAssignmentSettings)

	return r
}
