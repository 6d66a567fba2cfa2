package router

import (
	"net/http"
	"strings"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"github.com/priyxstudio/sgo/assets"
	"github.com/priyxstudio/sgo/config"
	"github.com/priyxstudio/sgo/internal/models"
	"github.com/priyxstudio/sgo/metrics"
	"github.com/priyxstudio/sgo/router/middleware"
)

// Configure configures the routing infrastructure for this chassi instance.
func Configure(s *middleware.Services) *gin.Engine {
	cfg := config.Get()
	if !cfg.Debug && gin.Mode() == gin.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(cfg.Api.TrustedProxies); err != nil {
		panic(errors.WithStack(err))
	}
	router.Use(middleware.AttachRequestID(), middleware.CaptureErrors(), middleware.SetAccessControlHeaders())
	router.Use(middleware.AttachServices(s))
	if cfg.Api.Metrics.Enabled {
		router.Use(metrics.Middleware())
	}
	// This should still dump requests in debug mode since it does help with understanding the request
	// lifecycle and quickly seeing what was called leading to the logs.
	router.Use(gin.LoggerWithFormatter(func(params gin.LogFormatterParams) string {
		log.WithFields(log.Fields{
			"client_ip":  params.ClientIP,
			"status":     params.StatusCode,
			"latency":    params.Latency,
			"request_id": params.Keys["request_id"],
		}).Debugf("%s %s", params.MethodColor()+params.Method+params.ResetColor(), params.Path)

		return ""
	}))

	router.GET("/health", getHealth)
	if cfg.Api.Metrics.Enabled {
		router.GET("/metrics", metrics.Handler())
	}
	if cfg.Api.Docs.Enabled {
		registerDocumentationRoutes(router)
	}

	// Module assets are public; the shell decides who may open a module.
	prefix := "/" + strings.Trim(cfg.Modules.PublicPrefix, "/")
	files := gin.WrapH(http.StripPrefix(prefix, assets.NewHandler(s.Installer.Root())))
	router.GET(prefix+"/*path", files)
	router.HEAD(prefix+"/*path", files)

	throttle := middleware.Throttle(s.Throttle)
	router.POST("/api/auth/login", throttle, postLogin)

	// The websocket authenticates through the token query parameter since
	// browsers cannot send headers with the upgrade request.
	router.GET("/api/modules/events", getModuleEvents)

	// All the routes beyond this mount will use an authorization middleware
	// and will not be accessible without the correct Authorization header provided.
	protected := router.Group("")
	protected.Use(middleware.RequireAuthorization())
	protected.GET("/api/auth/me", getMe)

	protected.GET("/api/modules", getModules)
	protected.GET("/api/modules/:slug", getModule)

	admin := protected.Group("")
	admin.Use(middleware.RequireRole(models.UserRoleAdmin))
	{
		admin.GET("/api/system", getSystemInformation)
		admin.GET("/api/system/utilization", getSystemUtilization)
		admin.GET("/api/system/diagnostics", getDiagnostics)

		admin.POST("/api/modules/install", throttle, postModuleInstall)
		admin.POST("/api/modules/install-link", throttle, postModuleInstallLink)
		admin.GET("/api/modules/discovery", getDiscoveryStatus)
		admin.POST("/api/modules/discovery/scan", postDiscoveryScan)
		admin.PUT("/api/modules/order", putModulesOrder)
		admin.PATCH("/api/modules/:slug", patchModule)
		admin.DELETE("/api/modules/:slug", deleteModule)
	}

	moduleConfig := protected.Group("/api/module-config/:moduleId")
	moduleConfig.Use(ModuleExists())
	{
		moduleConfig.GET("", getModuleConfigs)
		moduleConfig.GET("/:key", getModuleConfig)
		moduleConfig.PUT("/:key", putModuleConfig)
		moduleConfig.DELETE("/:key", deleteModuleConfig)
	}

	moduleData := protected.Group("/api/module-data/:moduleId")
	moduleData.Use(ModuleExists())
	{
		moduleData.GET("/:entityType", getModuleDataList)
		moduleData.POST("/:entityType", postModuleData)
		moduleData.GET("/:entityType/:entityId", getModuleData)
		moduleData.PUT("/:entityType/:entityId", putModuleData)
		moduleData.PATCH("/:entityType/:entityId", patchModuleData)
		moduleData.DELETE("/:entityType/:entityId", deleteModuleData)
	}

	return router
}
