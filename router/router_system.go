package router

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/priyxstudio/sgo/config"
	"github.com/priyxstudio/sgo/internal/diagnostics"
	"github.com/priyxstudio/sgo/router/middleware"
	"github.com/priyxstudio/sgo/system"
)

// getHealth is a public liveness probe.
// @Summary Health check
// @Tags System
// @Produce json
// @Success 200 {object} router.HealthResponse
// @Router /health [get]
func getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: system.Version})
}

// getSystemInformation returns information about the chassi and its host.
// @Summary Get system information
// @Tags System
// @Produce json
// @Success 200 {object} router.SystemInformationResponse
// @Failure 500 {object} ErrorResponse
// @Security BearerToken
// @Router /api/system [get]
func getSystemInformation(c *gin.Context) {
	i, err := system.GetSystemInformation()
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}

	s := middleware.ExtractServices(c)
	counts, err := s.Registry.Counts(c.Request.Context())
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}

	c.JSON(http.StatusOK, SystemInformationResponse{
		Information: i,
		Database:    s.Registry.Dialect().Name(),
		Modules:     counts,
	})
}

// getSystemUtilization returns resource utilization info for the host.
// @Summary Get system utilization
// @Tags System
// @Produce json
// @Success 200 {object} system.Utilization
// @Failure 500 {object} ErrorResponse
// @Security BearerToken
// @Router /api/system/utilization [get]
func getSystemUtilization(c *gin.Context) {
	cfg := config.Get()
	u, err := system.GetSystemUtilization(map[string]string{
		"Root":    cfg.System.RootDirectory,
		"Logs":    cfg.System.LogDirectory,
		"Modules": cfg.Modules.Directory,
		"Temp":    cfg.System.TmpDirectory,
	})
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

// getDiagnostics returns diagnostic output to help debug the chassi.
// @Summary Generate diagnostics bundle
// @Description Returns plain-text diagnostics output by default. Use include_endpoints to append configured hosts and include_logs to attach recent logs. Provide format=url to upload the report and receive a URL instead of the raw content.
// @Tags System
// @Produce text/plain
// @Produce json
// @Param include_endpoints query bool false "Include endpoint metadata"
// @Param include_logs query bool false "Include logs"
// @Param log_lines query int false "Number of log lines" minimum(1) maximum(500)
// @Param format query string false "Response format" Enums(text,url)
// @Param upload_api_url query string false "Override upload endpoint when format=url"
// @Success 200 {string} string "Plain-text diagnostics report. When format=url the response type is application/json with payload {\"url\":\"...\"}."
// @Failure 500 {object} ErrorResponse
// @Security BearerToken
// @Router /api/system/diagnostics [get]
func getDiagnostics(c *gin.Context) {
	parseBoolQuery := func(param string, defaultVal bool) bool {
		switch strings.ToLower(c.Query(param)) {
		case "true":
			return true
		case "false":
			return false
		default:
			return defaultVal
		}
	}

	includeEndpoints := parseBoolQuery("include_endpoints", false)
	includeLogs := parseBoolQuery("include_logs", true)

	logLines := 200
	if q := c.Query("log_lines"); q != "" {
		if n, err := strconv.Atoi(q); err == nil {
			if n > 500 {
				logLines = 500
			} else if n > 0 {
				logLines = n
			}
		}
	}

	s := middleware.ExtractServices(c)
	report, err := diagnostics.GenerateDiagnosticsReport(c.Request.Context(), s.Registry, includeEndpoints, includeLogs, logLines)
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}

	switch strings.ToLower(c.DefaultQuery("format", "text")) {
	case "", "text", "raw":
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(report))
	case "url":
		uploadAPIURL := c.DefaultQuery("upload_api_url", diagnostics.DefaultUploadAPIURL)
		ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
		defer cancel()

		u, err := diagnostics.UploadReport(ctx, uploadAPIURL, report)
		if err != nil {
			if errors.Is(err, diagnostics.ErrMissingUploadAPIURL) || errors.Is(err, diagnostics.ErrInvalidUploadAPIURL) {
				c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
				return
			}
			middleware.CaptureAndAbort(c, err)
			return
		}
		c.JSON(http.StatusOK, DiagnosticsUploadResponse{URL: u})
	default:
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: "format must be either 'text' or 'url'"})
	}
}
