package router

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/priyxstudio/sgo/internal/models"
	"github.com/priyxstudio/sgo/modules"
	"github.com/priyxstudio/sgo/system"
)

// ErrorResponse represents the common error payload returned by the API.
type ErrorResponse struct {
	Error     string               `json:"error"`
	RequestID string               `json:"request_id,omitempty"`
	Fields    []modules.FieldError `json:"fields,omitempty"`
}

// ModuleListResponse contains a list of modules.
type ModuleListResponse struct {
	Data []models.Module `json:"data"`
}

// ModuleOrderRequest reassigns the launcher order.
type ModuleOrderRequest struct {
	Slugs []string `json:"slugs" binding:"required"`
}

// InstallLinkRequest installs a module from a remote archive.
type InstallLinkRequest struct {
	URL       string `json:"url" binding:"required"`
	AuthToken string `json:"authToken,omitempty"`
}

// InstallResponse is returned after a successful install.
type InstallResponse struct {
	Slug       string   `json:"slug"`
	Name       string   `json:"name"`
	Version    string   `json:"version"`
	Installed  bool     `json:"installed"`
	Migrations []string `json:"migrations,omitempty"`
}

// ModuleConfigRequest sets a module setting.
type ModuleConfigRequest struct {
	Value string `json:"value"`
	Type  string `json:"type,omitempty"`
}

// ModuleConfigListResponse contains the settings of a module.
type ModuleConfigListResponse struct {
	Data []models.ModuleConfig `json:"data"`
}

// ModuleDataRequest creates or replaces a module document.
type ModuleDataRequest struct {
	ID   string          `json:"id,omitempty"`
	Data json.RawMessage `json:"data" swaggertype:"object"`
}

// ModuleDataListResponse contains documents of one entity type.
type ModuleDataListResponse struct {
	Data []models.ModuleData `json:"data"`
}

// LoginRequest authenticates a user of the shell.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the session token for the shell.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// SystemInformationResponse describes the chassi and the host it runs on.
type SystemInformationResponse struct {
	*system.Information
	Database string         `json:"database"`
	Modules  modules.Counts `json:"modules"`
}

// DiagnosticsUploadResponse contains the URL to an uploaded diagnostics bundle.
type DiagnosticsUploadResponse struct {
	URL string `json:"url"`
}

// HealthResponse is returned by the public health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
