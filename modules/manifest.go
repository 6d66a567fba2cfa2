package modules

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
)

const (
	DefaultIcon       = "Package"
	DefaultColor      = "#3B82F6"
	DefaultServerPort = 5001

	// ManifestName is the file every module archive and dev server provides.
	ManifestName = "manifest.json"
)

var (
	slugPattern    = regexp.MustCompile(`^[a-z0-9-]+$`)
	versionPattern = regexp.MustCompile(`^\d+\.\d+\.\d+`)
	colorPattern   = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)
)

// Manifest is the validated descriptor a module ships with.
type Manifest struct {
	Slug        string         `json:"slug"`
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Version     string         `json:"version"`
	Icon        string         `json:"icon"`
	Color       string         `json:"color"`
	Permissions []string       `json:"permissions"`
	HasWidget   bool           `json:"hasWidget"`
	ServerPort  int            `json:"serverPort"`
	Exposes     map[string]any `json:"exposes,omitempty"`
}

// IsFederated reports whether the manifest declares Module Federation
// exposes. An empty exposes object still counts as declared.
func (m *Manifest) IsFederated() bool {
	return m.Exposes != nil
}

// ValidSlug reports whether s can be used as a module slug.
func ValidSlug(s string) bool {
	return slugPattern.MatchString(s)
}

// ParseManifest decodes and validates a raw manifest document. Unknown keys
// are ignored; optional keys that are missing receive their defaults.
func ParseManifest(b []byte) (*Manifest, error) {
	verr := &ValidationError{}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil || raw == nil {
		verr.add("manifest", "must be a JSON object")
		return nil, verr
	}

	m := &Manifest{}
	decode := func(key string, v any, message string) bool {
		r, ok := raw[key]
		if !ok || isNull(r) {
			return false
		}
		if err := json.Unmarshal(r, v); err != nil {
			verr.add(key, message)
			return false
		}
		return true
	}

	decode("slug", &m.Slug, "must be a string")
	decode("name", &m.Name, "must be a string")
	decode("description", &m.Description, "must be a string")
	decode("version", &m.Version, "must be a string")
	decode("icon", &m.Icon, "must be a string")
	decode("color", &m.Color, "must be a string")
	decode("permissions", &m.Permissions, "must be a list of strings")
	decode("hasWidget", &m.HasWidget, "must be a boolean")
	hasPort := decode("serverPort", &m.ServerPort, "must be an integer")
	decode("exposes", &m.Exposes, "must be an object")

	m.Slug = strings.TrimSpace(m.Slug)
	m.Name = strings.TrimSpace(m.Name)
	m.Version = strings.TrimSpace(m.Version)

	validate(m, verr, hasPort)
	if len(verr.Fields) > 0 {
		return nil, verr
	}
	return m, nil
}

// Validate checks an already decoded manifest and fills in defaults.
func (m *Manifest) Validate() error {
	verr := &ValidationError{}
	validate(m, verr, m.ServerPort != 0)
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func validate(m *Manifest, verr *ValidationError, hasPort bool) {
	switch {
	case m.Slug == "" && !hasField(verr, "slug"):
		verr.add("slug", "is required")
	case m.Slug != "" && !slugPattern.MatchString(m.Slug):
		verr.add("slug", "must match ^[a-z0-9-]+$")
	}
	if m.Name == "" && !hasField(verr, "name") {
		verr.add("name", "is required")
	}
	switch {
	case m.Version == "" && !hasField(verr, "version"):
		verr.add("version", "is required")
	case m.Version != "" && !versionPattern.MatchString(m.Version):
		verr.add("version", "must start with MAJOR.MINOR.PATCH")
	}
	if m.Color != "" && !colorPattern.MatchString(m.Color) {
		verr.add("color", "must be a hex color like #RRGGBB")
	}
	if hasPort && (m.ServerPort < 1 || m.ServerPort > 65535) {
		verr.add("serverPort", "must be between 1 and 65535")
	}

	if m.Icon == "" {
		m.Icon = DefaultIcon
	}
	if m.Color == "" {
		m.Color = DefaultColor
	}
	if m.Permissions == nil {
		m.Permissions = []string{}
	}
	if m.ServerPort == 0 {
		m.ServerPort = DefaultServerPort
	}
}

func hasField(verr *ValidationError, field string) bool {
	for _, f := range verr.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func isNull(r json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(r), []byte("null"))
}
