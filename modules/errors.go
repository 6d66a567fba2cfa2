package modules

import (
	"fmt"
	"strings"

	"emperror.dev/errors"

	"github.com/priyxstudio/sgo/remote"
)

const (
	ErrMissingManifest = errors.Sentinel("archive does not contain a manifest.json")
	ErrInvalidArchive  = errors.Sentinel("file is not a valid module archive")
	ErrModuleNotFound  = errors.Sentinel("module not found")
	ErrNotFound        = errors.Sentinel("record not found")
	ErrDuplicateEntity = errors.Sentinel("an entity with this id already exists")
	ErrInvalidDocument = errors.Sentinel("document must be valid JSON")
)

// ErrDownloadFailed is returned when a link install cannot fetch its archive.
var ErrDownloadFailed = remote.ErrDownloadFailed

// FieldError describes a single manifest field that failed validation.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError is returned when a manifest does not match the expected
// schema. It lists every offending field, not just the first one.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid manifest: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// MigrationError is returned when a statement of a module migration fails.
// The file it belongs to is not recorded as applied.
type MigrationError struct {
	Slug      string
	File      string
	Statement int
	Err       error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %s of module %s failed at statement %d: %s", e.File, e.Slug, e.Statement+1, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// IsValidationError checks if err is a manifest validation failure.
func IsValidationError(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// IsMigrationError checks if err is a failed module migration.
func IsMigrationError(err error) bool {
	var merr *MigrationError
	return errors.As(err, &merr)
}

// IsClientError reports whether err was caused by the archive or manifest
// the caller supplied rather than by the chassi itself.
func IsClientError(err error) bool {
	return IsValidationError(err) ||
		IsMigrationError(err) ||
		errors.Is(err, ErrMissingManifest) ||
		errors.Is(err, ErrInvalidArchive) ||
		errors.Is(err, ErrInvalidDocument) ||
		errors.Is(err, ErrDownloadFailed) ||
		errors.Is(err, remote.ErrInvalidURL)
}
