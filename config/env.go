package config

import (
	"os"
	"path/filepath"
	"strings"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/joho/godotenv"
)

// Environment variables that override values from the configuration file.
const (
	EnvEnvironment        = "SGO_ENV"
	EnvDatabaseDialect    = "SGO_DB_DIALECT"
	EnvDatabaseURL        = "SGO_DATABASE_URL"
	EnvModulesDirectory   = "SGO_MODULES_DIR"
	EnvPublicPrefix       = "SGO_PUBLIC_PREFIX"
	EnvDiscoveryHost      = "SGO_DISCOVERY_HOST"
	EnvDiscoveryAllowDirs = "SGO_DISCOVERY_ALLOW_DIRS"
	EnvJwtSecret          = "SGO_JWT_SECRET"
	EnvAdminEmail         = "SGO_ADMIN_EMAIL"
	EnvAdminPassword      = "SGO_ADMIN_PASSWORD"
)

// LoadDotEnv reads KEY=VALUE pairs from the given files into the process
// environment. Variables that are already set are left untouched and missing
// files are skipped.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "config: failed to load %s", f)
		}
		log.WithField("path", f).Debug("loaded environment file")
	}
	return nil
}

// ApplyEnvironment overlays SGO_* environment variables on top of c.
func ApplyEnvironment(c *Configuration) error {
	if v, ok := lookup(EnvEnvironment); ok {
		c.Environment = v
	}
	if v, ok := lookup(EnvDatabaseDialect); ok {
		c.Database.Dialect = strings.ToLower(v)
	}
	if v, ok := lookup(EnvDatabaseURL); ok {
		// A sqlite "url" is just the path to the database file.
		if c.Database.Dialect == "sqlite" {
			c.Database.Path = strings.TrimPrefix(v, "file:")
		} else {
			c.Database.DSN = v
		}
	}
	if v, ok := lookup(EnvModulesDirectory); ok {
		c.Modules.Directory = v
	}
	if v, ok := lookup(EnvPublicPrefix); ok {
		c.Modules.PublicPrefix = v
	}
	if v, ok := lookup(EnvDiscoveryHost); ok {
		c.Discovery.Host = v
	}
	if v, ok := lookup(EnvDiscoveryAllowDirs); ok {
		c.Discovery.AllowDirs = c.Discovery.AllowDirs[:0]
		for _, d := range filepath.SplitList(v) {
			if d = strings.TrimSpace(d); d != "" {
				c.Discovery.AllowDirs = append(c.Discovery.AllowDirs, d)
			}
		}
	}
	if v, ok := lookup(EnvJwtSecret); ok {
		c.Auth.JwtSecret = v
	}
	if v, ok := lookup(EnvAdminEmail); ok {
		c.Auth.AdminEmail = v
	}
	if v, ok := lookup(EnvAdminPassword); ok {
		c.Auth.AdminPassword = v
	}

	// Secrets may be stored in files or reference other variables.
	var err error
	if c.Auth.JwtSecret, err = Expand(c.Auth.JwtSecret); err != nil {
		return errors.WithMessage(err, "config: failed to expand jwt secret")
	}
	if c.Database.DSN, err = Expand(c.Database.DSN); err != nil {
		return errors.WithMessage(err, "config: failed to expand database dsn")
	}

	c.Modules.PublicPrefix = "/" + strings.Trim(c.Modules.PublicPrefix, "/")
	switch c.Database.Dialect {
	case "sqlite", "postgres":
	default:
		return errors.Errorf("config: unsupported database dialect %q", c.Database.Dialect)
	}
	if c.Discovery.PortEnd < c.Discovery.PortStart {
		return errors.Errorf("config: discovery port range %d-%d is empty", c.Discovery.PortStart, c.Discovery.PortEnd)
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
