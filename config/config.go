package config

import (
	"bytes"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/creasty/defaults"
	"github.com/gbrlsnchs/jwt/v3"
	"gopkg.in/yaml.v2"
)

const DefaultLocation = "/etc/sgo/config.yml"

// EnvironmentProduction is the only environment name that disables the
// development-only features of the chassi (dev module discovery, verbose
// manifest warnings).
const EnvironmentProduction = "production"

// DefaultTLSConfig sets sane defaults to use when configuring the internal
// webserver to listen for public connections.
//
// @see https://blog.cloudflare.com/exposing-go-on-the-internet
var DefaultTLSConfig = &tls.Config{
	NextProtos: []string{"h2", "http/1.1"},
	CipherSuites: []uint16{
		tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
		tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
		tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305_SHA256,
		tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305_SHA256,
	},
	PreferServerCipherSuites: true,
	MinVersion:               tls.VersionTLS12,
	MaxVersion:               tls.VersionTLS13,
	CurvePreferences:         []tls.CurveID{tls.X25519, tls.CurveP256},
}

var (
	mu            sync.RWMutex
	_config       *Configuration
	_jwtAlgo      *jwt.HMACSHA
	_debugViaFlag bool
)

// Locker specific to writing the configuration to the disk, this happens
// in areas that might already be locked, so we don't want to crash the process.
var _writeLock sync.Mutex

// ApiConfiguration defines the configuration for the HTTP API exposed by the
// chassi.
type ApiConfiguration struct {
	// The interface that the internal webserver should bind to.
	Host string `default:"0.0.0.0" yaml:"host"`

	// The port that the internal webserver should bind to.
	Port int `default:"3001" yaml:"port"`

	// Docs controls whether the auto-generated Swagger/OpenAPI documentation is served.
	Docs DocsConfiguration `yaml:"docs"`

	// Metrics controls whether a Prometheus endpoint is mounted at /metrics.
	Metrics MetricsConfiguration `yaml:"metrics"`

	// SSL configuration for the webserver.
	Ssl struct {
		Enabled         bool   `json:"enabled" yaml:"enabled"`
		CertificateFile string `json:"cert" yaml:"cert"`
		KeyFile         string `json:"key" yaml:"key"`
	}

	// The maximum size for module archives uploaded through the shell in MiB.
	UploadLimit int64 `default:"100" json:"upload_limit" yaml:"upload_limit"`

	// RemoteDownload defines settings for installing module archives from a URL.
	RemoteDownload RemoteDownloadConfiguration `json:"remote_download" yaml:"remote_download"`

	// A list of IP address of proxies that may send a X-Forwarded-For header to set the true clients IP
	TrustedProxies []string `json:"trusted_proxies" yaml:"trusted_proxies"`
}

type DocsConfiguration struct {
	Enabled bool `default:"true" yaml:"enabled"`
}

type MetricsConfiguration struct {
	Enabled bool `default:"true" yaml:"enabled"`
}

// RemoteDownloadConfiguration controls how archives are fetched for link
// installs.
type RemoteDownloadConfiguration struct {
	// The amount of time in seconds a single download attempt may take before it
	// is abandoned.
	Timeout int `default:"120" json:"timeout" yaml:"timeout"`

	// MaxRetries is the number of additional attempts made after a network error
	// or a 5xx response. Client errors are never retried.
	MaxRetries int `default:"3" json:"max_retries" yaml:"max_retries"`

	// MaxRedirects specifies the maximum number of HTTP redirects to follow.
	MaxRedirects int `default:"10" json:"max_redirects" yaml:"max_redirects"`

	// DownloadLimit imposes a network read limit in MiB/s. Values below 1 mean
	// unlimited.
	DownloadLimit int `default:"0" json:"download_limit" yaml:"download_limit"`
}

// SystemConfiguration defines basic system configuration settings.
type SystemConfiguration struct {
	// The root directory where all of the sgo data is stored at.
	RootDirectory string `default:"/var/lib/sgo" json:"-" yaml:"root_directory"`

	// Directory where the sgo log file is written.
	LogDirectory string `default:"/var/log/sgo" json:"-" yaml:"log_directory"`

	// TmpDirectory is where uploaded and downloaded module archives are staged
	// before they are extracted.
	TmpDirectory string `default:"/tmp/sgo" json:"-" yaml:"tmp_directory"`

	// If set to false sgo will not attempt to write a log rotate configuration to
	// the disk when it boots and one is not detected.
	EnableLogRotate bool `default:"true" yaml:"enable_log_rotate"`
}

// DatabaseConfiguration selects the relational backend.
type DatabaseConfiguration struct {
	// Dialect is either "sqlite" or "postgres".
	Dialect string `default:"sqlite" json:"dialect" yaml:"dialect"`

	// DSN is the connection string used by the postgres dialect.
	DSN string `json:"-" yaml:"dsn"`

	// Path is the database file used by the sqlite dialect.
	Path string `default:"/var/lib/sgo/sgo.db" json:"path" yaml:"path"`
}

// ModulesConfiguration controls where installed modules live and how they are
// exposed.
type ModulesConfiguration struct {
	// Directory is the storage root; every installed module is extracted into
	// <Directory>/<slug>.
	Directory string `default:"/var/lib/sgo/modules" json:"directory" yaml:"directory"`

	// PublicPrefix is the URL prefix under which module assets are served.
	PublicPrefix string `default:"/modules" json:"public_prefix" yaml:"public_prefix"`

	// TransactionalMigrations wraps each module migration file in a database
	// transaction. When disabled a failing statement leaves the earlier
	// statements of the same file applied.
	TransactionalMigrations bool `default:"true" json:"transactional_migrations" yaml:"transactional_migrations"`
}

// DiscoveryConfiguration controls the development-only module discovery loop.
type DiscoveryConfiguration struct {
	// Enabled toggles discovery. It never runs in the production environment
	// regardless of this value.
	Enabled bool `default:"true" json:"enabled" yaml:"enabled"`

	// Host is probed on every port in the range.
	Host string `default:"localhost" json:"host" yaml:"host"`

	PortStart int `default:"5001" json:"port_start" yaml:"port_start"`
	PortEnd   int `default:"5099" json:"port_end" yaml:"port_end"`

	// Interval between scans, in seconds.
	Interval int `default:"5" json:"interval" yaml:"interval"`

	// Timeout for a single probe, in milliseconds.
	Timeout int `default:"1000" json:"timeout" yaml:"timeout"`

	// Concurrency is the number of ports probed at the same time.
	Concurrency int `default:"16" json:"concurrency" yaml:"concurrency"`

	// AllowDirs are local module source folders. When set, only modules whose
	// slug matches a manifest found in <dir>/*/manifest.json are registered.
	AllowDirs []string `json:"allow_dirs" yaml:"allow_dirs"`
}

// AuthConfiguration controls the user sessions issued to the shell.
type AuthConfiguration struct {
	// JwtSecret signs every session token. May reference a file using the
	// file:// prefix.
	JwtSecret string `json:"-" yaml:"jwt_secret"`

	// TokenExpiration is the lifetime of a session token in hours.
	TokenExpiration int `default:"24" json:"token_expiration" yaml:"token_expiration"`

	// AdminEmail and AdminPassword seed the first administrator when the users
	// table is empty.
	AdminEmail    string `json:"-" yaml:"admin_email"`
	AdminPassword string `json:"-" yaml:"admin_password"`
}

// ThrottleConfiguration limits how quickly a single client may hit the
// sensitive endpoints (login and module installs).
type ThrottleConfiguration struct {
	Enabled bool `default:"true" json:"enabled" yaml:"enabled"`

	// Requests allowed per minute per client.
	PerMinute int `default:"30" json:"per_minute" yaml:"per_minute"`

	// Burst is the number of requests allowed above the steady rate.
	Burst int `default:"10" json:"burst" yaml:"burst"`
}

type Configuration struct {
	// The location from which this configuration instance was instantiated.
	path string

	// Determines if sgo should be running in debug mode. This value is ignored
	// if the debug flag is passed through the command line arguments.
	Debug bool

	AppName string `default:"SGO" json:"app_name" yaml:"app_name"`

	// Environment is "production" or anything else. Only production disables the
	// development tooling.
	Environment string `default:"development" json:"environment" yaml:"environment"`

	Api       ApiConfiguration       `json:"api" yaml:"api"`
	System    SystemConfiguration    `json:"system" yaml:"system"`
	Database  DatabaseConfiguration  `json:"database" yaml:"database"`
	Modules   ModulesConfiguration   `json:"modules" yaml:"modules"`
	Discovery DiscoveryConfiguration `json:"discovery" yaml:"discovery"`
	Auth      AuthConfiguration      `json:"auth" yaml:"auth"`
	Throttles ThrottleConfiguration  `json:"throttles" yaml:"throttles"`

	// AllowedOrigins is a list of allowed request origins for the shell.
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins"`
}

// NewAtPath creates a new struct and set the path where it should be stored.
// This function does not modify the currently stored global configuration.
func NewAtPath(path string) (*Configuration, error) {
	var c Configuration
	// Configures the default values for many of the configuration options present
	// in the structs. Values set in the configuration file take priority over the
	// default values.
	if err := defaults.Set(&c); err != nil {
		return nil, err
	}
	// Track the location where we created this configuration.
	c.path = path
	return &c, nil
}

// Set the global configuration instance. This is a blocking operation such that
// anything trying to set a different configuration value, or read the configuration
// will be paused until it is complete.
func Set(c *Configuration) {
	mu.Lock()
	defer mu.Unlock()
	// An empty secret is filled in by EnsureJwtSecret.
	if c.Auth.JwtSecret == "" {
		_jwtAlgo = nil
	} else if _config == nil || _jwtAlgo == nil || _config.Auth.JwtSecret != c.Auth.JwtSecret {
		_jwtAlgo = jwt.NewHS256([]byte(c.Auth.JwtSecret))
	}
	_config = c
}

// SetDebugViaFlag tracks if the application is running in debug mode because of
// a command line flag argument. If so we do not want to store that configuration
// change to the disk.
func SetDebugViaFlag(d bool) {
	mu.Lock()
	defer mu.Unlock()
	_config.Debug = d
	_debugViaFlag = d
}

// Get returns the global configuration instance. This is a thread-safe operation
// that will block if the configuration is presently being modified.
//
// Be aware that you CANNOT make modifications to the currently stored configuration
// by modifying the struct returned by this function. The only way to make
// modifications is by using the Update() function and passing data through in
// the callback.
func Get() *Configuration {
	mu.RLock()
	// Create a copy of the struct so that all modifications made beyond this
	// point are immutable.
	//goland:noinspection GoVetCopyLock
	c := *_config
	mu.RUnlock()
	return &c
}

// Update performs an in-situ update of the global configuration object using
// a thread-safe mutex lock. This is the correct way to make modifications to
// the global configuration.
func Update(callback func(c *Configuration)) {
	mu.Lock()
	defer mu.Unlock()
	callback(_config)
	if _config.Auth.JwtSecret != "" {
		_jwtAlgo = jwt.NewHS256([]byte(_config.Auth.JwtSecret))
	}
}

// GetJwtAlgorithm returns the in-memory JWT algorithm.
func GetJwtAlgorithm() *jwt.HMACSHA {
	mu.RLock()
	defer mu.RUnlock()
	return _jwtAlgo
}

// Path returns the file path where this configuration is stored.
func (c *Configuration) Path() string {
	return c.path
}

// IsProduction reports whether the chassi runs with the production profile.
func (c *Configuration) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvironmentProduction)
}

// DiscoveryActive reports whether the dev discovery loop should run at all.
func (c *Configuration) DiscoveryActive() bool {
	return c.Discovery.Enabled && !c.IsProduction()
}

// WriteToDisk writes the configuration to the disk. This is a thread safe operation
// and will only allow one write at a time. Additional calls while writing are
// queued up.
func WriteToDisk(c *Configuration) error {
	_writeLock.Lock()
	defer _writeLock.Unlock()

	//goland:noinspection GoVetCopyLock
	ccopy := *c
	// If debugging is set with the flag, don't save that to the configuration file,
	// otherwise you'll always end up in debug mode.
	if _debugViaFlag {
		ccopy.Debug = false
	}
	if c.path == "" {
		return errors.New("cannot write configuration, no path defined in struct")
	}
	b, err := yaml.Marshal(&ccopy)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(c.path, b, 0o600); err != nil {
		return err
	}
	return nil
}

// FromFile reads the configuration from the provided file, applies the
// environment overlay and stores the result in the global singleton for this
// instance. A missing file is not an error; defaults and the environment are
// enough to boot.
func FromFile(path string) error {
	c, err := Load(path)
	if err != nil {
		return err
	}
	// Store this configuration in the global state.
	Set(c)
	return nil
}

// Load builds a configuration from the file at path (if present) and the
// process environment without touching the global state.
func Load(path string) (*Configuration, error) {
	c, err := NewAtPath(path)
	if err != nil {
		return nil, err
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, errors.Wrap(err, "config: failed to read configuration file")
		}
		log.WithField("path", path).Debug("no configuration file found, using defaults and environment")
	} else if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errors.Wrap(err, "config: failed to parse configuration file")
	}

	if err := ApplyEnvironment(c); err != nil {
		return nil, err
	}
	return c, nil
}

// ConfigureDirectories ensures that all the system directories exist on the
// system. These directories are created so that only the owner can read the data,
// and no other users.
//
// This function IS NOT thread-safe.
func ConfigureDirectories() error {
	dirs := []string{
		_config.System.RootDirectory,
		_config.System.TmpDirectory,
		_config.Modules.Directory,
	}
	if _config.Database.Dialect == "sqlite" {
		dirs = append(dirs, filepath.Dir(_config.Database.Path))
	}
	for _, dir := range dirs {
		log.WithField("path", dir).Debug("ensuring data directory exists")
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}

	// Installed module paths are compared against the storage root when assets
	// are served, so resolve any symlink up front.
	if d, err := filepath.EvalSymlinks(_config.Modules.Directory); err != nil {
		if !os.IsNotExist(err) {
			return err
		}
	} else if d != _config.Modules.Directory {
		_config.Modules.Directory = d
	}
	return nil
}

// EnsureJwtSecret makes sure a signing secret exists. Outside production a
// random secret is generated (sessions do not survive a restart); production
// refuses to boot without one.
func EnsureJwtSecret() error {
	mu.Lock()
	defer mu.Unlock()
	if _config.Auth.JwtSecret != "" {
		return nil
	}
	if _config.IsProduction() {
		return errors.New("config: auth.jwt_secret (SGO_JWT_SECRET) must be set in production")
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return errors.Wrap(err, "config: failed to generate jwt secret")
	}
	_config.Auth.JwtSecret = hex.EncodeToString(buf)
	_jwtAlgo = jwt.NewHS256([]byte(_config.Auth.JwtSecret))
	log.Warn("no jwt secret configured, generated an ephemeral one for this process")
	return nil
}

// Expand expands an input string by calling [os.ExpandEnv] to expand all
// environment variables, then checks if the value is prefixed with `file://`
// to support reading the value from a file.
//
// NOTE: the order of expanding environment variables first then checking if
// the value references a file is important. This behaviour allows a user to
// pass a value like `file://${CREDENTIALS_DIRECTORY}/token` to allow us to
// work with credentials loaded by systemd's `LoadCredential` options.
func Expand(v string) (string, error) {
	v = os.ExpandEnv(v)

	const filePrefix = "file://"
	if strings.HasPrefix(v, filePrefix) {
		p := v[len(filePrefix):]

		b, err := os.ReadFile(p)
		if err != nil {
			return "", errors.Wrapf(err, "config: failed to read %s", p)
		}
		v = string(bytes.TrimRight(bytes.TrimRight(b, "\r"), "\n"))
	}

	return v, nil
}
