package middleware

import (
	"net/http"
	"strings"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/priyxstudio/sgo/config"
	"github.com/priyxstudio/sgo/events"
	"github.com/priyxstudio/sgo/internal/models"
	"github.com/priyxstudio/sgo/metrics"
	"github.com/priyxstudio/sgo/modules"
	"github.com/priyxstudio/sgo/modules/discovery"
	"github.com/priyxstudio/sgo/ratelimit"
	"github.com/priyxstudio/sgo/router/tokens"
)

// Services holds everything a request handler may need. It is attached to
// every request by AttachServices.
type Services struct {
	DB        *gorm.DB
	Registry  *modules.Registry
	Installer *modules.Installer
	Config    *modules.ConfigStore
	Data      *modules.DataStore
	Discovery *discovery.Service
	Events    *events.Bus
	Throttle  *ratelimit.Service
}

// AttachRequestID attaches a unique ID to the incoming HTTP request so that any
// errors that are generated or returned to the client will include this reference
// allowing for an easier time identifying the specific request that failed for
// the user.
//
// If you are using a tool such as Sentry or Bugsnag for error reporting this is
// a great location to also attach this request ID to your error handling logic
// so that you can easily cross-reference the errors.
func AttachRequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.New().String()
		c.Set("request_id", id)
		c.Set("logger", log.WithField("request_id", id))
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

// CaptureErrors is global middleware that captures any error returned from a
// handler through CaptureAndAbort and writes the JSON response for it.
func CaptureErrors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		err := c.Errors.Last()
		if err == nil || err.Err == nil || c.Writer.Written() {
			return
		}
		NewError(err.Err).Abort(c)
	}
}

// SetAccessControlHeaders sets the CORS headers for the shell. An empty list
// of allowed origins accepts every origin.
func SetAccessControlHeaders() gin.HandlerFunc {
	origins := config.Get().AllowedOrigins
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, PUT, DELETE, OPTIONS")
		// Maximum age allowable under Chromium v76 is 2 hours, so just use that since
		// anything higher will be ignored (even if other browsers do allow higher values).
		//
		// @see https://github.com/chromium/chromium/blob/master/services/network/public/cpp/cors/preflight_result.cc#L39-L45
		c.Header("Access-Control-Max-Age", "7200")
		c.Header("Access-Control-Allow-Headers", "Accept, Accept-Encoding, Authorization, Cache-Control, Content-Type, Content-Length, Origin, X-Real-IP, X-CSRF-Token")

		o := c.GetHeader("Origin")
		switch {
		case o == "":
		case len(origins) == 0:
			c.Header("Access-Control-Allow-Origin", o)
		default:
			for _, origin := range origins {
				if origin == "*" || o == origin {
					c.Header("Access-Control-Allow-Origin", o)
					break
				}
			}
		}

		// Validate that the request is not an OPTIONS request, or if it is, just
		// abort it and send back a 204 response.
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// AttachServices attaches the service container to every request.
func AttachServices(s *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("services", s)
		c.Next()
	}
}

// RequireAuthorization authenticates the request using the session token in
// the Authorization header and attaches the user to the context.
func RequireAuthorization() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
		if len(auth) != 2 || !strings.EqualFold(auth[0], "Bearer") || strings.TrimSpace(auth[1]) == "" {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "The required authorization headers were not present in the request."})
			return
		}

		u, session, err := Authenticate(c, strings.TrimSpace(auth[1]))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "You are not authorized to access this endpoint."})
			return
		}
		c.Set("user", u)
		c.Set("session", session)
		c.Next()
	}
}

// Authenticate validates a session token and loads the active user it was
// issued to.
func Authenticate(c *gin.Context, token string) (*models.User, *tokens.SessionPayload, error) {
	session, err := tokens.ParseSessionToken(token)
	if err != nil {
		return nil, nil, err
	}
	var u models.User
	if err := ExtractServices(c).DB.WithContext(c.Request.Context()).First(&u, session.UserID).Error; err != nil {
		return nil, nil, errors.WithStack(err)
	}
	if !u.Active {
		return nil, nil, errors.New("middleware: user is disabled")
	}
	return &u, session, nil
}

// RequireRole only lets users with the given role through. It must be
// registered after RequireAuthorization.
func RequireRole(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		u := ExtractUser(c)
		if u == nil || u.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have permission to perform this action."})
			return
		}
		c.Next()
	}
}

// Throttle rejects clients that exceed the configured request rate.
func Throttle(s *ratelimit.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		metrics.ThrottledRequests.WithLabelValues(c.FullPath()).Inc()
		ExtractLogger(c).WithField("client_ip", c.ClientIP()).Warn("throttled request")
		c.Header("Retry-After", "60")
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests, please slow down."})
	}
}

// CaptureAndAbort aborts the request and attaches the provided error to the gin
// context, so it can be reported properly.
func CaptureAndAbort(c *gin.Context, err error) {
	c.Abort()
	_ = c.Error(errors.WithStackDepthIf(err, 1))
}

// ExtractLogger pulls the request logger out of the context, falling back to
// the global logger.
func ExtractLogger(c *gin.Context) *log.Entry {
	v, ok := c.Get("logger")
	if !ok {
		return log.WithField("request_id", c.GetString("request_id"))
	}
	return v.(*log.Entry)
}

// ExtractServices returns the attached service container.
func ExtractServices(c *gin.Context) *Services {
	v, ok := c.Get("services")
	if !ok {
		panic("middleware/middleware: cannot extract services: not present in context")
	}
	return v.(*Services)
}

// ExtractUser returns the authenticated user, or nil.
func ExtractUser(c *gin.Context) *models.User {
	v, ok := c.Get("user")
	if !ok {
		return nil
	}
	return v.(*models.User)
}
