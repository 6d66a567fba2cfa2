package router

import (
	"net/http"
	"time"

	"emperror.dev/errors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/priyxstudio/sgo/config"
	"github.com/priyxstudio/sgo/internal/models"
	"github.com/priyxstudio/sgo/router/middleware"
	"github.com/priyxstudio/sgo/router/tokens"
)

// postLogin exchanges an email and password for a session token.
// @Summary Sign in
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body router.LoginRequest true "Credentials"
// @Success 200 {object} router.LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Router /api/auth/login [post]
func postLogin(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.CaptureAndAbort(c, middleware.InvalidRequest(err))
		return
	}

	var u models.User
	err := middleware.ExtractServices(c).DB.WithContext(c.Request.Context()).
		Where("email = ?", models.NormalizeEmail(req.Email)).
		First(&u).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		middleware.CaptureAndAbort(c, err)
		return
	}
	if err != nil || !u.Active || !u.CheckPassword(req.Password) {
		middleware.ExtractLogger(c).WithField("email", models.NormalizeEmail(req.Email)).Info("failed login attempt")
		c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "The provided credentials are invalid."})
		return
	}

	ttl := time.Duration(config.Get().Auth.TokenExpiration) * time.Hour
	token, expires, err := tokens.NewSessionToken(&u, ttl)
	if err != nil {
		middleware.CaptureAndAbort(c, err)
		return
	}
	c.JSON(http.StatusOK, LoginResponse{Token: token, ExpiresAt: expires, User: &u})
}

// getMe returns the signed in user.
// @Summary Current user
// @Tags Auth
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} ErrorResponse
// @Security BearerToken
// @Router /api/auth/me [get]
func getMe(c *gin.Context) {
	c.JSON(http.StatusOK, middleware.ExtractUser(c))
}
