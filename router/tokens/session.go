package tokens

import (
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/gbrlsnchs/jwt/v3"
	"github.com/google/uuid"

	"github.com/priyxstudio/sgo/config"
	"github.com/priyxstudio/sgo/internal/models"
)

const issuer = "sgo"

// SessionPayload is carried by the bearer token the shell sends with every
// API request.
type SessionPayload struct {
	jwt.Payload

	UserID uint            `json:"user_id"`
	Role   models.UserRole `json:"role"`
}

// GetPayload returns the JWT payload.
func (p *SessionPayload) GetPayload() *jwt.Payload {
	return &p.Payload
}

// IsAdmin reports whether the token was issued to an administrator.
func (p *SessionPayload) IsAdmin() bool {
	return p.Role == models.UserRoleAdmin
}

// NewSessionToken signs a session token for u that expires after ttl.
func NewSessionToken(u *models.User, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(ttl)
	p := SessionPayload{
		Payload: jwt.Payload{
			Issuer:         issuer,
			Subject:        strconv.FormatUint(uint64(u.ID), 10),
			IssuedAt:       jwt.NumericDate(now),
			ExpirationTime: jwt.NumericDate(expires),
			JWTID:          uuid.NewString(),
		},
		UserID: u.ID,
		Role:   u.Role,
	}
	b, err := jwt.Sign(p, config.GetJwtAlgorithm())
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "tokens: failed to sign session token")
	}
	return string(b), expires, nil
}

// ParseSessionToken validates token and returns its payload.
func ParseSessionToken(token string) (*SessionPayload, error) {
	var p SessionPayload
	if err := ParseToken([]byte(token), &p); err != nil {
		return nil, err
	}
	if p.UserID == 0 {
		return nil, errors.New("tokens: session token has no user")
	}
	return &p, nil
}
