package tokens

import (
	"time"

	"emperror.dev/errors"
	"github.com/gbrlsnchs/jwt/v3"

	"github.com/priyxstudio/sgo/config"
)

// TokenData is implemented by every token payload this package issues.
type TokenData interface {
	GetPayload() *jwt.Payload
}

// ParseToken validates the signature and expiration of token and decodes it
// into data.
func ParseToken(token []byte, data TokenData) error {
	verifyOptions := jwt.ValidatePayload(
		data.GetPayload(),
		jwt.ExpirationTimeValidator(time.Now()),
	)

	_, err := jwt.Verify(token, config.GetJwtAlgorithm(), &data, verifyOptions)
	return errors.WithStackIf(err)
}
