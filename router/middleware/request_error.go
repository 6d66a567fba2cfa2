package middleware

import (
	"io"
	"net/http"

	"emperror.dev/errors"
	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/priyxstudio/sgo/assets"
	"github.com/priyxstudio/sgo/modules"
)

// ErrInvalidRequest marks errors caused by a malformed request body or
// parameter.
const ErrInvalidRequest = errors.Sentinel("invalid request")

// InvalidRequest wraps err so that it is reported to the client with a 400.
func InvalidRequest(err error) error {
	if err == nil {
		return ErrInvalidRequest
	}
	return errors.WrapIff(ErrInvalidRequest, "%s", err)
}

// RequestError is a custom error type returned when something goes wrong with
// any of the HTTP endpoints.
type RequestError struct {
	err    error
	status int
	msg    string
}

// NewError returns a new RequestError for the provided error. The status and
// message shown to the client are derived from the error type.
func NewError(err error) *RequestError {
	re := &RequestError{
		// Make sure we capture the stack trace at the point this error is created.
		err:    errors.WithStackDepthIf(err, 1),
		status: http.StatusInternalServerError,
		msg:    "An unexpected error was encountered while processing this request",
	}
	re.classify()
	return re
}

// SetMessage overrides the message sent to the client.
func (re *RequestError) SetMessage(msg string) {
	re.msg = msg
}

// SetStatus overrides the HTTP status code.
func (re *RequestError) SetStatus(s int) {
	re.status = s
}

// Cause returns the underlying error.
func (re *RequestError) Cause() error {
	return re.err
}

func (re *RequestError) Error() string {
	return re.err.Error()
}

func (re *RequestError) classify() {
	var verr *modules.ValidationError
	var merr *modules.MigrationError
	switch {
	case errors.As(re.err, &verr):
		re.status, re.msg = http.StatusBadRequest, verr.Error()
	case errors.As(re.err, &merr):
		re.status, re.msg = http.StatusBadRequest, merr.Error()
	case errors.Is(re.err, modules.ErrModuleNotFound),
		errors.Is(re.err, modules.ErrNotFound),
		errors.Is(re.err, gorm.ErrRecordNotFound):
		re.status, re.msg = http.StatusNotFound, rootMessage(re.err)
	case errors.Is(re.err, modules.ErrDuplicateEntity):
		re.status, re.msg = http.StatusConflict, rootMessage(re.err)
	case modules.IsClientError(re.err), assets.IsAssetPathError(re.err), errors.Is(re.err, ErrInvalidRequest):
		re.status, re.msg = http.StatusBadRequest, re.err.Error()
	case errors.Is(re.err, io.EOF):
		re.status, re.msg = http.StatusBadRequest, "The data passed in the request was not in a parsable format. Please try again."
	}
}

// Abort aborts the given HTTP request with the computed status code and
// logs the error when it was not caused by the client.
func (re *RequestError) Abort(c *gin.Context) {
	reqId := c.Writer.Header().Get("X-Request-Id")

	if re.status >= http.StatusInternalServerError {
		ExtractLogger(c).WithField("error", re.err).Error("unexpected error while handling HTTP request")
	} else {
		ExtractLogger(c).WithFields(log.Fields{"status": re.status, "error": re.err}).Debug("rejected HTTP request")
	}

	body := gin.H{"error": re.msg, "request_id": reqId}
	var verr *modules.ValidationError
	if errors.As(re.err, &verr) {
		body["fields"] = verr.Fields
	}
	c.AbortWithStatusJSON(re.status, body)
}

// rootMessage returns the text of the innermost error in the chain.
func rootMessage(err error) string {
	return errors.Cause(err).Error()
}
