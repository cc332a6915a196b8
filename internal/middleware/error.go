package middleware

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/authgate/authgate/internal/pkg/apperrors"
	"github.com/authgate/authgate/internal/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// errorEnvelope is the uniform shape every error response takes, whichever
// stage raised it.
type errorEnvelope struct {
	StatusCode int                 `json:"statusCode"`
	Timestamp  time.Time           `json:"timestamp"`
	Path       string              `json:"path"`
	Error      string              `json:"error"`
	Code       apperrors.ErrorType `json:"code"`
	Suggestion string              `json:"suggestion,omitempty"`
	Details    map[string]any      `json:"details,omitempty"`
	RequestID  string              `json:"requestId"`
	Detail     string              `json:"detail,omitempty"` // development only
}

// ErrorHandler classifies any error raised downstream into the standard
// envelope. Typed AppErrors pass through unchanged; raw errors are mapped
// by constraint-signature inspection; panics become SYSTEM_PANIC. In
// production mode internal detail is scrubbed from unclassified errors.
func ErrorHandler(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				appErr := apperrors.New(apperrors.ErrSystemPanic,
					"request processing panicked", fmt.Errorf("%v", rec))
				logger.Error("panic recovered",
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"panic", fmt.Sprintf("%v", rec),
					"stack", string(debug.Stack()))
				respond(c, appErr, production)
			}
		}()

		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		respond(c, apperrors.Classify(c.Errors.Last().Err), production)
	}
}

func respond(c *gin.Context, appErr *apperrors.AppError, production bool) {
	// The correlation header must survive even paths where the tagger
	// never ran.
	reqID := RequestID(c)
	if reqID == "" {
		reqID = uuid.New().String()
		c.Set(ContextRequestID, reqID)
		c.Header(HeaderRequestID, reqID)
	}

	reqLog := logger.WithRequestID(reqID)
	logFields := []any{
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"code", appErr.Type,
		"client_ip", c.ClientIP(),
	}
	if appErr.HTTPStatus >= 500 {
		reqLog.Error("Internal Server Error", append(logFields, "error", appErr.Error())...)
	} else {
		reqLog.Warn(appErr.Message, logFields...)
	}

	c.Set(ContextAppError, appErr)

	envelope := errorEnvelope{
		StatusCode: appErr.HTTPStatus,
		Timestamp:  time.Now().UTC(),
		Path:       c.Request.URL.Path,
		Error:      appErr.Message,
		Code:       appErr.Type,
		Suggestion: appErr.Suggestion,
		Details:    appErr.Details,
		RequestID:  reqID,
	}
	if appErr.HTTPStatus >= 500 {
		if production {
			envelope.Error = "internal server error"
		} else if appErr.Cause != nil {
			envelope.Detail = appErr.Cause.Error()
		}
	}

	if !c.Writer.Written() {
		c.JSON(appErr.HTTPStatus, envelope)
	}
	c.Abort()
}
