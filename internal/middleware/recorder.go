package middleware

import (
	"bytes"
	"io"
	"time"

	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/pkg/apperrors"
	"github.com/authgate/authgate/internal/service"
	"github.com/gin-gonic/gin"
)

// noisePaths are browser/dev-tool probes whose 404s get a response but no
// log entry.
var noisePaths = map[string]struct{}{
	"/favicon.ico": {},
	"/robots.txt":  {},
	"/.well-known/appspecific/com.chrome.devtools.json": {},
}

// bodyLogWriter wraps the ResponseWriter to capture the response body.
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// RequestRecorder begins a log entry before the handler runs and completes
// it exactly once afterwards, whichever pipeline stage terminated the
// request. Must run after CorrelationID and outside the error handler.
func RequestRecorder(recorder *service.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := RequestID(c)
		start, _ := c.Get(ContextStartTime)
		startTime, ok := start.(time.Time)
		if !ok {
			startTime = time.Now()
		}

		// Read the request body and put it back for binding downstream.
		var reqBodyBytes []byte
		if c.Request.Body != nil {
			reqBodyBytes, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(reqBodyBytes))
		}

		entry := &model.RequestLogEntry{
			CorrelationID: reqID,
			Method:        c.Request.Method,
			URL:           c.Request.URL.RequestURI(),
			Headers:       service.SanitizeHeaders(c.Request.Header),
			RequestBody:   service.RedactBody(reqBodyBytes),
			IP:            c.ClientIP(),
			UserAgent:     c.Request.UserAgent(),
			Timestamp:     startTime,
		}
		recorder.Begin(entry)

		blw := &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
		c.Writer = blw

		c.Next()

		status := c.Writer.Status()
		if status == 404 {
			if _, noisy := noisePaths[c.Request.URL.Path]; noisy {
				recorder.Forget(reqID)
				return
			}
		}

		outcome := model.Outcome{
			StatusCode:   status,
			DurationMs:   time.Since(startTime).Milliseconds(),
			Success:      status < 400,
			ResponseSize: blw.body.Len(),
			ResponseBody: blw.body.String(),
		}

		if identity, ok := Identity(c); ok {
			outcome.SubjectID = identity.SubjectID
		}
		if client, ok := Client(c); ok {
			outcome.ClientUUID = client.ClientUUID
		}
		if val, exists := c.Get(ContextAppError); exists {
			if appErr, ok := val.(*apperrors.AppError); ok {
				outcome.Error = &model.ErrorDetail{
					Name:    string(appErr.Type),
					Message: appErr.Message,
				}
			}
		}

		recorder.Complete(reqID, outcome)
	}
}
