package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestWithRequestIDAddsAttr(t *testing.T) {
	var buf bytes.Buffer
	old := globalLogger
	globalLogger = slog.New(slog.NewJSONHandler(&buf, nil))
	defer func() { globalLogger = old }()

	WithRequestID("req-42").Warn("access denied", "code", "INVALID_TOKEN")

	out := buf.String()
	if !strings.Contains(out, `"request_id":"req-42"`) {
		t.Fatalf("request_id attr missing: %s", out)
	}
	if !strings.Contains(out, `"code":"INVALID_TOKEN"`) {
		t.Fatalf("call-site attrs lost: %s", out)
	}
}
