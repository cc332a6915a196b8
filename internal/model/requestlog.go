package model

import "time"

// ErrorDetail captures the failure attached to an errored request log entry.
type ErrorDetail struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// RequestLogEntry is the log projection of one request. Created partial when
// the request starts, completed exactly once when it finishes. Retained in a
// capped in-memory index and appended to the daily on-disk partition.
type RequestLogEntry struct {
	CorrelationID string            `json:"correlation_id"`
	Method        string            `json:"method"`
	URL           string            `json:"url"`
	Headers       map[string]string `json:"headers"` // sanitized
	RequestBody   string            `json:"request_body,omitempty"`
	IP            string            `json:"ip"`
	UserAgent     string            `json:"user_agent"`
	ClientUUID    string            `json:"client_uuid,omitempty"`
	SubjectID     string            `json:"subject_id,omitempty"`

	Timestamp    time.Time    `json:"timestamp"`
	StatusCode   int          `json:"status_code"`
	DurationMs   int64        `json:"duration_ms"`
	Success      bool         `json:"success"`
	ResponseSize int          `json:"response_size,omitempty"`
	ResponseBody string       `json:"response_body,omitempty"`
	Error        *ErrorDetail `json:"error,omitempty"`

	// Completed guards the exactly-once contract between the normal
	// completion path and the fallback error logger.
	Completed bool `json:"-"`
}

// Outcome is what the pipeline knows once a request terminates.
type Outcome struct {
	StatusCode   int
	DurationMs   int64
	Success      bool
	ResponseSize int
	ResponseBody string
	ClientUUID   string
	SubjectID    string
	Error        *ErrorDetail
}

// RequestLogStats summarizes the in-memory index for the monitoring surface.
type RequestLogStats struct {
	Total         int     `json:"total"`
	SuccessCount  int     `json:"success_count"`
	ErrorCount    int     `json:"error_count"`
	Pending       int     `json:"pending"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
	Capacity      int     `json:"capacity"`
}
