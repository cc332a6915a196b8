package service

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/authgate/authgate/internal/config"
	"github.com/authgate/authgate/internal/model"
	"github.com/authgate/authgate/internal/pkg/logger"
	"github.com/authgate/authgate/internal/pkg/metrics"
)

var csvHeader = []string{
	"correlation_id", "timestamp", "method", "url", "status", "duration_ms",
	"ip", "user_agent", "request_body", "response_body", "error",
}

// Recorder keeps the capped in-memory request log index and mirrors
// completed entries to daily-rotated CSV partitions (success vs errors).
// Constructed once at process start and injected where needed.
type Recorder struct {
	mu       sync.Mutex
	entries  map[string]*model.RequestLogEntry
	order    []string // insertion order == timestamp order; head is oldest
	capacity int
	policy   config.RequestLogConfig

	successFile *partitionFile
	errorFile   *partitionFile
}

// partitionFile is one outcome partition's current day file.
type partitionFile struct {
	dir  string
	date string
	file *os.File
	csvw *csv.Writer
}

func NewRecorder(cfg config.RequestLogConfig) (*Recorder, error) {
	if cfg.Capacity <= 0 {
		cfg.Capacity = 5000
	}
	successDir := filepath.Join(cfg.Dir, "success")
	errorDir := filepath.Join(cfg.Dir, "errors")
	for _, dir := range []string{successDir, errorDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir %s: %w", dir, err)
		}
	}

	return &Recorder{
		entries:     make(map[string]*model.RequestLogEntry),
		order:       make([]string, 0, cfg.Capacity),
		capacity:    cfg.Capacity,
		policy:      cfg,
		successFile: &partitionFile{dir: successDir},
		errorFile:   &partitionFile{dir: errorDir},
	}, nil
}

// Begin stores a partial entry keyed by correlation ID, evicting the oldest
// entries once capacity is exceeded. Header and body payloads are redacted
// before they ever reach the index.
func (r *Recorder) Begin(entry *model.RequestLogEntry) {
	if entry == nil || entry.CorrelationID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[entry.CorrelationID]; !exists {
		r.order = append(r.order, entry.CorrelationID)
	}
	r.entries[entry.CorrelationID] = entry

	for len(r.order) > r.capacity {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.entries, oldest)
		metrics.LogEvictions.Inc()
	}
}

// Complete merges the outcome into the partial entry exactly once and
// appends it to the on-disk partition. A missing partial or a repeated
// completion is logged and dropped, never an error.
func (r *Recorder) Complete(correlationID string, outcome model.Outcome) {
	r.mu.Lock()
	entry, ok := r.entries[correlationID]
	if !ok {
		r.mu.Unlock()
		logger.Warn("request log completion without begin, dropping",
			"correlation_id", correlationID)
		return
	}
	if entry.Completed {
		r.mu.Unlock()
		logger.Warn("duplicate request log completion, dropping",
			"correlation_id", correlationID)
		return
	}

	entry.StatusCode = outcome.StatusCode
	entry.DurationMs = outcome.DurationMs
	entry.Success = outcome.Success
	entry.ResponseSize = outcome.ResponseSize
	entry.ClientUUID = outcome.ClientUUID
	entry.SubjectID = outcome.SubjectID
	entry.Error = outcome.Error
	entry.ResponseBody = RedactBody([]byte(outcome.ResponseBody))
	entry.Completed = true

	// Body capture policy: (success|error) x (request|response).
	if entry.Success {
		if !r.policy.SaveSuccessRequest {
			entry.RequestBody = ""
		}
		if !r.policy.SaveSuccessResponse {
			entry.ResponseBody = ""
		}
	} else {
		if !r.policy.SaveErrorRequest {
			entry.RequestBody = ""
		}
		if !r.policy.SaveErrorResponse {
			entry.ResponseBody = ""
		}
	}

	snapshot := *entry
	r.mu.Unlock()

	r.persist(&snapshot)
}

// Forget removes a partial entry without completing it. Used by the noise
// denylist so browser probes do not pollute the index.
func (r *Recorder) Forget(correlationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[correlationID]; !ok {
		return
	}
	delete(r.entries, correlationID)
	for i, id := range r.order {
		if id == correlationID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// persist appends one row to the day file of the matching partition.
// A failed write is logged and dropped; it must never fail the request
// and must never throw (recursive-failure guard).
func (r *Recorder) persist(entry *model.RequestLogEntry) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Warn("request log persistence panicked", "panic", rec)
		}
	}()

	part := r.errorFile
	if entry.Success {
		part = r.successFile
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := part.rotate(time.Now()); err != nil {
		logger.Warn("request log rotation failed", "error", err)
		return
	}

	errText := ""
	if entry.Error != nil {
		errText = entry.Error.Name + ": " + entry.Error.Message
	}
	row := []string{
		entry.CorrelationID,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
		entry.Method,
		entry.URL,
		strconv.Itoa(entry.StatusCode),
		strconv.FormatInt(entry.DurationMs, 10),
		entry.IP,
		entry.UserAgent,
		entry.RequestBody,
		entry.ResponseBody,
		errText,
	}
	if err := part.csvw.Write(row); err != nil {
		logger.Warn("request log write failed", "error", err)
		return
	}
	part.csvw.Flush()
	if err := part.csvw.Error(); err != nil {
		logger.Warn("request log flush failed", "error", err)
	}
}

// rotate opens the partition file for today, writing the header row on
// creation. Called under the recorder lock.
func (p *partitionFile) rotate(now time.Time) error {
	date := now.Format("2006-01-02")
	if p.file != nil && p.date == date {
		return nil
	}
	if p.file != nil {
		p.csvw.Flush()
		_ = p.file.Close()
	}

	name := filepath.Join(p.dir, "requests-"+date+".csv")
	_, statErr := os.Stat(name)
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	p.file = f
	p.csvw = csv.NewWriter(f)
	p.date = date
	if os.IsNotExist(statErr) {
		if err := p.csvw.Write(csvHeader); err != nil {
			return err
		}
		p.csvw.Flush()
	}
	return nil
}

// Get returns one entry by correlation ID.
func (r *Recorder) Get(correlationID string) (*model.RequestLogEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[correlationID]
	if !ok {
		return nil, false
	}
	snapshot := *entry
	return &snapshot, true
}

// List returns the most recent entries, newest first.
func (r *Recorder) List(limit int) []*model.RequestLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit <= 0 || limit > len(r.order) {
		limit = len(r.order)
	}
	out := make([]*model.RequestLogEntry, 0, limit)
	for i := len(r.order) - 1; i >= 0 && len(out) < limit; i-- {
		if entry, ok := r.entries[r.order[i]]; ok {
			snapshot := *entry
			out = append(out, &snapshot)
		}
	}
	return out
}

// Search matches entries whose correlation ID contains the fragment.
func (r *Recorder) Search(fragment string) []*model.RequestLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*model.RequestLogEntry, 0)
	for i := len(r.order) - 1; i >= 0; i-- {
		id := r.order[i]
		if !strings.Contains(id, fragment) {
			continue
		}
		if entry, ok := r.entries[id]; ok {
			snapshot := *entry
			out = append(out, &snapshot)
		}
	}
	return out
}

// Stats summarizes the index for /monitoring/stats.
func (r *Recorder) Stats() model.RequestLogStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := model.RequestLogStats{Capacity: r.capacity}
	var totalMs int64
	var completed int
	for _, entry := range r.entries {
		stats.Total++
		if !entry.Completed {
			stats.Pending++
			continue
		}
		completed++
		totalMs += entry.DurationMs
		if entry.Success {
			stats.SuccessCount++
		} else {
			stats.ErrorCount++
		}
	}
	if completed > 0 {
		stats.AvgDurationMs = float64(totalMs) / float64(completed)
	}
	return stats
}

// Clear drops the in-memory index. On-disk partitions are never cleared.
func (r *Recorder) Clear() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.entries)
	r.entries = make(map[string]*model.RequestLogEntry)
	r.order = r.order[:0]
	return n
}

// Size returns the current index size.
func (r *Recorder) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// CSVFileInfo describes one on-disk log file for /monitoring/csv/info.
type CSVFileInfo struct {
	Name      string    `json:"name"`
	Partition string    `json:"partition"`
	SizeBytes int64     `json:"size_bytes"`
	ModTime   time.Time `json:"mod_time"`
}

func (r *Recorder) CSVInfo() []CSVFileInfo {
	out := make([]CSVFileInfo, 0)
	for _, part := range []struct {
		dir  string
		name string
	}{
		{r.successFile.dir, "success"},
		{r.errorFile.dir, "errors"},
	} {
		files, err := os.ReadDir(part.dir)
		if err != nil {
			continue
		}
		for _, f := range files {
			info, err := f.Info()
			if err != nil {
				continue
			}
			out = append(out, CSVFileInfo{
				Name:      f.Name(),
				Partition: part.name,
				SizeBytes: info.Size(),
				ModTime:   info.ModTime(),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModTime.After(out[j].ModTime) })
	return out
}

// Close flushes and closes the partition files.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, part := range []*partitionFile{r.successFile, r.errorFile} {
		if part.file != nil {
			part.csvw.Flush()
			_ = part.file.Close()
			part.file = nil
		}
	}
}
