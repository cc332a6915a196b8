package handler

import (
	"net/http"
	"runtime"
	"strconv"

	"github.com/authgate/authgate/internal/pkg/apperrors"
	"github.com/authgate/authgate/internal/service"
	"github.com/gin-gonic/gin"
)

// MonitoringHandler exposes operator endpoints over the request recorder's
// in-memory index. All routes require admin.
type MonitoringHandler struct {
	recorder *service.Recorder
}

func NewMonitoringHandler(recorder *service.Recorder) *MonitoringHandler {
	return &MonitoringHandler{recorder: recorder}
}

func (h *MonitoringHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.recorder.Stats())
}

func (h *MonitoringHandler) Memory(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	c.JSON(http.StatusOK, gin.H{
		"alloc_bytes":       m.Alloc,
		"total_alloc_bytes": m.TotalAlloc,
		"sys_bytes":         m.Sys,
		"heap_objects":      m.HeapObjects,
		"num_gc":            m.NumGC,
		"goroutines":        runtime.NumGoroutine(),
		"log_index_size":    h.recorder.Size(),
	})
}

func (h *MonitoringHandler) Requests(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil {
			limit = parsed
		}
	}
	c.JSON(http.StatusOK, h.recorder.List(limit))
}

func (h *MonitoringHandler) Request(c *gin.Context) {
	id := c.Param("id")
	entry, ok := h.recorder.Get(id)
	if !ok {
		_ = c.Error(apperrors.New(apperrors.ErrNotFound, "no request log entry for id", nil))
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *MonitoringHandler) Search(c *gin.Context) {
	c.JSON(http.StatusOK, h.recorder.Search(c.Param("id")))
}

func (h *MonitoringHandler) Clear(c *gin.Context) {
	cleared := h.recorder.Clear()
	c.JSON(http.StatusOK, gin.H{"cleared": cleared})
}

func (h *MonitoringHandler) CSVInfo(c *gin.Context) {
	c.JSON(http.StatusOK, h.recorder.CSVInfo())
}
