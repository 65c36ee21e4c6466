package httpserver

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tinytelemetry/vigil/internal/model"
	"github.com/tinytelemetry/vigil/internal/registry"
	"github.com/tinytelemetry/vigil/internal/session"
	"github.com/tinytelemetry/vigil/internal/severity"
)

func abortError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// streamError maps registry failures onto status codes.
func streamError(c *gin.Context, err error) {
	if errors.Is(err, registry.ErrUnknownStream) {
		abortError(c, http.StatusNotFound, err)
		return
	}
	abortError(c, http.StatusInternalServerError, err)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"uptime":        s.clock.Since(s.startTime).String(),
		"activeStreams": s.dash.ActiveCount(),
		"logEntries":    len(s.dash.Entries(severity.FilterAll)),
		"mode":          s.dash.Mode(),
		"history":       s.history != nil,
	})
}

func (s *Server) streamsBody() gin.H {
	return gin.H{
		"streams":     s.dash.Streams(),
		"activeCount": s.dash.ActiveCount(),
	}
}

func (s *Server) handleStreams(c *gin.Context) {
	c.JSON(http.StatusOK, s.streamsBody())
}

func (s *Server) streamState(id string) model.StreamState {
	for _, st := range s.dash.Streams() {
		if st.ID == id {
			return st
		}
	}
	return model.StreamState{ID: id}
}

func (s *Server) handleToggle(c *gin.Context) {
	id := c.Param("id")
	if err := s.dash.Toggle(id); err != nil {
		streamError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.streamState(id))
}

func (s *Server) handleSetStream(c *gin.Context) {
	var req struct {
		Active *bool `json:"active" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing active field"})
		return
	}
	id := c.Param("id")
	if err := s.dash.SetStream(id, *req.Active); err != nil {
		streamError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.streamState(id))
}

func (s *Server) handleSetAll(active bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.dash.SetAll(active)
		c.JSON(http.StatusOK, s.streamsBody())
	}
}

func parseFilter(c *gin.Context) (severity.Filter, bool) {
	f, err := severity.ParseFilter(c.Query("severity"))
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return severity.Filter{}, false
	}
	return f, true
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return 0, false
	}
	return n, true
}

func (s *Server) handleLogs(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	entries := s.dash.Entries(filter)
	c.JSON(http.StatusOK, gin.H{
		"entries": entries,
		"count":   len(entries),
		"filter":  filter.String(),
	})
}

func (s *Server) handleClearLogs(c *gin.Context) {
	s.dash.ClearLog()
	c.Status(http.StatusNoContent)
}

// csvWriter is implemented by dashboards that can stream their export.
type csvWriter interface {
	WriteCSV(w io.Writer) error
}

func (s *Server) handleExport(c *gin.Context) {
	name := session.ExportFileName(s.clock.Now())
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	cw, ok := s.dash.(csvWriter)
	if !ok {
		c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(s.dash.ExportCSV()))
		return
	}
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)
	if err := cw.WriteCSV(c.Writer); err != nil {
		s.logger.Warn("csv export interrupted", zap.Error(err))
	}
}

func (s *Server) handleMetrics(c *gin.Context) {
	snap, ok := s.dash.Snapshot()
	if !ok {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"snapshot":         snap,
		"temperatureGauge": snap.TemperatureGauge(),
	})
}

func (s *Server) handleGetMode(c *gin.Context) {
	m := s.dash.Mode()
	c.JSON(http.StatusOK, gin.H{"mode": m, "title": m.Title(), "modes": model.Modes})
}

func (s *Server) handleSetMode(c *gin.Context) {
	var req struct {
		Mode string `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing mode field"})
		return
	}
	m, err := model.ParseMode(req.Mode)
	if err != nil {
		abortError(c, http.StatusBadRequest, err)
		return
	}
	s.dash.SetMode(m)
	c.JSON(http.StatusOK, gin.H{"mode": m, "title": m.Title()})
}

func (s *Server) requireHistory(c *gin.Context) {
	if s.history == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "archive disabled"})
		return
	}
	c.Next()
}

func (s *Server) handleHistoryLogs(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	entries, err := s.history.RecentEntries(c.Request.Context(), s.session, filter, limit)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

func (s *Server) handleHistoryMetrics(c *gin.Context) {
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	snaps, err := s.history.SnapshotHistory(c.Request.Context(), s.session, limit)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snaps, "count": len(snaps)})
}

func (s *Server) handleSeverityCounts(c *gin.Context) {
	counts, err := s.history.SeverityCounts(c.Request.Context(), s.session)
	if err != nil {
		abortError(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"counts": counts})
}
