// Package httpserver exposes a dashboard session over REST, a websocket
// live feed and a Prometheus scrape endpoint.
package httpserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/tinytelemetry/vigil/internal/hub"
	"github.com/tinytelemetry/vigil/internal/model"
	"github.com/tinytelemetry/vigil/internal/severity"
)

// DefaultAddr is used when no listen address is configured.
const DefaultAddr = "0.0.0.0:3000"

// History is the archive contract behind the /api/history routes.
type History interface {
	RecentEntries(ctx context.Context, session string, filter severity.Filter, limit int) ([]model.LogEntry, error)
	SnapshotHistory(ctx context.Context, session string, limit int) ([]model.MetricsSnapshot, error)
	SeverityCounts(ctx context.Context, session string) ([]model.SeverityCount, error)
}

// Option customizes a Server.
type Option func(*Server)

// WithHistory enables the history routes.
func WithHistory(h History) Option { return func(s *Server) { s.history = h } }

// WithHub enables the /ws live feed.
func WithHub(h *hub.Hub) Option { return func(s *Server) { s.hub = h } }

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option { return func(s *Server) { s.metrics = h } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.logger = l } }

// WithClock sets the clock used for uptime and export file names.
func WithClock(c clockwork.Clock) Option { return func(s *Server) { s.clock = c } }

// WithSessionName sets the session name used for history lookups.
func WithSessionName(name string) Option { return func(s *Server) { s.session = name } }

// Server is the HTTP API for one dashboard session.
type Server struct {
	addr      string
	dash      model.Dashboard
	session   string
	history   History
	hub       *hub.Hub
	metrics   http.Handler
	logger    *zap.Logger
	clock     clockwork.Clock
	server    *http.Server
	listener  net.Listener
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates an HTTP API server for dash.
func NewServer(addr string, dash model.Dashboard, opts ...Option) *Server {
	if addr == "" {
		addr = DefaultAddr
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		addr:    addr,
		dash:    dash,
		session: "default",
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.clock == nil {
		s.clock = clockwork.NewRealClock()
	}
	s.startTime = s.clock.Now()
	return s
}

// Handler builds the route table.
func (s *Server) Handler() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)

	api.GET("/streams", s.handleStreams)
	api.POST("/streams/start-all", s.handleSetAll(true))
	api.POST("/streams/stop-all", s.handleSetAll(false))
	api.POST("/streams/:id/toggle", s.handleToggle)
	api.PUT("/streams/:id", s.handleSetStream)

	api.GET("/logs", s.handleLogs)
	api.DELETE("/logs", s.handleClearLogs)
	api.GET("/logs/export", s.handleExport)

	api.GET("/metrics", s.handleMetrics)

	api.GET("/mode", s.handleGetMode)
	api.PUT("/mode", s.handleSetMode)

	history := api.Group("/history", s.requireHistory)
	history.GET("/logs", s.handleHistoryLogs)
	history.GET("/metrics", s.handleHistoryMetrics)
	history.GET("/severity-counts", s.handleSeverityCounts)

	r.GET("/ws", s.handleWebSocket)
	if s.metrics != nil {
		r.GET("/metrics", gin.WrapH(s.metrics))
	}
	return r
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = listener
	s.startTime = s.clock.Now()

	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server stopped", zap.Error(err))
		}
	}()
	s.logger.Info("http api listening", zap.String("addr", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts the server down. Open websocket feeds end when
// their base context is cancelled.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("http request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
