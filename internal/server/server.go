package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lazypower/waypoint/internal/metrics"
	"github.com/lazypower/waypoint/internal/session"
	"github.com/lazypower/waypoint/internal/store"
)

// Deps are the services the API is served from.
type Deps struct {
	DB      *store.DB
	Session *session.Session
	Logger  *zap.Logger
	Metrics *metrics.Collector
	Version string
}

// Server is the waypoint HTTP API server.
type Server struct {
	db       *store.DB
	sess     *session.Session
	log      *zap.Logger
	metrics  *metrics.Collector
	validate *validator.Validate
	upgrader websocket.Upgrader
	router   chi.Router
	version  string
	started  time.Time
}

// New creates a Server over the given services.
func New(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		db:       d.DB,
		sess:     d.Session,
		log:      logger.Named("http"),
		metrics:  d.Metrics,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The API binds to loopback by default; pose producers are local.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		version: d.Version,
		started: time.Now(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(s.instrument)

	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/users", s.handleCreateUser)
		r.Get("/users", s.handleListUsers)

		r.Get("/session", s.handleSessionStatus)
		r.Post("/session/login", s.handleLogin)
		r.Post("/session/logout", s.handleLogout)
		r.Post("/session/reset", s.handleResetTracking)

		r.Post("/pose", s.handlePose)
		r.Get("/pose/stream", s.handlePoseStream)

		r.Get("/memories", s.handleListMemories)
		r.Post("/memories", s.handlePlaceMemory)
		r.Delete("/memories", s.handleClearMemories)
		r.Get("/memories/nearby", s.handleNearby)
		r.Get("/memories/{id}", s.handleGetMemory)
		r.Delete("/memories/{id}", s.handleDeleteMemory)

		r.Post("/tap", s.handleTap)
		r.Get("/scene", s.handleScene)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.db.PingContext(r.Context()); err != nil {
		dbOK = false
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"db":      dbOK,
		"db_path": s.db.Path,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		writeError(w, http.StatusNotFound, "metrics disabled")
		return
	}
	s.metrics.Handler().ServeHTTP(w, r)
}

// instrument records every request in the log and in the request metrics,
// labeled by route pattern rather than raw path.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		d := time.Since(start)
		s.metrics.HTTPRequest(r.Method, route, status, d)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", d),
			zap.String("remote", r.RemoteAddr))
	})
}
