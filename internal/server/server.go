// Package server exposes the contacts, AI, calendar and practice features
// as a JSON API under /api.
package server

import (
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/rememberme/rememberme/internal/auth"
	"github.com/rememberme/rememberme/internal/calendar"
	"github.com/rememberme/rememberme/internal/engine"
	"github.com/rememberme/rememberme/internal/metrics"
	"github.com/rememberme/rememberme/internal/store"
)

// Options configure a Server. DB, Engine and Verifier are required;
// Calendar may be nil when no calendar provider is configured.
type Options struct {
	DB       *store.DB
	Engine   *engine.Engine
	Calendar *calendar.Service
	Verifier auth.Verifier
	Metrics  *metrics.Metrics
	Logger   *zap.Logger

	Version        string
	CronSecret     string
	AllowedOrigins []string
	// AppURL is where the calendar callback sends the browser afterwards.
	AppURL string
}

// Server is the rememberme HTTP API server.
type Server struct {
	db       *store.DB
	engine   *engine.Engine
	calendar *calendar.Service
	verifier auth.Verifier
	metrics  *metrics.Metrics
	logger   *zap.Logger
	validate *validator.Validate

	version    string
	cronSecret string
	origins    []string
	appURL     string

	router  chi.Router
	started time.Time
	now     func() time.Time
	rng     func() *rand.Rand
}

// New creates a Server and builds its routes.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.New()
	}
	s := &Server{
		db:         opts.DB,
		engine:     opts.Engine,
		calendar:   opts.Calendar,
		verifier:   opts.Verifier,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
		validate:   newValidator(),
		version:    opts.Version,
		cronSecret: opts.CronSecret,
		origins:    opts.AllowedOrigins,
		appURL:     opts.AppURL,
		started:    time.Now(),
		now:        func() time.Time { return time.Now().UTC() },
		rng:        func() *rand.Rand { return rand.New(rand.NewSource(time.Now().UnixNano())) },
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
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
		r.Get("/calendar/{provider}/callback", s.handleCalendarCallback)

		r.Group(func(r chi.Router) {
			r.Use(auth.CronMiddleware(s.cronSecret, s.writeError))
			r.Post("/cron/weekly-rescue", s.handleCronRescue)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.verifier, s.writeError))

			r.Get("/me", s.handleMe)

			r.Route("/persons", func(r chi.Router) {
				r.Get("/", s.handleListPersons)
				r.Post("/", s.handleCreatePerson)
				r.Route("/{personID}", func(r chi.Router) {
					r.Get("/", s.handleGetPerson)
					r.Put("/", s.handleUpdatePerson)
					r.Delete("/", s.handleDeletePerson)
					r.Post("/archive", s.handleArchive(true))
					r.Post("/unarchive", s.handleArchive(false))

					r.Get("/interactions", s.handleListInteractions)
					r.Post("/interactions", s.handleLogInteraction)
					r.Get("/interests", s.handleListInterests)
					r.Post("/interests", s.handleAddInterest)
					r.Get("/memories", s.handleListMemories)
					r.Post("/memories", s.handleAddMemory)
					r.Post("/tags", s.handleAddPersonTag)
					r.Delete("/tags/{tagID}", s.handleRemovePersonTag)
					r.Get("/relationships", s.handleListRelationships)

					r.Post("/summary", s.handleSummarize)
					r.Post("/notes", s.handleExtractNote)
				})
			})

			r.Delete("/interactions/{id}", s.handleDeleteInteraction)
			r.Delete("/interests/{id}", s.handleDeleteInterest)
			r.Delete("/memories/{id}", s.handleDeleteMemory)

			r.Get("/tags", s.handleListTags)
			r.Post("/tags", s.handleCreateTag)
			r.Delete("/tags/{id}", s.handleDeleteTag)

			r.Post("/relationships", s.handleCreateRelationship)
			r.Delete("/relationships/{id}", s.handleDeleteRelationship)

			r.Get("/duplicates", s.handleDuplicates)
			r.Post("/duplicates/merge", s.handleMerge)

			r.Get("/dashboard", s.handleDashboard)
			r.Get("/garden", s.handleGarden)
			r.Get("/tree", s.handleTree)

			r.Get("/calendar/connections", s.handleListConnections)
			r.Get("/calendar/{provider}/connect", s.handleCalendarConnect)
			r.Delete("/calendar/{provider}", s.handleCalendarDisconnect)
			r.Post("/calendar/sync", s.handleCalendarSync)
			r.Get("/calendar/preferences", s.handleGetPreferences)
			r.Put("/calendar/preferences", s.handleSavePreferences)
			r.Get("/meetings", s.handleListMeetings)
			r.Post("/meetings/{id}/briefing", s.handleBriefing)

			r.Get("/practice/quiz", s.handleQuiz)
			r.Post("/practice/grade", s.handleGrade)
			r.Get("/practice/stats", s.handlePracticeStats)

			r.Get("/rescue", s.handleListRescue)
			r.Post("/rescue/{id}/dismiss", s.handleDismissRescue)
		})
	})

	s.router = r
}

// accessLog logs each request and records its metrics. The route label is
// the matched chi pattern so ids do not explode label cardinality.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		elapsed := time.Since(start)
		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		s.metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(elapsed.Seconds())

		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("remote", r.RemoteAddr))
	})
}

// breakerState is implemented by llm.Breaker.
type breakerState interface {
	State() string
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := s.db.PingContext(r.Context()) == nil

	code, status := http.StatusOK, "ok"
	if !dbOK {
		code, status = http.StatusServiceUnavailable, "degraded"
	}
	body := map[string]any{
		"status":   status,
		"version":  s.version,
		"uptime":   time.Since(s.started).Seconds(),
		"db":       dbOK,
		"ai":       s.engine != nil && s.engine.LLM != nil,
		"calendar": s.calendar != nil,
	}
	if s.engine != nil {
		if b, ok := s.engine.LLM.(breakerState); ok {
			body["ai_breaker"] = b.State()
		}
	}
	s.writeJSON(w, code, body)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, auth.UserFrom(r.Context()))
}
