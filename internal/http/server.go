// Package http exposes the budgeting core as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"kobo/internal/aggregate"
	"kobo/internal/cache"
	"kobo/internal/gateway"
	klog "kobo/internal/log"
	"kobo/internal/middleware/ratelimit"
	"kobo/internal/middleware/security"
	"kobo/internal/middleware/trace"
	"kobo/internal/session"
)

// HeaderAccountID carries the caller's account on every /api request.
const HeaderAccountID = "X-Account-ID"

// Deps are the services the handlers call into. Monitor and Ready are
// optional.
type Deps struct {
	Gateway   *gateway.Gateway
	Navigator *gateway.Navigator
	Settings  *session.SettingsService
	Gate      *session.Gate
	Monitor   *session.Monitor
	Logger    *slog.Logger
	// Ready reports whether the backing store answers.
	Ready func(context.Context) error
	Now   func() time.Time
}

type Options struct {
	CacheSize            int
	CacheTTL             time.Duration
	RequestsPerMinute    int
	PINAttemptsPerMinute int
	AllowedOrigins       []string
	TrustedProxies       []string
}

func DefaultOptions() Options {
	return Options{
		CacheSize:            200,
		CacheTTL:             5 * time.Minute,
		RequestsPerMinute:    120,
		PINAttemptsPerMinute: 5,
		AllowedOrigins:       []string{"*"},
	}
}

type Server struct {
	http.Server

	gw        *gateway.Gateway
	nav       *gateway.Navigator
	settings  *session.SettingsService
	gate      *session.Gate
	monitor   *session.Monitor
	logger    *slog.Logger
	ready     func(context.Context) error
	now       func() time.Time
	detector  *security.Detector
	limiter   *ratelimit.Limiter
	pinLimits *ratelimit.Limiter
	tracer    *trace.Middleware

	// Encoded analytics responses keyed by account, data version, endpoint
	// and query.
	analytics *cache.LRUCache[[]byte]
	caches    *cache.Manager

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Deps, opts Options) *Server {
	def := DefaultOptions()
	if opts.CacheSize <= 0 {
		opts.CacheSize = def.CacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = def.CacheTTL
	}
	if opts.PINAttemptsPerMinute <= 0 {
		opts.PINAttemptsPerMinute = def.PINAttemptsPerMinute
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = def.AllowedOrigins
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	s := &Server{
		gw:        deps.Gateway,
		nav:       deps.Navigator,
		settings:  deps.Settings,
		gate:      deps.Gate,
		monitor:   deps.Monitor,
		logger:    deps.Logger.With(klog.FieldComponent, klog.ComponentHTTP),
		ready:     deps.Ready,
		now:       deps.Now,
		detector:  security.NewDetector(),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RequestsPerMinute}),
		pinLimits: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.PINAttemptsPerMinute}),
		analytics: cache.NewLRUCache[[]byte](opts.CacheSize, opts.CacheTTL),
		caches:    cache.NewManager(deps.Logger),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", "cidr", cidr, "error", err)
		}
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, deps.Logger)
	s.caches.Register(s.analytics)
	s.caches.StartCleanup(10 * time.Minute)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(opts),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(opts Options) http.Handler {
	reqLogger := klog.New(klog.Config{Handler: s.logger.Handler()})

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(s.tracer.Middleware)
	r.Use(klog.Middleware(reqLogger, trace.GetRequestID))
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.detector.Middleware(s.logger))
	r.Use(s.limiter.Middleware(s.detector.ExtractClientIP, s.rateLimited))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Content-Type", HeaderAccountID, trace.HeaderRequestID},
		ExposedHeaders:   []string{trace.HeaderRequestID, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, codeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	})

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(api chi.Router) {
		api.Get("/period", s.handlePeriod)

		api.Group(func(acct chi.Router) {
			acct.Use(requireAccount)

			acct.Get("/settings", s.handleGetSettings)
			acct.With(s.pinLimit).Put("/settings/pin", s.handleSetPIN)

			acct.Get("/session", s.handleSession)
			acct.With(s.pinLimit).Post("/session/verify", s.handleVerify)

			acct.Group(func(data chi.Router) {
				data.Use(s.requireUnlocked)

				data.Put("/settings/duration", s.handleSetDuration)
				data.Put("/settings/pin-enabled", s.handleSetPINEnabled)
				data.Post("/settings/onboarding", s.handleOnboarding)

				data.Get("/snapshot", s.handleSnapshot)

				data.Get("/view", s.handleView)
				data.Post("/view/current", s.handleViewCurrent)
				data.Post("/view/next", s.handleViewNext)
				data.Post("/view/previous", s.handleViewPrevious)

				data.Get("/transactions", s.handleListTransactions)
				data.Post("/transactions", s.handleCreateTransaction)
				data.Get("/transactions/{id}", s.handleGetTransaction)

				data.Put("/categories", s.handleUpsertCategory)
				data.Delete("/categories/{id}", s.handleDeleteCategory)

				data.Put("/budgets/overrides", s.handleSetOverride)

				data.Put("/investments", s.handleUpsertInvestment)
				data.Delete("/investments/{id}", s.handleDeleteInvestment)

				data.Route("/analytics", func(an chi.Router) {
					an.Get("/summary", s.handleAnalytics(aggregate.ReportSummary))
					an.Get("/breakdown", s.handleAnalytics(aggregate.ReportBreakdown))
					an.Get("/trend", s.handleAnalytics(aggregate.ReportTrend))
					an.Get("/comparison", s.handleAnalytics(aggregate.ReportComparison))
					an.Get("/series", s.handleAnalytics(aggregate.ReportSeries))
				})
			})
		})
	})

	return r
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		klog.FieldClientIP, s.detector.ExtractClientIP(r),
		klog.FieldMethod, r.Method,
		klog.FieldPath, r.URL.Path)
	writeError(w, r, http.StatusTooManyRequests, codeRateLimited, "rate limit exceeded, try again later")
}

// pinLimit throttles PIN attempts per client address and account.
func (s *Server) pinLimit(next http.Handler) http.Handler {
	return s.pinLimits.Middleware(s.pinKey, s.rateLimited)(next)
}

func (s *Server) pinKey(r *http.Request) string {
	return s.detector.ExtractClientIP(r) + "|" + r.Header.Get(HeaderAccountID)
}

// Shutdown stops background cleanup, then drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		s.pinLimits.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", klog.FieldError, err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
