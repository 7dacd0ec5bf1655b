package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"welth/internal/auth"
	"welth/internal/log"
	"welth/internal/middleware/ratelimit"
	"welth/internal/middleware/security"
	"welth/internal/middleware/trace"
	"welth/internal/receipt"
	"welth/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Services groups the application services the handlers call.
type Services struct {
	Users        *services.UserService
	Accounts     *services.AccountService
	Transactions *services.TransactionService
	Budgets      *services.BudgetService
	Dashboard    *services.Dashboard
	// Scanner is optional; without it /transaction/scan answers 503.
	Scanner receipt.Scanner
}

type Options struct {
	SignInURL          string
	RateLimitPerMinute int
	Logger             *log.Logger
	Store              Pinger
	// TrustedProxies are CIDRs whose forwarding and identity headers are
	// honored in addition to the loopback and private defaults.
	TrustedProxies []string
}

type Server struct {
	http.Server
	svc    Services
	store  Pinger
	logger *log.Logger

	securityDetector *security.Detector
	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime              time.Time
	transactionsCreated atomic.Int64
	transactionsDeleted atomic.Int64
	receiptsScanned     atomic.Int64
	receiptScanFailures atomic.Int64
}

// NewServer wires routes and the request perimeter, returning a ready-to-run
// server.
func NewServer(addr string, svc Services, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDiscard()
	}

	limitCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		limitCfg.Limit = opts.RateLimitPerMinute
	}

	detector := security.NewDetector()
	for _, cidr := range opts.TrustedProxies {
		if err := detector.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, log.FieldError, err)
		}
	}
	s := &Server{
		svc:              svc,
		store:            opts.Store,
		logger:           logger.WithComponent(log.ComponentHTTP),
		securityDetector: detector,
		rateLimiter:      ratelimit.NewLimiter(limitCfg),
		traceMiddleware:  trace.NewMiddleware(logger, detector.ExtractClientIP),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}

	api := http.NewServeMux()
	s.routes(api)

	perimeter := chain(api,
		security.Headers(security.DefaultHeadersConfig()),
		detector.Middleware,
		s.rateLimiter.Middleware(detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
			s.logger.WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, detector.ExtractClientIP(r),
				log.FieldPath, r.URL.Path)
			ErrorResponse(http.StatusTooManyRequests, msgRateLimited).Write(w)
		}),
		auth.NewMiddleware(svc.Users, opts.SignInURL, detector.FromTrustedProxy).Handler,
	)

	// Health checks skip the perimeter so the orchestrator is never
	// blocked or throttled.
	root := http.NewServeMux()
	root.HandleFunc("GET /healthz", s.handleHealth)
	root.HandleFunc("GET /readyz", s.handleReady)
	root.Handle("/", perimeter)

	s.Server = http.Server{
		Addr: addr,
		Handler: chain(root,
			s.traceMiddleware.Middleware,
			log.Middleware(logger),
			log.RequestIDMiddleware(trace.FromRequest),
		),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	budget := log.ComponentMiddleware(log.ComponentBudget)
	account := log.ComponentMiddleware(log.ComponentAccount)
	transaction := log.ComponentMiddleware(log.ComponentTransaction)
	scan := log.ComponentMiddleware(log.ComponentReceipt)

	mux.Handle("GET /dashboard", budget(s.withUser(s.handleDashboard)))

	mux.Handle("GET /account", account(s.withUser(s.handleListAccounts)))
	mux.Handle("POST /account", account(s.withUser(s.handleCreateAccount)))
	mux.Handle("GET /account/{id}", account(s.withUser(s.handleGetAccount)))
	mux.Handle("POST /account/{id}/default", account(s.withUser(s.handleSetDefaultAccount)))

	mux.Handle("GET /transaction", transaction(s.withUser(s.handleListTransactions)))
	mux.Handle("POST /transaction", transaction(s.withUser(s.handleCreateTransaction)))
	mux.Handle("POST /transaction/bulk-delete", transaction(s.withUser(s.handleBulkDeleteTransactions)))
	mux.Handle("POST /transaction/scan", scan(s.withUser(s.handleScanReceipt)))
	mux.Handle("GET /transaction/{id}", transaction(s.withUser(s.handleGetTransaction)))
	mux.Handle("PUT /transaction/{id}", transaction(s.withUser(s.handleUpdateTransaction)))
	mux.Handle("DELETE /transaction/{id}", transaction(s.withUser(s.handleDeleteTransaction)))

	mux.Handle("GET /budget", budget(s.withUser(s.handleGetBudget)))
	mux.Handle("PUT /budget", budget(s.withUser(s.handleUpdateBudget)))
}

// chain applies middleware so that the first one listed runs first.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// userHandler runs for a resolved user.
type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

// withUser answers 401 when no user is attached. The auth middleware already
// redirects anonymous visitors on protected paths, so this only trips when
// routes and protected prefixes drift apart.
func (s *Server) withUser(h userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := auth.UserFromContext(r.Context())
		if !ok {
			UnauthorizedError().Write(w)
			return
		}
		h(w, r, u.ID)
	}
}

// Shutdown gracefully shuts down the server and its background cleanup.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
