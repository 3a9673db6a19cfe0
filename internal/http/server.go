package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"spendlog/internal/core"
	"spendlog/internal/ledger"
	"spendlog/internal/log"
	"spendlog/internal/metrics"
	"spendlog/internal/middleware/ratelimit"
	"spendlog/internal/middleware/security"
	"spendlog/internal/middleware/trace"
	"spendlog/internal/query"
	"spendlog/internal/services"
)

// Ledger is the part of ledger.Store the API writes through.
type Ledger interface {
	ListAll(ctx context.Context) ([]core.ExpenseRecord, error)
	ByMonth(ctx context.Context, year int, month time.Month) ([]core.ExpenseRecord, error)
	Insert(ctx context.Context, rec core.ExpenseRecord, dir core.Directory) (ledger.InsertResult, error)
	Update(ctx context.Context, patch ledger.RecordPatch) (bool, error)
	Delete(ctx context.Context, c ledger.DeleteCriteria) (ledger.DeleteResult, error)
	Categories(ctx context.Context) (core.Directory, error)
	SaveCategories(ctx context.Context, dir core.Directory) error
}

// Queries is the read facade.
type Queries interface {
	CalculateSpent(ctx context.Context, q query.RangeQuery) (core.SpentReport, error)
	DailyTotals(ctx context.Context, q query.RangeQuery) ([]core.DayTotal, error)
	CategoryTotals(ctx context.Context, month, year int) ([]core.CategoryTotal, error)
	HistoryByDate(ctx context.Context, day time.Time) ([]core.ExpenseRecord, error)
}

// Commands runs assistant commands.
type Commands interface {
	Dispatch(ctx context.Context, cmd services.Command) (services.Reply, error)
	Chat(ctx context.Context, interp services.Interpreter, text string) (services.Reply, error)
}

// Config wires the server. Zero values fall back to the host zone, the
// system clock, no rate limit and an always-ready probe.
type Config struct {
	Addr               string
	Location           *time.Location
	Now                func() time.Time
	RateLimitPerMinute int
	Interpreter        services.Interpreter
	Ready              func(ctx context.Context) error
	Logger             *log.Logger
	Metrics            *metrics.Metrics
}

type Server struct {
	http.Server

	ledger   Ledger
	queries  Queries
	commands Commands

	interp  services.Interpreter
	ready   func(ctx context.Context) error
	loc     *time.Location
	now     func() time.Time
	logger  *log.Logger
	limiter *ratelimit.Limiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(cfg Config, l Ledger, q Queries, c Commands) *Server {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Ready == nil {
		cfg.Ready = func(context.Context) error { return nil }
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Nop()
	}

	s := &Server{
		ledger:   l,
		queries:  q,
		commands: c,
		interp:   cfg.Interpreter,
		ready:    cfg.Ready,
		loc:      cfg.Location,
		now:      cfg.Now,
		logger:   cfg.Logger.WithComponent(log.ComponentHTTP),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler())
	}

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("PATCH /api/expenses", s.handleUpdateExpense)
	mux.HandleFunc("DELETE /api/expenses", s.handleDeleteExpense)

	mux.HandleFunc("GET /api/spent", s.handleSpent)
	mux.HandleFunc("GET /api/daily", s.handleDaily)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("PUT /api/categories", s.handleReplaceCategories)
	mux.HandleFunc("GET /api/categories/totals", s.handleCategoryTotals)

	mux.HandleFunc("POST /api/commands", s.handleCommand)
	mux.HandleFunc("POST /api/chat", s.handleChat)

	detector := security.NewDetector()
	var handler http.Handler = mux
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
		onLimit := func(w http.ResponseWriter, r *http.Request) {
			log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
				log.FieldClientIP, detector.ExtractClientIP(r),
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path)
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded, try again later").Write(w)
		}
		handler = s.limiter.Middleware(detector.ExtractClientIP, onLimit,
			http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete)(handler)
	}
	handler = detector.Middleware(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = trace.NewMiddleware(cfg.Logger, cfg.Metrics, detector.ExtractClientIP).Middleware(handler)

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Shutdown gracefully shuts down the server and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.limiter != nil {
			s.limiter.Stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.ready(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", log.FieldError, err.Error())
		ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
