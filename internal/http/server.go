// Package http serves the reporting engine and ingestion as a JSON API.
package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/cache"
	"tally/internal/core"
	tlog "tally/internal/log"
	"tally/internal/middleware/ratelimit"
	"tally/internal/middleware/security"
	"tally/internal/middleware/trace"
	"tally/internal/networth"
	"tally/internal/period"
	"tally/internal/report"
	"tally/internal/services"
)

// Engine is the read side the API serves.
type Engine interface {
	Today() core.Date
	Resolve(ctx context.Context, spec string) period.Range
	Summarize(ctx context.Context, r period.Range) (report.Summary, error)
	Detail(ctx context.Context, r period.Range) (report.Detail, error)
	TimeSeries(ctx context.Context, r period.Range, g period.Granularity) (report.TimeSeries, error)
	SummaryGrouped(ctx context.Context, r period.Range, g period.Granularity) ([]report.PeriodSummary, error)
	DetailGrouped(ctx context.Context, r period.Range, g period.Granularity) ([]report.PeriodDetail, error)
	History(ctx context.Context, r period.Range, g period.Granularity) (networth.Series, error)
	Portfolio(ctx context.Context, asOf core.Date) (services.Portfolio, error)
	RecordNetWorth(ctx context.Context, date core.Date) (core.NetWorthPoint, error)
}

// Ledger is the write side.
type Ledger interface {
	AddTransaction(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	AddAsset(ctx context.Context, a core.Asset) (core.Asset, error)
	UpdateAssetValue(ctx context.Context, assetID int64, price decimal.Decimal, asOf core.Date) (core.ValuationSnapshot, error)
}

// Options tunes the server; zero values take defaults.
type Options struct {
	RateLimitPerMinute int
	CacheSize          int
	CacheTTL           time.Duration
	// Ready backs /readyz, typically the store's Ping.
	Ready          func(ctx context.Context) error
	TrustedProxies []string
	Logger         *tlog.Logger
}

type Server struct {
	http.Server
	engine Engine
	ledger Ledger
	ready  func(ctx context.Context) error

	responses *cache.LRUCache[[]byte]
	caches    *cache.Manager
	limiter   *ratelimit.Limiter
	tracer    *trace.Middleware
	ips       *security.IPResolver

	shutdownOnce sync.Once
}

func NewServer(addr string, engine Engine, ledger Ledger, opts Options) (*Server, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 256
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = tlog.New(tlog.DefaultConfig())
	}
	ips, err := security.NewIPResolver(opts.TrustedProxies...)
	if err != nil {
		return nil, err
	}

	s := &Server{
		engine:    engine,
		ledger:    ledger,
		ready:     opts.Ready,
		responses: cache.NewLRUCache[[]byte](opts.CacheSize, opts.CacheTTL),
		caches:    cache.NewManager(),
		limiter:   ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:    trace.NewMiddleware(ips.ClientIP),
		ips:       ips,
	}
	s.caches.Register("responses", s.responses)
	s.caches.StartCleanup(10 * time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /api/stats", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.Stats())
	})

	mux.HandleFunc("GET /api/range", s.handleRange)
	mux.HandleFunc("GET /api/summary", s.cached(s.summary))
	mux.HandleFunc("GET /api/detail", s.cached(s.detail))
	mux.HandleFunc("GET /api/timeseries", s.cached(s.timeSeries))
	mux.HandleFunc("GET /api/summary/grouped", s.cached(s.summaryGrouped))
	mux.HandleFunc("GET /api/detail/grouped", s.cached(s.detailGrouped))
	mux.HandleFunc("GET /api/networth/history", s.direct(s.history))
	mux.HandleFunc("GET /api/portfolio", s.direct(s.portfolio))

	mux.Handle("POST /api/transactions", s.limited(s.handleCreateTransaction))
	mux.Handle("POST /api/assets", s.limited(s.handleCreateAsset))
	mux.Handle("POST /api/assets/{id}/valuations", s.limited(s.handleCreateValuation))
	mux.Handle("POST /api/networth", s.limited(s.handleRecordNetWorth))

	var h http.Handler = mux
	h = security.Headers(security.APIHeadersConfig())(h)
	h = tlog.Middleware(opts.Logger.WithComponent(tlog.ComponentHTTP), trace.GetRequestID)(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Shutdown stops background cleanup before draining connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// limited applies the per-client write limit.
func (s *Server) limited(next http.HandlerFunc) http.Handler {
	return s.limiter.Middleware(s.ips.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		slog.WarnContext(r.Context(), "Rate limit exceeded",
			"component", tlog.ComponentRateLimit,
			"client_ip", s.ips.ClientIP(r),
			"path", r.URL.Path)
		writeJSON(w, http.StatusTooManyRequests, errorBody{
			Error:     "rate limit exceeded, please try again later",
			RequestID: trace.GetRequestID(r.Context()),
		})
	})(next)
}

// invalidate drops every cached report; any write can change any window.
func (s *Server) invalidate(ctx context.Context) {
	s.responses.Clear()
	slog.DebugContext(ctx, "Report cache cleared", "component", tlog.ComponentCache)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			slog.WarnContext(r.Context(), "Readiness check failed", "component", tlog.ComponentHTTP, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Stats reports request and cache counters.
func (s *Server) Stats() map[string]any {
	tm := s.tracer.GetMetrics()
	cs := s.responses.Stats()
	rl := s.limiter.GetMetrics()
	return map[string]any{
		"requests":         tm.TotalRequests,
		"server_errors":    tm.ServerErrors,
		"avg_response_ms":  tm.AverageResponseTime.Milliseconds(),
		"cache_hits":       cs.Hits,
		"cache_misses":     cs.Misses,
		"cache_size":       s.responses.Size(),
		"rate_limit_hits":  rl.TotalHits,
		"rate_limit_peers": rl.ClientCount,
	}
}
