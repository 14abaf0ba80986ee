package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"api-gateway/internal/auth"
	"api-gateway/internal/cache"
	"api-gateway/internal/config"
	"api-gateway/internal/database"
	"api-gateway/internal/handlers"
	"api-gateway/internal/metrics"
	"api-gateway/internal/middleware"
	"api-gateway/internal/ratelimit"
	"api-gateway/internal/routes"
	"api-gateway/internal/upstream"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Application owns every long-lived component of the gateway.
type Application struct {
	cfg     *config.Config
	engine  *gin.Engine
	logger  *zap.Logger
	cache   *cache.ShardedCache[json.RawMessage]
	limiter *ratelimit.Limiter

	accessDB     *gorm.DB
	accessWriter *database.AccessLogWriter
}

// New builds the application from cfg.
func New(cfg *config.Config, log *zap.Logger) (*Application, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	reg := prometheus.NewRegistry()
	m, err := metrics.New(metrics.Options{Registerer: reg})
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	var gatherer prometheus.Gatherer
	if cfg.MetricsEnabled {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		gatherer = reg
	}

	store := cache.New[json.RawMessage](cache.Options{TTL: cfg.CacheDuration})

	limiter, err := ratelimit.New(ratelimit.Options{
		Max:    cfg.RateLimit,
		Window: cfg.RateLimitWindow,
	})
	if err != nil {
		return nil, fmt.Errorf("init rate limiter: %w", err)
	}

	authenticator := auth.NewAPIKeyAuthenticator(cfg.APIKey)
	if !authenticator.Configured() {
		log.Warn("API_KEY is not set; every proxy request will be rejected")
	}

	proxy, err := handlers.NewProxyHandler(handlers.ProxyOptions{
		TargetURL: cfg.APIURL,
		Cache:     store,
		Upstream:  upstream.NewClient(upstream.Options{Timeout: cfg.UpstreamTimeout}),
		Metrics:   m,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}

	application := &Application{
		cfg:     cfg,
		logger:  log,
		cache:   store,
		limiter: limiter,
	}

	var sink middleware.AccessLogSink
	if cfg.AccessLogDB != "" {
		db, err := database.Open(cfg.AccessLogDB)
		if err != nil {
			return nil, err
		}
		application.accessDB = db
		application.accessWriter = database.NewAccessLogWriter(db, 0, log)
		sink = application.accessWriter
		log.Info("persisting access logs", zap.String("path", cfg.AccessLogDB))
	}

	application.engine = routes.SetupRoutes(routes.Dependencies{
		Proxy:         proxy,
		Authenticator: authenticator,
		Limiter:       limiter,
		Metrics:       m,
		Gatherer:      gatherer,
		Logger:        log,
		AccessLog:     sink,
	})

	return application, nil
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *Application) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Addr(), err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go a.sweep(sweepCtx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Server is running",
			zap.String("addr", ln.Addr().String()),
			zap.String("upstream", a.cfg.APIURL),
			zap.Int("rate_limit", a.cfg.RateLimit),
			zap.Duration("rate_limit_window", a.cfg.RateLimitWindow),
			zap.Duration("cache_duration", a.cfg.CacheDuration),
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			a.close(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.logger.Info("shutting down")
	err := srv.Shutdown(shutdownCtx)
	a.close(shutdownCtx)
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (a *Application) close(ctx context.Context) {
	if a.accessWriter != nil {
		if err := a.accessWriter.Close(ctx); err != nil {
			a.logger.Warn("access log writer did not drain", zap.Error(err))
		}
	}
	if a.accessDB != nil {
		if err := database.Close(a.accessDB); err != nil {
			a.logger.Warn("close access log database", zap.Error(err))
		}
	}
}

// sweep periodically reclaims expired cache entries and idle rate-limit windows.
func (a *Application) sweep(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged := a.cache.PurgeExpired()
			windows := a.limiter.Sweep()
			if purged > 0 || windows > 0 {
				a.logger.Debug("sweep", zap.Int("cache_entries", purged), zap.Int("rate_limit_windows", windows))
			}
		}
	}
}
