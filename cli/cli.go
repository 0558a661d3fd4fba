package cli

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/vx-labs/lazyfree/bio"
	"github.com/vx-labs/lazyfree/config"
	"github.com/vx-labs/lazyfree/engine"
	"github.com/vx-labs/lazyfree/lazyfree"
	"go.uber.org/zap"
)

// version is set at link time.
var version = "dev"

func Version() string {
	return version
}

// Context holds what every command shares: the run id, the logger and the
// store built from the loaded configuration.
type Context struct {
	ID        string
	Logger    *zap.Logger
	Config    config.Config
	Pool      *bio.Pool
	Reclaimer *lazyfree.Reclaimer
	Engine    *engine.Engine
	Registry  *prometheus.Registry
}

func Bootstrap(cfg config.Config) *Context {
	id := uuid.New().String()
	ctx := &Context{
		ID:     id,
		Config: cfg,
	}
	var logger *zap.Logger
	var err error
	opts := []zap.Option{
		zap.Fields(zap.String("run_id", id), zap.String("version", Version())),
	}
	if cfg.PrettyLog || os.Getenv("ENABLE_PRETTY_LOG") == "true" {
		logger, err = zap.NewDevelopment(opts...)
	} else {
		logger, err = zap.NewProduction(opts...)
	}
	if err != nil {
		panic(err)
	}
	ctx.Logger = logger
	ctx.Pool = bio.NewPool(cfg.Workers, logger.With(zap.String("component", "bio")))
	ctx.Reclaimer = lazyfree.New(ctx.Pool, logger.With(zap.String("component", "lazyfree")))
	ctx.Engine = engine.New(ctx.Reclaimer, cfg, logger.With(zap.String("component", "engine")))
	ctx.Registry = prometheus.NewRegistry()
	if err := lazyfree.RegisterMetrics(ctx.Registry, ctx.Reclaimer.Counters()); err != nil {
		logger.Fatal("failed to register metrics", zap.Error(err))
	}
	if cfg.MetricsPort > 0 {
		go serveHTTPMetrics(logger, ctx.Registry, cfg.MetricsPort)
	}
	logger.Info("loaded configuration",
		zap.Int("worker_count", cfg.Workers),
		zap.Int("database_count", cfg.Databases),
		zap.Bool("lazy_user_del", cfg.LazyUserDel),
		zap.Bool("lazy_user_flush", cfg.LazyUserFlush),
		zap.Bool("lazy_server_del", cfg.LazyServerDel),
		zap.Bool("lazy_eviction", cfg.LazyEviction),
		zap.Bool("lazy_expire", cfg.LazyExpire),
	)
	return ctx
}

// Shutdown waits for queued background jobs and flushes the logger.
func (ctx *Context) Shutdown() {
	ctx.Pool.Close()
	ctx.Logger.Info("stopped",
		zap.Uint64("lazyfree_pending_objects", ctx.Reclaimer.PendingCount()),
		zap.Uint64("lazyfreed_objects", ctx.Reclaimer.FreedCount()),
	)
	ctx.Logger.Sync()
}

// WaitForSignal blocks until the process is asked to terminate.
func (ctx *Context) WaitForSignal() {
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	<-sigc
	ctx.Logger.Info("received termination signal")
}

func serveHTTPMetrics(logger *zap.Logger, reg *prometheus.Registry, port int) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	err := http.ListenAndServe(fmt.Sprintf("[::]:%d", port), mux)
	if err != nil {
		logger.Error("failed to run metrics endpoint", zap.Error(err))
	}
}
