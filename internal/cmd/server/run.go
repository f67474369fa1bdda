package serverrun

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	cfgpkg "github.com/rzbill/haywire/internal/config"
	"github.com/rzbill/haywire/internal/metrics"
	"github.com/rzbill/haywire/internal/runtime"
	grpcserver "github.com/rzbill/haywire/internal/server/grpc"
	httpserver "github.com/rzbill/haywire/internal/server/http"
	logpkg "github.com/rzbill/haywire/pkg/log"
)

type Options struct {
	Config cfgpkg.Config
	// Logger overrides the logger built from Config.Log.
	Logger logpkg.Logger
	// HTTPListener and GRPCListener, when set, are used instead of binding
	// Config.Server addresses.
	HTTPListener net.Listener
	GRPCListener net.Listener
	// Ready is closed once the runtime is started and both servers are serving.
	Ready chan<- struct{}
}

// Run opens the runtime, serves gRPC and HTTP, and blocks until ctx is
// cancelled or either server fails. The runtime is closed after both
// servers have stopped.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config
	if cfg.DataDir == "" {
		cfg.DataDir = cfgpkg.DefaultDataDir()
	}
	logger := opts.Logger
	if logger == nil {
		l, err := logpkg.ApplyConfig(logpkg.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
		if err != nil {
			return fmt.Errorf("logger: %w", err)
		}
		logger = l
	}
	// Pebble and net/http log through the standard library logger
	defer logpkg.RedirectStdLog(logger)()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	rt, err := runtime.Open(runtime.Options{Config: cfg, Logger: logger, Metrics: m})
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			logger.Error("runtime close failed", logpkg.Err(err))
		}
	}()
	if err := rt.Start(sctx); err != nil {
		return err
	}

	storeDriver, channelDriver := rt.Drivers()
	logger.Info("Starting haywire server",
		logpkg.Str("grpc", cfg.Server.GRPCAddr),
		logpkg.Str("http", cfg.Server.HTTPAddr),
		logpkg.Str("store", storeDriver),
		logpkg.Str("channel", channelDriver),
		logpkg.Str("data_dir", cfg.DataDir),
		logpkg.Str("level", cfg.Log.Level),
		logpkg.Str("format", cfg.Log.Format),
	)

	httpLis, err := listen(opts.HTTPListener, cfg.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	grpcLis, err := listen(opts.GRPCListener, cfg.Server.GRPCAddr)
	if err != nil {
		_ = httpLis.Close()
		return fmt.Errorf("grpc listen: %w", err)
	}

	gsrv := grpcserver.New(rt, logger)
	hsrv := httpserver.New(rt, logger, reg)

	g, gctx := errgroup.WithContext(sctx)
	g.Go(func() error { return gsrv.Serve(gctx, grpcLis) })
	g.Go(func() error { return hsrv.Serve(gctx, httpLis) })
	if opts.Ready != nil {
		close(opts.Ready)
	}

	err = g.Wait()
	logger.Info("haywire server stopped")
	return err
}

func listen(l net.Listener, addr string) (net.Listener, error) {
	if l != nil {
		return l, nil
	}
	return net.Listen("tcp", addr)
}
