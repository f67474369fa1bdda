package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rzbill/haywire/internal/metrics"
	"github.com/rzbill/haywire/internal/runtime"
	"github.com/rzbill/haywire/internal/server/http/controllers"
	logpkg "github.com/rzbill/haywire/pkg/log"
)

type Server struct {
	rt     *runtime.Runtime
	srv    *http.Server
	lis    net.Listener
	logger logpkg.Logger
}

// New builds the HTTP gateway. A nil gatherer leaves /metrics unregistered.
func New(rt *runtime.Runtime, logger logpkg.Logger, gatherer prometheus.Gatherer) *Server {
	if logger == nil {
		logger = logpkg.NewNop()
	}
	mux := http.NewServeMux()
	controllers.NewControllerRegistry(rt, logger).RegisterAllRoutes(mux)
	if gatherer != nil {
		mux.Handle("/metrics", metrics.Handler(gatherer))
	}
	s := &Server{
		rt:     rt,
		logger: logger.WithComponent("http"),
		srv: &http.Server{
			Handler:           cors(mux),
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          logpkg.ToStdLogger(logger.WithComponent("http"), logpkg.ErrorLevel),
		},
	}
	return s
}

// Handler returns the root handler, including CORS.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Serve serves on l until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.lis = l
	s.logger.Info("http listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
