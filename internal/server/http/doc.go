// Package httpserver is the JSON gateway over a runtime's queues: create,
// send, receive, subscribe (SSE), peek, browse and stats, plus health and
// Prometheus metrics.
//
// Example:
//
//	s := httpserver.New(rt, logger, prometheus.DefaultGatherer)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
