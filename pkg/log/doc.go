// Package log is haywire's structured logging facade.
//
// A small Logger interface with leveled methods and a Field type for
// structured context, backed by log/slog through a bridge handler that feeds
// the package's own formatter and output pipeline. Outputs include the
// console, a null sink and a zap core, so the same call sites can emit text,
// JSON or zap-encoded records.
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	l = l.With(log.Component("inputqueue"), log.Str("queue", "orders"))
//	l.Info("queue opened", log.Int("pending", 0))
//
// ApplyConfig builds a logger from a declarative Config. RedirectStdLog
// routes the standard library logger (used by net/http and grpc) through a
// Logger.
package log
