package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	clientcmd "github.com/rzbill/haywire/internal/cmd/client"
	serverrun "github.com/rzbill/haywire/internal/cmd/server"
	cfgpkg "github.com/rzbill/haywire/internal/config"
	"github.com/rzbill/haywire/internal/driver"
)

func main() {
	rootCmd := clientcmd.NewRoot(apiURL)
	rootCmd.Short = "haywire queue server and CLI"
	rootCmd.Long = "haywire is a single-binary message queue server. This CLI runs the server and performs basic queue operations."
	rootCmd.SilenceUsage = true

	serverCmd := &cobra.Command{Use: "server", Short: "Server commands"}
	serverCmd.AddCommand(newServerStartCommand())
	rootCmd.AddCommand(serverCmd)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func newServerStartCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "start",
		Short:   "Start haywire server (gRPC and HTTP)",
		Aliases: []string{"run"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := serverrun.Run(cmd.Context(), serverrun.Options{Config: cfg}); err != nil {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.String("config", os.Getenv("HAYWIRE_CONFIG"), "Path to a JSON config file")
	f.String("data-dir", "", "Data directory (if not specified, uses OS-specific application data directory)")
	f.String("store", "", fmt.Sprintf("Store driver: %s|%s (default picks the only non-memory driver)", driver.Memory, driver.Pebble))
	f.String("channel", "", "Channel driver")
	f.String("grpc", "", "gRPC listen address (default :50051)")
	f.String("http", "", "HTTP listen address (default :8080)")
	f.String("fsync", "", "Fsync mode: always|interval|never")
	f.Int("fsync-interval-ms", 0, "When --fsync=interval, group-commit window in ms")
	f.StringSlice("queue", nil, "Queue to create at startup (repeatable)")
	f.Bool("deferred-dispatch", false, "Deliver to waiting receivers from the scheduler, not the sending request")
	f.String("log-level", "", "Log level: debug|info|warn|error")
	f.String("log-format", "", "Log format: text|json|zap")
	return cmd
}

// loadConfig applies defaults, then the config file, then HAYWIRE_*
// variables, then explicitly set flags.
func loadConfig(cmd *cobra.Command) (cfgpkg.Config, error) {
	f := cmd.Flags()
	path, _ := f.GetString("config")
	cfg, err := cfgpkg.Load(path)
	if err != nil {
		return cfg, err
	}
	if err := cfgpkg.FromEnv(&cfg); err != nil {
		return cfg, fmt.Errorf("environment: %w", err)
	}
	str := func(name string, dst *string) {
		if f.Changed(name) {
			*dst, _ = f.GetString(name)
		}
	}
	str("data-dir", &cfg.DataDir)
	str("store", &cfg.StoreDriver)
	str("channel", &cfg.ChannelDriver)
	str("grpc", &cfg.Server.GRPCAddr)
	str("http", &cfg.Server.HTTPAddr)
	str("fsync", &cfg.Fsync)
	str("log-level", &cfg.Log.Level)
	str("log-format", &cfg.Log.Format)
	if f.Changed("fsync-interval-ms") {
		cfg.FsyncIntervalMs, _ = f.GetInt("fsync-interval-ms")
	}
	if f.Changed("deferred-dispatch") {
		cfg.DeferredDispatch, _ = f.GetBool("deferred-dispatch")
	}
	if f.Changed("queue") {
		queues, _ := f.GetStringSlice("queue")
		cfg.BootstrapQueues = append(cfg.BootstrapQueues, queues...)
	}
	return cfg, cfg.Validate()
}

func apiURL() string {
	if v := os.Getenv("HAYWIRE_HTTP"); v != "" {
		return v
	}
	return "http://127.0.0.1:8080"
}
