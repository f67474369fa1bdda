package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Config is the top-level configuration loaded from file/env.
type Config struct {
	StoreDriver   string `json:"storeDriver" env:"STORE_DRIVER"`
	ChannelDriver string `json:"channelDriver" env:"CHANNEL_DRIVER"`
	DataDir       string `json:"dataDir" env:"DATA_DIR"`
	// Fsync is "always", "interval" or "never".
	Fsync           string `json:"fsync" env:"FSYNC"`
	FsyncIntervalMs int    `json:"fsyncIntervalMs" env:"FSYNC_INTERVAL_MS"`

	QueueNameRegex        string   `json:"queueNameRegex" env:"QUEUE_NAME_REGEX"`
	AllowAutoCreateQueues bool     `json:"allowAutoCreateQueues" env:"ALLOW_AUTO_CREATE_QUEUES"`
	MaxQueues             int      `json:"maxQueues" env:"MAX_QUEUES"`
	BootstrapQueues       []string `json:"bootstrapQueues" env:"BOOTSTRAP_QUEUES"`
	// ReceiveTimeoutMs is the receive timeout used when a request names none.
	ReceiveTimeoutMs int `json:"receiveTimeoutMs" env:"RECEIVE_TIMEOUT_MS"`
	// DeferredDispatch hands messages to waiting receivers from the
	// scheduler instead of the sending request's goroutine.
	DeferredDispatch bool `json:"deferredDispatch" env:"DEFERRED_DISPATCH"`

	Log    LogConfig    `json:"log" envPrefix:"LOG_"`
	Server ServerConfig `json:"server" envPrefix:"SERVER_"`
}

type LogConfig struct {
	Level  string `json:"level" env:"LEVEL"`
	Format string `json:"format" env:"FORMAT"`
}

type ServerConfig struct {
	HTTPAddr string `json:"httpAddr" env:"HTTP_ADDR"`
	GRPCAddr string `json:"grpcAddr" env:"GRPC_ADDR"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		DataDir:               DefaultDataDir(),
		Fsync:                 "always",
		FsyncIntervalMs:       5,
		QueueNameRegex:        "[A-Za-z0-9._-]{1,128}",
		AllowAutoCreateQueues: true,
		ReceiveTimeoutMs:      30000,
		Log:                   LogConfig{Level: "info", Format: "text"},
		Server:                ServerConfig{HTTPAddr: ":8080", GRPCAddr: ":50051"},
	}
}

// Load reads configuration from a JSON file. If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		return Config{}, errors.New("yaml config not supported; use JSON")
	}
	cfg := Default()
	if err := json.Unmarshal(b, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late at runtime.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.QueueNameRegex) != "" {
		if _, err := regexp.Compile(c.QueueNameRegex); err != nil {
			errs = append(errs, fmt.Errorf("queueNameRegex: %w", err))
		}
	}
	switch c.Fsync {
	case "", "always", "interval", "never":
	default:
		errs = append(errs, fmt.Errorf("fsync: unknown mode %q", c.Fsync))
	}
	if c.FsyncIntervalMs < 0 {
		errs = append(errs, errors.New("fsyncIntervalMs must not be negative"))
	}
	if c.MaxQueues < 0 {
		errs = append(errs, errors.New("maxQueues must not be negative"))
	}
	return errors.Join(errs...)
}

func (c Config) FsyncInterval() time.Duration {
	return time.Duration(c.FsyncIntervalMs) * time.Millisecond
}

// ReceiveTimeout returns the default receive timeout; zero or less means wait forever.
func (c Config) ReceiveTimeout() time.Duration {
	return time.Duration(c.ReceiveTimeoutMs) * time.Millisecond
}
