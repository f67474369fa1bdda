package config

import (
	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable read by FromEnv.
const EnvPrefix = "HAYWIRE_"

// FromEnv overlays HAYWIRE_* environment variables onto cfg. Unset
// variables leave the current value alone.
func FromEnv(cfg *Config) error {
	return env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix})
}
