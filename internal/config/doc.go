// Package config loads haywire server configuration. Default() is the
// baseline, Load overlays a JSON file and FromEnv overlays HAYWIRE_*
// environment variables.
//
// Example:
//
//	cfg, err := config.Load("/etc/haywire.json")
//	if err != nil {
//	    return err
//	}
//	if err := config.FromEnv(&cfg); err != nil {
//	    return err
//	}
//	rt, err := runtime.Open(runtime.Options{Config: cfg})
package config
