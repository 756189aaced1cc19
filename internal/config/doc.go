// Package config provides loading and environment overlay for zmod runtime
// configuration. It exposes a Default() baseline, JSON file loading, and a
// ZMOD_* environment overlay applied on top.
//
// Example:
//
//	cfg := config.Default()
//	if fileCfg, err := config.Load("/etc/zmod.json"); err == nil {
//	    cfg = fileCfg
//	}
//	config.FromEnv(&cfg)
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
package config
