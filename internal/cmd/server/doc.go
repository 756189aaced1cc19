// Package serverrun exposes a shared Run entrypoint used by the CLI to start
// the zmod runtime with its HTTP server, handling lifecycle and shutdown.
//
// Example:
//
//	cfg := config.Default()
//	cfg.HTTPAddr = ":8080"
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = serverrun.Run(ctx, serverrun.Options{Config: cfg})
package serverrun
