// Package runtime wires the flash partition, circular log store, settings
// database and level policy into a single-node zmod instance. It exposes
// Open/Close, a health check, export sessions, and accessors for the
// operational surface.
//
// Example:
//
//	cfg := config.Default()
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
//	_ = rt.CheckHealth(context.Background())
//	l := rt.Registry().Register("app", log.Debug).Logger()
//	l.Info("hello") // lands on the console and in the ring
package runtime
