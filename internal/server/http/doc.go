// Package httpserver provides the REST operational surface of a zmod node:
// health, store status, clear, streamed log export (plain or zstd), runtime
// log levels, and device settings.
//
// Example:
//
//	rt, _ := runtime.Open(runtime.Options{Config: config.Default()})
//	s := httpserver.New(rt)
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//	_ = s.ListenAndServe(ctx, ":8080")
package httpserver
