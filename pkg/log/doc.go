// Package log provides zmod's structured logging facade.
//
// # Overview
//
// The package is organized around a Registry of named sources. Each source
// carries a build-time ceiling (the most verbose level it can ever emit) and
// a runtime level that can be raised or lowered on the fly, the way embedded
// log filters work. Loggers are cheap front-ends bound to a source; entries
// that pass the source filter are formatted once and fanned out to every
// registered Output.
//
// Severities are verbosity-ascending: Off < Error < Warn < Info < Debug.
// Setting a source to Info enables Error, Warn and Info, and mutes Debug.
//
// Quick start
//
//	reg := log.NewRegistry(
//	    log.WithFormatter(&log.TextFormatter{}),
//	    log.WithOutput(log.NewConsoleOutput()),
//	)
//	src := reg.Register("server", log.Debug)
//	l := src.Logger(log.Str("addr", ":8080"))
//	l.Info("listening", log.Int("conns", 0))
//
// # Runtime control
//
// Registry.SetAll applies one runtime level to every source and reports how
// many sources accepted it verbatim; a source whose ceiling is lower clamps
// and is not counted. This is the hook the log level policy drives.
//
// # Interop
//
// RedirectStdLog routes the standard library logger (used by some
// dependencies) through a Logger. NewSlogHandler adapts a source to a
// slog.Handler for code that speaks log/slog.
package log
