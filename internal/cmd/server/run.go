package serverrun

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	cfgpkg "github.com/Ovyl/zmod/internal/config"
	"github.com/Ovyl/zmod/internal/runtime"
	httpserver "github.com/Ovyl/zmod/internal/server/http"
	"github.com/Ovyl/zmod/pkg/log"
)

// Options configures a server run.
type Options struct {
	Config cfgpkg.Config
}

// Run opens the runtime, starts the HTTP server and blocks until ctx is
// cancelled.
func Run(ctx context.Context, opts Options) error {
	// Be robust to callers that don't pass a signal-aware context
	// or if signal delivery needs to be observed here. We layer a
	// local signal context over the provided one.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := opts.Config

	// Build the process-wide registry up front so runtime open
	// diagnostics already flow through it.
	reg := runtime.NewRegistry(cfg.LogFormat)
	defer func() { _ = reg.Close() }()
	logger := reg.Register("server", log.MaxLevel).Logger()

	// Redirect stdlib logs (e.g., Pebble) to our registry.
	log.RedirectStdLog(logger)

	rt, err := runtime.Open(runtime.Options{Config: cfg, Registry: reg})
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	logger.Info("starting zmod server",
		log.Str("http", cfg.HTTPAddr),
		log.Str("partition", cfg.PartitionPath()),
		log.Str("dataDir", cfg.DataDir),
		log.Str("format", cfg.LogFormat),
	)

	hsrv := httpserver.New(rt)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, cfg.HTTPAddr); err != nil && sctx.Err() == nil {
			logger.Error("http server error", log.Err(err))
		}
	}()

	<-sctx.Done()
	// Shut the server down before closing the runtime to avoid
	// handlers racing a closed store.
	hsrv.Close()
	wg.Wait()
	logger.Info("server stopped")
	return nil
}
