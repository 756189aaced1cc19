package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	cfgpkg "github.com/Ovyl/zmod/internal/config"
	"github.com/Ovyl/zmod/internal/flash"
	"github.com/Ovyl/zmod/internal/flashlog"
	"github.com/Ovyl/zmod/internal/loglevel"
	"github.com/Ovyl/zmod/internal/logstore"
	"github.com/Ovyl/zmod/internal/settings"
	pebblestore "github.com/Ovyl/zmod/internal/storage/pebble"
	"github.com/Ovyl/zmod/pkg/id"
	"github.com/Ovyl/zmod/pkg/log"
)

// Options for building the Runtime.
type Options struct {
	// Config is the process configuration, normally config.Default() with
	// file and environment overlays applied.
	Config cfgpkg.Config

	// Registry receives every subsystem's log source. Nil builds a console
	// registry in Config.LogFormat; a caller-provided registry is left open
	// on Close so late shutdown lines still land somewhere.
	Registry *log.Registry
}

// Runtime wires the flash partition, circular log store, settings database
// and level policy into a single-node instance.
type Runtime struct {
	config   cfgpkg.Config
	registry *log.Registry
	ownReg   bool
	logger   log.Logger

	area     *flash.Area
	store    *logstore.Store
	db       *pebblestore.DB
	settings *settings.Store
	policy   *loglevel.Policy
	backend  *flashlog.Backend

	exportGen *id.Generator
	exportID  atomic.Value // string
	closed    bool
}

// Open initializes every subsystem and returns a Runtime. The flash
// partition and settings database are created when absent. The log sink is
// attached last, so open-time diagnostics reach the console but not the
// ring.
func Open(opts Options) (*Runtime, error) {
	cfg := opts.Config

	floor, err := levelOr(cfg.LogFloor, log.Error)
	if err != nil {
		return nil, err
	}
	def, err := levelOr(cfg.LogLevel, log.Info)
	if err != nil {
		return nil, err
	}
	fsync, err := parseFsync(cfg.Fsync)
	if err != nil {
		return nil, err
	}

	reg := opts.Registry
	ownReg := false
	if reg == nil {
		reg = NewRegistry(cfg.LogFormat)
		ownReg = true
	}

	rt := &Runtime{config: cfg, registry: reg, ownReg: ownReg}
	rt.logger = reg.Register("runtime", log.MaxLevel).Logger()

	area, err := flash.Open(cfg.PartitionPath(), flash.Options{
		SectorSize: cfg.SectorSize,
		Sectors:    cfg.Sectors,
	})
	if err != nil {
		return nil, fmt.Errorf("open partition: %w", err)
	}
	rt.area = area

	store := logstore.New(area, logstore.Options{
		MaxSectors: cfg.MaxSectors,
		LockWait:   time.Duration(cfg.LockWaitMs) * time.Millisecond,
		Logger:     reg.Register("logstore", log.MaxLevel).Logger(),
	})
	if err := store.Open(); err != nil {
		area.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	rt.store = store

	db, err := pebblestore.Open(pebblestore.Options{DataDir: cfg.SettingsDir(), Fsync: fsync})
	if err != nil {
		area.Close()
		return nil, fmt.Errorf("open settings db: %w", err)
	}
	rt.db = db

	st, err := settings.Open(db, settings.Schema())
	if err != nil {
		db.Close()
		area.Close()
		return nil, fmt.Errorf("open settings: %w", err)
	}
	rt.settings = st

	rt.policy = loglevel.New(st, reg, loglevel.Config{
		Key:     settings.KeyLogLevel,
		Floor:   floor,
		Default: def,
	}, reg.Register("loglevel", log.MaxLevel).Logger())
	rt.policy.Init()

	rt.backend = flashlog.NewBackend(store, flashlog.WithSkipSources("logstore", "flash"))
	reg.AddOutput(rt.backend)

	rt.exportGen = id.NewGenerator()

	stats, _ := store.Stats()
	rt.logger.Info("runtime open",
		log.Str("partition", cfg.PartitionPath()),
		log.Int("sectors", stats.SectorCount),
		log.Int("sectorSize", stats.SectorSize),
		log.Str("level", rt.policy.Level().Name()),
	)
	return rt, nil
}

// Close tears the runtime down in reverse of Open. The sink detaches first
// so nothing appends to a closed partition. Closing twice is a no-op.
func (r *Runtime) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	var first error
	keep := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	if r.backend != nil {
		r.backend.Detach()
	}
	if r.db != nil {
		keep(r.db.Close())
	}
	if r.area != nil {
		keep(r.area.Close())
	}
	if r.ownReg && r.registry != nil {
		keep(r.registry.Close())
	}
	return first
}

// CheckHealth verifies both stores answer.
func (r *Runtime) CheckHealth(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.store == nil || r.db == nil {
		return errors.New("runtime: not open")
	}
	if _, err := r.store.Stats(); err != nil {
		return fmt.Errorf("log store: %w", err)
	}
	it, err := r.db.NewIter(nil)
	if err != nil {
		return fmt.Errorf("settings db: %w", err)
	}
	return it.Close()
}

// Status is a point-in-time operational snapshot.
type Status struct {
	Stats        logstore.Stats
	Level        log.Level
	ExportID     string
	SinkAccepted uint64
	SinkDropped  uint64
}

// Status gathers store stats, the active level and sink counters.
func (r *Runtime) Status() (Status, error) {
	stats, err := r.store.Stats()
	if err != nil {
		return Status{}, err
	}
	return Status{
		Stats:        stats,
		Level:        r.policy.Level(),
		ExportID:     r.LastExportSession(),
		SinkAccepted: r.backend.Accepted(),
		SinkDropped:  r.backend.Dropped(),
	}, nil
}

// NewExportSession mints a token and records it as the latest session.
// Callers announce the session (header, CLI output) before streaming.
func (r *Runtime) NewExportSession() string {
	sid := r.exportGen.Next().String()
	r.exportID.Store(sid)
	return sid
}

// Export streams every stored record to w, oldest first. The consumer
// cursor is left where it was.
func (r *Runtime) Export(ctx context.Context, session string, w io.Writer) error {
	r.logger.Info("export started", log.Str("session", session))
	if err := r.store.Export(ctx, w); err != nil {
		r.logger.Error("export failed", log.Str("session", session), log.Err(err))
		return err
	}
	r.logger.Info("export finished", log.Str("session", session))
	return nil
}

// LastExportSession returns the token of the most recent export, empty
// before the first one.
func (r *Runtime) LastExportSession() string {
	v, _ := r.exportID.Load().(string)
	return v
}

// Clear erases every stored record.
func (r *Runtime) Clear() error { return r.store.Clear() }

// Store exposes the circular log store.
func (r *Runtime) Store() *logstore.Store { return r.store }

// Settings exposes the device settings store.
func (r *Runtime) Settings() *settings.Store { return r.settings }

// Policy exposes the runtime log level policy.
func (r *Runtime) Policy() *loglevel.Policy { return r.policy }

// Registry exposes the log registry so servers can add their own sources.
func (r *Runtime) Registry() *log.Registry { return r.registry }

// Config returns the runtime configuration.
func (r *Runtime) Config() cfgpkg.Config { return r.config }

// NewRegistry builds a console registry in the given format, "text" or
// "json".
func NewRegistry(format string) *log.Registry {
	var f log.Formatter
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		f = &log.JSONFormatter{}
	} else {
		f = &log.TextFormatter{}
	}
	return log.NewRegistry(log.WithFormatter(f), log.WithOutput(log.NewConsoleOutput()))
}

func levelOr(name string, fallback log.Level) (log.Level, error) {
	if strings.TrimSpace(name) == "" {
		return fallback, nil
	}
	return log.ParseLevel(name)
}

func parseFsync(name string) (pebblestore.FsyncMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "always":
		return pebblestore.FsyncModeAlways, nil
	case "interval":
		return pebblestore.FsyncModeInterval, nil
	case "never":
		return pebblestore.FsyncModeNever, nil
	default:
		return pebblestore.FsyncModeUnspecified, fmt.Errorf("runtime: unknown fsync mode %q", name)
	}
}
