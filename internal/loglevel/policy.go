package loglevel

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Ovyl/zmod/pkg/log"
)

// Sentinel errors callers branch on.
var (
	// ErrInvalidLevel rejects severities outside the enumeration.
	ErrInvalidLevel = errors.New("loglevel: level outside the severity enumeration")

	// ErrPersist wraps settings-store failures. The level was still
	// applied to the running process.
	ErrPersist = errors.New("loglevel: persist level")
)

// DefaultKey is the settings key the policy uses when Config.Key is empty.
const DefaultKey = "log_level"

// Settings is the slice of the settings store the policy needs. Lookup
// distinguishes a persisted value from a default so Init can write the
// default back exactly when nothing valid was stored.
type Settings interface {
	LookupUint8(key string) (uint8, bool, error)
	SetUint8(key string, v uint8) error
}

// Config tunes a Policy.
type Config struct {
	// Key is the settings key the level persists under. Empty uses
	// DefaultKey.
	Key string

	// Floor is the lowest severity the policy will ever apply. Requests
	// below it clamp up. Off disables the floor.
	Floor log.Level

	// Default is the level used when nothing valid is persisted. Invalid
	// values fall back to Info.
	Default log.Level
}

// Policy owns the runtime log level: one value, applied to every source and
// mirrored to the settings store.
type Policy struct {
	st     Settings
	reg    *log.Registry
	key    string
	floor  log.Level
	def    log.Level
	logger log.Logger

	mu     sync.Mutex
	inited bool
	level  log.Level
}

// New builds a policy over the settings store and source registry.
func New(st Settings, reg *log.Registry, cfg Config, logger log.Logger) *Policy {
	p := &Policy{
		st:     st,
		reg:    reg,
		key:    cfg.Key,
		floor:  cfg.Floor,
		def:    cfg.Default,
		logger: logger,
	}
	if p.key == "" {
		p.key = DefaultKey
	}
	if !p.floor.Valid() {
		p.floor = log.Error
	}
	if !p.def.Valid() {
		p.def = log.Info
	}
	if p.logger == nil {
		p.logger = log.NewNop()
	}
	return p
}

// Init loads the persisted level and applies it to every source. A missing
// or invalid stored value falls back to the default and is written back; a
// value below the floor clamps up and the clamped value is persisted, so
// the store never carries a level the policy would refuse. Init runs its
// work once; later calls are no-ops.
func (p *Policy) Init() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.inited {
		return
	}
	p.inited = true

	lvl := p.def
	stored := false
	switch raw, ok, err := p.st.LookupUint8(p.key); {
	case err != nil:
		p.logger.Warn("read persisted log level", log.Err(err))
	case ok:
		if l := log.Level(raw); l.Valid() {
			lvl, stored = l, true
		} else {
			p.logger.Warn("persisted log level invalid, using default",
				log.Uint("stored", uint64(raw)), log.Str("default", p.def.Name()))
		}
	}

	if lvl < p.floor {
		p.logger.Warn("log level below floor, clamping",
			log.Str("from", lvl.Name()), log.Str("to", p.floor.Name()))
		lvl = p.floor
		stored = false
	}
	if !stored {
		if err := p.st.SetUint8(p.key, uint8(lvl)); err != nil {
			p.logger.Warn("persist startup log level", log.Err(err))
		}
	}

	accepted := p.applyLocked(lvl)
	p.logger.Info("log level initialized",
		log.Str("level", lvl.Name()),
		log.Int("accepted", accepted),
		log.Int("sources", len(p.reg.Sources())))
}

// Set validates, clamps against the floor, applies the level to every
// source, and persists it. The in-memory level changes even when
// persistence fails; that failure comes back wrapped in ErrPersist.
func (p *Policy) Set(level log.Level) error {
	if !level.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, level)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	applied := level
	if applied < p.floor {
		applied = p.floor
	}
	accepted := p.applyLocked(applied)
	if applied != level {
		p.logger.Warn("requested log level clamped to floor",
			log.Str("requested", level.Name()), log.Str("applied", applied.Name()))
	}
	p.logger.Info("log level set",
		log.Str("level", applied.Name()),
		log.Int("accepted", accepted),
		log.Int("sources", len(p.reg.Sources())))

	if err := p.st.SetUint8(p.key, uint8(applied)); err != nil {
		p.logger.Error("persist log level", log.Err(err))
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// applyLocked pushes level to every source and records it.
func (p *Policy) applyLocked(level log.Level) int {
	accepted := p.reg.SetAll(level)
	p.level = level
	return accepted
}

// Level returns the active policy level.
func (p *Policy) Level() log.Level {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.level
}

// Floor returns the lowest severity the policy will apply.
func (p *Policy) Floor() log.Level { return p.floor }
