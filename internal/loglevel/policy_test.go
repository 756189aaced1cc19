package loglevel

import (
	"errors"
	"testing"

	"github.com/Ovyl/zmod/pkg/log"
)

// fakeSettings is a map-backed Settings with error injection.
type fakeSettings struct {
	values  map[string]uint8
	getErr  error
	setErr  error
	setCnt  int
	lastSet uint8
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: map[string]uint8{}}
}

func (f *fakeSettings) LookupUint8(key string) (uint8, bool, error) {
	if f.getErr != nil {
		return 0, false, f.getErr
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeSettings) SetUint8(key string, v uint8) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.values[key] = v
	f.setCnt++
	f.lastSet = v
	return nil
}

func newTestPolicy(t *testing.T, st Settings, cfg Config) (*Policy, *log.Registry) {
	t.Helper()
	reg := log.NewRegistry(log.WithOutput(log.NewWriterOutput(discard{})))
	t.Cleanup(func() { _ = reg.Close() })
	reg.Register("server", log.Debug)
	reg.Register("store", log.Debug)
	return New(st, reg, cfg, log.NewNop()), reg
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func TestInitAppliesDefaultWhenNothingStored(t *testing.T) {
	st := newFakeSettings()
	p, reg := newTestPolicy(t, st, Config{Floor: log.Error, Default: log.Info})

	p.Init()

	if p.Level() != log.Info {
		t.Fatalf("level = %v, want default Info", p.Level())
	}
	if st.values[DefaultKey] != uint8(log.Info) {
		t.Fatalf("default not persisted: %v", st.values)
	}
	for _, src := range reg.Sources() {
		if src.Level() != log.Info {
			t.Fatalf("source %s at %v, want Info", src.Name(), src.Level())
		}
	}
}

func TestInitUsesStoredLevelWithoutRewriting(t *testing.T) {
	st := newFakeSettings()
	st.values[DefaultKey] = uint8(log.Debug)
	p, _ := newTestPolicy(t, st, Config{Floor: log.Error, Default: log.Info})

	p.Init()

	if p.Level() != log.Debug {
		t.Fatalf("level = %v, want stored Debug", p.Level())
	}
	if st.setCnt != 0 {
		t.Fatalf("valid stored level was rewritten %d times", st.setCnt)
	}
}

func TestInitReplacesInvalidStoredLevel(t *testing.T) {
	st := newFakeSettings()
	st.values[DefaultKey] = 42
	p, _ := newTestPolicy(t, st, Config{Floor: log.Error, Default: log.Info})

	p.Init()

	if p.Level() != log.Info {
		t.Fatalf("level = %v, want default Info", p.Level())
	}
	if st.values[DefaultKey] != uint8(log.Info) {
		t.Fatalf("invalid stored level not replaced: %v", st.values)
	}
}

func TestInitClampsStoredLevelBelowFloor(t *testing.T) {
	st := newFakeSettings()
	st.values[DefaultKey] = uint8(log.Off)
	p, _ := newTestPolicy(t, st, Config{Floor: log.Error, Default: log.Info})

	p.Init()

	if p.Level() != log.Error {
		t.Fatalf("level = %v, want floor Error", p.Level())
	}
	if st.values[DefaultKey] != uint8(log.Error) {
		t.Fatalf("clamped level not persisted: %v", st.values)
	}
}

func TestInitRunsOnce(t *testing.T) {
	st := newFakeSettings()
	p, _ := newTestPolicy(t, st, Config{Floor: log.Error, Default: log.Info})

	p.Init()
	st.values[DefaultKey] = uint8(log.Debug)
	p.Init()

	if p.Level() != log.Info {
		t.Fatalf("second Init re-read the store: level = %v", p.Level())
	}
}

func TestSetAppliesAndPersists(t *testing.T) {
	st := newFakeSettings()
	p, reg := newTestPolicy(t, st, Config{Floor: log.Error, Default: log.Info})
	p.Init()

	if err := p.Set(log.Debug); err != nil {
		t.Fatalf("set: %v", err)
	}
	if p.Level() != log.Debug || st.lastSet != uint8(log.Debug) {
		t.Fatalf("level = %v, persisted = %d", p.Level(), st.lastSet)
	}
	for _, src := range reg.Sources() {
		if src.Level() != log.Debug {
			t.Fatalf("source %s at %v after Set", src.Name(), src.Level())
		}
	}
}

func TestSetRejectsUnknownLevel(t *testing.T) {
	p, _ := newTestPolicy(t, newFakeSettings(), Config{Floor: log.Error, Default: log.Info})
	if err := p.Set(log.Level(9)); !errors.Is(err, ErrInvalidLevel) {
		t.Fatalf("set = %v, want ErrInvalidLevel", err)
	}
}

func TestSetNeverLandsBelowFloor(t *testing.T) {
	st := newFakeSettings()
	p, _ := newTestPolicy(t, st, Config{Floor: log.Warn, Default: log.Info})
	p.Init()

	// Every valid request ends at or above the floor, persisted to match.
	for _, lvl := range log.Levels() {
		if err := p.Set(lvl); err != nil {
			t.Fatalf("set %v: %v", lvl, err)
		}
		if p.Level() < log.Warn {
			t.Fatalf("Set(%v) landed at %v, below floor", lvl, p.Level())
		}
		if st.lastSet != uint8(p.Level()) {
			t.Fatalf("persisted %d, level %v", st.lastSet, p.Level())
		}
	}
}

func TestSetAppliesEvenWhenPersistFails(t *testing.T) {
	st := newFakeSettings()
	p, reg := newTestPolicy(t, st, Config{Floor: log.Error, Default: log.Info})
	p.Init()

	st.setErr = errors.New("store offline")
	err := p.Set(log.Debug)
	if !errors.Is(err, ErrPersist) {
		t.Fatalf("set = %v, want ErrPersist", err)
	}
	if p.Level() != log.Debug {
		t.Fatalf("level = %v, the running process should still change", p.Level())
	}
	for _, src := range reg.Sources() {
		if src.Level() != log.Debug {
			t.Fatalf("source %s not updated despite persist failure", src.Name())
		}
	}
}

func TestCeilingLimitsAcceptance(t *testing.T) {
	st := newFakeSettings()
	reg := log.NewRegistry(log.WithOutput(log.NewWriterOutput(discard{})))
	defer reg.Close()
	reg.Register("chatty", log.Debug)
	capped := reg.Register("quiet", log.Warn)

	p := New(st, reg, Config{Floor: log.Error, Default: log.Debug}, log.NewNop())
	p.Init()

	if capped.Level() != log.Warn {
		t.Fatalf("capped source at %v, want ceiling Warn", capped.Level())
	}
}
