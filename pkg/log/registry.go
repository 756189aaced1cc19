package log

import (
	"sync"
	"sync/atomic"
	"time"
)

// Entry is one log event flowing through the registry pipeline.
type Entry struct {
	Time    time.Time
	Level   Level
	Source  string
	Message string
	Fields  []Field
}

// Registry owns the set of named log sources and the shared
// formatter/output pipeline they emit through.
type Registry struct {
	mu        sync.RWMutex
	sources   []*Source
	byName    map[string]*Source
	formatter Formatter
	outputs   []Output

	// applied is the last level handed to SetAll, -1 before any. Sources
	// registered later inherit it so a global level survives registration
	// order.
	applied atomic.Int32
}

// Option configures a Registry.
type Option func(*Registry)

// WithFormatter sets the entry formatter. Defaults to TextFormatter.
func WithFormatter(f Formatter) Option {
	return func(r *Registry) { r.formatter = f }
}

// WithOutput appends an output to the pipeline.
func WithOutput(o Output) Option {
	return func(r *Registry) { r.outputs = append(r.outputs, o) }
}

// NewRegistry builds a registry. Without options it formats as text and
// writes to the console.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{byName: make(map[string]*Source)}
	r.applied.Store(-1)
	for _, opt := range opts {
		opt(r)
	}
	if r.formatter == nil {
		r.formatter = &TextFormatter{}
	}
	if len(r.outputs) == 0 {
		r.outputs = append(r.outputs, NewConsoleOutput())
	}
	return r
}

// Register creates (or returns the existing) source with the given name.
// The ceiling is the source's build-time maximum verbosity; runtime changes
// can never raise a source above it. New sources start at their ceiling, or
// at the last SetAll level when one has been applied.
func (r *Registry) Register(name string, ceiling Level) *Source {
	if !ceiling.Valid() {
		ceiling = MaxLevel
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.byName[name]; ok {
		return s
	}
	s := &Source{reg: r, name: name, ceiling: ceiling}
	start := ceiling
	if a := r.applied.Load(); a >= 0 && Level(a) < start {
		start = Level(a)
	}
	s.level.Store(uint32(start))
	r.sources = append(r.sources, s)
	r.byName[name] = s
	return s
}

// AddOutput appends an output after construction (used to attach sinks that
// themselves need other subsystems up first).
func (r *Registry) AddOutput(o Output) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs = append(r.outputs, o)
}

// Sources returns the registered sources in registration order.
func (r *Registry) Sources() []*Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// SetAll applies level to every source and returns how many sources now run
// at exactly that level. A source whose ceiling is below the requested level
// clamps to the ceiling and does not count as accepting. The level sticks:
// sources registered afterwards inherit it.
func (r *Registry) SetAll(level Level) int {
	if !level.Valid() {
		level = MaxLevel
	}
	r.applied.Store(int32(level))
	accepted := 0
	for _, s := range r.Sources() {
		if s.SetLevel(level) == level {
			accepted++
		}
	}
	return accepted
}

// Close closes every output. The registry is unusable afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	outs := r.outputs
	r.outputs = nil
	r.mu.Unlock()
	var first error
	for _, o := range outs {
		if err := o.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// dispatch formats the entry once and hands it to every output. Output
// failures are deliberately swallowed here; outputs that need to surface
// delivery errors (such as persistent sinks) track them on their own.
func (r *Registry) dispatch(e *Entry) {
	r.mu.RLock()
	f := r.formatter
	outs := r.outputs
	r.mu.RUnlock()

	formatted, err := f.Format(e)
	if err != nil {
		return
	}
	for _, o := range outs {
		_ = o.Write(e, formatted)
	}
}

// Source is one named origin of log entries with an immutable build ceiling
// and an adjustable runtime level.
type Source struct {
	reg     *Registry
	name    string
	ceiling Level
	level   atomic.Uint32
}

// Name returns the source name.
func (s *Source) Name() string { return s.name }

// Ceiling returns the build-time maximum verbosity.
func (s *Source) Ceiling() Level { return s.ceiling }

// Level returns the effective level: the runtime level clamped by the
// ceiling.
func (s *Source) Level() Level {
	l := Level(s.level.Load())
	if l > s.ceiling {
		return s.ceiling
	}
	return l
}

// SetLevel stores a new runtime level and returns the effective level after
// clamping against the ceiling.
func (s *Source) SetLevel(l Level) Level {
	if !l.Valid() {
		l = MaxLevel
	}
	if l > s.ceiling {
		l = s.ceiling
	}
	s.level.Store(uint32(l))
	return l
}

// Enabled reports whether a message at the given severity would be emitted.
func (s *Source) Enabled(l Level) bool {
	if l == Off || !l.Valid() {
		return false
	}
	return l <= s.Level()
}

// Logger returns a logger bound to this source with optional base fields.
func (s *Source) Logger(fields ...Field) Logger {
	return &sourceLogger{src: s, fields: fields}
}
