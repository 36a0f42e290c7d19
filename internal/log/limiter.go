package log

import (
	"sort"
	"sync"
	"time"
)

const (
	// defaultLimiterWindow suppresses repeats of the same diagnostic key
	// within this window.
	defaultLimiterWindow = 30 * time.Second

	// defaultLimiterMaxKeys bounds the tracking map; the oldest keys are
	// evicted once the map grows past this.
	defaultLimiterMaxKeys = 20
)

// Limiter throttles high-frequency diagnostics per key. The layout pipeline
// is recomputed on every event push and every navigation click, so an
// unparseable event would otherwise be reported hundreds of times; a Limiter
// emits each distinct key at most once per window and keeps its state in a
// bounded map.
//
// A Limiter is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	window   time.Duration
	maxKeys  int
	lastSeen map[string]time.Time

	// now is injectable for tests.
	now func() time.Time
}

// NewLimiter creates a Limiter. Zero window or maxKeys select the defaults.
func NewLimiter(window time.Duration, maxKeys int) *Limiter {
	if window <= 0 {
		window = defaultLimiterWindow
	}
	if maxKeys <= 0 {
		maxKeys = defaultLimiterMaxKeys
	}
	return &Limiter{
		window:   window,
		maxKeys:  maxKeys,
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

// Allow reports whether a diagnostic for the given key should be emitted now,
// and records the emission if so.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.lastSeen[key]; ok && now.Sub(last) < l.window {
		return false
	}

	l.lastSeen[key] = now
	if len(l.lastSeen) > l.maxKeys {
		l.evictOldest()
	}
	return true
}

// Errorf logs an error through the package logger if the key is allowed.
func (l *Limiter) Errorf(key, msg string, err error, kv ...any) {
	if l.Allow(key) {
		Error(msg, err, kv...)
	}
}

// Debugf logs a debug line through the package logger if the key is allowed.
func (l *Limiter) Debugf(key, msg string, kv ...any) {
	if l.Allow(key) {
		Debug(msg, kv...)
	}
}

// evictOldest trims the map back to maxKeys, dropping the stalest entries
// first. Caller holds l.mu.
func (l *Limiter) evictOldest() {
	type entry struct {
		key string
		at  time.Time
	}
	entries := make([]entry, 0, len(l.lastSeen))
	for k, at := range l.lastSeen {
		entries = append(entries, entry{k, at})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].at.After(entries[j].at) })
	for _, e := range entries[l.maxKeys:] {
		delete(l.lastSeen, e.key)
	}
}
