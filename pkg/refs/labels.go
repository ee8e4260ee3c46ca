package refs

import (
	"context"
	"maps"
	"sync"
)

// Labels is the label table of one preview session.
//
// Entries are only ever added until [Labels.Reset]; a resolved label is
// never replaced. Tables must not be shared between sessions.
// Labels is safe for concurrent use.
type Labels struct {
	mu sync.RWMutex
	m  map[Key]string
}

// NewLabels returns an empty table.
func NewLabels() *Labels {
	return &Labels{m: make(map[Key]string)}
}

// Get returns the resolved label of k.
func (l *Labels) Get(k Key) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s, ok := l.m[k]
	return s, ok
}

// Label returns the resolved label of k, or k.ID while it is unresolved.
func (l *Labels) Label(k Key) string {
	if s, ok := l.Get(k); ok && s != "" {
		return s
	}
	return k.ID
}

// Has reports whether k has been resolved.
func (l *Labels) Has(k Key) bool {
	_, ok := l.Get(k)
	return ok
}

// Set records a label. An existing label for k is kept.
func (l *Labels) Set(k Key, label string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.m[k]; !ok {
		l.m[k] = label
	}
}

// setLive is Set that refuses to write once ctx is done. The check happens
// under the lock so a Reset following cancellation is never undone.
func (l *Labels) setLive(ctx context.Context, k Key, label string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	if _, ok := l.m[k]; !ok {
		l.m[k] = label
	}
	return true
}

// Len returns the number of resolved labels.
func (l *Labels) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.m)
}

// Snapshot returns a copy of the table.
func (l *Labels) Snapshot() map[Key]string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return maps.Clone(l.m)
}

// Reset removes every label.
func (l *Labels) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.m)
}
