package readiness

import "sync"

// Local is a process's own "I am ready" intent
type Local struct {
	mu    sync.Mutex
	ready bool
}

// Set records the intent and reports whether it changed
func (l *Local) Set(ready bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ready == ready {
		return false
	}
	l.ready = ready
	return true
}

// Ready returns the current intent
func (l *Local) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

// Observed tracks the replicated flag on a replica
// Seen returns true only for the first replicated true.
type Observed struct {
	mu       sync.Mutex
	allReady bool
	phase    string
}

// Seen records a replicated flag and reports whether it newly became true
func (o *Observed) Seen(allReady bool) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !allReady || o.allReady {
		return false
	}
	o.allReady = true
	return true
}

// SeenPhase records a replicated phase and reports whether it is new
func (o *Observed) SeenPhase(phase string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if phase == "" || o.phase != "" {
		return false
	}
	o.phase = phase
	return true
}

// AllReady returns the last replicated flag
func (o *Observed) AllReady() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.allReady
}

// Phase returns the replicated phase, empty until requested
func (o *Observed) Phase() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}
