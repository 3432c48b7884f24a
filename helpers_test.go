package gowizard

import (
	"context"
	"sync"
	"testing"
)

// TestLogger forwards log lines to the test output
type TestLogger struct {
	t *testing.T
}

func (l *TestLogger) Debug(format string, args ...interface{}) {
	l.t.Logf("[DEBUG] "+format, args...)
}

func (l *TestLogger) Info(format string, args ...interface{}) {
	l.t.Logf("[INFO] "+format, args...)
}

func (l *TestLogger) Warn(format string, args ...interface{}) {
	l.t.Logf("[WARN] "+format, args...)
}

func (l *TestLogger) Error(format string, args ...interface{}) {
	l.t.Logf("[ERROR] "+format, args...)
}

// eventRecorder collects events delivered to its listener
type eventRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *eventRecorder) listener() Listener {
	return func(ev Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, ev)
	}
}

func (r *eventRecorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *eventRecorder) types() []EventType {
	var out []EventType
	for _, ev := range r.all() {
		out = append(out, ev.Type)
	}
	return out
}

func (r *eventRecorder) count(typ EventType) int {
	n := 0
	for _, ev := range r.all() {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

// countingValidator records how often it ran and answers from a script.
// Once the script is exhausted the last answer repeats.
type countingValidator struct {
	mu      sync.Mutex
	calls   int
	answers []bool
}

func newCountingValidator(answers ...bool) *countingValidator {
	return &countingValidator{answers: answers}
}

func (v *countingValidator) Check(context.Context) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.calls++
	if len(v.answers) == 0 {
		return true, nil
	}
	i := min(v.calls-1, len(v.answers)-1)
	return v.answers[i], nil
}

func (v *countingValidator) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

// gateValidator blocks until released, signalling when it started.
type gateValidator struct {
	started chan struct{}
	release chan bool
}

func newGateValidator() *gateValidator {
	return &gateValidator{
		started: make(chan struct{}, 1),
		release: make(chan bool, 1),
	}
}

// Check ignores ctx on purpose so tests can settle it after a teardown.
func (g *gateValidator) Check(context.Context) (bool, error) {
	g.started <- struct{}{}
	return <-g.release, nil
}

func newTestEngine(t *testing.T, seq *Sequence, opts ...Option) (*Engine, *eventRecorder) {
	t.Helper()
	rec := &eventRecorder{}
	all := append([]Option{WithLogger(&TestLogger{t: t}), WithListener(rec.listener())}, opts...)
	return New(seq, all...), rec
}
