package testutil

import (
	"strings"
	"sync"
	"time"
)

// NopLogger логгер, который ничего не пишет
type NopLogger struct{}

func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}

// FixedClock управляемое время
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance сдвигает время вперёд
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// TransitionRecorder запоминает переходы статусов платежей вместо prometheus
type TransitionRecorder struct {
	mu          sync.Mutex
	Transitions []string
	Callbacks   []string
	Reconciled  map[string]int
}

func (r *TransitionRecorder) RecordPaymentTransition(method, from, to string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Transitions = append(r.Transitions, method+":"+from+"->"+to)
}

func (r *TransitionRecorder) RecordCallbackOutcome(method, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Callbacks = append(r.Callbacks, method+":"+outcome)
}

func (r *TransitionRecorder) RecordReconciled(kind string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Reconciled == nil {
		r.Reconciled = make(map[string]int)
	}
	r.Reconciled[kind] += n
}

// CallbackOutcomes копия учтённых исходов обратных вызовов
func (r *TransitionRecorder) CallbackOutcomes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.Callbacks...)
}

// Count количество переходов в указанный статус
func (r *TransitionRecorder) Count(suffix string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.Transitions {
		if strings.HasSuffix(t, suffix) {
			n++
		}
	}
	return n
}
