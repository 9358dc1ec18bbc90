// Copyright 2026 The Pressdesk Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ratelimit throttles failed login attempts with a sliding
// window and a timed lockout. The limiter guards a client instance,
// not a credential: two gates in front of the same account each keep
// their own count. That tradeoff is inherited from the admin console
// this gate fronts and is documented rather than fixed here.
package ratelimit

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/pressdesk/pressdesk/internal/observability/logger"
	"github.com/pressdesk/pressdesk/internal/store"
)

// State is the limiter's logical state.
type State int

const (
	// StateOpen: no attempts counted against the current window.
	StateOpen State = iota

	// StateWarning: failed attempts recorded, window active, below the
	// lockout threshold.
	StateWarning

	// StateLocked: threshold reached, lockout timer running.
	StateLocked
)

// Config holds limiter settings. All values must be positive; the
// constructor does not check them.
type Config struct {
	MaxAttempts int
	Window      time.Duration
	Lockout     time.Duration
}

// persisted is the JSON layout written to the state store. Timestamps
// are millisecond epoch values, null when unset.
type persisted struct {
	Attempts     int    `json:"attempts"`
	FirstAttempt *int64 `json:"firstAttemptTime"`
	LockedUntil  *int64 `json:"lockedUntil"`
}

// Limiter tracks failed attempts. All methods are safe for concurrent
// use. In-memory state is authoritative; the store is best-effort
// persistence across restarts, and write failures are swallowed.
type Limiter struct {
	mu  sync.Mutex
	cfg Config

	states store.StateStore
	key    string
	now    func() time.Time

	attempts     int
	firstAttempt time.Time // zero means no window open
	lockedUntil  time.Time // zero means not locked

	tickInterval time.Duration
	stopTick     chan struct{}
	tickDone     chan struct{}
}

// Option customizes a Limiter.
type Option func(*Limiter)

// WithClock substitutes the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithTickInterval overrides the 1s re-evaluation interval.
func WithTickInterval(d time.Duration) Option {
	return func(l *Limiter) { l.tickInterval = d }
}

// New creates a limiter and restores any state persisted under key.
// A failed or corrupt load starts the limiter open.
func New(cfg Config, states store.StateStore, key string, opts ...Option) *Limiter {
	l := &Limiter{
		cfg:          cfg,
		states:       states,
		key:          key,
		now:          time.Now,
		tickInterval: time.Second,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.restore()
	return l
}

func (l *Limiter) restore() {
	data, err := l.states.Load(context.Background(), l.key)
	if err != nil {
		return
	}
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	l.attempts = p.Attempts
	if p.FirstAttempt != nil {
		l.firstAttempt = time.UnixMilli(*p.FirstAttempt)
	}
	if p.LockedUntil != nil {
		l.lockedUntil = time.UnixMilli(*p.LockedUntil)
	}
}

// persist writes the current state. Failures are logged and swallowed:
// the limiter stays correct in memory for the life of this process.
func (l *Limiter) persist() {
	p := persisted{Attempts: l.attempts}
	if !l.firstAttempt.IsZero() {
		ms := l.firstAttempt.UnixMilli()
		p.FirstAttempt = &ms
	}
	if !l.lockedUntil.IsZero() {
		ms := l.lockedUntil.UnixMilli()
		p.LockedUntil = &ms
	}
	data, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := l.states.Save(context.Background(), l.key, data); err != nil {
		slog.Warn("failed to persist limiter state", logger.Error(err))
	}
}

// RecordAttempt counts a login outcome. Success resets the limiter
// unconditionally. A failure while locked is ignored; otherwise an
// expired window restarts the count at one, an active window
// increments in place, and crossing the threshold starts the lockout.
func (l *Limiter) RecordAttempt(success bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if success {
		l.attempts = 0
		l.firstAttempt = time.Time{}
		l.lockedUntil = time.Time{}
		l.persist()
		return
	}

	if l.lockedLocked(now) {
		return
	}

	if !l.firstAttempt.IsZero() && now.Sub(l.firstAttempt) > l.cfg.Window {
		l.attempts = 0
		l.firstAttempt = time.Time{}
	}
	if l.firstAttempt.IsZero() {
		l.firstAttempt = now
	}
	l.attempts++
	if l.attempts >= l.cfg.MaxAttempts {
		l.lockedUntil = now.Add(l.cfg.Lockout)
	}
	l.persist()
}

// Reset forces the limiter open regardless of current state. Used
// after successful out-of-band verification.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.attempts = 0
	l.firstAttempt = time.Time{}
	l.lockedUntil = time.Time{}
	l.persist()
}

// lockedLocked reports an active lockout. Caller holds l.mu.
func (l *Limiter) lockedLocked(now time.Time) bool {
	return !l.lockedUntil.IsZero() && l.lockedUntil.After(now)
}

// IsLocked reports whether the lockout timer is active.
func (l *Limiter) IsLocked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lockedLocked(l.now())
}

// Attempts returns the failed attempts counted in the current window.
func (l *Limiter) Attempts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts
}

// State returns the limiter's logical state.
func (l *Limiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	switch {
	case l.lockedLocked(now):
		return StateLocked
	case l.attempts > 0 && !l.firstAttempt.IsZero() && now.Sub(l.firstAttempt) <= l.cfg.Window:
		return StateWarning
	default:
		return StateOpen
	}
}

// RemainingLockout returns the seconds left on the lockout, rounded
// up, clamped at zero.
func (l *Limiter) RemainingLockout() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if !l.lockedLocked(now) {
		return 0
	}
	remaining := l.lockedUntil.Sub(now)
	return int((remaining + time.Second - 1) / time.Second)
}

// evaluate re-checks the clock without a new attempt: an expired
// lockout or an expired window with no lock transitions back to open.
func (l *Limiter) evaluate() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !l.lockedUntil.IsZero() && !l.lockedUntil.After(now) {
		l.attempts = 0
		l.firstAttempt = time.Time{}
		l.lockedUntil = time.Time{}
		l.persist()
		return
	}
	if l.lockedUntil.IsZero() && !l.firstAttempt.IsZero() && now.Sub(l.firstAttempt) > l.cfg.Window {
		l.attempts = 0
		l.firstAttempt = time.Time{}
		l.persist()
	}
}

// Start arms the periodic re-evaluation tick. Re-arming cancels the
// previous timer; there is never more than one active per limiter.
func (l *Limiter) Start() {
	l.Stop()
	l.mu.Lock()
	stop := make(chan struct{})
	done := make(chan struct{})
	l.stopTick = stop
	l.tickDone = done
	interval := l.tickInterval
	l.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.evaluate()
			case <-stop:
				return
			}
		}
	}()
}

// Stop cancels the re-evaluation tick. Safe to call when not started.
func (l *Limiter) Stop() {
	l.mu.Lock()
	stop := l.stopTick
	done := l.tickDone
	l.stopTick = nil
	l.tickDone = nil
	l.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
}
