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

// Package session owns the reconciled "current admin" value. The
// reconciler is the sole writer of identity state: login and logout go
// through the identity provider, and the provider's session-change
// notifications drive every transition.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/pressdesk/pressdesk/internal/audit"
	"github.com/pressdesk/pressdesk/internal/identity"
	"github.com/pressdesk/pressdesk/internal/observability/logger"
	"github.com/pressdesk/pressdesk/internal/provider"
	"github.com/pressdesk/pressdesk/internal/ratelimit"
	"github.com/pressdesk/pressdesk/internal/store"
)

// Domain errors
var (
	ErrCredentialsRejected = errors.New("credentials rejected")
	ErrLockedOut           = errors.New("too many failed login attempts")
	ErrNoProfile           = errors.New("no admin profile for account")
)

// LockedOutError carries the remaining lockout for display. It unwraps
// to ErrLockedOut so callers can match either way.
type LockedOutError struct {
	RemainingSeconds int
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("too many failed login attempts, retry in %ds", e.RemainingSeconds)
}

func (e *LockedOutError) Unwrap() error { return ErrLockedOut }

// State describes the reconciler's authentication state.
type State int

const (
	// Unauthenticated: no current identity.
	Unauthenticated State = iota

	// OptimisticallyAuthenticated: an identity synthesized for the
	// distinguished super-admin, not yet confirmed by the profile
	// store. Deliberately over-permissive for at most the duration of
	// one profile lookup, and only for that single address.
	OptimisticallyAuthenticated

	// ConfirmedAuthenticated: the profile store's record is in place.
	ConfirmedAuthenticated
)

func (s State) String() string {
	switch s {
	case OptimisticallyAuthenticated:
		return "optimistic"
	case ConfirmedAuthenticated:
		return "confirmed"
	default:
		return "unauthenticated"
	}
}

const lookupTimeout = 10 * time.Second

// Config holds reconciler settings.
type Config struct {
	// SuperAdminEmail is the distinguished address granted a
	// synchronous optimistic identity on sign-in. Deliberately a
	// configuration value, never an inline literal, so deployments can
	// audit or disable it (empty disables the fast path entirely).
	SuperAdminEmail string
}

// Reconciler subscribes to identity-provider session changes and keeps
// the authoritative current-admin value, confirming optimistic values
// against the profile store.
type Reconciler struct {
	cfg      Config
	provider provider.IdentityProvider
	profiles identity.ProfileStore
	limiter  *ratelimit.Limiter
	states   store.StateStore
	auditLog audit.Logger

	mu          sync.Mutex
	state       State
	current     *identity.Admin
	gen         uint64
	observers   map[int]func(*identity.Admin)
	nextObs     int
	unsubscribe func()
}

// New creates a reconciler. Call Start to perform cold-start
// reconciliation and begin listening for session changes.
func New(
	cfg Config,
	idp provider.IdentityProvider,
	profiles identity.ProfileStore,
	limiter *ratelimit.Limiter,
	states store.StateStore,
	auditLog audit.Logger,
) *Reconciler {
	return &Reconciler{
		cfg:       cfg,
		provider:  idp,
		profiles:  profiles,
		limiter:   limiter,
		states:    states,
		auditLog:  auditLog,
		observers: make(map[int]func(*identity.Admin)),
	}
}

// Start queries the provider for an existing session and subscribes to
// change notifications. On cold start there is no optimistic path: the
// session either confirms against the profile store or the reconciler
// stays unauthenticated.
func (r *Reconciler) Start(ctx context.Context) error {
	sess, err := r.provider.GetSession(ctx)
	if err != nil && !errors.Is(err, provider.ErrNoSession) {
		slog.WarnContext(ctx, "cold-start session query failed", logger.Error(err))
	}
	if sess != nil && !sess.Expired() {
		admin, lookupErr := r.profiles.FindByEmail(ctx, sess.Email)
		if lookupErr != nil {
			slog.WarnContext(ctx, "cold-start profile lookup failed",
				logger.Email(sess.Email), logger.Error(lookupErr))
		}
		if admin != nil {
			r.setConfirmed(ctx, admin)
		}
	}

	r.mu.Lock()
	r.unsubscribe = r.provider.OnSessionChange(r.handleSessionChange)
	r.mu.Unlock()

	r.limiter.Start()
	return nil
}

// Close unsubscribes from the provider and stops the limiter tick. The
// reconciler must not be reused afterwards.
func (r *Reconciler) Close() {
	r.mu.Lock()
	unsubscribe := r.unsubscribe
	r.unsubscribe = nil
	r.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	r.limiter.Stop()
}

// Current returns the reconciled admin, nil when unauthenticated.
func (r *Reconciler) Current() *identity.Admin {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// State returns the reconciler's authentication state.
func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Limiter exposes the login rate limiter for display purposes.
func (r *Reconciler) Limiter() *ratelimit.Limiter {
	return r.limiter
}

// Subscribe registers an observer for identity changes. Observers are
// invoked outside the reconciler lock, in no particular order. The
// returned function unsubscribes.
func (r *Reconciler) Subscribe(fn func(*identity.Admin)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	obsID := r.nextObs
	r.nextObs++
	r.observers[obsID] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.observers, obsID)
	}
}

func (r *Reconciler) notify(admin *identity.Admin) {
	r.mu.Lock()
	observers := make([]func(*identity.Admin), 0, len(r.observers))
	for _, fn := range r.observers {
		observers = append(observers, fn)
	}
	r.mu.Unlock()

	for _, fn := range observers {
		fn(admin)
	}
}

// handleSessionChange is the sole writer of identity state. The
// nil-session and super-admin branches complete synchronously, before
// any network round-trip; profile confirmation runs concurrently and
// is discarded when a newer notification has superseded it.
func (r *Reconciler) handleSessionChange(sess *provider.Session) {
	ctx := context.Background()

	r.mu.Lock()
	r.gen++
	myGen := r.gen

	if sess == nil {
		r.state = Unauthenticated
		r.current = nil
		r.mu.Unlock()

		r.clearCachedIdentity(ctx)
		r.auditLog.Log(ctx, audit.Event{
			Type:     audit.TypeSessionCleared,
			Resource: "session",
		})
		r.notify(nil)
		return
	}

	email := strings.ToLower(sess.Email)
	if r.isSuperAdmin(email) {
		// Policy exception, see Config.SuperAdminEmail: the synthesized
		// identity carries the most permissive role, so the window
		// before confirmation can only be over-permissive for this one
		// address, never under-permissive.
		r.current = &identity.Admin{
			ID:        sess.UserID,
			Email:     email,
			Name:      "Super Admin",
			Role:      identity.RoleAdmin,
			Active:    true,
			CreatedAt: time.Now(),
		}
		r.state = OptimisticallyAuthenticated
		optimistic := r.current
		r.mu.Unlock()
		r.notify(optimistic)
	} else {
		r.mu.Unlock()
	}

	go r.confirm(myGen, email)
}

// confirm resolves the profile for a session-change event. The
// generation tag guards the ordering hazard of overlapping lookups: a
// slow response for an older event never overwrites a newer state.
func (r *Reconciler) confirm(myGen uint64, email string) {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	admin, err := r.profiles.FindByEmail(ctx, email)

	r.mu.Lock()
	if r.gen != myGen {
		r.mu.Unlock()
		return
	}
	if err != nil {
		// Lookup failure is not a user-facing error: the identity just
		// stays unconfirmed.
		r.mu.Unlock()
		slog.WarnContext(ctx, "profile lookup failed, identity unconfirmed",
			logger.Email(email), logger.Error(err))
		return
	}
	if admin == nil {
		// No profile row. The optimistic super-admin identity, if any,
		// stands; any other address stays unauthenticated.
		r.mu.Unlock()
		return
	}
	r.current = admin
	r.state = ConfirmedAuthenticated
	r.mu.Unlock()

	r.persistCachedIdentity(ctx, admin)
	r.auditLog.Log(ctx, audit.Event{
		Type:     audit.TypeSessionConfirmed,
		ActorID:  admin.ID,
		Resource: "session",
		Metadata: map[string]any{
			audit.AttrEmail: admin.Email,
			audit.AttrRole:  string(admin.Role),
		},
	})
	r.notify(admin)
}

// setConfirmed installs a confirmed identity outside the notification
// path (cold start).
func (r *Reconciler) setConfirmed(ctx context.Context, admin *identity.Admin) {
	r.mu.Lock()
	r.current = admin
	r.state = ConfirmedAuthenticated
	r.mu.Unlock()

	r.persistCachedIdentity(ctx, admin)
	r.notify(admin)
}

// Login verifies credentials through the provider. It never writes
// identity state directly; the session-change subscription does that.
// The returned admin is a best-effort immediate value for the caller.
func (r *Reconciler) Login(ctx context.Context, email, password string) (*identity.Admin, error) {
	if r.limiter.IsLocked() {
		remaining := r.limiter.RemainingLockout()
		r.auditLog.Log(ctx, audit.Event{
			Type:     audit.TypeLoginLocked,
			Resource: "login",
			Metadata: map[string]any{
				audit.AttrEmail:     strings.ToLower(email),
				audit.AttrRemaining: remaining,
			},
		})
		return nil, &LockedOutError{RemainingSeconds: remaining}
	}

	sess, err := r.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		if errors.Is(err, provider.ErrInvalidCredentials) {
			wasLocked := r.limiter.IsLocked()
			r.limiter.RecordAttempt(false)
			r.auditLog.Log(ctx, audit.Event{
				Type:     audit.TypeLoginFailed,
				Resource: "login",
				Metadata: map[string]any{
					audit.AttrEmail:    strings.ToLower(email),
					audit.AttrReason:   "invalid_credentials",
					audit.AttrAttempts: r.limiter.Attempts(),
				},
			})
			if !wasLocked && r.limiter.IsLocked() {
				r.auditLog.Log(ctx, audit.Event{
					Type:     audit.TypeLockoutStarted,
					Resource: "login",
					Metadata: map[string]any{
						audit.AttrEmail:     strings.ToLower(email),
						audit.AttrRemaining: r.limiter.RemainingLockout(),
					},
				})
			}
			return nil, ErrCredentialsRejected
		}
		return nil, fmt.Errorf("sign-in failed: %w", err)
	}

	r.limiter.RecordAttempt(true)

	// Best-effort synchronous resolution for the caller's return value.
	// The subscription callback performs the authoritative transition.
	admin, lookupErr := r.profiles.FindByEmail(ctx, sess.Email)
	if lookupErr != nil {
		slog.WarnContext(ctx, "post-login profile lookup failed",
			logger.Email(sess.Email), logger.Error(lookupErr))
	}
	if admin == nil {
		if !r.isSuperAdmin(strings.ToLower(sess.Email)) {
			// The account authenticated but has no admin profile. Treat
			// this as an explicit failure and sign the dangling provider
			// session out so state converges to unauthenticated.
			if signOutErr := r.provider.SignOut(ctx); signOutErr != nil {
				slog.WarnContext(ctx, "failed to sign out profileless session", logger.Error(signOutErr))
			}
			return nil, ErrNoProfile
		}
		// Super-admin fallback: an operator is never locked out by a
		// missing profile row. This exception applies to exactly one
		// configured address and must not be generalized.
		admin = &identity.Admin{
			ID:        sess.UserID,
			Email:     strings.ToLower(sess.Email),
			Name:      "Super Admin",
			Role:      identity.RoleAdmin,
			Active:    true,
			CreatedAt: time.Now(),
		}
	}

	r.auditLog.Log(ctx, audit.Event{
		Type:     audit.TypeLoginSuccess,
		ActorID:  admin.ID,
		Resource: "login",
		Metadata: map[string]any{
			audit.AttrEmail: admin.Email,
			audit.AttrRole:  string(admin.Role),
		},
	})

	return admin, nil
}

// Logout signs out of the provider, then clears local state whether or
// not the provider call succeeded. Safe to call repeatedly.
func (r *Reconciler) Logout(ctx context.Context) error {
	actorID := ""
	if current := r.Current(); current != nil {
		actorID = current.ID
	}

	if err := r.provider.SignOut(ctx); err != nil {
		slog.WarnContext(ctx, "provider sign-out failed, clearing local state anyway", logger.Error(err))
	}

	r.mu.Lock()
	r.gen++
	r.state = Unauthenticated
	r.current = nil
	r.mu.Unlock()

	r.clearCachedIdentity(ctx)
	r.auditLog.Log(ctx, audit.Event{
		Type:     audit.TypeLogout,
		ActorID:  actorID,
		Resource: "session",
	})
	r.notify(nil)
	return nil
}

func (r *Reconciler) isSuperAdmin(email string) bool {
	return r.cfg.SuperAdminEmail != "" && strings.EqualFold(email, r.cfg.SuperAdminEmail)
}

// cachedIdentity is the advisory blob persisted for fast first paint.
// Consumers must re-validate against the provider before trusting it.
type cachedIdentity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Active    bool      `json:"isActive"`
	AvatarURL string    `json:"avatar"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r *Reconciler) persistCachedIdentity(ctx context.Context, admin *identity.Admin) {
	data, err := json.Marshal(cachedIdentity{
		ID:        admin.ID,
		Email:     admin.Email,
		Name:      admin.Name,
		Role:      string(admin.Role),
		Active:    admin.Active,
		AvatarURL: admin.AvatarURL,
		CreatedAt: admin.CreatedAt,
	})
	if err != nil {
		return
	}
	if err := r.states.Save(ctx, store.KeyCachedIdentity, data); err != nil {
		slog.WarnContext(ctx, "failed to cache identity", logger.Error(err))
	}
}

func (r *Reconciler) clearCachedIdentity(ctx context.Context) {
	if err := r.states.Delete(ctx, store.KeyCachedIdentity); err != nil {
		slog.WarnContext(ctx, "failed to clear cached identity", logger.Error(err))
	}
}

// CachedIdentity returns the advisory cached identity, or nil. It says
// nothing about whether a session is live.
func (r *Reconciler) CachedIdentity(ctx context.Context) *identity.Admin {
	data, err := r.states.Load(ctx, store.KeyCachedIdentity)
	if err != nil {
		return nil
	}
	var cached cachedIdentity
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil
	}
	return &identity.Admin{
		ID:        cached.ID,
		Email:     cached.Email,
		Name:      cached.Name,
		Role:      identity.Role(cached.Role),
		Active:    cached.Active,
		AvatarURL: cached.AvatarURL,
		CreatedAt: cached.CreatedAt,
	}
}
