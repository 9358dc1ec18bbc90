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

package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressdesk/pressdesk/internal/audit"
	"github.com/pressdesk/pressdesk/internal/identity"
	"github.com/pressdesk/pressdesk/internal/provider"
	"github.com/pressdesk/pressdesk/internal/ratelimit"
	"github.com/pressdesk/pressdesk/internal/session"
	"github.com/pressdesk/pressdesk/internal/store"
)

const superAdminEmail = "chief@newsroom.test"

// mockProvider is a hand-driven IdentityProvider.
type mockProvider struct {
	provider.Notifier

	mu           sync.Mutex
	session      *provider.Session
	signInErr    error
	signOutCalls int
}

func (m *mockProvider) SignInWithPassword(_ context.Context, email, _ string) (*provider.Session, error) {
	m.mu.Lock()
	if m.signInErr != nil {
		err := m.signInErr
		m.mu.Unlock()
		return nil, err
	}
	sess := &provider.Session{
		UserID:      "uid-" + email,
		Email:       email,
		AccessToken: "token",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	m.session = sess
	m.mu.Unlock()
	m.Notify(sess)
	return sess, nil
}

func (m *mockProvider) GetSession(context.Context) (*provider.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, provider.ErrNoSession
	}
	return m.session, nil
}

func (m *mockProvider) SignOut(context.Context) error {
	m.mu.Lock()
	m.signOutCalls++
	m.session = nil
	m.mu.Unlock()
	m.Notify(nil)
	return nil
}

func (m *mockProvider) signOuts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.signOutCalls
}

// mockProfiles is an in-memory ProfileStore whose lookups can be held
// open through the gate channel to exercise the async paths.
type mockProfiles struct {
	mu      sync.Mutex
	byEmail map[string]*identity.Admin
	err     error
	gate    chan struct{}
}

func newMockProfiles() *mockProfiles {
	return &mockProfiles{byEmail: make(map[string]*identity.Admin)}
}

func (m *mockProfiles) add(admin *identity.Admin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byEmail[admin.Email] = admin
}

func (m *mockProfiles) FindByEmail(ctx context.Context, email string) (*identity.Admin, error) {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.byEmail[email], nil
}

func (m *mockProfiles) List(context.Context) ([]*identity.Admin, error) { return nil, nil }

func (m *mockProfiles) Create(_ context.Context, admin *identity.Admin) error {
	m.add(admin)
	return nil
}

func (m *mockProfiles) Update(context.Context, string, identity.ProfileUpdate) (*identity.Admin, error) {
	return nil, identity.ErrProfileNotFound
}

func limiterConfig() ratelimit.Config {
	return ratelimit.Config{MaxAttempts: 5, Window: 15 * time.Minute, Lockout: 30 * time.Minute}
}

func newTestReconciler(t *testing.T, idp *mockProvider, profiles *mockProfiles) *session.Reconciler {
	t.Helper()
	states := store.NewMemoryStore()
	limiter := ratelimit.New(limiterConfig(), states, store.KeyLoginAttempts)
	r := session.New(
		session.Config{SuperAdminEmail: superAdminEmail},
		idp, profiles, limiter, states, audit.NewSlogLogger(),
	)
	require.NoError(t, r.Start(context.Background()))
	t.Cleanup(r.Close)
	return r
}

func TestReconciler_ColdStartConfirmsExistingSession(t *testing.T) {
	idp := &mockProvider{session: &provider.Session{
		UserID:    "u1",
		Email:     "editor@newsroom.test",
		ExpiresAt: time.Now().Add(time.Hour),
	}}
	profiles := newMockProfiles()
	profiles.add(&identity.Admin{ID: "u1", Email: "editor@newsroom.test", Role: identity.RoleEditor, Active: true})

	r := newTestReconciler(t, idp, profiles)

	assert.Equal(t, session.ConfirmedAuthenticated, r.State())
	require.NotNil(t, r.Current())
	assert.Equal(t, identity.RoleEditor, r.Current().Role)
}

func TestReconciler_ColdStartWithoutProfileStaysUnauthenticated(t *testing.T) {
	// No optimistic path on cold start, even for the super admin.
	idp := &mockProvider{session: &provider.Session{
		UserID:    "u0",
		Email:     superAdminEmail,
		ExpiresAt: time.Now().Add(time.Hour),
	}}
	r := newTestReconciler(t, idp, newMockProfiles())

	assert.Equal(t, session.Unauthenticated, r.State())
	assert.Nil(t, r.Current())
}

func TestReconciler_SuperAdminOptimisticPathIsSynchronous(t *testing.T) {
	idp := &mockProvider{}
	profiles := newMockProfiles()
	gate := make(chan struct{})
	profiles.gate = gate
	profiles.add(&identity.Admin{ID: "real-id", Email: superAdminEmail, Name: "Dana", Role: identity.RoleAdmin, Active: true})

	r := newTestReconciler(t, idp, profiles)

	// The lookup is still blocked when the notification lands, yet the
	// identity must already be present with the admin role.
	idp.Notify(&provider.Session{UserID: "opt-id", Email: superAdminEmail, ExpiresAt: time.Now().Add(time.Hour)})

	require.NotNil(t, r.Current())
	assert.Equal(t, identity.RoleAdmin, r.Current().Role)
	assert.Equal(t, session.OptimisticallyAuthenticated, r.State())
	assert.Equal(t, "opt-id", r.Current().ID)

	// Once the profile resolves, it overwrites the optimistic value.
	close(gate)
	require.Eventually(t, func() bool {
		return r.State() == session.ConfirmedAuthenticated
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, "real-id", r.Current().ID)
	assert.Equal(t, "Dana", r.Current().Name)
}

func TestReconciler_NoOptimisticIdentityForOtherEmails(t *testing.T) {
	idp := &mockProvider{}
	profiles := newMockProfiles()
	gate := make(chan struct{})
	profiles.gate = gate

	r := newTestReconciler(t, idp, profiles)

	idp.Notify(&provider.Session{UserID: "u2", Email: "writer@newsroom.test", ExpiresAt: time.Now().Add(time.Hour)})
	assert.Nil(t, r.Current())
	assert.Equal(t, session.Unauthenticated, r.State())

	// No profile row either: stays unauthenticated after resolution.
	close(gate)
	time.Sleep(20 * time.Millisecond)
	assert.Nil(t, r.Current())
}

func TestReconciler_NilSessionDiscardsStaleLookup(t *testing.T) {
	idp := &mockProvider{}
	profiles := newMockProfiles()
	gate := make(chan struct{})
	profiles.gate = gate
	profiles.add(&identity.Admin{ID: "u3", Email: "editor@newsroom.test", Role: identity.RoleEditor, Active: true})

	r := newTestReconciler(t, idp, profiles)

	idp.Notify(&provider.Session{UserID: "u3", Email: "editor@newsroom.test", ExpiresAt: time.Now().Add(time.Hour)})
	idp.Notify(nil)
	assert.Equal(t, session.Unauthenticated, r.State())

	// The earlier lookup resolves afterwards and must be discarded.
	close(gate)
	time.Sleep(20 * time.Millisecond)
	assert.Nil(t, r.Current())
	assert.Equal(t, session.Unauthenticated, r.State())
}

func TestReconciler_ConfirmedIdentityFromNotification(t *testing.T) {
	idp := &mockProvider{}
	profiles := newMockProfiles()
	profiles.add(&identity.Admin{ID: "u4", Email: "writer@newsroom.test", Role: identity.RoleJournalist, Active: true})

	r := newTestReconciler(t, idp, profiles)

	idp.Notify(&provider.Session{UserID: "u4", Email: "writer@newsroom.test", ExpiresAt: time.Now().Add(time.Hour)})
	require.Eventually(t, func() bool {
		return r.State() == session.ConfirmedAuthenticated
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, identity.RoleJournalist, r.Current().Role)
}

func TestReconciler_LoginRejectedDoesNotMutateState(t *testing.T) {
	idp := &mockProvider{signInErr: provider.ErrInvalidCredentials}
	r := newTestReconciler(t, idp, newMockProfiles())

	_, err := r.Login(context.Background(), "editor@newsroom.test", "wrong")
	assert.ErrorIs(t, err, session.ErrCredentialsRejected)
	assert.Nil(t, r.Current())
	assert.Equal(t, 1, r.Limiter().Attempts())
}

func TestReconciler_LoginLockoutAfterRepeatedFailures(t *testing.T) {
	idp := &mockProvider{signInErr: provider.ErrInvalidCredentials}
	r := newTestReconciler(t, idp, newMockProfiles())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := r.Login(ctx, "editor@newsroom.test", "wrong")
		assert.ErrorIs(t, err, session.ErrCredentialsRejected)
	}

	_, err := r.Login(ctx, "editor@newsroom.test", "wrong")
	require.ErrorIs(t, err, session.ErrLockedOut)

	var lockedOut *session.LockedOutError
	require.ErrorAs(t, err, &lockedOut)
	assert.Equal(t, 1800, lockedOut.RemainingSeconds)

	// The locked attempt never reached the limiter's counter.
	assert.Equal(t, 5, r.Limiter().Attempts())
}

func TestReconciler_LoginSuccessResetsLimiter(t *testing.T) {
	idp := &mockProvider{signInErr: provider.ErrInvalidCredentials}
	profiles := newMockProfiles()
	profiles.add(&identity.Admin{ID: "u5", Email: "editor@newsroom.test", Role: identity.RoleEditor, Active: true})
	r := newTestReconciler(t, idp, profiles)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = r.Login(ctx, "editor@newsroom.test", "wrong")
	}
	require.Equal(t, 3, r.Limiter().Attempts())

	idp.mu.Lock()
	idp.signInErr = nil
	idp.mu.Unlock()

	admin, err := r.Login(ctx, "editor@newsroom.test", "right")
	require.NoError(t, err)
	assert.Equal(t, identity.RoleEditor, admin.Role)
	assert.Equal(t, 0, r.Limiter().Attempts())
}

func TestReconciler_LoginWithoutProfileFailsExplicitly(t *testing.T) {
	idp := &mockProvider{}
	r := newTestReconciler(t, idp, newMockProfiles())

	_, err := r.Login(context.Background(), "stranger@newsroom.test", "right")
	assert.ErrorIs(t, err, session.ErrNoProfile)

	// The dangling provider session is signed out again.
	assert.Equal(t, 1, idp.signOuts())
	assert.Equal(t, session.Unauthenticated, r.State())
}

func TestReconciler_LoginSuperAdminFallbackWithoutProfile(t *testing.T) {
	idp := &mockProvider{}
	r := newTestReconciler(t, idp, newMockProfiles())

	admin, err := r.Login(context.Background(), superAdminEmail, "right")
	require.NoError(t, err)
	assert.Equal(t, identity.RoleAdmin, admin.Role)
	assert.True(t, admin.Active)
}

func TestReconciler_LogoutIsIdempotent(t *testing.T) {
	idp := &mockProvider{}
	profiles := newMockProfiles()
	profiles.add(&identity.Admin{ID: "u6", Email: "editor@newsroom.test", Role: identity.RoleEditor, Active: true})
	r := newTestReconciler(t, idp, profiles)
	ctx := context.Background()

	_, err := r.Login(ctx, "editor@newsroom.test", "right")
	require.NoError(t, err)

	require.NoError(t, r.Logout(ctx))
	assert.Equal(t, session.Unauthenticated, r.State())
	assert.Nil(t, r.Current())

	require.NoError(t, r.Logout(ctx))
	assert.Equal(t, session.Unauthenticated, r.State())
}

func TestReconciler_ObserversSeeTransitions(t *testing.T) {
	idp := &mockProvider{}
	profiles := newMockProfiles()
	profiles.add(&identity.Admin{ID: "u7", Email: "editor@newsroom.test", Role: identity.RoleEditor, Active: true})
	r := newTestReconciler(t, idp, profiles)

	var mu sync.Mutex
	var seen []*identity.Admin
	unsubscribe := r.Subscribe(func(admin *identity.Admin) {
		mu.Lock()
		seen = append(seen, admin)
		mu.Unlock()
	})
	defer unsubscribe()

	idp.Notify(&provider.Session{UserID: "u7", Email: "editor@newsroom.test", ExpiresAt: time.Now().Add(time.Hour)})
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) >= 1 && seen[len(seen)-1] != nil
	}, time.Second, 5*time.Millisecond)

	idp.Notify(nil)
	mu.Lock()
	last := seen[len(seen)-1]
	mu.Unlock()
	assert.Nil(t, last)
}

func TestReconciler_CachedIdentityWrittenAndCleared(t *testing.T) {
	idp := &mockProvider{}
	profiles := newMockProfiles()
	profiles.add(&identity.Admin{ID: "u8", Email: "editor@newsroom.test", Role: identity.RoleEditor, Active: true})

	states := store.NewMemoryStore()
	limiter := ratelimit.New(limiterConfig(), states, store.KeyLoginAttempts)
	r := session.New(
		session.Config{SuperAdminEmail: superAdminEmail},
		idp, profiles, limiter, states, audit.NewSlogLogger(),
	)
	require.NoError(t, r.Start(context.Background()))
	defer r.Close()
	ctx := context.Background()

	idp.Notify(&provider.Session{UserID: "u8", Email: "editor@newsroom.test", ExpiresAt: time.Now().Add(time.Hour)})
	require.Eventually(t, func() bool {
		return r.CachedIdentity(ctx) != nil
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, identity.RoleEditor, r.CachedIdentity(ctx).Role)

	require.NoError(t, r.Logout(ctx))
	assert.Nil(t, r.CachedIdentity(ctx))
}
