package local

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressdesk/pressdesk/internal/provider"
)

func testHasher() *PasswordHasher {
	// Minimal parameters keep the test suite fast.
	return NewPasswordHasher(8*1024, 1, 1, 16, 32)
}

func TestHasher_RoundTrip(t *testing.T) {
	h := testHasher()

	hash, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)

	valid, err := h.Verify("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, valid)

	valid, err = h.Verify("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestHasher_RejectsMalformedHash(t *testing.T) {
	h := testHasher()

	_, err := h.Verify("anything", "$bcrypt$nope")
	assert.Error(t, err)
}

func TestProvider_SignInLifecycle(t *testing.T) {
	ctx := context.Background()
	p := New(testHasher())
	require.NoError(t, p.AddAccount("chief@newsroom.test", "hunter2hunter2"))

	var notified []*provider.Session
	unsubscribe := p.OnSessionChange(func(s *provider.Session) {
		notified = append(notified, s)
	})
	defer unsubscribe()

	_, err := p.GetSession(ctx)
	assert.ErrorIs(t, err, provider.ErrNoSession)

	session, err := p.SignInWithPassword(ctx, "Chief@Newsroom.Test", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, "chief@newsroom.test", session.Email)
	assert.NotEmpty(t, session.AccessToken)

	got, err := p.GetSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.UserID, got.UserID)

	require.NoError(t, p.SignOut(ctx))
	_, err = p.GetSession(ctx)
	assert.ErrorIs(t, err, provider.ErrNoSession)

	require.Len(t, notified, 2)
	assert.NotNil(t, notified[0])
	assert.Nil(t, notified[1])
}

func TestProvider_BadCredentials(t *testing.T) {
	ctx := context.Background()
	p := New(testHasher())
	require.NoError(t, p.AddAccount("chief@newsroom.test", "hunter2hunter2"))

	_, err := p.SignInWithPassword(ctx, "chief@newsroom.test", "wrong")
	assert.ErrorIs(t, err, provider.ErrInvalidCredentials)

	_, err = p.SignInWithPassword(ctx, "nobody@newsroom.test", "hunter2hunter2")
	assert.ErrorIs(t, err, provider.ErrInvalidCredentials)

	// Failed sign-ins never mutate the session.
	_, err = p.GetSession(ctx)
	assert.ErrorIs(t, err, provider.ErrNoSession)
}

func TestNotifier_Unsubscribe(t *testing.T) {
	p := New(testHasher())

	calls := 0
	unsubscribe := p.OnSessionChange(func(*provider.Session) { calls++ })
	p.Notify(nil)
	unsubscribe()
	unsubscribe() // second call is harmless
	p.Notify(nil)

	assert.Equal(t, 1, calls)
}
