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

// Package local is an in-process identity provider for development and
// tests. It implements the same contract the hosted provider exposes,
// with Argon2id credential hashing, so the reconciler and transport
// can run end to end without network access. It is not a production
// provider.
package local

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pressdesk/pressdesk/internal/id"
	"github.com/pressdesk/pressdesk/internal/provider"
)

const sessionLifetime = 24 * time.Hour

type account struct {
	userID       string
	passwordHash string
}

// Provider is a credential-verifying IdentityProvider backed by an
// in-memory account table.
type Provider struct {
	provider.Notifier

	hasher *PasswordHasher

	mu       sync.Mutex
	accounts map[string]account
	current  *provider.Session
}

// New creates an empty local provider.
func New(hasher *PasswordHasher) *Provider {
	if hasher == nil {
		hasher = DefaultHasher()
	}
	return &Provider{
		hasher:   hasher,
		accounts: make(map[string]account),
	}
}

// AddAccount registers credentials for an email. Existing credentials
// for the same address are replaced.
func (p *Provider) AddAccount(email, password string) error {
	hash, err := p.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.accounts[strings.ToLower(email)] = account{
		userID:       id.NewUUIDv7(),
		passwordHash: hash,
	}
	return nil
}

// SignInWithPassword verifies credentials against the account table.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*provider.Session, error) {
	p.mu.Lock()
	acct, ok := p.accounts[strings.ToLower(email)]
	p.mu.Unlock()
	if !ok {
		return nil, provider.ErrInvalidCredentials
	}

	valid, err := p.hasher.Verify(password, acct.passwordHash)
	if err != nil || !valid {
		return nil, provider.ErrInvalidCredentials
	}

	session := &provider.Session{
		UserID:      acct.userID,
		Email:       strings.ToLower(email),
		AccessToken: id.NewUUIDv7(),
		ExpiresAt:   time.Now().Add(sessionLifetime),
	}

	p.mu.Lock()
	p.current = session
	p.mu.Unlock()
	p.Notify(session)

	return session, nil
}

// GetSession returns the current session or provider.ErrNoSession.
func (p *Provider) GetSession(ctx context.Context) (*provider.Session, error) {
	p.mu.Lock()
	session := p.current
	if session != nil && session.Expired() {
		p.current = nil
		session = nil
	}
	p.mu.Unlock()

	if session == nil {
		return nil, provider.ErrNoSession
	}
	return session, nil
}

// SignOut clears the current session and notifies subscribers.
func (p *Provider) SignOut(ctx context.Context) error {
	p.mu.Lock()
	p.current = nil
	p.mu.Unlock()
	p.Notify(nil)
	return nil
}
