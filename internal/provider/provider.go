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

// Package provider defines the identity-provider contract the gate
// consumes. Credential verification, token issuance and password
// storage are the provider's business; the gate only sees sessions.
package provider

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Domain errors
var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrNoSession           = errors.New("no active session")
	ErrProviderUnavailable = errors.New("identity provider unavailable")
)

// Session is a provider-issued session. Email is the verified address
// the provider bound the session to.
type Session struct {
	UserID      string
	Email       string
	AccessToken string
	ExpiresAt   time.Time
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// SessionHandler receives session-change notifications. A nil session
// means signed out.
type SessionHandler func(session *Session)

// IdentityProvider is the external collaborator that authenticates
// credentials and owns session lifecycle.
type IdentityProvider interface {
	// SignInWithPassword verifies credentials. ErrInvalidCredentials is
	// the rejection path; any other error is a provider failure.
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)

	// GetSession returns the current session, or ErrNoSession. Called
	// once at startup for cold-start reconciliation.
	GetSession(ctx context.Context) (*Session, error)

	// OnSessionChange registers a handler for session transitions and
	// returns its unsubscribe function.
	OnSessionChange(handler SessionHandler) (unsubscribe func())

	// SignOut terminates the current session.
	SignOut(ctx context.Context) error
}

// Notifier implements the subscription half of the contract. Provider
// implementations embed it and call Notify on session transitions.
type Notifier struct {
	mu       sync.Mutex
	next     int
	handlers map[int]SessionHandler
}

// OnSessionChange registers a handler. The returned function removes
// it; calling it more than once is harmless.
func (n *Notifier) OnSessionChange(handler SessionHandler) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.handlers == nil {
		n.handlers = make(map[int]SessionHandler)
	}
	id := n.next
	n.next++
	n.handlers[id] = handler
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		delete(n.handlers, id)
	}
}

// Notify delivers a session change to every registered handler.
// Handlers run outside the notifier lock so they may re-subscribe.
func (n *Notifier) Notify(session *Session) {
	n.mu.Lock()
	handlers := make([]SessionHandler, 0, len(n.handlers))
	for _, h := range n.handlers {
		handlers = append(handlers, h)
	}
	n.mu.Unlock()

	for _, h := range handlers {
		h(session)
	}
}
