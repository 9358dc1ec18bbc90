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

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RESTConfig holds settings for the hosted identity provider API.
type RESTConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// RESTClient talks to a hosted password-auth endpoint
// (POST {base}/token?grant_type=password, POST {base}/logout). It
// tracks the session it obtained and fans out change notifications,
// which makes it a complete IdentityProvider for a single gate
// instance.
type RESTClient struct {
	Notifier

	cfg  RESTConfig
	http *http.Client

	mu      sync.Mutex
	current *Session
}

// NewRESTClient creates a client for the provider at cfg.BaseURL.
func NewRESTClient(cfg RESTConfig) *RESTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RESTClient{
		cfg:  cfg,
		http: &http.Client{Timeout: timeout},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	User        struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
}

// SignInWithPassword exchanges credentials for a session. A 4xx from
// the provider is a credential rejection; transport failures and 5xx
// map to ErrProviderUnavailable.
func (c *RESTClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	body, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("failed to encode sign-in request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/token?grant_type=password"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build sign-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("apikey", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", ErrProviderUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, ErrInvalidCredentials
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("failed to decode sign-in response: %w", err)
	}

	session := &Session{
		UserID:      tok.User.ID,
		Email:       tok.User.Email,
		AccessToken: tok.AccessToken,
		ExpiresAt:   time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second),
	}
	// Prefer the claims baked into the access token over the response
	// envelope; the token is what downstream services will trust. The
	// token arrived over the provider's TLS channel, so signature
	// verification is deferred to the services that accept it.
	if claims := parseSessionClaims(tok.AccessToken); claims != nil {
		if claims.Email != "" {
			session.Email = claims.Email
		}
		if claims.Subject != "" {
			session.UserID = claims.Subject
		}
		if claims.ExpiresAt != nil {
			session.ExpiresAt = claims.ExpiresAt.Time
		}
	}

	c.mu.Lock()
	c.current = session
	c.mu.Unlock()
	c.Notify(session)

	return session, nil
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

func parseSessionClaims(accessToken string) *sessionClaims {
	var claims sessionClaims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(accessToken, &claims); err != nil {
		return nil
	}
	return &claims
}

// GetSession returns the tracked session, dropping it if expired.
func (c *RESTClient) GetSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	session := c.current
	if session != nil && session.Expired() {
		c.current = nil
		session = nil
	}
	c.mu.Unlock()

	if session == nil {
		return nil, ErrNoSession
	}
	return session, nil
}

// SignOut revokes the session with the provider and clears the local
// one regardless of the revocation outcome.
func (c *RESTClient) SignOut(ctx context.Context) error {
	c.mu.Lock()
	session := c.current
	c.current = nil
	c.mu.Unlock()

	defer c.Notify(nil)

	if session == nil {
		return nil
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/logout"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build sign-out request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)
	if c.cfg.APIKey != "" {
		req.Header.Set("apikey", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	resp.Body.Close()
	return nil
}
