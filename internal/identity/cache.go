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

package identity

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedProfileStore decorates a ProfileStore with a bounded, expiring
// email -> profile cache. The cache is advisory: writes go straight
// through and invalidate, and a cached miss is never stored, so a
// profile created after a miss becomes visible on the next lookup.
type CachedProfileStore struct {
	inner ProfileStore
	cache *expirable.LRU[string, *Admin]
}

// NewCachedProfileStore wraps inner with an LRU of the given size and TTL.
func NewCachedProfileStore(inner ProfileStore, size int, ttl time.Duration) *CachedProfileStore {
	return &CachedProfileStore{
		inner: inner,
		cache: expirable.NewLRU[string, *Admin](size, nil, ttl),
	}
}

// FindByEmail serves from the cache when possible.
func (s *CachedProfileStore) FindByEmail(ctx context.Context, email string) (*Admin, error) {
	key := strings.ToLower(email)
	if admin, ok := s.cache.Get(key); ok {
		return admin, nil
	}
	admin, err := s.inner.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if admin != nil {
		s.cache.Add(key, admin)
	}
	return admin, nil
}

// List always hits the inner store.
func (s *CachedProfileStore) List(ctx context.Context) ([]*Admin, error) {
	return s.inner.List(ctx)
}

// Create writes through and primes the cache.
func (s *CachedProfileStore) Create(ctx context.Context, admin *Admin) error {
	if err := s.inner.Create(ctx, admin); err != nil {
		return err
	}
	s.cache.Add(strings.ToLower(admin.Email), admin)
	return nil
}

// Update writes through and replaces the cached entry.
func (s *CachedProfileStore) Update(ctx context.Context, id string, fields ProfileUpdate) (*Admin, error) {
	admin, err := s.inner.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	s.cache.Add(strings.ToLower(admin.Email), admin)
	return admin, nil
}
