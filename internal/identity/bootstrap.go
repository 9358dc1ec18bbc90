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
	"fmt"
	"strings"
	"time"

	"github.com/pressdesk/pressdesk/internal/audit"
	"github.com/pressdesk/pressdesk/internal/id"
)

// BootstrapService seeds the profile row for the distinguished
// super-admin so the optimistic login path eventually confirms against
// a real record instead of living on the synthesized identity forever.
type BootstrapService struct {
	profiles    ProfileStore
	auditLogger audit.Logger
}

// NewBootstrapService creates a new bootstrap service.
func NewBootstrapService(profiles ProfileStore, auditLogger audit.Logger) *BootstrapService {
	return &BootstrapService{profiles: profiles, auditLogger: auditLogger}
}

// Bootstrap ensures a profile exists for the configured super-admin
// email. It is a no-op when the email is empty or the profile is
// already present.
func (s *BootstrapService) Bootstrap(ctx context.Context, superAdminEmail string) error {
	if superAdminEmail == "" {
		return nil
	}

	email := strings.ToLower(superAdminEmail)
	existing, err := s.profiles.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check for existing super-admin profile: %w", err)
	}
	if existing != nil {
		return nil
	}

	admin := &Admin{
		ID:        id.NewUUIDv7(),
		Email:     email,
		Name:      "Super Admin",
		Role:      RoleAdmin,
		Active:    true,
		CreatedAt: time.Now(),
	}
	if err := s.profiles.Create(ctx, admin); err != nil {
		return fmt.Errorf("failed to create super-admin profile: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeProfileCreated,
		ActorID:  admin.ID,
		Resource: "profile",
		Metadata: map[string]any{
			audit.AttrEmail: email,
			audit.AttrRole:  string(RoleAdmin),
		},
	})

	return nil
}
