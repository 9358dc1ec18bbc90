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

package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pressdesk/pressdesk/internal/identity"
)

// ProfileRepository implements identity.ProfileStore
type ProfileRepository struct {
	db *DB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByEmail retrieves a profile by email, case-insensitively.
// Returns (nil, nil) when no profile exists for the address.
func (r *ProfileRepository) FindByEmail(ctx context.Context, email string) (*identity.Admin, error) {
	var admin identity.Admin
	var role string
	err := r.db.pool.QueryRow(ctx, `
		SELECT id, email, name, role, is_active, avatar_url, created_at
		FROM admin_profiles
		WHERE lower(email) = lower($1)
	`, email).Scan(&admin.ID, &admin.Email, &admin.Name, &role, &admin.Active, &admin.AvatarURL, &admin.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}
	admin.Role = identity.Role(role)
	return &admin, nil
}

// List retrieves all profiles ordered by creation time.
func (r *ProfileRepository) List(ctx context.Context) ([]*identity.Admin, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT id, email, name, role, is_active, avatar_url, created_at
		FROM admin_profiles
		ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var admins []*identity.Admin
	for rows.Next() {
		var admin identity.Admin
		var role string
		if err := rows.Scan(&admin.ID, &admin.Email, &admin.Name, &role, &admin.Active, &admin.AvatarURL, &admin.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		admin.Role = identity.Role(role)
		admins = append(admins, &admin)
	}
	return admins, rows.Err()
}

// Create inserts a new profile
func (r *ProfileRepository) Create(ctx context.Context, admin *identity.Admin) error {
	if !admin.Role.Valid() {
		return identity.ErrInvalidRole
	}
	now := time.Now()
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = now
	}
	_, err := r.db.pool.Exec(ctx, `
		INSERT INTO admin_profiles (id, email, name, role, is_active, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, admin.ID, strings.ToLower(admin.Email), admin.Name, string(admin.Role), admin.Active, admin.AvatarURL, admin.CreatedAt, now)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// Update applies the non-nil fields and returns the updated profile
func (r *ProfileRepository) Update(ctx context.Context, profileID string, fields identity.ProfileUpdate) (*identity.Admin, error) {
	if fields.Role != nil && !fields.Role.Valid() {
		return nil, identity.ErrInvalidRole
	}

	var admin identity.Admin
	var role string
	err := r.db.pool.QueryRow(ctx, `
		UPDATE admin_profiles SET
			name       = COALESCE($2, name),
			role       = COALESCE($3, role),
			is_active  = COALESCE($4, is_active),
			avatar_url = COALESCE($5, avatar_url),
			updated_at = now()
		WHERE id = $1
		RETURNING id, email, name, role, is_active, avatar_url, created_at
	`, profileID, fields.Name, (*string)(fields.Role), fields.Active, fields.AvatarURL).
		Scan(&admin.ID, &admin.Email, &admin.Name, &role, &admin.Active, &admin.AvatarURL, &admin.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	admin.Role = identity.Role(role)
	return &admin, nil
}
