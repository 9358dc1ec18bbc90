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
	"errors"
	"time"
)

// Domain errors
var (
	ErrProfileNotFound      = errors.New("profile not found")
	ErrProfileAlreadyExists = errors.New("profile already exists")
	ErrInvalidRole          = errors.New("invalid role")
)

// Role is the closed set of newsroom roles. A profile holds exactly one
// role at a time; only an administrative update may change it.
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleEditor     Role = "editor"
	RoleAuthor     Role = "author"
	RoleJournalist Role = "journalist"
)

// Roles lists every valid role. Order matters for deterministic
// validation output, not for semantics.
var Roles = []Role{RoleAdmin, RoleEditor, RoleAuthor, RoleJournalist}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleAuthor, RoleJournalist:
		return true
	}
	return false
}

// Admin is the reconciled current admin user. The session reconciler is
// the only writer; every other component reads it.
type Admin struct {
	ID        string
	Email     string
	Name      string
	Role      Role
	Active    bool
	AvatarURL string
	CreatedAt time.Time
}

// ProfileStore looks up and maintains admin profiles by verified email.
// FindByEmail returns (nil, nil) when no profile exists; an error means
// the lookup itself failed and the caller must treat the identity as
// unconfirmed, not as absent.
type ProfileStore interface {
	FindByEmail(ctx context.Context, email string) (*Admin, error)
	List(ctx context.Context) ([]*Admin, error)
	Create(ctx context.Context, admin *Admin) error
	Update(ctx context.Context, id string, fields ProfileUpdate) (*Admin, error)
}

// ProfileUpdate carries the mutable profile fields. Nil means "leave as is".
type ProfileUpdate struct {
	Name      *string
	Role      *Role
	Active    *bool
	AvatarURL *string
}
