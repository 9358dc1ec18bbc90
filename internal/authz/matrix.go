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

package authz

import (
	"errors"
	"fmt"

	"github.com/pressdesk/pressdesk/internal/identity"
)

// Domain errors
var (
	ErrIncompleteMatrix = errors.New("permission matrix is incomplete")
	ErrUnknownRole      = errors.New("unknown role in permission matrix")
)

// Capability is a named boolean permission granted per role.
type Capability string

const (
	CapCreateArticles   Capability = "createArticles"
	CapEditOwnArticles  Capability = "editOwnArticles"
	CapEditAllArticles  Capability = "editAllArticles"
	CapPublishArticles  Capability = "publishArticles"
	CapDeleteArticles   Capability = "deleteArticles"
	CapManageMedia      Capability = "manageMedia"
	CapModerateComments Capability = "moderateComments"
	CapViewAnalytics    Capability = "viewAnalytics"
	CapManageUsers      Capability = "manageUsers"
	CapManageSettings   Capability = "manageSettings"
)

// Capabilities lists every capability the matrix must cover.
var Capabilities = []Capability{
	CapCreateArticles,
	CapEditOwnArticles,
	CapEditAllArticles,
	CapPublishArticles,
	CapDeleteArticles,
	CapManageMedia,
	CapModerateComments,
	CapViewAnalytics,
	CapManageUsers,
	CapManageSettings,
}

// Matrix maps every role to an explicit grant for every capability.
// There is no implicit default: a role/capability pair missing from the
// matrix is a configuration error, caught by Validate at load time.
type Matrix map[identity.Role]map[Capability]bool

// DefaultMatrix returns the built-in newsroom permission matrix.
func DefaultMatrix() Matrix {
	return Matrix{
		identity.RoleAdmin: {
			CapCreateArticles:   true,
			CapEditOwnArticles:  true,
			CapEditAllArticles:  true,
			CapPublishArticles:  true,
			CapDeleteArticles:   true,
			CapManageMedia:      true,
			CapModerateComments: true,
			CapViewAnalytics:    true,
			CapManageUsers:      true,
			CapManageSettings:   true,
		},
		identity.RoleEditor: {
			CapCreateArticles:   true,
			CapEditOwnArticles:  true,
			CapEditAllArticles:  true,
			CapPublishArticles:  true,
			CapDeleteArticles:   true,
			CapManageMedia:      true,
			CapModerateComments: true,
			CapViewAnalytics:    true,
			CapManageUsers:      false,
			CapManageSettings:   false,
		},
		identity.RoleAuthor: {
			CapCreateArticles:   true,
			CapEditOwnArticles:  true,
			CapEditAllArticles:  false,
			CapPublishArticles:  true,
			CapDeleteArticles:   false,
			CapManageMedia:      true,
			CapModerateComments: false,
			CapViewAnalytics:    false,
			CapManageUsers:      false,
			CapManageSettings:   false,
		},
		identity.RoleJournalist: {
			CapCreateArticles:   true,
			CapEditOwnArticles:  true,
			CapEditAllArticles:  false,
			CapPublishArticles:  false,
			CapDeleteArticles:   false,
			CapManageMedia:      false,
			CapModerateComments: false,
			CapViewAnalytics:    false,
			CapManageUsers:      false,
			CapManageSettings:   false,
		},
	}
}

// Validate checks the completeness invariant: every known role has an
// explicit entry for every capability, and no unknown roles appear.
func (m Matrix) Validate() error {
	for role := range m {
		if !role.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownRole, role)
		}
	}
	for _, role := range identity.Roles {
		grants, ok := m[role]
		if !ok {
			return fmt.Errorf("%w: role %q has no entries", ErrIncompleteMatrix, role)
		}
		for _, cap := range Capabilities {
			if _, ok := grants[cap]; !ok {
				return fmt.Errorf("%w: role %q missing capability %q", ErrIncompleteMatrix, role, cap)
			}
		}
	}
	return nil
}

// HasPermission reports whether the role grants the capability. Unknown
// roles and unknown capabilities resolve to false.
func (m Matrix) HasPermission(role identity.Role, cap Capability) bool {
	grants, ok := m[role]
	if !ok {
		return false
	}
	return grants[cap]
}
