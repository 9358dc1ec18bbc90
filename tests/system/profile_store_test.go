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

// Package system provides integration tests that run against a real PostgreSQL database.
//
// Test Execution:
//
//	INTEGRATION_TEST=true go test -v ./tests/system/...
//
// Prerequisites:
//
//	docker compose up -d postgres
package system

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/pressdesk/pressdesk/internal/id"
	"github.com/pressdesk/pressdesk/internal/identity"
	"github.com/pressdesk/pressdesk/internal/store/postgres"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testDB is the shared database connection for integration tests
var testDB *postgres.DB

// TestMain sets up and tears down the test database connection
func TestMain(m *testing.M) {
	// Skip if not integration test
	if os.Getenv("INTEGRATION_TEST") != "true" {
		os.Exit(0)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, postgres.Config{
		Host:         getEnvOrDefault("DB_HOST", "localhost"),
		Port:         getEnvOrDefault("DB_PORT", "5432"),
		User:         getEnvOrDefault("DB_USER", "pressdesk"),
		Password:     getEnvOrDefault("DB_PASSWORD", "pressdesk_dev_password"),
		Database:     getEnvOrDefault("DB_NAME", "pressdesk"),
		SSLMode:      "disable",
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	})
	if err != nil {
		panic("failed to connect to test database: " + err.Error())
	}
	testDB = db

	// Apply migrations
	if err := db.Migrate(ctx, postgres.ProfileSchema); err != nil {
		// Ignore errors for already existing tables
		_ = err
	}

	code := m.Run()

	testDB.Close()
	os.Exit(code)
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestProfileRepository_CreateAndFind(t *testing.T) {
	if testDB == nil {
		t.Skip("Integration test requires database (set INTEGRATION_TEST=true)")
	}

	ctx := context.Background()
	repo := postgres.NewProfileRepository(testDB)

	email := "journo-" + id.NewUUIDv7()[:8] + "@newsroom.example"
	created := &identity.Admin{
		ID:     id.NewUUIDv7(),
		Email:  email,
		Name:   "Sam Reporter",
		Role:   identity.RoleJournalist,
		Active: true,
	}
	require.NoError(t, repo.Create(ctx, created))

	// Lookup is case-insensitive on email
	found, err := repo.FindByEmail(ctx, strings.ToUpper(email))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, identity.RoleJournalist, found.Role)
	assert.True(t, found.Active)

	// Absent profile is (nil, nil), not an error
	missing, err := repo.FindByEmail(ctx, "nobody-"+id.NewUUIDv7()[:8]+"@newsroom.example")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProfileRepository_RejectsInvalidRole(t *testing.T) {
	if testDB == nil {
		t.Skip("Integration test requires database (set INTEGRATION_TEST=true)")
	}

	ctx := context.Background()
	repo := postgres.NewProfileRepository(testDB)

	err := repo.Create(ctx, &identity.Admin{
		ID:     id.NewUUIDv7(),
		Email:  "bad-role-" + id.NewUUIDv7()[:8] + "@newsroom.example",
		Name:   "Bad Role",
		Role:   identity.Role("overlord"),
		Active: true,
	})
	assert.ErrorIs(t, err, identity.ErrInvalidRole)
}

func TestProfileRepository_Update(t *testing.T) {
	if testDB == nil {
		t.Skip("Integration test requires database (set INTEGRATION_TEST=true)")
	}

	ctx := context.Background()
	repo := postgres.NewProfileRepository(testDB)

	email := "promote-" + id.NewUUIDv7()[:8] + "@newsroom.example"
	admin := &identity.Admin{
		ID:     id.NewUUIDv7(),
		Email:  email,
		Name:   "Casey Author",
		Role:   identity.RoleAuthor,
		Active: true,
	}
	require.NoError(t, repo.Create(ctx, admin))

	newRole := identity.RoleEditor
	inactive := false
	updated, err := repo.Update(ctx, admin.ID, identity.ProfileUpdate{
		Role:   &newRole,
		Active: &inactive,
	})
	require.NoError(t, err)
	assert.Equal(t, identity.RoleEditor, updated.Role)
	assert.False(t, updated.Active)
	assert.Equal(t, "Casey Author", updated.Name, "unset fields keep their values")

	_, err = repo.Update(ctx, id.NewUUIDv7(), identity.ProfileUpdate{Role: &newRole})
	assert.ErrorIs(t, err, identity.ErrProfileNotFound)
}

func TestProfileRepository_List(t *testing.T) {
	if testDB == nil {
		t.Skip("Integration test requires database (set INTEGRATION_TEST=true)")
	}

	ctx := context.Background()
	repo := postgres.NewProfileRepository(testDB)

	email := "list-" + id.NewUUIDv7()[:8] + "@newsroom.example"
	require.NoError(t, repo.Create(ctx, &identity.Admin{
		ID:     id.NewUUIDv7(),
		Email:  email,
		Name:   "List Me",
		Role:   identity.RoleAdmin,
		Active: true,
	}))

	all, err := repo.List(ctx)
	require.NoError(t, err)

	found := false
	for _, a := range all {
		if a.Email == email {
			found = true
		}
	}
	assert.True(t, found)
}
