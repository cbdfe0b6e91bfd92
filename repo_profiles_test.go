package dirauth_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	dirauth "github.com/nexusforge/go-dirauth"
)

const sqliteCreateProfiles = `CREATE TABLE profiles (
    id TEXT NOT NULL PRIMARY KEY,
    given_name TEXT NOT NULL,
    family_name TEXT NOT NULL,
    handle TEXT NOT NULL UNIQUE,
    avatar TEXT,
    email TEXT NOT NULL UNIQUE,
    role TEXT NOT NULL,
    status TEXT NOT NULL,
    confirmed BOOLEAN NOT NULL DEFAULT FALSE,
    confirmation_token TEXT,
    confirmation_expires TIMESTAMP NULL,
    terms_accepted BOOLEAN NOT NULL DEFAULT FALSE,
    terms_accepted_at TIMESTAMP NULL,
    terms_version TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP
);`

func setupProfilesRepo(t *testing.T) (dirauth.ProfileStore, func()) {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = db.Exec(sqliteCreateProfiles)
	require.NoError(t, err)

	cleanup := func() {
		_ = db.Close()
		_ = sqldb.Close()
	}

	return dirauth.NewProfilesRepository(db), cleanup
}

func seedProfile(t *testing.T, store dirauth.ProfileStore, mutate func(*dirauth.Profile)) *dirauth.Profile {
	t.Helper()

	profile := &dirauth.Profile{
		ID:         uuid.New(),
		GivenName:  "Nova",
		FamilyName: "Reyes",
		Handle:     "nova",
		Email:      "nova@example.local",
		Role:       dirauth.RolePlayer,
		Status:     dirauth.StatusActive,
	}
	if mutate != nil {
		mutate(profile)
	}

	created, err := store.Create(context.Background(), profile)
	require.NoError(t, err)
	return created
}

func TestProfilesRepository_Lookups(t *testing.T) {
	store, cleanup := setupProfilesRepo(t)
	defer cleanup()

	ctx := context.Background()
	seedProfile(t, store, nil)

	t.Run("finds by email", func(t *testing.T) {
		profile, err := store.GetByEmail(ctx, "nova@example.local")
		require.NoError(t, err)
		assert.Equal(t, "nova", profile.Handle)
	})

	t.Run("finds by handle", func(t *testing.T) {
		profile, err := store.GetByHandle(ctx, "nova")
		require.NoError(t, err)
		assert.Equal(t, "nova@example.local", profile.Email)
	})

	t.Run("misses report profile not found", func(t *testing.T) {
		_, err := store.GetByEmail(ctx, "ghost@example.local")
		require.Error(t, err)
		assert.True(t, dirauth.HasTextCode(err, "PROFILE_NOT_FOUND"))

		_, err = store.GetByHandle(ctx, "ghost")
		require.Error(t, err)
		assert.True(t, dirauth.HasTextCode(err, "PROFILE_NOT_FOUND"))
	})
}

func TestProfilesRepository_Uniqueness(t *testing.T) {
	store, cleanup := setupProfilesRepo(t)
	defer cleanup()

	ctx := context.Background()
	seedProfile(t, store, nil)

	t.Run("rejects a duplicate email", func(t *testing.T) {
		_, err := store.Create(ctx, &dirauth.Profile{
			ID:         uuid.New(),
			GivenName:  "Other",
			FamilyName: "Person",
			Handle:     "other",
			Email:      "nova@example.local",
		})
		require.Error(t, err)
	})

	t.Run("rejects a duplicate handle", func(t *testing.T) {
		_, err := store.Create(ctx, &dirauth.Profile{
			ID:         uuid.New(),
			GivenName:  "Other",
			FamilyName: "Person",
			Handle:     "nova",
			Email:      "other@example.local",
		})
		require.Error(t, err)
	})
}

func TestProfilesRepository_ConfirmationToken(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the profile holding an unexpired token", func(t *testing.T) {
		store, cleanup := setupProfilesRepo(t)
		defer cleanup()

		expires := time.Now().UTC().Add(time.Hour)
		seedProfile(t, store, func(p *dirauth.Profile) {
			p.ConfirmationToken = "live-token"
			p.ConfirmationExpires = &expires
		})

		profile, err := store.GetByConfirmationToken(ctx, "live-token", time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, "nova", profile.Handle)
	})

	t.Run("misses an expired token", func(t *testing.T) {
		store, cleanup := setupProfilesRepo(t)
		defer cleanup()

		expires := time.Now().UTC().Add(-time.Hour)
		seedProfile(t, store, func(p *dirauth.Profile) {
			p.ConfirmationToken = "stale-token"
			p.ConfirmationExpires = &expires
		})

		_, err := store.GetByConfirmationToken(ctx, "stale-token", time.Now().UTC())
		require.Error(t, err)
		assert.True(t, dirauth.HasTextCode(err, "PROFILE_NOT_FOUND"))
	})

	t.Run("misses an unknown token", func(t *testing.T) {
		store, cleanup := setupProfilesRepo(t)
		defer cleanup()

		_, err := store.GetByConfirmationToken(ctx, "nope", time.Now().UTC())
		require.Error(t, err)
	})
}

func TestProfilesRepository_MarkConfirmed(t *testing.T) {
	store, cleanup := setupProfilesRepo(t)
	defer cleanup()

	ctx := context.Background()
	expires := time.Now().UTC().Add(time.Hour)
	profile := seedProfile(t, store, func(p *dirauth.Profile) {
		p.ConfirmationToken = "one-shot"
		p.ConfirmationExpires = &expires
	})

	confirmed, err := store.MarkConfirmed(ctx, profile)
	require.NoError(t, err)
	assert.True(t, confirmed.Confirmed)
	assert.Empty(t, confirmed.ConfirmationToken)
	assert.Nil(t, confirmed.ConfirmationExpires)

	// The token row is gone, so a second redemption cannot find it.
	_, err = store.GetByConfirmationToken(ctx, "one-shot", time.Now().UTC())
	require.Error(t, err)

	reloaded, err := store.GetByHandle(ctx, "nova")
	require.NoError(t, err)
	assert.True(t, reloaded.Confirmed)
}

func TestProfilesRepository_Update(t *testing.T) {
	store, cleanup := setupProfilesRepo(t)
	defer cleanup()

	ctx := context.Background()
	profile := seedProfile(t, store, nil)

	profile.Status = dirauth.StatusSuspended
	updated, err := store.Update(ctx, profile)
	require.NoError(t, err)
	assert.Equal(t, dirauth.StatusSuspended, updated.Status)

	reloaded, err := store.GetByHandle(ctx, "nova")
	require.NoError(t, err)
	assert.Equal(t, dirauth.StatusSuspended, reloaded.Status)
}
