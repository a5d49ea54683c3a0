package tokens

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/guardline/guardline-cli/internal/client/models"
)

func setupStore(t *testing.T) (*SQLiteStore, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE metadata (
  key   TEXT PRIMARY KEY,
  value BLOB NOT NULL
);
`)
	require.NoError(t, err)
	return NewSQLiteStore(db), db
}

func samplePair() models.TokenPair {
	return models.TokenPair{
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		TokenType:    "bearer",
		ExpiresIn:    900,
		IssuedAt:     time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteStoreSaveLoad(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, samplePair()))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, "access-token", loaded.AccessToken)
	require.Equal(t, "refresh-token", loaded.RefreshToken)
	require.Equal(t, "bearer", loaded.TokenType)
	require.EqualValues(t, 900, loaded.ExpiresIn)
	require.True(t, loaded.IssuedAt.Equal(samplePair().IssuedAt))
}

func TestSQLiteStoreSaveOverwrites(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, samplePair()))

	rotated := samplePair()
	rotated.AccessToken = "new-access"
	rotated.RefreshToken = "new-refresh"
	require.NoError(t, store.Save(ctx, rotated))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "new-access", loaded.AccessToken)
	require.Equal(t, "new-refresh", loaded.RefreshToken)
}

func TestSQLiteStoreLoadAbsent(t *testing.T) {
	store, _ := setupStore(t)

	loaded, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestSQLiteStoreLoadCorruptBookkeeping(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, samplePair()))
	_, err := db.Exec(`UPDATE metadata SET value = 'garbage' WHERE key IN (?, ?)`, keyIssuedAt, keyExpiresIn)
	require.NoError(t, err)

	// Tokens survive; unparseable bookkeeping degrades to zero values.
	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, "access-token", loaded.AccessToken)
	require.True(t, loaded.IssuedAt.IsZero())
	require.Zero(t, loaded.ExpiresIn)
}

func TestSQLiteStoreClear(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, samplePair()))
	require.NoError(t, store.Clear(ctx))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, loaded)

	// Clearing an empty store stays a no-op.
	require.NoError(t, store.Clear(ctx))
}

func TestSQLiteStoreNeverHoldsPassword(t *testing.T) {
	store, db := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, samplePair()))

	rows, err := db.Query(`SELECT value FROM metadata`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var v string
		require.NoError(t, rows.Scan(&v))
		require.NotContains(t, v, "password")
	}
	require.NoError(t, rows.Err())
}

func TestOpenDatabaseAppliesMigrations(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDatabase(ctx, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := NewSQLiteStore(db)
	require.NoError(t, store.Save(ctx, samplePair()))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, loaded)

	require.NoError(t, store.Save(ctx, samplePair()))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "access-token", loaded.AccessToken)

	// Mutating the loaded copy must not leak into the store.
	loaded.AccessToken = "mutated"
	again, err := store.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, "access-token", again.AccessToken)

	require.NoError(t, store.Clear(ctx))
	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	require.Nil(t, loaded)
}
