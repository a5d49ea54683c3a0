package tokens

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/guardline/guardline-cli/internal/client/migrations"
	"github.com/guardline/guardline-cli/internal/client/models"
	"github.com/guardline/guardline-cli/internal/dbx"
)

// SQLiteStore keeps the token pair in a key-value metadata table.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenDatabase opens the client sqlite database and applies embedded goose
// migrations. The caller owns the returned handle.
func OpenDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// RunMigrations applies the embedded migrations to db.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	return goose.UpContext(ctx, db, ".")
}

// Save replaces the stored pair in a single transaction, so a crash cannot
// leave an access token paired with a stale refresh token.
func (s *SQLiteStore) Save(ctx context.Context, pair models.TokenPair) error {
	values := map[string]string{
		keyAccessToken:  pair.AccessToken,
		keyRefreshToken: pair.RefreshToken,
		keyTokenType:    pair.TokenType,
		keyIssuedAt:     pair.IssuedAt.UTC().Format(time.RFC3339),
		keyExpiresIn:    strconv.FormatInt(pair.ExpiresIn, 10),
	}

	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for key, value := range values {
			if err := set(ctx, tx, key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) Load(ctx context.Context) (*models.TokenPair, error) {
	access, err := get(ctx, s.db, keyAccessToken)
	if err != nil {
		return nil, err
	}
	refresh, err := get(ctx, s.db, keyRefreshToken)
	if err != nil {
		return nil, err
	}
	if access == "" && refresh == "" {
		return nil, nil
	}

	tokenType, err := get(ctx, s.db, keyTokenType)
	if err != nil {
		return nil, err
	}

	pair := &models.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenType,
	}

	// The bookkeeping fields may be corrupt (partial writes from older
	// versions, manual edits). Degrade to zero values rather than failing
	// the caller: the pair is still usable for a refresh exchange.
	if raw, err := get(ctx, s.db, keyIssuedAt); err != nil {
		return nil, err
	} else if raw != "" {
		if ts, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
			pair.IssuedAt = ts
		}
	}
	if raw, err := get(ctx, s.db, keyExpiresIn); err != nil {
		return nil, err
	} else if raw != "" {
		if n, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			pair.ExpiresIn = n
		}
	}

	return pair, nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	keys := []string{keyAccessToken, keyRefreshToken, keyTokenType, keyIssuedAt, keyExpiresIn}
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, key := range keys {
			if _, err := tx.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key); err != nil {
				return fmt.Errorf("failed to clear metadata[%s]: %w", key, err)
			}
		}
		return nil
	})
}

func get(ctx context.Context, q dbx.DBTX, key string) (string, error) {
	var value string
	err := q.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, nil
}

func set(ctx context.Context, q dbx.DBTX, key, value string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}
