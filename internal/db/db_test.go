package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/members-only/internal/db"
	"github.com/yourusername/members-only/internal/users"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		raw     string
		driver  string
		dialect string
		dsn     string
		wantErr bool
	}{
		{raw: "postgres://u:p@localhost:5432/app", driver: "pgx", dialect: "postgres", dsn: "postgres://u:p@localhost:5432/app"},
		{raw: "postgresql://localhost/app", driver: "pgx", dialect: "postgres", dsn: "postgresql://localhost/app"},
		{raw: "sqlite://data/app.db", driver: "sqlite3", dialect: "sqlite3", dsn: "data/app.db"},
		{raw: "sqlite::memory:", driver: "sqlite3", dialect: "sqlite3", dsn: ":memory:"},
		{raw: ":memory:", driver: "sqlite3", dialect: "sqlite3", dsn: ":memory:"},
		{raw: "sqlite://", wantErr: true},
		{raw: "mongodb://localhost/app", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := db.ParseURL(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.driver, got.Driver)
			assert.Equal(t, tt.dialect, got.Dialect)
			assert.Equal(t, tt.dsn, got.DSN)
		})
	}
}

func TestMigrateAndRepository(t *testing.T) {
	ctx := context.Background()
	conn, target, err := db.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, db.Migrate(ctx, conn, target))
	// 二度目は適用済みなので何もしない
	require.NoError(t, db.Migrate(ctx, conn, target))

	repo := users.NewSQLRepository(conn)
	created, err := repo.Create(ctx, &users.User{Username: "alice", PasswordHash: "hash"})
	require.NoError(t, err)

	byName, err := repo.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, created.ID, byName.ID)

	byID, err := repo.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", byID.Username)

	_, err = repo.GetByUsername(ctx, "Alice")
	assert.True(t, errors.Is(err, users.ErrNotFound), "lookup is exact match, got %v", err)

	_, err = repo.Create(ctx, &users.User{Username: "alice", PasswordHash: "other"})
	assert.ErrorContains(t, err, "db error")
}

func TestOpenRejectsUnknownURL(t *testing.T) {
	_, _, err := db.Open(context.Background(), "mysql://localhost/app")
	assert.Error(t, err)
}
