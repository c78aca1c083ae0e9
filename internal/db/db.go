// Package db はデータベース接続の確立とマイグレーションを担います。
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"

	"github.com/yourusername/members-only/internal/db/migrations"
)

// Target は接続文字列から決まるドライバーと goose の方言です。
type Target struct {
	Driver  string
	Dialect string
	DSN     string
}

// ParseURL は DATABASE_URL を解釈します。
//
//	postgres://... / postgresql://...  → pgx
//	sqlite://path / sqlite::memory: / :memory: → go-sqlite3
func ParseURL(raw string) (Target, error) {
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return Target{Driver: "pgx", Dialect: "postgres", DSN: raw}, nil
	case strings.HasPrefix(raw, "sqlite://"):
		path := strings.TrimPrefix(raw, "sqlite://")
		if path == "" {
			return Target{}, fmt.Errorf("sqlite url has no path: %q", raw)
		}
		return Target{Driver: "sqlite3", Dialect: "sqlite3", DSN: path}, nil
	case strings.HasPrefix(raw, "sqlite:"):
		return Target{Driver: "sqlite3", Dialect: "sqlite3", DSN: strings.TrimPrefix(raw, "sqlite:")}, nil
	case raw == ":memory:":
		return Target{Driver: "sqlite3", Dialect: "sqlite3", DSN: raw}, nil
	default:
		return Target{}, fmt.Errorf("unsupported database url: %q", raw)
	}
}

// Open は接続を開き、疎通を確認します。
func Open(ctx context.Context, raw string) (*sql.DB, Target, error) {
	target, err := ParseURL(raw)
	if err != nil {
		return nil, Target{}, err
	}

	conn, err := sql.Open(target.Driver, target.DSN)
	if err != nil {
		return nil, Target{}, fmt.Errorf("db open error: %w", err)
	}
	if target.Driver == "sqlite3" {
		// SQLite は書き込みが単一接続に限られ、:memory: は接続ごとに別DBになる
		conn.SetMaxOpenConns(1)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, Target{}, fmt.Errorf("db ping error: %w", err)
	}

	return conn, target, nil
}

// Migrate は埋め込みマイグレーションを最新まで適用します。
func Migrate(ctx context.Context, conn *sql.DB, target Target) error {
	goose.SetBaseFS(migrations.FS)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(target.Dialect); err != nil {
		return fmt.Errorf("goose dialect error: %w", err)
	}
	if err := goose.UpContext(ctx, conn, "."); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}
