package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DBTX は *sql.DB と *sql.Tx の両方が満たす最小限のインターフェースです。
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLRepository は users テーブルを使うリポジトリです。
// プレースホルダは $n 形式のため PostgreSQL と SQLite の両方で動作します。
type SQLRepository struct {
	db  DBTX
	now func() time.Time
}

// NewSQLRepository は SQLRepository を作成します。
func NewSQLRepository(db DBTX) *SQLRepository {
	return &SQLRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Create はユーザーを登録します。ID と作成日時はここで採番します。
// ユーザー名の重複は一意制約違反としてそのままエラーになります。
func (r *SQLRepository) Create(ctx context.Context, user *User) (*User, error) {
	if user == nil {
		return nil, fmt.Errorf("user is nil")
	}

	created := *user
	created.ID = uuid.NewString()
	created.CreatedAt = r.now()

	query :=
		`INSERT INTO users (id, username, password_hash, created_at)
		 VALUES ($1, $2, $3, $4)`

	if _, err := r.db.ExecContext(ctx, query,
		created.ID, created.Username, created.PasswordHash, created.CreatedAt); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return &created, nil
}

// GetByUsername はユーザー名の完全一致で検索します。
func (r *SQLRepository) GetByUsername(ctx context.Context, username string) (*User, error) {
	query :=
		`SELECT id, username, password_hash, created_at FROM users
		 WHERE username = $1`

	return r.getOne(ctx, query, username)
}

// GetByID は ID で検索します。
func (r *SQLRepository) GetByID(ctx context.Context, id string) (*User, error) {
	query :=
		`SELECT id, username, password_hash, created_at FROM users
		 WHERE id = $1`

	return r.getOne(ctx, query, id)
}

func (r *SQLRepository) getOne(ctx context.Context, query string, arg string) (*User, error) {
	user := &User{}
	err := r.db.QueryRowContext(ctx, query, arg).
		Scan(&user.ID, &user.Username, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return user, nil
}
