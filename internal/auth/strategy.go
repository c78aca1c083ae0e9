package auth

import (
	"context"
	"errors"

	"github.com/yourusername/members-only/internal/users"
)

// Failure はログイン失敗の理由を表します。Message はそのまま利用者に表示されます。
type Failure struct {
	Message string
}

func (f *Failure) Error() string {
	return f.Message
}

var (
	ErrMissingCredentials = &Failure{Message: "Missing credentials"}
	ErrIncorrectUsername  = &Failure{Message: "Incorrect username"}
	ErrIncorrectPassword  = &Failure{Message: "Incorrect password"}
	ErrTooManyAttempts    = &Failure{Message: "Too many failed log-in attempts. Try again later."}
)

// UserFinder は認証に必要なユーザー検索だけを切り出したものです。
type UserFinder interface {
	GetByUsername(ctx context.Context, username string) (*users.User, error)
}

// Authenticate はユーザー名とパスワードを検証します。
// 資格情報の不一致は *Failure、それ以外の失敗はリポジトリのエラーをそのまま返します。
func Authenticate(ctx context.Context, finder UserFinder, username, password string) (*users.User, error) {
	if username == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	user, err := finder.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, ErrIncorrectUsername
		}
		return nil, err
	}

	if !VerifyPassword(user.PasswordHash, password) {
		return nil, ErrIncorrectPassword
	}
	return user, nil
}
