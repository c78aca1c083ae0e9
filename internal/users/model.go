// Package users は利用者の資格情報（ユーザー名とパスワードハッシュ）の永続化を扱います。
package users

import (
	"errors"
	"time"
)

// ErrNotFound は該当ユーザーが存在しない場合に返されます。
var ErrNotFound = errors.New("user not found")

// User は登録済みの利用者です。作成後に変更されることはありません。
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}
