package auth

import "golang.org/x/crypto/bcrypt"

// PasswordCost は bcrypt の作業係数です。固定値で運用します。
const PasswordCost = 10

// HashPassword はパスワードをソルト付きの一方向ハッシュにします。
// 72バイトを超えるパスワードは bcrypt.ErrPasswordTooLong になります。
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), PasswordCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword はハッシュとパスワードが一致するかを返します。比較は定数時間です。
func VerifyPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
