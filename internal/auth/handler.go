package auth

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/members-only/internal/session"
	"github.com/yourusername/members-only/internal/users"
)

// ErrSignUpFieldsMissing はサインアップフォームの項目が欠けている場合のエラーです。
// 利用者には汎用の 500 ページとして見えます。
var ErrSignUpFieldsMissing = errors.New("sign-up requires username and password")

// SignUp は POST /sign-up のハンドラーです。
func (m *Manager) SignUp(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if username == "" || password == "" {
		_ = c.Error(ErrSignUpFieldsMissing)
		return
	}

	hash, err := HashPassword(password)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			c.String(http.StatusBadRequest, "password is too long")
			return
		}
		_ = c.Error(err)
		return
	}

	user, err := m.users.Create(c.Request.Context(), &users.User{
		Username:     username,
		PasswordHash: hash,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	m.metrics.SignUps.Inc()
	m.log(c).Info().Str("username", user.Username).Str("user_id", user.ID).Msg("user signed up")
	c.Redirect(http.StatusFound, "/")
}

// Login は POST /log-in のハンドラーです。
// 成功時はユーザーIDだけをセッションに保存し、失敗時は理由をメッセージとして積みます。
// どちらの場合もホームへリダイレクトします。
func (m *Manager) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")

	user, err := m.authenticate(c.Request.Context(), c.ClientIP(), username, password)
	s := sessions.Default(c)
	if err != nil {
		var failure *Failure
		if !errors.As(err, &failure) {
			_ = c.Error(err)
			return
		}
		m.log(c).Info().Str("username", username).Str("reason", failure.Message).Msg("log-in failed")
		session.AddMessage(s, failure.Message)
		if err := s.Save(); err != nil {
			m.log(c).Warn().Err(err).Msg("failed to save session")
		}
		c.Redirect(http.StatusFound, "/")
		return
	}

	session.SetUserID(s, user.ID)
	if err := s.Save(); err != nil {
		_ = c.Error(err)
		return
	}

	m.log(c).Info().Str("username", user.Username).Msg("logged in")
	c.Redirect(http.StatusFound, "/")
}

// Logout は GET /log-out のハンドラーです。
// ストア側の削除に失敗してもログに残すだけでリダイレクトします。
func (m *Manager) Logout(c *gin.Context) {
	if err := session.Destroy(sessions.Default(c)); err != nil {
		m.log(c).Warn().Err(err).Msg("failed to destroy session")
	}
	m.metrics.LogOuts.Inc()
	c.Redirect(http.StatusFound, "/")
}
