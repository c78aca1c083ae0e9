package auth

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yourusername/members-only/internal/logging"
	"github.com/yourusername/members-only/internal/session"
	"github.com/yourusername/members-only/internal/users"
)

// LoadIdentity はセッションに記録されたユーザーIDからユーザーを復元し、コンテキストに載せます。
// ユーザーが見つからない場合は未ログインとして扱います。
func (m *Manager) LoadIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := session.UserID(sessions.Default(c))
		if id == "" {
			c.Next()
			return
		}

		user, err := m.users.GetByID(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, users.ErrNotFound) {
				m.log(c).Info().Str("user_id", id).Msg("session references unknown user")
				c.Next()
				return
			}
			_ = c.Error(err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// RequireLogin は未ログインのリクエストをメッセージ付きでホームへ戻すミドルウェアを返します。
func (m *Manager) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) != nil {
			c.Next()
			return
		}

		s := sessions.Default(c)
		session.AddMessage(s, GateMessage)
		if err := s.Save(); err != nil {
			m.log(c).Warn().Err(err).Msg("failed to save session")
		}
		m.metrics.GateRedirects.Inc()
		c.Redirect(http.StatusFound, "/")
		c.Abort()
	}
}

func (m *Manager) log(c *gin.Context) *zerolog.Logger {
	logger, ok := logging.Lookup(c.Request.Context())
	if !ok {
		logger = m.logger
	}
	return &logger
}
