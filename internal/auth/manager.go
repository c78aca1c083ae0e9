// Package auth は認証・認可機能を提供します。
package auth

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yourusername/members-only/internal/metrics"
	"github.com/yourusername/members-only/internal/users"
)

// ContextUserKey は、ハンドラー間でログイン済みユーザーを共有するためのキーです。
const ContextUserKey = "auth.user"

// GateMessage は未ログインで保護ページにアクセスしたときに積むメッセージです。
const GateMessage = "You can't access that page before logon."

// Manager は認証処理と状態をまとめた構造体です。
type Manager struct {
	users    users.Repository
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	throttle *throttle
}

// Options は Manager の任意設定です。
type Options struct {
	// LoginMaxAttempts は同一IPからの連続失敗の上限です。0で無制限。
	LoginMaxAttempts int
	Metrics          *metrics.Metrics
	Logger           zerolog.Logger
}

// NewManager は認証マネージャーを作成します。
func NewManager(repo users.Repository, opts Options) (*Manager, error) {
	if repo == nil {
		return nil, errors.New("user repository is nil")
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.New()
	}
	return &Manager{
		users:    repo,
		metrics:  m,
		logger:   opts.Logger,
		throttle: newThrottle(opts.LoginMaxAttempts),
	}, nil
}

// CurrentUser はリクエストに紐づくログイン済みユーザーを返します。未ログインなら nil です。
func CurrentUser(c *gin.Context) *users.User {
	v, ok := c.Get(ContextUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*users.User)
	return user
}

// authenticate は試行制限を挟んで Authenticate を呼び出します。
func (m *Manager) authenticate(ctx context.Context, ip, username, password string) (*users.User, error) {
	if retryAfter := m.throttle.checkLock(ip); retryAfter > 0 {
		m.metrics.Logins.WithLabelValues(metrics.LoginThrottled).Inc()
		return nil, ErrTooManyAttempts
	}

	user, err := Authenticate(ctx, m.users, username, password)
	if err != nil {
		var failure *Failure
		if errors.As(err, &failure) {
			m.metrics.Logins.WithLabelValues(metrics.LoginFailed).Inc()
			if failure != ErrMissingCredentials {
				m.throttle.recordFailure(ip)
			}
		}
		return nil, err
	}

	m.throttle.reset(ip)
	m.metrics.Logins.WithLabelValues(metrics.LoginSucceeded).Inc()
	return user, nil
}
