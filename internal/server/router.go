// Package server はルーティングとリクエスト処理パイプラインの組み立て、HTTPサーバーの起動を担います。
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yourusername/members-only/internal/auth"
	"github.com/yourusername/members-only/internal/config"
	"github.com/yourusername/members-only/internal/logging"
	"github.com/yourusername/members-only/internal/metrics"
	"github.com/yourusername/members-only/internal/pages"
	"github.com/yourusername/members-only/internal/session"
	"github.com/yourusername/members-only/internal/users"
)

// Deps はルーターが必要とする外部リソースです。生成と破棄は呼び出し側が行います。
type Deps struct {
	Config  *config.Config
	Users   users.Repository
	Store   sessions.Store
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// NewRouter はミドルウェアの順序を固定したルーターを作成します。
//
// 順序: recovery → アクセスログ → エラー応答 → CORS → セッション復元 → ログインユーザー復元
// 各段は c.Next() で次へ進み、c.Abort() で以降を打ち切ります。
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, errors.New("config is nil")
	}
	if deps.Store == nil {
		return nil, errors.New("session store is nil")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	authManager, err := auth.NewManager(deps.Users, auth.Options{
		LoginMaxAttempts: deps.Config.LoginMaxAttempts,
		Metrics:          deps.Metrics,
		Logger:           deps.Logger,
	})
	if err != nil {
		return nil, err
	}

	tmpl, err := pages.Templates()
	if err != nil {
		return nil, err
	}

	deps.Store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(deps.Config.SessionMaxAge().Seconds()),
		HttpOnly: true,
		Secure:   deps.Config.GinMode == gin.ReleaseMode,
		SameSite: http.SameSiteLaxMode,
	})

	router := gin.New()
	// 未設定なら X-Forwarded-For を無視し、接続元アドレスでログイン試行を数える
	if err := router.SetTrustedProxies(deps.Config.TrustedProxyList()); err != nil {
		return nil, fmt.Errorf("invalid TRUSTED_PROXIES: %w", err)
	}
	router.SetHTMLTemplate(tmpl)

	stages := []gin.HandlerFunc{
		gin.Recovery(),
		logging.RequestLogger(deps.Logger),
		ErrorHandler(),
		corsMiddleware(deps.Config),
		sessions.Sessions(session.CookieName, deps.Store),
		authManager.LoadIdentity(),
	}
	router.Use(stages...)

	setupRoutes(router, authManager, pages.NewHandler(deps.Metrics), deps.Metrics)
	return router, nil
}

func setupRoutes(router *gin.Engine, authManager *auth.Manager, pageHandler *pages.Handler, m *metrics.Metrics) {
	router.GET("/health", handleHealth)
	router.GET("/metrics", gin.WrapH(m.Handler()))

	router.GET("/", pageHandler.Home)
	router.GET("/sign-up", pageHandler.SignUpForm)
	router.POST("/sign-up", authManager.SignUp)
	router.POST("/log-in", authManager.Login)
	router.GET("/log-out", authManager.Logout)

	protected := router.Group("")
	protected.Use(authManager.RequireLogin())
	{
		protected.GET("/restricted", pageHandler.Restricted)
	}
}

// handleHealth はヘルスチェックエンドポイントのハンドラーです。
func handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "members-only",
	})
}

func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	origins := cfg.AllowedOrigins()
	if len(origins) == 0 {
		return func(c *gin.Context) { c.Next() }
	}
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = origins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{
		"Origin",
		"Content-Type",
		"Accept",
	}
	return cors.New(corsConfig)
}
