// Package pages は HTML を返す画面系のハンドラーを提供します。
package pages

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/yourusername/members-only/internal/auth"
	"github.com/yourusername/members-only/internal/logging"
	"github.com/yourusername/members-only/internal/metrics"
	"github.com/yourusername/members-only/internal/session"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Templates は埋め込みテンプレートをパースして返します。
func Templates() (*template.Template, error) {
	return template.New("").ParseFS(templateFS, "templates/*.tmpl")
}

// Handler は画面系ハンドラーをまとめた構造体です。
type Handler struct {
	metrics *metrics.Metrics
}

// NewHandler は Handler を作成します。
func NewHandler(m *metrics.Metrics) *Handler {
	if m == nil {
		m = metrics.New()
	}
	return &Handler{metrics: m}
}

// Home は GET / のハンドラーです。積まれたメッセージは一度表示したら消えます。
func (h *Handler) Home(c *gin.Context) {
	s := sessions.Default(c)
	messages := session.PopMessages(s)
	if err := s.Save(); err != nil {
		logger := logging.FromContext(c.Request.Context())
		logger.Warn().Err(err).Msg("failed to save session")
	}

	c.HTML(http.StatusOK, "index.tmpl", gin.H{
		"Title":       "Home",
		"Messages":    messages,
		"CurrentUser": auth.CurrentUser(c),
	})
}

// SignUpForm は GET /sign-up のハンドラーです。
func (h *Handler) SignUpForm(c *gin.Context) {
	c.HTML(http.StatusOK, "sign-up-form.tmpl", gin.H{
		"Title": "Sign Up",
	})
}

// Restricted は GET /restricted のハンドラーです。RequireLogin の後ろに置きます。
// カウンタはセッション単位で、初回訪問は1になります。
func (h *Handler) Restricted(c *gin.Context) {
	s := sessions.Default(c)
	count := session.IncrementPageCount(s)
	if err := s.Save(); err != nil {
		logger := logging.FromContext(c.Request.Context())
		logger.Warn().Err(err).Msg("failed to save session")
	}
	h.metrics.RestrictedVisits.Inc()

	c.HTML(http.StatusOK, "restricted.tmpl", gin.H{
		"Title":     "Restricted",
		"PageCount": count,
	})
}
