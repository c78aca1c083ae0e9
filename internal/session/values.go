package session

import (
	"net/http"

	"github.com/gin-contrib/sessions"
)

const (
	// CookieName はセッションIDを載せるクッキー名です。
	CookieName = "mo_session"

	keyUserID    = "user_id"
	keyPageCount = "page_count"
)

// UserID はログイン済みユーザーのIDを返します。未ログインなら空文字です。
func UserID(s sessions.Session) string {
	id, _ := s.Get(keyUserID).(string)
	return id
}

// SetUserID はログインしたユーザーのIDだけをセッションに記録します。
func SetUserID(s sessions.Session, id string) {
	s.Set(keyUserID, id)
}

// AddMessage は次回のホーム表示で一度だけ出すメッセージを積みます。
func AddMessage(s sessions.Session, msg string) {
	s.AddFlash(msg)
}

// PopMessages は積まれたメッセージを順に取り出し、セッションから消します。
func PopMessages(s sessions.Session) []string {
	flashes := s.Flashes()
	messages := make([]string, 0, len(flashes))
	for _, f := range flashes {
		if msg, ok := f.(string); ok {
			messages = append(messages, msg)
		}
	}
	return messages
}

// PageCount は現在のページカウンタを返します。
func PageCount(s sessions.Session) int {
	return readInt(s.Get(keyPageCount))
}

// IncrementPageCount はページカウンタを1増やし、新しい値を返します。初回は1です。
func IncrementPageCount(s sessions.Session) int {
	n := PageCount(s) + 1
	s.Set(keyPageCount, n)
	return n
}

// Destroy はセッションの全値を消し、クッキーを失効させて保存します。
func Destroy(s sessions.Session) error {
	s.Clear()
	s.Options(sessions.Options{
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return s.Save()
}

// JSON を経由したストアでは数値が float64 で戻るため型ごとに吸収する
func readInt(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
