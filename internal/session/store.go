// Package session はセッションの保存先と、セッションに載せる値の読み書きを提供します。
package session

import (
	"context"
	"encoding/base32"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gorilla/securecookie"
	gsessions "github.com/gorilla/sessions"
	"github.com/redis/go-redis/v9"

	"github.com/yourusername/members-only/internal/logging"
)

const (
	sessionKeyPrefix = "session:"
	defaultTTL       = 14 * 24 * time.Hour
)

// RedisStore はセッションの中身を Redis に、ID だけを署名付きクッキーに保存します。
// gin-contrib/sessions の Store として使えます。
type RedisStore struct {
	rdb     *redis.Client
	codecs  []securecookie.Codec
	options *gsessions.Options
}

var _ sessions.Store = (*RedisStore)(nil)

// loadedUser は読み込み時点のユーザーIDを覚えておくためのキーです。Redis には保存しません。
type loadedUser struct{}

// NewRedisStore は RedisStore を作成します。keyPairs は securecookie の鍵ペアです。
func NewRedisStore(rdb *redis.Client, keyPairs ...[]byte) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		codecs: securecookie.CodecsFromPairs(keyPairs...),
		options: &gsessions.Options{
			Path:   "/",
			MaxAge: int(defaultTTL.Seconds()),
		},
	}
	s.setCodecMaxAge(s.options.MaxAge)
	return s
}

// Options はクッキー属性を設定します。MaxAge は Redis の TTL にも使われます。
func (s *RedisStore) Options(opts sessions.Options) {
	s.options = opts.ToGorillaOptions()
	s.setCodecMaxAge(s.options.MaxAge)
}

// Get はリクエスト単位でキャッシュされたセッションを返します。
func (s *RedisStore) Get(r *http.Request, name string) (*gsessions.Session, error) {
	return gsessions.GetRegistry(r).Get(s, name)
}

// New はクッキーを検証し、Redis からセッションを復元します。
// クッキーが無い・署名が不正・Redis に存在しない場合は新しいセッションを返します。
func (s *RedisStore) New(r *http.Request, name string) (*gsessions.Session, error) {
	session := gsessions.NewSession(s, name)
	opts := *s.options
	session.Options = &opts
	session.IsNew = true

	cookie, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}

	var id string
	if err := securecookie.DecodeMulti(name, cookie.Value, &id, s.codecs...); err != nil {
		return session, nil
	}

	record, err := s.load(r.Context(), id)
	if err != nil {
		logger := logging.FromContext(r.Context())
		logger.Warn().Err(err).Msg("failed to load session")
		return session, err
	}
	if record == nil {
		return session, nil
	}

	session.ID = id
	session.IsNew = false
	for k, v := range record.Values {
		session.Values[k] = v
	}
	userID, _ := record.Values[keyUserID].(string)
	session.Values[loadedUser{}] = userID
	return session, nil
}

// Save はセッションを保存してクッキーを書き込みます。
// MaxAge が負の場合は破棄として扱い、期限切れクッキーを先に書いてから Redis の値を削除します。
func (s *RedisStore) Save(r *http.Request, w http.ResponseWriter, session *gsessions.Session) error {
	if session.Options != nil && session.Options.MaxAge < 0 {
		http.SetCookie(w, gsessions.NewCookie(session.Name(), "", session.Options))
		if session.ID == "" {
			return nil
		}
		if err := s.rdb.Del(r.Context(), sessionKey(session.ID)).Err(); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		return nil
	}

	// ログイン状態が変わったら ID を振り直し、古いレコードは消す
	current, _ := session.Values[keyUserID].(string)
	if loaded, ok := session.Values[loadedUser{}].(string); ok && session.ID != "" && loaded != current {
		if err := s.rdb.Del(r.Context(), sessionKey(session.ID)).Err(); err != nil {
			return fmt.Errorf("failed to rotate session: %w", err)
		}
		session.ID = ""
	}

	if session.ID == "" {
		id, err := newSessionID()
		if err != nil {
			return err
		}
		session.ID = id
	}

	if err := s.save(r.Context(), session); err != nil {
		return err
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.codecs...)
	if err != nil {
		return err
	}
	http.SetCookie(w, gsessions.NewCookie(session.Name(), encoded, session.Options))
	session.Values[loadedUser{}] = current
	return nil
}

func (s *RedisStore) load(ctx context.Context, id string) (*Record, error) {
	data, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (s *RedisStore) save(ctx context.Context, session *gsessions.Session) error {
	values := make(map[string]any, len(session.Values))
	for k, v := range session.Values {
		if _, ok := k.(loadedUser); ok {
			continue
		}
		key, ok := k.(string)
		if !ok {
			return fmt.Errorf("session key must be a string, got %T", k)
		}
		values[key] = v
	}

	ttl := s.ttlFor(session)
	now := time.Now().UTC()
	record := &Record{
		ID:        session.ID,
		Values:    values,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if prev, err := s.load(ctx, session.ID); err == nil && prev != nil {
		record.CreatedAt = prev.CreatedAt
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, sessionKey(session.ID), payload, ttl).Err()
}

func (s *RedisStore) ttlFor(session *gsessions.Session) time.Duration {
	if session.Options != nil && session.Options.MaxAge > 0 {
		return time.Duration(session.Options.MaxAge) * time.Second
	}
	return defaultTTL
}

func (s *RedisStore) setCodecMaxAge(age int) {
	for _, c := range s.codecs {
		if sc, ok := c.(*securecookie.SecureCookie); ok {
			sc.MaxAge(age)
		}
	}
}

func newSessionID() (string, error) {
	key := securecookie.GenerateRandomKey(32)
	if key == nil {
		return "", errors.New("failed to generate session id")
	}
	return strings.TrimRight(base32.StdEncoding.EncodeToString(key), "="), nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}
