package session

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-contrib/sessions"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/members-only/internal/logging"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := NewRedisStore(rdb, []byte("test-secret"))
	store.Options(sessions.Options{Path: "/", MaxAge: 3600, HttpOnly: true})
	return store, mr
}

func requestWith(cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatalf("no %s cookie in response", CookieName)
	return nil
}

func TestRedisStoreNewWithoutCookie(t *testing.T) {
	store, _ := newTestStore(t)

	s, err := store.New(requestWith(), CookieName)
	require.NoError(t, err)
	assert.True(t, s.IsNew)
	assert.Empty(t, s.ID)
	assert.Empty(t, s.Values)
}

func TestRedisStoreSaveAndLoad(t *testing.T) {
	store, mr := newTestStore(t)

	s, err := store.New(requestWith(), CookieName)
	require.NoError(t, err)
	s.Values[keyUserID] = "u-1"
	s.Values[keyPageCount] = 2
	s.AddFlash("hello")

	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(requestWith(), rec, s))
	require.NotEmpty(t, s.ID)

	key := sessionKey(s.ID)
	require.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))

	raw, err := mr.Get(key)
	require.NoError(t, err)
	var record Record
	require.NoError(t, json.Unmarshal([]byte(raw), &record))
	assert.Equal(t, s.ID, record.ID)
	assert.Equal(t, "u-1", record.Values[keyUserID])

	cookie := sessionCookie(t, rec)
	assert.NotContains(t, cookie.Value, "u-1")
	assert.True(t, cookie.HttpOnly)

	loaded, err := store.New(requestWith(cookie), CookieName)
	require.NoError(t, err)
	assert.False(t, loaded.IsNew)
	assert.Equal(t, s.ID, loaded.ID)
	assert.Equal(t, "u-1", loaded.Values[keyUserID])
	assert.Equal(t, 2, readInt(loaded.Values[keyPageCount]))
	assert.Equal(t, []interface{}{"hello"}, loaded.Flashes())
}

func TestRedisStoreTamperedCookie(t *testing.T) {
	store, _ := newTestStore(t)

	s, err := store.New(requestWith(), CookieName)
	require.NoError(t, err)
	s.Values[keyUserID] = "u-1"
	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(requestWith(), rec, s))

	cookie := sessionCookie(t, rec)
	cookie.Value = cookie.Value[:len(cookie.Value)-2] + "xx"

	loaded, err := store.New(requestWith(cookie), CookieName)
	require.NoError(t, err)
	assert.True(t, loaded.IsNew)
	assert.Nil(t, loaded.Values[keyUserID])
}

func TestRedisStoreExpiredRecord(t *testing.T) {
	store, mr := newTestStore(t)

	s, err := store.New(requestWith(), CookieName)
	require.NoError(t, err)
	s.Values[keyUserID] = "u-1"
	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(requestWith(), rec, s))

	mr.FastForward(2 * time.Hour)

	loaded, err := store.New(requestWith(sessionCookie(t, rec)), CookieName)
	require.NoError(t, err)
	assert.True(t, loaded.IsNew)
	assert.Empty(t, loaded.Values)
}

func TestRedisStoreDestroy(t *testing.T) {
	store, mr := newTestStore(t)

	s, err := store.New(requestWith(), CookieName)
	require.NoError(t, err)
	s.Values[keyUserID] = "u-1"
	require.NoError(t, store.Save(requestWith(), httptest.NewRecorder(), s))
	key := sessionKey(s.ID)
	require.True(t, mr.Exists(key))

	s.Options.MaxAge = -1
	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(requestWith(), rec, s))

	assert.False(t, mr.Exists(key))
	assert.Less(t, sessionCookie(t, rec).MaxAge, 0)
}

func TestRedisStoreDestroyExpiresCookieWhenRedisFails(t *testing.T) {
	store, mr := newTestStore(t)

	s, err := store.New(requestWith(), CookieName)
	require.NoError(t, err)
	require.NoError(t, store.Save(requestWith(), httptest.NewRecorder(), s))

	mr.SetError("ERR server unavailable")
	s.Options.MaxAge = -1
	rec := httptest.NewRecorder()
	err = store.Save(requestWith(), rec, s)

	assert.Error(t, err)
	assert.Less(t, sessionCookie(t, rec).MaxAge, 0)
}

func TestRedisStoreLoadErrorYieldsNewSession(t *testing.T) {
	store, mr := newTestStore(t)

	s, err := store.New(requestWith(), CookieName)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(requestWith(), rec, s))

	var buf bytes.Buffer
	req := requestWith(sessionCookie(t, rec))
	req = req.WithContext(logging.WithLogger(req.Context(), logging.New(&buf, "info", "json")))

	mr.SetError("ERR server unavailable")
	loaded, err := store.New(req, CookieName)
	assert.Error(t, err)
	require.NotNil(t, loaded)
	assert.True(t, loaded.IsNew)
	assert.Contains(t, buf.String(), `"level":"warn"`)
	assert.Contains(t, buf.String(), "failed to load session")
}

func TestRedisStoreRotatesIDWhenUserChanges(t *testing.T) {
	store, mr := newTestStore(t)

	anon, err := store.New(requestWith(), CookieName)
	require.NoError(t, err)
	anon.Values[keyPageCount] = 1
	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(requestWith(), rec, anon))
	oldID := anon.ID
	oldCookie := sessionCookie(t, rec)

	s, err := store.New(requestWith(oldCookie), CookieName)
	require.NoError(t, err)
	require.Equal(t, oldID, s.ID)
	s.Values[keyUserID] = "u-1"
	rec = httptest.NewRecorder()
	require.NoError(t, store.Save(requestWith(), rec, s))

	assert.NotEqual(t, oldID, s.ID)
	assert.False(t, mr.Exists(sessionKey(oldID)))
	assert.True(t, mr.Exists(sessionKey(s.ID)))

	stale, err := store.New(requestWith(oldCookie), CookieName)
	require.NoError(t, err)
	assert.True(t, stale.IsNew)

	loaded, err := store.New(requestWith(sessionCookie(t, rec)), CookieName)
	require.NoError(t, err)
	assert.Equal(t, "u-1", loaded.Values[keyUserID])
	assert.Equal(t, 1, readInt(loaded.Values[keyPageCount]))

	raw, err := mr.Get(sessionKey(s.ID))
	require.NoError(t, err)
	assert.NotContains(t, raw, "loadedUser")
}

func TestRedisStoreKeepsIDWhileUserUnchanged(t *testing.T) {
	store, _ := newTestStore(t)

	s, err := store.New(requestWith(), CookieName)
	require.NoError(t, err)
	s.Values[keyUserID] = "u-1"
	rec := httptest.NewRecorder()
	require.NoError(t, store.Save(requestWith(), rec, s))
	id := s.ID

	loaded, err := store.New(requestWith(sessionCookie(t, rec)), CookieName)
	require.NoError(t, err)
	loaded.Values[keyPageCount] = 5
	require.NoError(t, store.Save(requestWith(), httptest.NewRecorder(), loaded))
	assert.Equal(t, id, loaded.ID)

	require.NoError(t, store.Save(requestWith(), httptest.NewRecorder(), s))
	assert.Equal(t, id, s.ID)
}

func TestRedisStoreRejectsNonStringKeys(t *testing.T) {
	store, _ := newTestStore(t)

	s, err := store.New(requestWith(), CookieName)
	require.NoError(t, err)
	s.Values[42] = "answer"

	assert.Error(t, store.Save(requestWith(), httptest.NewRecorder(), s))
}
