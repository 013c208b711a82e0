package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client)
}

func stores(t *testing.T) map[string]Store {
	mem := NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = mem.Close() })
	return map[string]Store{
		"memory": mem,
		"redis":  newRedisStore(t),
	}
}

func TestStores_RoundTrip(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			m := NewManager(st, Config{})

			s, err := m.New()
			require.NoError(t, err)
			s.SetUserID(42)
			s.AddMessage(LevelStatus, "Form Submitted Successfully")
			s.AddMessage(LevelError, "Invalid Input Present")

			rec := httptest.NewRecorder()
			require.NoError(t, m.Save(rec, httptest.NewRequest(http.MethodGet, "/", nil), s))
			assert.False(t, s.Modified())

			got, err := st.Load(ctx, s.ID())
			require.NoError(t, err)
			loaded := &Session{id: got.ID, data: got.Data, expiresAt: got.ExpiresAt}

			assert.Equal(t, int64(42), loaded.UserID())
			assert.Equal(t, []Message{
				{Level: LevelStatus, Text: "Form Submitted Successfully"},
				{Level: LevelError, Text: "Invalid Input Present"},
			}, loaded.PopMessages())
			assert.Empty(t, loaded.PopMessages())
			assert.True(t, loaded.Modified())

			require.NoError(t, st.Delete(ctx, s.ID()))
			_, err = st.Load(ctx, s.ID())
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStores_Expired(t *testing.T) {
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := &Record{ID: "old", Data: map[string]any{}, ExpiresAt: time.Now().Add(-time.Minute)}
			require.NoError(t, st.Save(ctx, rec))
			_, err := st.Load(ctx, "old")
			assert.Error(t, err)
		})
	}
}

func TestMemoryStore_Sweep(t *testing.T) {
	st := NewMemoryStore(time.Hour)
	defer st.Close()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, st.Save(ctx, &Record{ID: "a", ExpiresAt: now.Add(time.Minute)}))
	require.NoError(t, st.Save(ctx, &Record{ID: "b", ExpiresAt: now.Add(-time.Minute)}))
	st.sweep(now)
	assert.Equal(t, 1, st.Len())
	require.NoError(t, st.Close())
}

func TestManager_GetFromCookie(t *testing.T) {
	st := NewMemoryStore(time.Minute)
	defer st.Close()
	m := NewManager(st, Config{CookieName: "sid"})

	s, err := m.New()
	require.NoError(t, err)
	s.SetUserID(7)
	rec := httptest.NewRecorder()
	require.NoError(t, m.Save(rec, httptest.NewRequest(http.MethodGet, "/", nil), s))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "sid", cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	got, err := m.Get(req)
	require.NoError(t, err)
	assert.False(t, got.IsNew())
	assert.Equal(t, s.ID(), got.ID())
	assert.Equal(t, int64(7), got.UserID())

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "unknown"})
	fresh, err := m.Get(req)
	require.NoError(t, err)
	assert.True(t, fresh.IsNew())
	assert.Zero(t, fresh.UserID())
}

func TestManager_Regenerate(t *testing.T) {
	st := NewMemoryStore(time.Minute)
	defer st.Close()
	m := NewManager(st, Config{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	s, _ := m.New()
	require.NoError(t, m.Save(httptest.NewRecorder(), req, s))
	old := s.ID()

	s.SetUserID(3)
	require.NoError(t, m.Regenerate(httptest.NewRecorder(), req, s))
	assert.NotEqual(t, old, s.ID())

	_, err := st.Load(context.Background(), old)
	assert.ErrorIs(t, err, ErrNotFound)
	rec, err := st.Load(context.Background(), s.ID())
	require.NoError(t, err)
	assert.EqualValues(t, 3, rec.Data["uid"])
}

func TestManager_Destroy(t *testing.T) {
	st := NewMemoryStore(time.Minute)
	defer st.Close()
	m := NewManager(st, Config{})
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	s, _ := m.New()
	require.NoError(t, m.Save(httptest.NewRecorder(), req, s))
	rec := httptest.NewRecorder()
	require.NoError(t, m.Destroy(rec, req, s))

	assert.Zero(t, st.Len())
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Less(t, cookies[0].MaxAge, 0)
}

func TestMiddleware(t *testing.T) {
	st := NewMemoryStore(time.Minute)
	defer st.Close()
	m := NewManager(st, Config{})

	set := Middleware(m, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := FromContext(r.Context())
		require.NotNil(t, s)
		s.AddMessage(LevelStatus, "saved")
		w.WriteHeader(http.StatusSeeOther)
	}))
	rec := httptest.NewRecorder()
	set.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/forms/x", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	var popped []Message
	read := Middleware(m, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		popped = FromContext(r.Context()).PopMessages()
		_, _ = w.Write([]byte("ok"))
	}))
	req := httptest.NewRequest(http.MethodGet, "/forms/x", nil)
	req.AddCookie(cookies[0])
	read.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, []Message{{Level: LevelStatus, Text: "saved"}}, popped)

	// Popped messages are gone on the following request.
	read.ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, popped)
}

func TestFromContext_Missing(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
}
