// Package session provides cookie sessions backed by a pluggable store.
//
// Sessions carry the logged-in user id (set when a one-time login link is
// redeemed) and a queue of flash messages shown on the next page view.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"
)

// Errors returned by stores.
var (
	ErrNotFound = errors.New("session: not found")
	ErrExpired  = errors.New("session: expired")
)

const (
	keyUserID   = "uid"
	keyMessages = "_messages"
)

// Message levels, matching the status/warning/error split of the form pages.
const (
	LevelStatus  = "status"
	LevelWarning = "warning"
	LevelError   = "error"
)

// Message is a flash message queued for the next page view.
type Message struct {
	Level string `json:"level"`
	Text  string `json:"text"`
}

// Session is one visitor's session data.
type Session struct {
	mu        sync.RWMutex
	id        string
	data      map[string]any
	isNew     bool
	modified  bool
	expiresAt time.Time
}

// ID returns the session id.
func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.id
}

// IsNew reports whether the session was created by this request.
func (s *Session) IsNew() bool { return s.isNew }

// ExpiresAt returns when the session expires.
func (s *Session) ExpiresAt() time.Time { return s.expiresAt }

// Get returns a raw value.
func (s *Session) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// GetString returns a string value or "".
func (s *Session) GetString(key string) string {
	v, _ := s.Get(key)
	str, _ := v.(string)
	return str
}

// Set stores a value and marks the session modified.
func (s *Session) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	s.modified = true
}

// Delete removes a value.
func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		return
	}
	delete(s.data, key)
	s.modified = true
}

// Modified reports whether the session changed since it was loaded.
func (s *Session) Modified() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.modified
}

// UserID returns the logged-in user id, or 0 for anonymous visitors.
// Values that went through a JSON store come back as float64.
func (s *Session) UserID() int64 {
	v, ok := s.Get(keyUserID)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case json.Number:
		i, _ := n.Int64()
		return i
	default:
		return 0
	}
}

// SetUserID records the logged-in user.
func (s *Session) SetUserID(uid int64) { s.Set(keyUserID, uid) }

// AddMessage queues a flash message.
func (s *Session) AddMessage(level, text string) {
	msgs := s.messages()
	msgs = append(msgs, Message{Level: level, Text: text})
	b, _ := json.Marshal(msgs)
	s.Set(keyMessages, string(b))
}

// PopMessages returns and clears the queued flash messages.
func (s *Session) PopMessages() []Message {
	msgs := s.messages()
	if len(msgs) > 0 {
		s.Delete(keyMessages)
	}
	return msgs
}

// messages are kept JSON-encoded so every store returns them unchanged.
func (s *Session) messages() []Message {
	raw := s.GetString(keyMessages)
	if raw == "" {
		return nil
	}
	var msgs []Message
	if err := json.Unmarshal([]byte(raw), &msgs); err != nil {
		return nil
	}
	return msgs
}

// Store persists session records.
type Store interface {
	// Load returns ErrNotFound for unknown ids and ErrExpired for stale ones.
	Load(ctx context.Context, id string) (*Record, error)
	Save(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id string) error
	Close() error
}

// Record is the stored form of a session.
type Record struct {
	ID        string         `json:"id"`
	Data      map[string]any `json:"data"`
	ExpiresAt time.Time      `json:"expires_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (r *Record) clone() *Record {
	cp := *r
	cp.Data = make(map[string]any, len(r.Data))
	for k, v := range r.Data {
		cp.Data[k] = v
	}
	return &cp
}

func newID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Config configures a Manager.
type Config struct {
	// CookieName defaults to "customform_session".
	CookieName string

	// MaxAge is the session lifetime. Default: 24 hours.
	MaxAge time.Duration

	// Path defaults to "/".
	Path string

	Domain string

	// Secure sets the cookie Secure flag. Turn it off only for plain HTTP
	// development setups.
	Secure bool

	// SameSite defaults to http.SameSiteLaxMode.
	SameSite http.SameSite
}

// Manager loads and saves sessions through a Store.
type Manager struct {
	store Store
	cfg   Config
	now   func() time.Time
}

// NewManager returns a Manager. Zero config fields get defaults.
func NewManager(store Store, cfg Config) *Manager {
	if cfg.CookieName == "" {
		cfg.CookieName = "customform_session"
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 24 * time.Hour
	}
	if cfg.Path == "" {
		cfg.Path = "/"
	}
	if cfg.SameSite == 0 {
		cfg.SameSite = http.SameSiteLaxMode
	}
	return &Manager{store: store, cfg: cfg, now: time.Now}
}

// CookieName returns the configured cookie name.
func (m *Manager) CookieName() string { return m.cfg.CookieName }

// Get loads the request's session, or starts a new one.
func (m *Manager) Get(r *http.Request) (*Session, error) {
	if c, err := r.Cookie(m.cfg.CookieName); err == nil && c.Value != "" {
		rec, err := m.store.Load(r.Context(), c.Value)
		switch {
		case err == nil && m.now().Before(rec.ExpiresAt):
			return &Session{id: rec.ID, data: rec.Data, expiresAt: rec.ExpiresAt}, nil
		case err == nil, errors.Is(err, ErrExpired):
			_ = m.store.Delete(r.Context(), c.Value)
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}
	return m.New()
}

// New starts an empty session.
func (m *Manager) New() (*Session, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	return &Session{
		id:        id,
		data:      make(map[string]any),
		isNew:     true,
		modified:  true,
		expiresAt: m.now().Add(m.cfg.MaxAge),
	}, nil
}

// Save stores the session and sets its cookie.
func (m *Manager) Save(w http.ResponseWriter, r *http.Request, s *Session) error {
	now := m.now()
	s.mu.Lock()
	rec := &Record{ID: s.id, Data: s.data, ExpiresAt: s.expiresAt, UpdatedAt: now}
	if s.isNew {
		rec.CreatedAt = now
	}
	rec = rec.clone()
	s.modified = false
	s.mu.Unlock()

	if err := m.store.Save(r.Context(), rec); err != nil {
		return err
	}
	http.SetCookie(w, m.cookie(rec.ID, int(m.cfg.MaxAge.Seconds())))
	return nil
}

// Destroy deletes the session and expires its cookie.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request, s *Session) error {
	if err := m.store.Delete(r.Context(), s.ID()); err != nil {
		return err
	}
	http.SetCookie(w, m.cookie("", -1))
	return nil
}

// Regenerate moves the session to a fresh id, keeping its data. Call it
// whenever the logged-in user changes.
func (m *Manager) Regenerate(w http.ResponseWriter, r *http.Request, s *Session) error {
	id, err := newID()
	if err != nil {
		return err
	}
	s.mu.Lock()
	old := s.id
	s.id = id
	s.isNew = true
	s.modified = true
	s.mu.Unlock()

	_ = m.store.Delete(r.Context(), old)
	return m.Save(w, r, s)
}

// Close closes the underlying store.
func (m *Manager) Close() error { return m.store.Close() }

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.cfg.CookieName,
		Value:    value,
		Path:     m.cfg.Path,
		Domain:   m.cfg.Domain,
		MaxAge:   maxAge,
		Secure:   m.cfg.Secure,
		HttpOnly: true,
		SameSite: m.cfg.SameSite,
	}
}
