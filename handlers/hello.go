// handlers/hello.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/dalemusser/customform/accounts"
	"github.com/dalemusser/customform/greeting"
	"github.com/dalemusser/customform/session"
	"go.uber.org/zap"
)

type helloData struct {
	Page
	Greeting string
}

// currentUser resolves the session's user. A stale id (user removed since
// login) falls back to anonymous.
func (h *Handler) currentUser(r *http.Request) *accounts.User {
	s := session.FromContext(r.Context())
	if s == nil {
		return accounts.Anonymous()
	}
	uid := s.UserID()
	if uid == accounts.AnonymousID {
		return accounts.Anonymous()
	}
	u, err := h.users.ByID(r.Context(), uid)
	if err != nil {
		if !errors.Is(err, accounts.ErrNotFound) {
			h.logger.Warn("current user lookup failed", zap.Int64("uid", uid), zap.Error(err))
		}
		return accounts.Anonymous()
	}
	return u
}

// hello greets the current user. The page differs per user, so shared
// caches must not store it.
func (h *Handler) hello(w http.ResponseWriter, r *http.Request) {
	u := h.currentUser(r)
	w.Header().Set("Cache-Control", "private, no-cache")
	w.Header().Set("Vary", "Cookie")
	w.Header().Set("Cache-Tag", greeting.CacheTag(u))
	h.views.Render(w, http.StatusOK, "hello", helloData{
		Page:     newPage(r, "Hello"),
		Greeting: greeting.Greet(u),
	})
}
