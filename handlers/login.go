// handlers/login.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/customform/httputil"
	"github.com/dalemusser/customform/loginlink"
	"github.com/dalemusser/customform/mailer"
	"github.com/dalemusser/customform/metrics"
	"github.com/dalemusser/customform/session"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Texts shown when a link cannot be used.
const (
	msgLinkExpired = "You have tried to use a one-time login link that has expired. Please request a new one."
	msgLinkInvalid = "You have tried to use a one-time login link that has either been used or is no longer valid. Please request a new one."
	msgLinkBlocked = "This account is blocked and cannot log in."
	msgLoggedIn    = "You have just used your one-time login link."
)

// errMailUnavailable is reported when mail was asked for but no SMTP
// server is configured.
var errMailUnavailable = errors.New("mail delivery is not configured")

type linkOutcome struct {
	loginlink.Result
	Mailed    bool   `json:"mailed"`
	MailError string `json:"mail_error,omitempty"`
}

// generate issues a link for uid and optionally mails it. Lookup failures
// are errors; a missing user is reported in the result.
func (h *Handler) generate(ctx context.Context, uid int64, sendMail bool) (linkOutcome, error) {
	res, err := h.links.Generate(ctx, uid)
	if err != nil {
		metrics.ObserveLoginLink("error")
		return linkOutcome{}, err
	}
	if !res.Found {
		metrics.ObserveLoginLink("missing_user")
		return linkOutcome{Result: res}, nil
	}
	metrics.ObserveLoginLink("generated")

	out := linkOutcome{Result: res}
	if !sendMail {
		return out, nil
	}
	if h.mail == nil {
		out.MailError = errMailUnavailable.Error()
		return out, nil
	}
	err = h.mail.SendLoginLink(ctx, res.User.Email, mailer.LoginLink{
		Name:      res.User.DisplayName(),
		Link:      res.Link,
		ExpiresAt: res.ExpiresAt,
	})
	switch {
	case errors.Is(err, mailer.ErrNoAddress):
		out.MailError = "the user has no email address"
	case err != nil:
		h.logger.Error("login link mail failed", zap.Int64("uid", uid), zap.Error(err))
		out.MailError = "the email could not be sent"
	default:
		out.Mailed = true
	}
	return out, nil
}

type loginLinkData struct {
	Page
	UserID  string
	Outcome *linkOutcome
	CanMail bool
}

// loginLinkPage renders the link generator form.
func (h *Handler) loginLinkPage(w http.ResponseWriter, r *http.Request) {
	h.views.Render(w, http.StatusOK, "one_time_login", loginLinkData{
		Page:    newPage(r, "One-time login link"),
		CanMail: h.mail != nil,
	})
}

// loginLinkSubmit handles the generator form. Anything that is not a known
// user id, including an unparsable one, reports the missing user text.
func (h *Handler) loginLinkSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form body", http.StatusBadRequest)
		return
	}
	raw := strings.TrimSpace(r.PostFormValue("user_id"))
	data := loginLinkData{
		Page:    newPage(r, "One-time login link"),
		UserID:  raw,
		CanMail: h.mail != nil,
	}

	uid, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || uid <= 0 {
		metrics.ObserveLoginLink("missing_user")
		data.Outcome = &linkOutcome{Result: loginlink.Result{Message: loginlink.MissingUserMessage}}
		h.views.Render(w, http.StatusOK, "one_time_login", data)
		return
	}

	out, err := h.generate(r.Context(), uid, r.PostFormValue("send_mail") != "")
	if err != nil {
		h.logger.Error("login link generation failed", zap.Int64("uid", uid), zap.Error(err))
		http.Error(w, "could not generate link", http.StatusInternalServerError)
		return
	}
	data.Outcome = &out
	h.views.Render(w, http.StatusOK, "one_time_login", data)
}

type loginLinkRequest struct {
	UserID   int64 `json:"user_id"`
	SendMail bool  `json:"send_mail"`
}

// apiLoginLink issues a link as JSON. An unknown user answers 404 with the
// same body shape.
func (h *Handler) apiLoginLink(w http.ResponseWriter, r *http.Request) {
	var req loginLinkRequest
	if err := httputil.BindJSON(r, &req); err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	out, err := h.generate(r.Context(), req.UserID, req.SendMail)
	if err != nil {
		h.logger.Error("login link generation failed", zap.Int64("uid", req.UserID), zap.Error(err))
		httputil.JSONError(w, http.StatusInternalServerError, "internal", "could not generate link")
		return
	}
	if !out.Found {
		httputil.WriteJSON(w, http.StatusNotFound, out)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

// redeem logs the visitor in as the link's user and sends them to the
// greeting page. The session id changes on login.
func (h *Handler) redeem(w http.ResponseWriter, r *http.Request) {
	u, err := h.links.Redeem(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		metrics.ObserveLoginLink("rejected")
		var text string
		switch {
		case errors.Is(err, loginlink.ErrExpired):
			text = msgLinkExpired
		case errors.Is(err, loginlink.ErrBlocked):
			text = msgLinkBlocked
		case errors.Is(err, loginlink.ErrUsed), errors.Is(err, loginlink.ErrInvalidToken):
			text = msgLinkInvalid
		default:
			h.logger.Error("login link redemption failed", zap.Error(err))
			http.Error(w, "could not log in", http.StatusInternalServerError)
			return
		}
		h.logger.Info("login link rejected", zap.Error(err))
		h.notice(w, r, http.StatusForbidden, "Access denied", text)
		return
	}

	s := session.FromContext(r.Context())
	if s == nil {
		http.Error(w, "session unavailable", http.StatusInternalServerError)
		return
	}
	s.SetUserID(u.ID)
	s.Set("login_at", time.Now().UTC().Format(time.RFC3339))
	s.AddMessage(session.LevelStatus, msgLoggedIn)
	if err := h.sessions.Regenerate(w, r, s); err != nil {
		h.logger.Error("session regenerate failed", zap.Int64("uid", u.ID), zap.Error(err))
		http.Error(w, "could not log in", http.StatusInternalServerError)
		return
	}

	metrics.ObserveLoginLink("redeemed")
	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, "/hello", http.StatusSeeOther)
}
