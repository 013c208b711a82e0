// Package handlers is the HTTP surface: the settings form pages, their JSON
// and WebSocket validation endpoints, one-time login links and the
// greeting page.
package handlers

import (
	"context"
	"embed"
	"errors"
	"io/fs"
	"net/http"

	"github.com/dalemusser/customform/accounts"
	"github.com/dalemusser/customform/auth/apikey"
	"github.com/dalemusser/customform/forms"
	"github.com/dalemusser/customform/loginlink"
	"github.com/dalemusser/customform/mailer"
	"github.com/dalemusser/customform/middleware"
	"github.com/dalemusser/customform/session"
	"github.com/dalemusser/customform/templates"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

//go:embed views/*.gohtml
var viewsFS embed.FS

//go:embed static
var staticFS embed.FS

// LinkMailer delivers login links by email.
type LinkMailer interface {
	SendLoginLink(ctx context.Context, address string, data mailer.LoginLink) error
}

// Deps are the collaborators a Handler needs.
type Deps struct {
	Forms    *forms.Service
	Links    *loginlink.Generator
	Users    accounts.Directory
	Sessions *session.Manager

	// Mailer is optional. Without it send_mail requests are refused.
	Mailer LinkMailer

	// AdminKey guards link generation and the stored settings endpoint.
	// Empty leaves those routes unmounted.
	AdminKey string

	// SecureCookies marks the admin cookie Secure.
	SecureCookies bool

	// Limiter throttles submissions, API calls, live messages and link
	// redemption per client. Nil disables throttling.
	Limiter *middleware.RateLimiter

	// WSOrigins lists extra origins allowed to open the live socket,
	// e.g. "forms.example.com". Same-origin is always allowed.
	WSOrigins []string

	Logger *zap.Logger
}

// Handler serves every route of the application.
type Handler struct {
	forms    *forms.Service
	links    *loginlink.Generator
	users    accounts.Directory
	sessions *session.Manager
	mail     LinkMailer
	views    *templates.Engine
	logger   *zap.Logger

	adminKey      string
	secureCookies bool
	wsOrigins     []string
	limiter       *middleware.RateLimiter
}

// New compiles the page templates and returns a Handler.
func New(d Deps) (*Handler, error) {
	if d.Forms == nil || d.Links == nil || d.Users == nil || d.Sessions == nil {
		return nil, errors.New("handlers: forms, links, users and sessions are required")
	}
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	views := templates.New(logger)
	if err := views.Boot(templates.Set{
		FS:     viewsFS,
		Shared: []string{"views/layout.gohtml"},
		Pages:  []string{"views/form.gohtml", "views/one_time_login.gohtml", "views/hello.gohtml", "views/notice.gohtml"},
	}); err != nil {
		return nil, err
	}

	return &Handler{
		forms:         d.Forms,
		links:         d.Links,
		users:         d.Users,
		sessions:      d.Sessions,
		mail:          d.Mailer,
		views:         views,
		logger:        logger,
		adminKey:      d.AdminKey,
		secureCookies: d.SecureCookies,
		wsOrigins:     d.WSOrigins,
		limiter:       d.Limiter,
	}, nil
}

// Routes mounts every route on r.
func (h *Handler) Routes(r chi.Router) {
	static, _ := fs.Sub(staticFS, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServerFS(static)))

	// Pages share a cookie session.
	r.Group(func(r chi.Router) {
		r.Use(session.Middleware(h.sessions, h.logger))

		r.Get("/forms/{formID}", h.formPage)
		r.With(h.throttle()).Post("/forms/{formID}", h.formSubmit)
		r.Get("/hello", h.hello)
		r.With(h.throttle()).Get(loginlink.ResetPath+"{token}", h.redeem)

		if h.adminKey != "" {
			r.Group(func(r chi.Router) {
				r.Use(h.throttle(), h.requireAdmin())
				r.Get("/one-time-login", h.loginLinkPage)
				r.Post("/one-time-login", h.loginLinkSubmit)
			})
		}
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(h.throttle())
		r.Route("/forms/{formID}", func(r chi.Router) {
			r.With(middleware.RequireJSON).Post("/check", h.apiCheck)
			r.With(middleware.RequireJSON).Post("/submit", h.apiSubmit)
			r.With(middleware.RequireJSON).Post("/fields/{field}", h.apiField)
			r.Get("/live", h.live)
			if h.adminKey != "" {
				r.With(h.requireAdmin()).Get("/config", h.apiConfig)
			}
		})
		if h.adminKey != "" {
			r.With(h.requireAdmin(), middleware.RequireJSON).Post("/one-time-login", h.apiLoginLink)
		}
	})

	if h.adminKey == "" {
		h.logger.Warn("admin_api_key not set; one-time login and stored settings routes are disabled")
	}
}

func (h *Handler) throttle() func(http.Handler) http.Handler {
	return middleware.Limit(h.limiter, h.logger)
}

func (h *Handler) requireAdmin() func(http.Handler) http.Handler {
	return apikey.Require(h.adminKey, apikey.Options{
		CookieName:   "customform_admin",
		CookieSecure: h.secureCookies,
	}, h.logger)
}

// Page is the data every template receives.
type Page struct {
	Title string
	Flash []session.Message
}

func newPage(r *http.Request, title string) Page {
	p := Page{Title: title}
	if s := session.FromContext(r.Context()); s != nil {
		p.Flash = s.PopMessages()
	}
	return p
}

type noticeData struct {
	Page
	Heading string
	Text    string
}

func (h *Handler) notice(w http.ResponseWriter, r *http.Request, status int, heading, text string) {
	h.views.Render(w, status, "notice", noticeData{Page: newPage(r, heading), Heading: heading, Text: text})
}
