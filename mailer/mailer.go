// Package mailer sends one-time login links by email over SMTP.
// It wraps github.com/wneessen/go-mail.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// ErrNoAddress is returned when the recipient has no email address.
var ErrNoAddress = errors.New("mailer: recipient has no email address")

// Config holds SMTP settings.
type Config struct {
	Host     string
	Port     int // default 587
	Username string
	Password string

	FromAddress string
	FromName    string

	// UseSSL switches to implicit TLS (port 465). Otherwise STARTTLS is
	// required.
	UseSSL bool

	Timeout time.Duration // default 30s
}

// Enabled reports whether enough is configured to send mail.
func (c Config) Enabled() bool {
	return c.Host != "" && c.FromAddress != ""
}

// Message is a single outgoing email.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers messages through one SMTP server.
type Sender struct {
	cfg     Config
	logger  *zap.Logger
	deliver func(ctx context.Context, m *mail.Msg) error
}

// New returns a Sender. It does not connect until the first Send.
func New(cfg Config, logger *zap.Logger) *Sender {
	if cfg.Port == 0 {
		cfg.Port = 587
		if cfg.UseSSL {
			cfg.Port = 465
		}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sender{cfg: cfg, logger: logger}
	s.deliver = s.dialAndSend
	return s
}

// Send builds and delivers msg.
func (s *Sender) Send(ctx context.Context, msg Message) error {
	m, err := s.build(msg)
	if err != nil {
		return err
	}
	if err := s.deliver(ctx, m); err != nil {
		return fmt.Errorf("mailer: send: %w", err)
	}
	return nil
}

func (s *Sender) build(msg Message) (*mail.Msg, error) {
	if msg.To == "" {
		return nil, ErrNoAddress
	}
	if msg.TextBody == "" && msg.HTMLBody == "" {
		return nil, errors.New("mailer: empty body")
	}

	m := mail.NewMsg()
	var err error
	if s.cfg.FromName != "" {
		err = m.FromFormat(s.cfg.FromName, s.cfg.FromAddress)
	} else {
		err = m.From(s.cfg.FromAddress)
	}
	if err != nil {
		return nil, fmt.Errorf("mailer: from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("mailer: to address: %w", err)
	}
	m.Subject(msg.Subject)

	switch {
	case msg.TextBody != "" && msg.HTMLBody != "":
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)
	case msg.HTMLBody != "":
		m.SetBodyString(mail.TypeTextHTML, msg.HTMLBody)
	default:
		m.SetBodyString(mail.TypeTextPlain, msg.TextBody)
	}
	return m, nil
}

func (s *Sender) dialAndSend(ctx context.Context, m *mail.Msg) error {
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(s.cfg.Timeout),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	if s.cfg.UseSSL {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	c, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return c.DialAndSendWithContext(ctx, m)
}

// LoginLink is the data rendered into a login link email.
type LoginLink struct {
	Name      string
	Link      string
	ExpiresAt time.Time
}

const loginLinkSubject = "Your one-time login link"

var loginLinkText = texttemplate.Must(texttemplate.New("text").Parse(
	`Hello {{.Name}},

Use this link to log in. It works once and expires {{.ExpiresAt.Format "Jan 2, 2006 15:04 MST"}}.

{{.Link}}
`))

var loginLinkHTML = htmltemplate.Must(htmltemplate.New("html").Parse(
	`<p>Hello {{.Name}},</p>
<p>Use this link to log in. It works once and expires {{.ExpiresAt.Format "Jan 2, 2006 15:04 MST"}}.</p>
<p><a href="{{.Link}}">{{.Link}}</a></p>
`))

func renderLoginLink(data LoginLink) (text, html string, err error) {
	var tb, hb bytes.Buffer
	if err := loginLinkText.Execute(&tb, data); err != nil {
		return "", "", fmt.Errorf("mailer: render text: %w", err)
	}
	if err := loginLinkHTML.Execute(&hb, data); err != nil {
		return "", "", fmt.Errorf("mailer: render html: %w", err)
	}
	return tb.String(), hb.String(), nil
}

// SendLoginLink mails a one-time login link to address.
func (s *Sender) SendLoginLink(ctx context.Context, address string, data LoginLink) error {
	text, html, err := renderLoginLink(data)
	if err != nil {
		return err
	}
	if err := s.Send(ctx, Message{To: address, Subject: loginLinkSubject, TextBody: text, HTMLBody: html}); err != nil {
		return err
	}
	s.logger.Info("login link mailed", zap.String("name", data.Name))
	return nil
}
