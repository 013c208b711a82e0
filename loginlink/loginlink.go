// Package loginlink issues and redeems one-time login links.
//
// A link carries an HS256 token naming the user, an expiry, and a
// fingerprint of the user's last login. Redeeming a link records a new
// login, which changes the fingerprint and so invalidates every link issued
// before it, including the one just used.
package loginlink

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/customform/accounts"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Redemption errors.
var (
	ErrInvalidToken = errors.New("loginlink: invalid token")
	ErrExpired      = errors.New("loginlink: link expired")
	ErrUsed         = errors.New("loginlink: link already used")
	ErrBlocked      = errors.New("loginlink: account blocked")
)

// MissingUserMessage is reported when the requested user id is unknown.
const MissingUserMessage = "User does not exist"

// ResetPath is the route prefix links point at.
const ResetPath = "/user/reset/"

// DefaultTTL matches the usual one day password-reset window.
const DefaultTTL = 24 * time.Hour

// Config configures a Generator.
type Config struct {
	// Secret signs tokens. Required.
	Secret []byte

	// BaseURL is prefixed to ResetPath, e.g. "https://example.com".
	BaseURL string

	// TTL is how long a link stays valid. Default: DefaultTTL.
	TTL time.Duration

	// Issuer is written to the iss claim. Default: "customform".
	Issuer string
}

// Generator issues and redeems links against a user directory.
type Generator struct {
	cfg    Config
	users  accounts.Directory
	logger *zap.Logger
	now    func() time.Time
}

// New returns a Generator. It fails when no secret is configured.
func New(cfg Config, users accounts.Directory, logger *zap.Logger) (*Generator, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("loginlink: secret is required")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Issuer == "" {
		cfg.Issuer = "customform"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{cfg: cfg, users: users, logger: logger, now: time.Now}, nil
}

// Result is the outcome of a Generate call. A missing user is not an
// error: Found is false and Message says so.
type Result struct {
	Found     bool           `json:"found"`
	Link      string         `json:"link,omitempty"`
	Message   string         `json:"message"`
	ExpiresAt time.Time      `json:"expires_at,omitempty"`
	User      *accounts.User `json:"-"`
}

type claims struct {
	// Login is the user's last login (unix nanoseconds) when the link was issued.
	Login int64 `json:"lgn"`
	jwt.RegisteredClaims
}

// Generate issues a link for user uid.
func (g *Generator) Generate(ctx context.Context, uid int64) (Result, error) {
	u, err := g.users.ByID(ctx, uid)
	if errors.Is(err, accounts.ErrNotFound) {
		g.logger.Info("login link requested for unknown user", zap.Int64("uid", uid))
		return Result{Found: false, Message: MissingUserMessage}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("loginlink: lookup %d: %w", uid, err)
	}

	now := g.now()
	exp := now.Add(g.cfg.TTL)
	c := claims{
		Login: u.LoginStamp(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.cfg.Issuer,
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(g.cfg.Secret)
	if err != nil {
		return Result{}, fmt.Errorf("loginlink: sign: %w", err)
	}

	link := g.cfg.BaseURL + ResetPath + token
	g.logger.Info("login link generated", zap.Int64("uid", u.ID), zap.Time("expires_at", exp))
	return Result{
		Found:     true,
		Link:      link,
		Message:   "Generated Link: " + link,
		ExpiresAt: exp,
		User:      u,
	}, nil
}

// Redeem validates token, records a login for its user and returns the
// user. Each token works at most once.
func (g *Generator) Redeem(ctx context.Context, token string) (*accounts.User, error) {
	var c claims
	_, err := jwt.ParseWithClaims(token, &c,
		func(t *jwt.Token) (any, error) { return g.cfg.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(g.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if errors.Is(err, jwt.ErrTokenExpired) {
		return nil, ErrExpired
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	uid, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	u, err := g.users.ByID(ctx, uid)
	if errors.Is(err, accounts.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown user", ErrInvalidToken)
	}
	if err != nil {
		return nil, fmt.Errorf("loginlink: lookup %d: %w", uid, err)
	}
	if !u.Active() {
		return nil, ErrBlocked
	}
	if c.Login != u.LoginStamp() {
		return nil, ErrUsed
	}

	// The new stamp must differ from the old one or the link would stay live.
	at := g.now().UTC()
	if at.UnixNano() <= c.Login {
		at = time.Unix(0, c.Login+1).UTC()
	}
	err = g.users.RecordLogin(ctx, u.ID, c.Login, at)
	if errors.Is(err, accounts.ErrLoginChanged) {
		return nil, ErrUsed
	}
	if err != nil {
		return nil, fmt.Errorf("loginlink: record login: %w", err)
	}
	u.LastLogin = at
	g.logger.Info("login link redeemed", zap.Int64("uid", u.ID), zap.String("jti", c.ID))
	return u, nil
}
