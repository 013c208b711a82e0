package loginlink

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dalemusser/customform/accounts"
)

var t0 = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestGenerator(t *testing.T) (*Generator, *accounts.MemoryDirectory, *clock) {
	t.Helper()
	dir := accounts.NewMemoryDirectory(
		accounts.User{ID: 1, Name: "admin", Email: "admin@innoraft.com"},
		accounts.User{ID: 2, Name: "blocked", Status: accounts.StatusBlocked},
	)
	g, err := New(Config{Secret: []byte("test-secret"), BaseURL: "https://forms.example.com/"}, dir, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c := &clock{t: t0}
	g.now = c.now
	return g, dir, c
}

func tokenFrom(t *testing.T, link string) string {
	t.Helper()
	i := strings.Index(link, ResetPath)
	if i < 0 {
		t.Fatalf("link %q has no %s", link, ResetPath)
	}
	return link[i+len(ResetPath):]
}

func TestNew_RequiresSecret(t *testing.T) {
	if _, err := New(Config{}, accounts.NewMemoryDirectory(), nil); err == nil {
		t.Error("expected error without secret")
	}
}

func TestGenerate_UnknownUser(t *testing.T) {
	g, _, _ := newTestGenerator(t)
	res, err := g.Generate(context.Background(), 404)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Found || res.Link != "" {
		t.Errorf("unexpected result %+v", res)
	}
	if res.Message != "User does not exist" {
		t.Errorf("Message = %q", res.Message)
	}
}

func TestGenerate_Link(t *testing.T) {
	g, _, _ := newTestGenerator(t)
	res, err := g.Generate(context.Background(), 1)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !res.Found {
		t.Fatal("expected Found")
	}
	if !strings.HasPrefix(res.Link, "https://forms.example.com/user/reset/") {
		t.Errorf("Link = %q", res.Link)
	}
	if res.Message != "Generated Link: "+res.Link {
		t.Errorf("Message = %q", res.Message)
	}
	if !res.ExpiresAt.Equal(t0.Add(DefaultTTL)) {
		t.Errorf("ExpiresAt = %v", res.ExpiresAt)
	}
	if res.User == nil || res.User.ID != 1 {
		t.Errorf("User = %+v", res.User)
	}
}

func TestRedeem_OneTime(t *testing.T) {
	g, dir, c := newTestGenerator(t)
	ctx := context.Background()

	res, _ := g.Generate(ctx, 1)
	token := tokenFrom(t, res.Link)

	c.t = t0.Add(time.Hour)
	u, err := g.Redeem(ctx, token)
	if err != nil {
		t.Fatalf("first Redeem: %v", err)
	}
	if u.ID != 1 {
		t.Errorf("redeemed user = %d", u.ID)
	}
	stored, _ := dir.ByID(ctx, 1)
	if !stored.LastLogin.Equal(c.t) {
		t.Errorf("LastLogin = %v, want %v", stored.LastLogin, c.t)
	}

	if _, err := g.Redeem(ctx, token); !errors.Is(err, ErrUsed) {
		t.Errorf("second Redeem err = %v, want ErrUsed", err)
	}

	// A link issued after the login works once more.
	c.t = t0.Add(2 * time.Hour)
	res2, _ := g.Generate(ctx, 1)
	if _, err := g.Redeem(ctx, tokenFrom(t, res2.Link)); err != nil {
		t.Errorf("Redeem of fresh link: %v", err)
	}
}

func TestRedeem_LoginInvalidatesOlderLinks(t *testing.T) {
	g, _, c := newTestGenerator(t)
	ctx := context.Background()

	a, _ := g.Generate(ctx, 1)
	b, _ := g.Generate(ctx, 1)

	c.t = t0.Add(time.Minute)
	if _, err := g.Redeem(ctx, tokenFrom(t, b.Link)); err != nil {
		t.Fatalf("Redeem b: %v", err)
	}
	if _, err := g.Redeem(ctx, tokenFrom(t, a.Link)); !errors.Is(err, ErrUsed) {
		t.Errorf("Redeem a err = %v, want ErrUsed", err)
	}
}

func TestRedeem_Expired(t *testing.T) {
	g, _, c := newTestGenerator(t)
	res, _ := g.Generate(context.Background(), 1)

	c.t = t0.Add(DefaultTTL + time.Second)
	if _, err := g.Redeem(context.Background(), tokenFrom(t, res.Link)); !errors.Is(err, ErrExpired) {
		t.Errorf("err = %v, want ErrExpired", err)
	}
}

func TestRedeem_Invalid(t *testing.T) {
	g, dir, _ := newTestGenerator(t)
	ctx := context.Background()
	res, _ := g.Generate(ctx, 1)
	token := tokenFrom(t, res.Link)

	other, _ := New(Config{Secret: []byte("other-secret")}, dir, nil)
	other.now = g.now

	tests := []struct {
		name  string
		g     *Generator
		token string
	}{
		{"garbage", g, "not-a-token"},
		{"tampered", g, token[:len(token)-2] + "xx"},
		{"wrong secret", other, token},
		{"empty", g, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.g.Redeem(ctx, tt.token); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("err = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestRedeem_Blocked(t *testing.T) {
	g, _, _ := newTestGenerator(t)
	res, err := g.Generate(context.Background(), 2)
	if err != nil || !res.Found {
		t.Fatalf("Generate blocked user: %+v, %v", res, err)
	}
	if _, err := g.Redeem(context.Background(), tokenFrom(t, res.Link)); !errors.Is(err, ErrBlocked) {
		t.Errorf("err = %v, want ErrBlocked", err)
	}
}

// slowDirectory widens the gap between reading a user and recording the
// login.
type slowDirectory struct {
	*accounts.MemoryDirectory
	delay time.Duration
}

func (d slowDirectory) ByID(ctx context.Context, id int64) (*accounts.User, error) {
	u, err := d.MemoryDirectory.ByID(ctx, id)
	time.Sleep(d.delay)
	return u, err
}

func TestRedeem_ConcurrentOnce(t *testing.T) {
	dir := accounts.NewMemoryDirectory(accounts.User{ID: 1, Name: "admin"})
	g, err := New(Config{Secret: []byte("test-secret")}, slowDirectory{dir, 20 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c := &clock{t: t0}
	g.now = c.now

	ctx := context.Background()
	res, err := g.Generate(ctx, 1)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	token := tokenFrom(t, res.Link)

	const workers = 8
	var (
		wg   sync.WaitGroup
		ok   atomic.Int32
		used atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Redeem(ctx, token)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrUsed):
				used.Add(1)
			default:
				t.Errorf("Redeem: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := ok.Load(); got != 1 {
		t.Errorf("successful redemptions = %d, want 1", got)
	}
	if got := used.Load(); got != workers-1 {
		t.Errorf("ErrUsed = %d, want %d", got, workers-1)
	}
}

func TestRedeem_SameInstantStillOneTime(t *testing.T) {
	g, _, c := newTestGenerator(t)
	ctx := context.Background()

	c.t = t0.Add(time.Hour)
	first, _ := g.Generate(ctx, 1)
	if _, err := g.Redeem(ctx, tokenFrom(t, first.Link)); err != nil {
		t.Fatalf("Redeem first: %v", err)
	}

	// Issued and redeemed at the same instant as the previous login.
	second, _ := g.Generate(ctx, 1)
	if _, err := g.Redeem(ctx, tokenFrom(t, second.Link)); err != nil {
		t.Fatalf("Redeem second: %v", err)
	}
	if _, err := g.Redeem(ctx, tokenFrom(t, second.Link)); !errors.Is(err, ErrUsed) {
		t.Errorf("replay err = %v, want ErrUsed", err)
	}
}
