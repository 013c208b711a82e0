// Package accounts is the identity store behind one-time login links and
// the greeting page. Users are looked up by numeric id.
package accounts

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no user has the requested id.
	ErrNotFound = errors.New("accounts: user not found")

	// ErrLoginChanged is returned by RecordLogin when the user's last login
	// no longer matches the expected stamp.
	ErrLoginChanged = errors.New("accounts: last login changed")
)

// AnonymousID is the id of the anonymous (not logged in) user.
const AnonymousID int64 = 0

// AnonymousName is the display name of the anonymous user.
const AnonymousName = "Anonymous"

// Status values for User.Status.
const (
	StatusActive  = "active"
	StatusBlocked = "blocked"
)

// User is an account in the directory.
type User struct {
	ID           int64     `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	Email        string    `json:"email" yaml:"email"`
	Status       string    `json:"status" yaml:"status"`
	LastLogin    time.Time `json:"last_login" yaml:"-"`
}

// Anonymous returns the anonymous user.
func Anonymous() *User {
	return &User{ID: AnonymousID, Name: AnonymousName, Status: StatusActive}
}

// IsAnonymous reports whether u is the anonymous user.
func (u *User) IsAnonymous() bool {
	return u == nil || u.ID == AnonymousID
}

// Active reports whether the account may log in.
func (u *User) Active() bool {
	return u != nil && u.Status != StatusBlocked
}

// LoginStamp is LastLogin in unix nanoseconds, or 0 for a user who has
// never logged in.
func (u *User) LoginStamp() int64 {
	if u == nil || u.LastLogin.IsZero() {
		return 0
	}
	return u.LastLogin.UnixNano()
}

// DisplayName is the name shown in greetings.
func (u *User) DisplayName() string {
	if u.IsAnonymous() || u.Name == "" {
		return AnonymousName
	}
	return u.Name
}

// Directory looks up users and records logins.
type Directory interface {
	// ByID returns the user with the given id or ErrNotFound.
	ByID(ctx context.Context, id int64) (*User, error)

	// RecordLogin sets the user's last login to at, but only while the
	// current LoginStamp equals expected. Otherwise it changes nothing and
	// returns ErrLoginChanged. The compare and the write are one atomic step.
	RecordLogin(ctx context.Context, id int64, expected int64, at time.Time) error
}
