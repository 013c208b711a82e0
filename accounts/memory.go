// accounts/memory.go
package accounts

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// MemoryDirectory holds users in memory. It is safe for concurrent use.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[int64]*User
}

// NewMemoryDirectory returns a directory containing the given users.
func NewMemoryDirectory(users ...User) *MemoryDirectory {
	d := &MemoryDirectory{users: make(map[int64]*User, len(users))}
	for i := range users {
		u := users[i]
		if u.Status == "" {
			u.Status = StatusActive
		}
		d.users[u.ID] = &u
	}
	return d
}

// ByID returns a copy of the user with the given id. The anonymous id is
// never stored and always yields ErrNotFound.
func (d *MemoryDirectory) ByID(ctx context.Context, id int64) (*User, error) {
	if id == AnonymousID {
		return nil, ErrNotFound
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	u, ok := d.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// RecordLogin stamps the user's last login time if it is still expected.
func (d *MemoryDirectory) RecordLogin(ctx context.Context, id int64, expected int64, at time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	u, ok := d.users[id]
	if !ok {
		return ErrNotFound
	}
	if u.LoginStamp() != expected {
		return ErrLoginChanged
	}
	u.LastLogin = at.UTC()
	return nil
}

// Len returns the number of users.
func (d *MemoryDirectory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.users)
}

// seedFile is the on-disk shape of a users file:
//
//	users:
//	  - id: 1
//	    name: admin
//	    email: admin@innoraft.com
//	  - id: 2
//	    name: Jane Doe
//	    status: blocked
type seedFile struct {
	Users []seedUser `yaml:"users"`
}

type seedUser struct {
	ID     int64  `yaml:"id"`
	Name   string `yaml:"name"`
	Email  string `yaml:"email"`
	Status string `yaml:"status"`
}

// LoadYAMLFile reads a users file from disk. See ParseYAML for the format.
func LoadYAMLFile(path string) (*MemoryDirectory, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("accounts: read %s: %w", path, err)
	}
	return ParseYAML(b)
}

// ParseYAML builds a directory from YAML. Status defaults to active.
func ParseYAML(b []byte) (*MemoryDirectory, error) {
	var f seedFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("accounts: parse users: %w", err)
	}

	seen := make(map[int64]bool, len(f.Users))
	users := make([]User, 0, len(f.Users))
	for i, su := range f.Users {
		if su.ID <= 0 {
			return nil, fmt.Errorf("accounts: users[%d]: id must be > 0", i)
		}
		if seen[su.ID] {
			return nil, fmt.Errorf("accounts: users[%d]: duplicate id %d", i, su.ID)
		}
		seen[su.ID] = true

		name := strings.TrimSpace(su.Name)
		if name == "" {
			return nil, fmt.Errorf("accounts: users[%d]: name is required", i)
		}
		status := strings.ToLower(strings.TrimSpace(su.Status))
		switch status {
		case "":
			status = StatusActive
		case StatusActive, StatusBlocked:
		default:
			return nil, fmt.Errorf("accounts: users[%d]: unknown status %q", i, su.Status)
		}

		users = append(users, User{ID: su.ID, Name: name, Email: strings.TrimSpace(su.Email), Status: status})
	}
	return NewMemoryDirectory(users...), nil
}
