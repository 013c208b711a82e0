// Package greeting builds the per-user greeting shown at /hello.
package greeting

import (
	"strconv"

	"github.com/dalemusser/customform/accounts"
)

// Greet returns "Hello " followed by the user's display name. A nil user is
// greeted as the anonymous user.
func Greet(u *accounts.User) string {
	return "Hello " + u.DisplayName()
}

// CacheTag identifies the user a rendered greeting belongs to, e.g.
// "user:7". Responses carrying it must be invalidated when that user's name
// changes.
func CacheTag(u *accounts.User) string {
	if u == nil {
		return "user:" + strconv.FormatInt(accounts.AnonymousID, 10)
	}
	return "user:" + strconv.FormatInt(u.ID, 10)
}
