package bootstrap

import (
	"github.com/dalemusser/customform/accounts"
	"github.com/dalemusser/customform/configstore"
	"github.com/dalemusser/customform/session"
	"github.com/redis/go-redis/v9"
)

// DBDeps holds the backends opened at startup.
type DBDeps struct {
	Store    configstore.Store
	Sessions session.Store
	Users    *accounts.MemoryDirectory

	// redis is set when sessions live in Redis.
	redis *redis.Client
}
