package session

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	"github.com/gofiber/storage/redis"

	"github.com/accessibility-build/platform/internal/pkg/cache"
	"github.com/accessibility-build/platform/internal/pkg/env"
)

const (
	CookieName = "a11y_session"
	Lifetime   = 7 * 24 * time.Hour
)

var sessionStore *session.Store

// redisTarget derives host, port and password from the shared cache client
// so sessions live on the same server in a separate database.
func redisTarget() (string, int, string) {
	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")

	cacheClient := cache.GetClient()
	if cacheClient != nil {
		addr := cacheClient.Options().Addr
		if h, p, err := net.SplitHostPort(addr); err == nil {
			host = h
			if v, err := strconv.Atoi(p); err == nil {
				port = v
			}
		}
		if p := cacheClient.Options().Password; p != "" {
			password = p
		}
	}
	return host, port, password
}

func NewSessionStore() *session.Store {
	host, port, password := redisTarget()

	// DB 1 for sessions; the cache uses DB 0 and OAuth state DB 2
	storage := redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})

	sessionStore = session.New(session.Config{
		Storage:        storage,
		CookieHTTPOnly: true,
		CookieSecure:   !env.IsDev(),
		CookieSameSite: "Lax",
		Expiration:     Lifetime,
		KeyLookup:      "cookie:" + CookieName,
	})

	return sessionStore
}

// UseStore replaces the package store, e.g. with an in-memory one in tests.
func UseStore(store *session.Store) {
	sessionStore = store
}

func GetSessionStore() *session.Store {
	return sessionStore
}

// SetSessionValue stores a key-value pair in the user's session
func SetSessionValue(c *fiber.Ctx, key string, value string) error {
	if sessionStore == nil {
		return fmt.Errorf("session store not initialized")
	}

	sess, err := sessionStore.Get(c)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	sess.Set(key, value)
	return sess.Save()
}

// GetSessionValue retrieves a string value by key from the user's session
func GetSessionValue(c *fiber.Ctx, key string) string {
	if sessionStore == nil {
		return ""
	}

	sess, err := sessionStore.Get(c)
	if err != nil {
		return ""
	}

	if strValue, ok := sess.Get(key).(string); ok {
		return strValue
	}
	return ""
}

// Destroy drops the current session, used on logout and for disabled users.
func Destroy(c *fiber.Ctx) error {
	if sessionStore == nil {
		return fmt.Errorf("session store not initialized")
	}
	sess, err := sessionStore.Get(c)
	if err != nil {
		return err
	}
	return sess.Destroy()
}
