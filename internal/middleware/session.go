package middleware

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// SessionConfig for the Redis-backed session lookup. The auth service owns
// session writes; this middleware only resolves the cookie to an identity.
type SessionConfig struct {
	RedisURL          string
	AllowCrossSiteDev bool
	IsProduction      bool
}

const (
	SessionCookieName  = "gauntlet.sid"
	SessionRedisPrefix = "session:"
)

const sessionUserLocal = "session_user"

// SessionUser is the identity shape the auth service stores under "user".
type SessionUser struct {
	UserID string  `json:"user_id"`
	Name   string  `json:"name"`
	Email  string  `json:"email"`
	Role   string  `json:"role"`
	OrgID  *string `json:"org_id"`
}

type sessionPayload struct {
	User *SessionUser `json:"user"`
}

// Session resolves the session cookie against Redis and puts the typed user
// in Locals. Missing or malformed sessions just mean an anonymous request;
// RequireAuth decides whether that matters.
func Session(cfg SessionConfig) (fiber.Handler, *redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	rdb := redis.NewClient(opt)

	return func(c *fiber.Ctx) error {
		sessionID := c.Cookies(SessionCookieName)
		if sessionID == "" {
			return c.Next()
		}
		b, err := rdb.Get(c.Context(), SessionRedisPrefix+sessionID).Bytes()
		if errors.Is(err, redis.Nil) {
			// The session expired or was logged out server-side; stop the
			// browser from re-presenting the dead cookie.
			cookie := SessionCookieConfig(cfg)
			c.Cookie(&cookie)
			return c.Next()
		}
		if err != nil {
			return c.Next()
		}
		var payload sessionPayload
		if err := json.Unmarshal(b, &payload); err != nil || payload.User == nil {
			return c.Next()
		}
		c.Locals(sessionUserLocal, payload.User)
		return c.Next()
	}, rdb, nil
}

// SessionCookieConfig returns an already-expired cookie with the attributes
// the auth service sets, used to clear a stale session cookie.
func SessionCookieConfig(cfg SessionConfig) fiber.Cookie {
	sameSite := "Lax"
	if cfg.AllowCrossSiteDev {
		sameSite = "None"
	}
	return fiber.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Now().Add(-time.Hour),
		MaxAge:   -1,
		HTTPOnly: true,
		Secure:   cfg.IsProduction && cfg.AllowCrossSiteDev,
		SameSite: sameSite,
	}
}
