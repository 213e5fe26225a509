package oauth

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/middleware/session"
	redisstorage "github.com/gofiber/storage/redis"
	"github.com/markbates/goth"
	"github.com/markbates/goth/gothic"
	"github.com/markbates/goth/providers/github"
	"github.com/markbates/goth/providers/google"
	"github.com/rs/zerolog/log"
	gothfiber "github.com/shareed2k/goth_fiber"

	"github.com/accessibility-build/platform/internal/pkg/cache"
	"github.com/accessibility-build/platform/internal/pkg/constants"
	"github.com/accessibility-build/platform/internal/pkg/env"
)

// Supported sign-in providers.
const (
	ProviderGoogle = "google"
	ProviderGitHub = "github"
)

// BaseURL is the public origin used for provider callbacks.
func BaseURL() string {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	if base == "" {
		base = "http://localhost:" + env.GetEnv("APP_PORT", "4000")
	}
	return base
}

// CallbackURL returns the redirect URI registered with provider.
func CallbackURL(provider string) string {
	return BaseURL() + constants.AuthRoute + "/" + provider + "/callback"
}

// Providers builds the goth providers that have credentials configured.
func Providers() []goth.Provider {
	var providers []goth.Provider
	if key := env.GetEnv("GOOGLE_KEY", ""); key != "" {
		providers = append(providers, google.New(
			key,
			env.GetEnv("GOOGLE_SECRET", ""),
			CallbackURL(ProviderGoogle),
			"email", "profile",
		))
	}
	if key := env.GetEnv("GITHUB_KEY", ""); key != "" {
		providers = append(providers, github.New(
			key,
			env.GetEnv("GITHUB_SECRET", ""),
			CallbackURL(ProviderGitHub),
			"read:user", "user:email",
		))
	}
	return providers
}

// IsEnabled reports whether provider was registered by Setup.
func IsEnabled(provider string) bool {
	_, err := goth.GetProvider(provider)
	return err == nil
}

// Setup registers the providers and points goth_fiber at a Redis state store.
// It is safe to call multiple times; providers are simply re-registered.
func Setup() {
	providers := Providers()
	if len(providers) == 0 {
		log.Warn().Msg("[OAuth] no providers configured, sign-in disabled")
	}
	goth.ClearProviders()
	goth.UseProviders(providers...)

	cacheOpts := cache.GetClient().Options()
	host, port := "127.0.0.1", 6379
	if cacheOpts != nil && cacheOpts.Addr != "" {
		if h, p, err := net.SplitHostPort(cacheOpts.Addr); err == nil {
			host = h
			if parsed, e := strconv.Atoi(p); e == nil {
				port = parsed
			}
		} else {
			host = cacheOpts.Addr
		}
	}

	gothfiber.SessionStore = session.New(session.Config{
		Storage: redisstorage.New(redisstorage.Config{
			Host:     host,
			Port:     port,
			Username: cacheOpts.Username,
			Password: cacheOpts.Password,
			Database: 2,
			Reset:    false,
		}),
		KeyLookup:      "cookie:" + gothic.SessionName,
		CookieHTTPOnly: true,
		CookieSameSite: "Lax",
		CookieSecure:   !env.IsDev(),
		Expiration:     15 * time.Minute,
	})
}
