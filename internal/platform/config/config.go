// Package config loads all runtime configuration from the environment so main
// stays lean. Every knob has a development default; production deployments
// override via env.
package config

import (
	"os"
	"time"
)

// Server captures everything the process needs to come up.
type Server struct {
	Addr string

	// InitialAdmin seeds the admin slot when the backing store is empty.
	InitialAdmin string

	JWT   JWTConfig
	Auth  AuthConfig
	DB    DBConfig
	Redis RedisConfig
}

// JWTConfig configures token minting and validation.
type JWTConfig struct {
	SigningKey string
	Issuer     string
	Audience   string
	TokenTTL   time.Duration
}

// AuthConfig configures the credential check behind POST /auth/token.
// APIKeyHash is a bcrypt hash of the shared key callers present.
type AuthConfig struct {
	APIKeyHash string
}

// DBConfig configures the optional Postgres backend. An empty URL selects the
// in-memory store.
type DBConfig struct {
	URL string
}

// RedisConfig configures the optional token revocation backend. An empty URL
// selects the in-memory revocation list.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	return Server{
		Addr:         envOr("KINREGISTRY_ADDR", ":8080"),
		InitialAdmin: envOr("KINREGISTRY_ADMIN", "root"),
		JWT: JWTConfig{
			SigningKey: envOr("KINREGISTRY_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			Issuer:     envOr("KINREGISTRY_JWT_ISSUER", "kinregistry"),
			Audience:   envOr("KINREGISTRY_JWT_AUDIENCE", "kinregistry"),
			TokenTTL:   durationOr("KINREGISTRY_TOKEN_TTL", time.Hour),
		},
		Auth: AuthConfig{
			APIKeyHash: os.Getenv("KINREGISTRY_API_KEY_HASH"),
		},
		DB: DBConfig{
			URL: envOr("KINREGISTRY_DATABASE_URL", os.Getenv("DATABASE_URL")),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("KINREGISTRY_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
