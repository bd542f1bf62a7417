// Package config reads the environment the two servers run from. A .env in
// the working directory is honored when present.
package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// ErrMissingServiceRole is fatal for the privileged admin server: it must
// not come up without the elevated credential.
var ErrMissingServiceRole = errors.New("SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY must be set")

type Config struct {
	Addr      string
	AdminAddr string

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	NatsURL       string

	SupabaseURL    string
	AnonKey        string
	ServiceRoleKey string

	StorageRoot   string
	PublicBaseURL string

	DefaultCurrency string
}

func Load() *Config {
	// ignore a missing .env; real deployments set the environment directly
	_ = godotenv.Load()

	return &Config{
		Addr:            getenv("SHOP_ADDR", ":8080"),
		AdminAddr:       getenv("ADMIN_ADDR", ":3001"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		RedisAddr:       getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getenvInt("REDIS_DB", 0),
		NatsURL:         getenv("NATS_URL", "nats://localhost:4222"),
		SupabaseURL:     os.Getenv("SUPABASE_URL"),
		AnonKey:         os.Getenv("SUPABASE_ANON_KEY"),
		ServiceRoleKey:  os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		StorageRoot:     getenv("STORAGE_ROOT", "./data/storage"),
		PublicBaseURL:   getenv("PUBLIC_BASE_URL", "http://localhost:8080"),
		DefaultCurrency: getenv("DEFAULT_CURRENCY", "twd"),
	}
}

// RequireServiceRole guards the privileged server's startup.
func (c *Config) RequireServiceRole() error {
	if c.SupabaseURL == "" || c.ServiceRoleKey == "" {
		return ErrMissingServiceRole
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
