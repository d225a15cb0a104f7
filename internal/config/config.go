// Package config reads process settings from the environment.
//
// LOOKUP ORDER:
//  1. Real environment variables
//  2. A .env file in the working directory (if present)
//  3. The defaults below
//
// godotenv never overrides a variable that is already set, which is what
// gives real environment variables priority over the file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultPort   = 8080
	DefaultDBPath = "data/pantry.db"
)

// Config holds every setting the two binaries read.
type Config struct {
	Port         int
	DBPath       string
	JWTSecret    string
	TokenTTL     time.Duration
	ShallowMeals bool // load meal plans without recipe contents
	LogLevel     slog.Level
	SeedFile     string // YAML reference data for cmd/initdb; empty = no seed
}

// Load reads the given .env files (default ".env"), then the environment.
// A missing .env file is not an error.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: reading %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function. Tests pass a map lookup.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Port:      DefaultPort,
		DBPath:    DefaultDBPath,
		JWTSecret: getenv("JWT_SECRET"),
		TokenTTL:  24 * time.Hour,
		LogLevel:  slog.LevelInfo,
		SeedFile:  strings.TrimSpace(getenv("SEED_FILE")),
	}

	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v) // Atoi = ASCII to Integer
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("config: invalid PORT %q", v)
		}
		cfg.Port = port
	}

	if v := getenv("DB_PATH"); v != "" {
		cfg.DBPath = v
	}

	if v := getenv("TOKEN_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil || ttl <= 0 {
			return Config{}, fmt.Errorf("config: invalid TOKEN_TTL %q (want e.g. 12h)", v)
		}
		cfg.TokenTTL = ttl
	}

	if v := getenv("SHALLOW_MEALS"); v != "" {
		shallow, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: invalid SHALLOW_MEALS %q", v)
		}
		cfg.ShallowMeals = shallow
	}

	if v := getenv("LOG_LEVEL"); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("config: invalid LOG_LEVEL %q", v)
		}
	}

	return cfg, nil
}

// Addr is the listen address for http.Server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
