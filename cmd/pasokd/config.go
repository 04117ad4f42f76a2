package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// ConfigFile is read from the working directory when present.
const ConfigFile = "pasok.yaml"

// envPrefix maps PASOK__SERVER__ADDRESS to server.address.
const envPrefix = "PASOK__"

type config struct {
	Address      string
	SecureCookie bool

	Secret        string
	BasePath      string
	SessionMaxAge time.Duration
	Hasher        string

	Store    string
	DSN      string
	Database string

	GoogleClientID string

	LogLevel string
	LogDev   bool
}

func defaults() map[string]any {
	return map[string]any{
		"server.address":      ":8080",
		"server.secureCookie": true,
		"auth.basePath":       "/api/auth",
		"auth.sessionMaxAge":  "24h",
		"auth.hasher":         "argon2id",
		"store.driver":        "sqlite",
		"store.dsn":           "file:pasok.db?_foreign_keys=on",
		"store.database":      "pasok",
		"log.level":           "info",
		"log.dev":             false,
	}
}

// loadConfig layers defaults, the optional yaml file and the environment.
func loadConfig(path string) (*config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", transformEnv), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &config{
		Address:        k.String("server.address"),
		SecureCookie:   k.Bool("server.secureCookie"),
		Secret:         k.String("auth.secret"),
		BasePath:       k.String("auth.basePath"),
		SessionMaxAge:  k.Duration("auth.sessionMaxAge"),
		Hasher:         k.String("auth.hasher"),
		Store:          k.String("store.driver"),
		DSN:            k.String("store.dsn"),
		Database:       k.String("store.database"),
		GoogleClientID: k.String("google.clientId"),
		LogLevel:       k.String("log.level"),
		LogDev:         k.Bool("log.dev"),
	}

	if cfg.Secret == "" {
		return nil, fmt.Errorf("auth.secret is required (set %sAUTH__SECRET)", envPrefix)
	}

	return cfg, nil
}

// transformEnv turns PASOK__GOOGLE__CLIENT_ID into google.clientId.
func transformEnv(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	parts := strings.Split(strings.ToLower(s), "__")
	for i, part := range parts {
		words := strings.Split(part, "_")
		for j := 1; j < len(words); j++ {
			if words[j] != "" {
				words[j] = strings.ToUpper(words[j][:1]) + words[j][1:]
			}
		}
		parts[i] = strings.Join(words, "")
	}
	return strings.Join(parts, ".")
}
