// Package config loads the server configuration from TOML.
//
// Example finance.toml:
//
//	currency = "USD"
//
//	[server]
//	port = 8080
//	db = "finance.db"
//	allowed_origins = ["http://localhost:5173"]
//
//	[auth]
//	token = "change-me"
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/Rhymond/go-money"
)

type Config struct {
	Currency string `toml:"currency"`
	Server   Server `toml:"server"`
	Auth     Auth   `toml:"auth"`
}

type Server struct {
	Port           int      `toml:"port"`
	DB             string   `toml:"db"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// Auth configures the bearer token required on /api. Empty disables auth.
type Auth struct {
	Token string `toml:"token"`
}

// DefaultConfig returns local development defaults.
func DefaultConfig() Config {
	return Config{
		Currency: "USD",
		Server: Server{
			Port:           8080,
			DB:             "finance.db",
			AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, fmt.Errorf("load config %s: unknown keys %s", path, strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges and that the currency is a known ISO code.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	}
	if c.Server.DB == "" {
		return errors.New("config: server.db is required")
	}
	if money.GetCurrency(strings.ToUpper(c.Currency)) == nil {
		return fmt.Errorf("config: unknown currency %q", c.Currency)
	}
	return nil
}
