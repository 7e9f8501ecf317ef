// Package config loads server settings from defaults, an optional YAML file,
// .env / NK_* environment variables and command-line flags, in that order.
package config

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

// EnvPrefix prefixes every environment variable the server reads.
const EnvPrefix = "NK_"

// Config holds server configuration.
type Config struct {
	Addr         string        `yaml:"addr"`
	Storage      string        `yaml:"storage"`
	DataDir      string        `yaml:"data_dir"`
	DSN          string        `yaml:"dsn"`
	JWTKey       string        `yaml:"jwt_key"`
	SessionTTL   time.Duration `yaml:"session_ttl"`
	PublicOrigin string        `yaml:"public_origin"`

	LoginWindow   time.Duration `yaml:"login_window"`
	LoginMaxFails int           `yaml:"login_max_fails"`
	LoginBlockFor time.Duration `yaml:"login_block_for"`

	// TrustedProxy takes client addresses from X-Forwarded-For / X-Real-IP.
	TrustedProxy bool `yaml:"trusted_proxy"`

	Dev bool `yaml:"dev"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:          ":8080",
		Storage:       StorageFile,
		DataDir:       "data",
		SessionTTL:    24 * time.Hour,
		PublicOrigin:  "http://localhost:8080",
		LoginWindow:   15 * time.Minute,
		LoginMaxFails: 5,
		LoginBlockFor: 15 * time.Minute,
	}
}

// Load builds the configuration for the given command-line args using the
// process environment.
func Load(args []string) (Config, error) {
	return load(args, os.LookupEnv)
}

func load(args []string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()

	fset := flag.NewFlagSet("notekeeper-server", flag.ContinueOnError)
	configPath := fset.String("config", "", "YAML config file")
	envPath := fset.String("env-file", ".env", "dotenv file with NK_* variables")
	addr := fset.String("addr", cfg.Addr, "listen address")
	storage := fset.String("storage", cfg.Storage, "storage backend: file|postgres")
	dataDir := fset.String("data-dir", cfg.DataDir, "directory of the JSON file store")
	dsn := fset.String("dsn", cfg.DSN, "PostgreSQL DSN")
	jwtKey := fset.String("jwt-key", "", "HS256 signing key (required)")
	ttl := fset.Duration("session-ttl", cfg.SessionTTL, "session lifetime")
	origin := fset.String("public-origin", cfg.PublicOrigin, "base URL used in share links")
	window := fset.Duration("login-window", cfg.LoginWindow, "failed sign-in counting window")
	maxFails := fset.Int("login-max-fails", cfg.LoginMaxFails, "failed sign-ins before lockout")
	blockFor := fset.Duration("login-block-for", cfg.LoginBlockFor, "lockout duration")
	trustProxy := fset.Bool("trusted-proxy", false, "trust X-Forwarded-For / X-Real-IP (only behind a proxy)")
	dev := fset.Bool("dev", false, "development logging")
	if err := fset.Parse(args); err != nil {
		return Config{}, err
	}

	if *configPath != "" {
		if err := readYAML(*configPath, &cfg); err != nil {
			return Config{}, err
		}
	}

	dotenv, err := readDotenv(*envPath)
	if err != nil {
		return Config{}, err
	}
	// real environment wins over .env
	env := func(key string) (string, bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			return v, true
		}
		v, ok := dotenv[EnvPrefix+key]
		return v, ok
	}
	if err := applyEnv(&cfg, env); err != nil {
		return Config{}, err
	}

	// only flags given explicitly override file and env
	fset.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Addr = *addr
		case "storage":
			cfg.Storage = *storage
		case "data-dir":
			cfg.DataDir = *dataDir
		case "dsn":
			cfg.DSN = *dsn
		case "jwt-key":
			cfg.JWTKey = *jwtKey
		case "session-ttl":
			cfg.SessionTTL = *ttl
		case "public-origin":
			cfg.PublicOrigin = *origin
		case "login-window":
			cfg.LoginWindow = *window
		case "login-max-fails":
			cfg.LoginMaxFails = *maxFails
		case "login-block-for":
			cfg.LoginBlockFor = *blockFor
		case "trusted-proxy":
			cfg.TrustedProxy = *trustProxy
		case "dev":
			cfg.Dev = *dev
		}
	})

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required fields and ranges.
func (c Config) Validate() error {
	var problems []error
	if c.JWTKey == "" {
		problems = append(problems, errors.New("jwt_key is required"))
	}
	switch c.Storage {
	case StorageFile:
		if c.DataDir == "" {
			problems = append(problems, errors.New("data_dir is required for file storage"))
		}
	case StoragePostgres:
		if c.DSN == "" {
			problems = append(problems, errors.New("dsn is required for postgres storage"))
		}
	default:
		problems = append(problems, fmt.Errorf("unknown storage %q", c.Storage))
	}
	if c.SessionTTL <= 0 {
		problems = append(problems, errors.New("session_ttl must be positive"))
	}
	if c.LoginMaxFails <= 0 || c.LoginWindow <= 0 || c.LoginBlockFor <= 0 {
		problems = append(problems, errors.New("login limits must be positive"))
	}
	if err := errors.Join(problems...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func readYAML(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// readDotenv returns the variables of a .env file; a missing file is not an error.
func readDotenv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	m, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return m, nil
}

func applyEnv(cfg *Config, env func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := env(key); ok {
			*dst = v
		}
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := env(key)
		if !ok {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
		}
		*dst = d
		return nil
	}
	boolean := func(key string, dst *bool) error {
		v, ok := env(key)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
		return nil
	}

	str("ADDR", &cfg.Addr)
	str("STORAGE", &cfg.Storage)
	str("DATA_DIR", &cfg.DataDir)
	str("DSN", &cfg.DSN)
	str("JWT_KEY", &cfg.JWTKey)
	str("PUBLIC_ORIGIN", &cfg.PublicOrigin)
	if err := dur("SESSION_TTL", &cfg.SessionTTL); err != nil {
		return err
	}
	if err := dur("LOGIN_WINDOW", &cfg.LoginWindow); err != nil {
		return err
	}
	if err := dur("LOGIN_BLOCK_FOR", &cfg.LoginBlockFor); err != nil {
		return err
	}
	if v, ok := env("LOGIN_MAX_FAILS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %sLOGIN_MAX_FAILS: %w", EnvPrefix, err)
		}
		cfg.LoginMaxFails = n
	}
	if err := boolean("TRUSTED_PROXY", &cfg.TrustedProxy); err != nil {
		return err
	}
	return boolean("DEV", &cfg.Dev)
}
