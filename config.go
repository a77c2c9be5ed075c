package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

// Config holds connection settings and defaults. It can come from a TOML or
// YAML file, is overlaid with PG* environment variables, and finally with
// command-line flags.
type Config struct {
	Connection ConnectionConfig `toml:"connection" yaml:"connection"`
	Schema     string           `toml:"schema" yaml:"schema" env:"PGREORDER_SCHEMA" env-default:"public"`
	PgDump     string           `toml:"pg_dump" yaml:"pg_dump" env:"PGREORDER_PG_DUMP"` // path to pg_dump; looked up when empty
	Hooks      HooksConfig      `toml:"hooks" yaml:"hooks"`

	// configDir is the directory containing the config file, used to resolve relative hook paths.
	configDir string
}

// ConnectionConfig mirrors the libpq connection parameters.
type ConnectionConfig struct {
	Host     string `toml:"host" yaml:"host" env:"PGHOST" env-default:"localhost" validate:"required"`
	Port     int    `toml:"port" yaml:"port" env:"PGPORT" env-default:"5432" validate:"min=1,max=65535"`
	User     string `toml:"user" yaml:"user" env:"PGUSER" env-default:"postgres" validate:"required"`
	Password string `toml:"password" yaml:"password" env:"PGPASSWORD"`
	Database string `toml:"database" yaml:"database" env:"PGDATABASE"`
	SSLMode  string `toml:"sslmode" yaml:"sslmode" env:"PGSSLMODE" env-default:"prefer" validate:"oneof=disable allow prefer require verify-ca verify-full"`
}

// HooksConfig lists SQL files run inside the --apply transaction.
type HooksConfig struct {
	BeforeApply []string `toml:"before_apply" yaml:"before_apply"`
	AfterApply  []string `toml:"after_apply" yaml:"after_apply"`
}

var configValidator = validator.New()

// loadConfig reads an optional config file and overlays the environment.
// An empty path skips the file.
func loadConfig(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".toml":
			if err := decodeTOML(data, &cfg); err != nil {
				return nil, err
			}
		case ".yaml", ".yml":
			if err := decodeYAML(data, &cfg); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("unsupported config format %q (use .toml, .yaml or .yml)", ext)
		}

		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		cfg.configDir = filepath.Dir(absPath)
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		cfg.configDir = wd
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	cfg.Schema = strings.TrimSpace(cfg.Schema)
	return &cfg, nil
}

func decodeTOML(data []byte, cfg *Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// validate checks the final settings. needDatabase is false when the schema
// text comes from a file and no catalog lookups are made.
func (c *Config) validate(needDatabase bool) error {
	if err := configValidator.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if needDatabase && c.Connection.Database == "" {
		return fmt.Errorf("database is required (--database, PGDATABASE or connection.database)")
	}
	return validateIdentifier("schema", c.Schema)
}

// resolvePath resolves a path relative to the config file directory.
func (c *Config) resolvePath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.configDir, p)
}

// connString builds a postgres URL; user-provided parts are escaped.
func (c ConnectionConfig) connString() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": []string{c.SSLMode}}.Encode(),
	}
	return u.String()
}
