package main

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
)

var configEnvKeys = []string{
	"PGHOST", "PGPORT", "PGUSER", "PGPASSWORD", "PGDATABASE", "PGSSLMODE",
	"PGREORDER_SCHEMA", "PGREORDER_PG_DUMP",
}

// clearConfigEnv unsets every variable loadConfig reads for the duration of the test.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvKeys {
		t.Setenv(k, "")
		if err := os.Unsetenv(k); err != nil {
			t.Fatalf("unset %s: %v", k, err)
		}
	}
}

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfig_TOML(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfig(t, "pgreorder.toml", `
schema = "app"
pg_dump = "/usr/lib/postgresql/17/bin/pg_dump"

[connection]
host = "db.internal"
port = 6432
user = "migrator"
database = "shop"
sslmode = "require"

[hooks]
before_apply = ["hooks/lock.sql"]
after_apply = ["hooks/analyze.sql", "hooks/grants.sql"]
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	wantConn := ConnectionConfig{
		Host:     "db.internal",
		Port:     6432,
		User:     "migrator",
		Database: "shop",
		SSLMode:  "require",
	}
	if cfg.Connection != wantConn {
		t.Errorf("Connection = %+v, want %+v", cfg.Connection, wantConn)
	}
	if cfg.Schema != "app" {
		t.Errorf("Schema = %q, want %q", cfg.Schema, "app")
	}
	if cfg.PgDump != "/usr/lib/postgresql/17/bin/pg_dump" {
		t.Errorf("PgDump = %q", cfg.PgDump)
	}
	if !reflect.DeepEqual(cfg.Hooks.BeforeApply, []string{"hooks/lock.sql"}) {
		t.Errorf("Hooks.BeforeApply = %v", cfg.Hooks.BeforeApply)
	}
	if !reflect.DeepEqual(cfg.Hooks.AfterApply, []string{"hooks/analyze.sql", "hooks/grants.sql"}) {
		t.Errorf("Hooks.AfterApply = %v", cfg.Hooks.AfterApply)
	}
	if cfg.configDir != filepath.Dir(path) {
		t.Errorf("configDir = %q, want %q", cfg.configDir, filepath.Dir(path))
	}
	if err := cfg.validate(true); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfig(t, "pgreorder.yaml", `
schema: reporting
connection:
  host: 10.0.0.5
  database: analytics
hooks:
  after_apply:
    - analyze.sql
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	wantConn := ConnectionConfig{Host: "10.0.0.5", Port: 5432, User: "postgres", Database: "analytics", SSLMode: "prefer"}
	if cfg.Connection != wantConn {
		t.Errorf("Connection = %+v, want %+v", cfg.Connection, wantConn)
	}
	if cfg.Schema != "reporting" {
		t.Errorf("Schema = %q, want %q", cfg.Schema, "reporting")
	}
	if !reflect.DeepEqual(cfg.Hooks.AfterApply, []string{"analyze.sql"}) {
		t.Errorf("Hooks.AfterApply = %v", cfg.Hooks.AfterApply)
	}
	if len(cfg.Hooks.BeforeApply) != 0 {
		t.Errorf("Hooks.BeforeApply = %v, want empty", cfg.Hooks.BeforeApply)
	}
}

func TestLoadConfig_EmptyYAML(t *testing.T) {
	clearConfigEnv(t)
	cfg, err := loadConfig(writeConfig(t, "empty.yml", ""))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Schema != "public" {
		t.Errorf("Schema = %q, want public", cfg.Schema)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	wantConn := ConnectionConfig{Host: "localhost", Port: 5432, User: "postgres", SSLMode: "prefer"}
	if cfg.Connection != wantConn {
		t.Errorf("default Connection = %+v, want %+v", cfg.Connection, wantConn)
	}
	if cfg.Schema != "public" {
		t.Errorf("default Schema = %q, want public", cfg.Schema)
	}
	if cfg.PgDump != "" {
		t.Errorf("default PgDump = %q, want empty", cfg.PgDump)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.configDir != wd {
		t.Errorf("configDir = %q, want %q", cfg.configDir, wd)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("PGHOST", "from-env")
	t.Setenv("PGPORT", "5433")
	t.Setenv("PGPASSWORD", "secret")
	t.Setenv("PGREORDER_SCHEMA", "envschema")

	path := writeConfig(t, "c.toml", "schema = \"fileschema\"\n[connection]\nhost = \"from-file\"\ndatabase = \"db\"\n")
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}

	if cfg.Connection.Host != "from-env" || cfg.Connection.Port != 5433 || cfg.Connection.Password != "secret" {
		t.Errorf("Connection = %+v, want env host/port/password", cfg.Connection)
	}
	if cfg.Connection.Database != "db" {
		t.Errorf("Database = %q, want db", cfg.Connection.Database)
	}
	if cfg.Schema != "envschema" {
		t.Errorf("Schema = %q, want envschema", cfg.Schema)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		wantErr string
	}{
		{"unknown toml key", "c.toml", "[connection]\nhots = \"x\"\n", "unknown config keys: connection.hots"},
		{"unknown toml section", "c.toml", "[source]\ndsn = \"x\"\n", "unknown config keys"},
		{"unknown yaml key", "c.yaml", "connection:\n  hots: x\n", "parse config"},
		{"bad toml", "c.toml", "schema = \n", "parse config"},
		{"unsupported extension", "c.json", "{}", "unsupported config format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			_, err := loadConfig(writeConfig(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := loadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err = %v, want os.ErrNotExist", err)
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Connection: ConnectionConfig{Host: "localhost", Port: 5432, User: "postgres", Database: "db", SSLMode: "prefer"},
			Schema:     "public",
		}
	}

	tests := []struct {
		name         string
		mutate       func(c *Config)
		needDatabase bool
		wantErr      string
	}{
		{"valid", func(c *Config) {}, true, ""},
		{"database optional for file input", func(c *Config) { c.Connection.Database = "" }, false, ""},
		{"database required", func(c *Config) { c.Connection.Database = "" }, true, "database is required"},
		{"port out of range", func(c *Config) { c.Connection.Port = 70000 }, false, "invalid config"},
		{"bad sslmode", func(c *Config) { c.Connection.SSLMode = "sometimes" }, false, "invalid config"},
		{"empty host", func(c *Config) { c.Connection.Host = "" }, false, "invalid config"},
		{"bad schema", func(c *Config) { c.Schema = "my-schema" }, false, `invalid schema identifier "my-schema"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.validate(tt.needDatabase)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("validate: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("validate = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidate_SchemaErrorType(t *testing.T) {
	cfg := &Config{
		Connection: ConnectionConfig{Host: "h", Port: 1, User: "u", SSLMode: "disable"},
		Schema:     "",
	}
	var idErr *InvalidIdentifierError
	if err := cfg.validate(false); !errors.As(err, &idErr) {
		t.Fatalf("validate = %v, want InvalidIdentifierError", err)
	}
}

func TestResolvePath(t *testing.T) {
	cfg := &Config{configDir: "/etc/pgreorder"}
	if got := cfg.resolvePath("hooks/a.sql"); got != "/etc/pgreorder/hooks/a.sql" {
		t.Errorf("resolvePath(relative) = %q", got)
	}
	if got := cfg.resolvePath("/tmp/b.sql"); got != "/tmp/b.sql" {
		t.Errorf("resolvePath(absolute) = %q", got)
	}
}

func TestConnString(t *testing.T) {
	conn := ConnectionConfig{
		Host:     "db.example.com",
		Port:     5433,
		User:     "app user",
		Password: "p@ss:w/rd",
		Database: "shop",
		SSLMode:  "disable",
	}

	parsed, err := pgx.ParseConfig(conn.connString())
	if err != nil {
		t.Fatalf("ParseConfig(%q): %v", conn.connString(), err)
	}
	if parsed.Host != "db.example.com" || parsed.Port != 5433 {
		t.Errorf("host/port = %s:%d", parsed.Host, parsed.Port)
	}
	if parsed.User != "app user" || parsed.Password != "p@ss:w/rd" {
		t.Errorf("user/password = %q/%q", parsed.User, parsed.Password)
	}
	if parsed.Database != "shop" {
		t.Errorf("Database = %q", parsed.Database)
	}
	if parsed.TLSConfig != nil {
		t.Error("TLSConfig set for sslmode=disable")
	}
}
