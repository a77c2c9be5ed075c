package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

// runCLI executes the root command with fresh flag state and returns stdout.
func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	clearConfigEnv(t)
	t.Setenv("PGREORDER_LOG_LEVEL", "")

	opts = cliOptions{}
	rootCmd.Flags().VisitAll(func(f *pflag.Flag) {
		f.Changed = false
	})
	opts.envFile = filepath.Join(t.TempDir(), "missing.env")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeDump(t *testing.T) string {
	t.Helper()
	return writeDumpText(t, usersDump)
}

func writeDumpText(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "users.sql")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write dump: %v", err)
	}
	return path
}

func TestCLI_ListColumns(t *testing.T) {
	out, err := runCLI(t, "-i", writeDump(t), "users")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "Columns for users:\n" +
		"    id integer NOT NULL\n" +
		"    name text\n" +
		"    \"Email\" text NOT NULL\n" +
		"    created_at timestamp without time zone DEFAULT now()\n"
	if out != want {
		t.Errorf("output =\n%s\nwant:\n%s", out, want)
	}
}

func TestCLI_OrderedColumns(t *testing.T) {
	out, err := runCLI(t, "-i", writeDump(t), "-e", "name", "users", "created_at", "...", "id")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "Ordered columns for users:\n" +
		"    created_at timestamp without time zone DEFAULT now()\n" +
		"    \"Email\" text NOT NULL\n" +
		"    id integer NOT NULL\n"
	if out != want {
		t.Errorf("output =\n%s\nwant:\n%s", out, want)
	}
}

func TestCLI_ExcludeOnlyTriggersReorder(t *testing.T) {
	out, err := runCLI(t, "-i", writeDump(t), "--exclude", "created_at", "users")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "Ordered columns for users:") || strings.Contains(out, "created_at") {
		t.Errorf("output = %q", out)
	}
}

func TestCLI_DDL(t *testing.T) {
	out, err := runCLI(t, "-i", writeDump(t), "--ddl", "users", "...", "id")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "CREATE TABLE public.users (\n" +
		"    name text,\n" +
		"    \"Email\" text NOT NULL,\n" +
		"    created_at timestamp without time zone DEFAULT now(),\n" +
		"    id integer NOT NULL,\n" +
		"    CONSTRAINT users_name_check CHECK ((name <> ''::text))\n" +
		");\n"
	if out != want {
		t.Errorf("output =\n%s\nwant:\n%s", out, want)
	}
}

func TestCLI_DDLStopsAtTableClause(t *testing.T) {
	dump := "CREATE TABLE public.events (\n    id integer NOT NULL,\n    payload jsonb\n)\nWITH (fillfactor='70');\n\n" +
		"CREATE TABLE public.audit (\n    audit_id integer,\n    note text\n);\n"
	out, err := runCLI(t, "-i", writeDumpText(t, dump), "--ddl", "events", "payload")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want := "CREATE TABLE public.events (\n    payload jsonb,\n    id integer NOT NULL\n)\nWITH (fillfactor='70');\n"
	if out != want {
		t.Errorf("output =\n%s\nwant:\n%s", out, want)
	}
}

func TestCLI_OutputFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "columns.txt")
	out, err := runCLI(t, "-i", writeDump(t), "-f", target, "users", "name")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "" {
		t.Errorf("stdout = %q, want empty", out)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "Ordered columns for users:\n    name text\n") {
		t.Errorf("file = %q", data)
	}
}

func TestCLI_Errors(t *testing.T) {
	dump := writeDump(t)

	_, err := runCLI(t, "-i", dump, "users;drop")
	var idErr *InvalidIdentifierError
	if !errors.As(err, &idErr) {
		t.Errorf("bad table name: got %v, want InvalidIdentifierError", err)
	}

	var nf *NotFoundError
	_, err = runCLI(t, "-i", dump, "orders")
	if !errors.As(err, &nf) {
		t.Errorf("missing table: got %v, want NotFoundError", err)
	}

	_, err = runCLI(t, "-i", dump, "--schema", "billing", "users")
	if !errors.As(err, &nf) {
		t.Errorf("other schema: got %v, want NotFoundError", err)
	}

	_, err = runCLI(t, "-i", dump, "--migrate", "users", "name")
	if err == nil || !strings.Contains(err.Error(), "database is required") {
		t.Errorf("migrate without database: got %v", err)
	}

	if _, err = runCLI(t); err == nil {
		t.Error("no arguments: expected error")
	}
}
