package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
)

// pgDumpSearchGlobs are checked when pg_dump is not on PATH.
func pgDumpSearchGlobs() []string {
	if runtime.GOOS == "windows" {
		return []string{`C:\Program Files\PostgreSQL\*\bin\pg_dump.exe`}
	}
	return []string{
		"/usr/lib/postgresql/*/bin/pg_dump",
		"/usr/pgsql-*/bin/pg_dump",
		"/opt/homebrew/opt/postgresql@*/bin/pg_dump",
	}
}

// findPgDump returns the pg_dump binary to run: the configured path, then
// PATH, then the newest match in the usual install directories.
func findPgDump(configured string) (string, error) {
	if configured != "" {
		if _, err := os.Stat(configured); err != nil {
			return "", fmt.Errorf("pg_dump %s: %w", configured, err)
		}
		return configured, nil
	}
	if p, err := exec.LookPath("pg_dump"); err == nil {
		return p, nil
	}
	for _, pattern := range pgDumpSearchGlobs() {
		matches, _ := filepath.Glob(pattern)
		if len(matches) == 0 {
			continue
		}
		sort.Strings(matches)
		return matches[len(matches)-1], nil
	}
	return "", fmt.Errorf("pg_dump not found on PATH; set --pg-dump or pg_dump in the config file")
}

// pgDumpArgs builds the pg_dump command line for a schema-only dump of one table.
func pgDumpArgs(conn ConnectionConfig, schema, table string) []string {
	return []string{
		"--host=" + conn.Host,
		"--port=" + strconv.Itoa(conn.Port),
		"--username=" + conn.User,
		"--no-password",
		"--schema-only",
		"--table=" + qualifiedName(schema, table),
		conn.Database,
	}
}

// dumpSchema runs pg_dump and returns its stdout.
func dumpSchema(ctx context.Context, pgDump string, conn ConnectionConfig, schema, table string) (string, error) {
	cmd := exec.CommandContext(ctx, pgDump, pgDumpArgs(conn, schema, table)...)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+conn.Password, "PGSSLMODE="+conn.SSLMode)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("run pg_dump: %w", err)
		}
		return "", fmt.Errorf("run pg_dump: %w: %s", err, msg)
	}
	return stdout.String(), nil
}

// readSchemaFile loads schema text saved from an earlier pg_dump run.
func readSchemaFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read schema file: %w", err)
	}
	return string(data), nil
}
