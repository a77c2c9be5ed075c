package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus"
)

// sqlExecutor is satisfied by *pgx.Conn, pgx.Tx and *pgxpool.Pool.
type sqlExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// txStarter is satisfied by *pgx.Conn.
type txStarter interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// applyScript runs the hooks and the migration script in one transaction, so a
// failure at any statement leaves the original table untouched. The script
// must not contain its own BEGIN/COMMIT.
func applyScript(ctx context.Context, db txStarter, cfg *Config, table, script string, logger *logrus.Logger) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(context.Background()); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			logger.Warnf("rollback: %v", rbErr)
		}
	}()

	if err := execHookFiles(ctx, tx, cfg, table, cfg.Hooks.BeforeApply, "before_apply", logger); err != nil {
		return fmt.Errorf("before_apply hooks: %w", err)
	}

	stmts := executableStatements(script)
	logger.Infof("  executing %d statements...", len(stmts))
	for i, stmt := range stmts {
		logger.Debugf("    [%d] %s", i+1, stmt)
		if err := execSQL(ctx, tx, fmt.Sprintf("statement %d", i+1), stmt); err != nil {
			return err
		}
	}

	if err := execHookFiles(ctx, tx, cfg, table, cfg.Hooks.AfterApply, "after_apply", logger); err != nil {
		return fmt.Errorf("after_apply hooks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// execSQL runs a single statement and reports failures with the SQL text.
func execSQL(ctx context.Context, exec sqlExecutor, desc, query string) error {
	if _, err := exec.Exec(ctx, query); err != nil {
		return fmt.Errorf("%s: %w\nSQL: %s", desc, err, query)
	}
	return nil
}

// executableStatements drops psql meta-command lines (pg_dump emits
// \restrict and \unrestrict) and comment-only fragments from script.
func executableStatements(script string) []string {
	var kept []string
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), `\`) {
			continue
		}
		kept = append(kept, line)
	}

	var stmts []string
	for _, stmt := range splitStatements(strings.Join(kept, "\n")) {
		if !isCommentOnly(stmt) {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// isCommentOnly reports whether stmt holds nothing but -- and /* */ comments.
func isCommentOnly(stmt string) bool {
	for {
		start := strings.Index(stmt, "/*")
		if start < 0 {
			break
		}
		end := strings.Index(stmt[start+2:], "*/")
		if end < 0 {
			stmt = stmt[:start]
			break
		}
		stmt = stmt[:start] + stmt[start+2+end+2:]
	}
	for _, line := range strings.Split(stmt, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "--") {
			return false
		}
	}
	return true
}
