package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type cliOptions struct {
	configPath    string
	envFile       string
	logLevel      string
	host          string
	port          int
	user          string
	password      string
	database      string
	sslMode       string
	schema        string
	pgDump        string
	exclude       []string
	migrate       bool
	apply         bool
	noTransaction bool
	ddl           bool
	inputPath     string
	outputPath    string
}

var opts cliOptions

var rootCmd = &cobra.Command{
	Use:   "pgreorder [flags] TABLE [COLUMN ...]",
	Short: "Reorder PostgreSQL table columns to match a target structure",
	Long: `Reorder PostgreSQL tables to match a target structure.

Columns are any number of arguments. "col1 col2 col3" places the listed
columns at the start of the table. "col1 col2 ... col3" places the first two
at the start and the last at the end. "... col1 col2" places both at the end.
Columns not named keep their current relative order in the middle.

Without --migrate the (re)ordered column list is printed. With --migrate a SQL
script that rebuilds the table in the new order is printed; --apply runs it in
a single transaction instead.`,
	Args:          cobra.MinimumNArgs(1),
	RunE:          runReorder,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.Flags()
	f.StringVarP(&opts.configPath, "config", "c", "", "path to a TOML or YAML config file")
	f.StringVar(&opts.envFile, "env-file", ".env", "path to a .env file with PG* variables")
	f.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	f.StringVarP(&opts.host, "host", "H", "", "PostgreSQL host (default localhost)")
	f.IntVarP(&opts.port, "port", "p", 0, "PostgreSQL port (default 5432)")
	f.StringVarP(&opts.user, "user", "U", "", "user name (default postgres)")
	f.StringVar(&opts.password, "password", "", "password (prefer PGPASSWORD)")
	f.StringVarP(&opts.database, "database", "d", "", "database name")
	f.StringVar(&opts.sslMode, "sslmode", "", "SSL mode (disable, allow, prefer, require, verify-ca, verify-full)")
	f.StringVarP(&opts.schema, "schema", "n", "", "schema of the target table (default public)")
	f.StringVar(&opts.pgDump, "pg-dump", "", "path to the pg_dump binary")
	f.StringArrayVarP(&opts.exclude, "exclude", "e", nil, "exclude a column (can be used multiple times)")
	f.BoolVarP(&opts.migrate, "migrate", "m", false, "output full migration SQL")
	f.BoolVar(&opts.apply, "apply", false, "run the migration in a single transaction instead of printing it")
	f.BoolVar(&opts.noTransaction, "no-transaction", false, "do not wrap the printed migration in BEGIN/COMMIT")
	f.BoolVar(&opts.ddl, "ddl", false, "print the reordered CREATE TABLE statement instead of a column list")
	f.StringVarP(&opts.inputPath, "input", "i", "", "read the schema from a pg_dump file instead of running pg_dump")
	f.StringVarP(&opts.outputPath, "file", "f", "", "write output into a file")

	rootCmd.Version = versionString()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runReorder(cmd *cobra.Command, args []string) error {
	logger := setupLogging(opts.logLevel, cmd.ErrOrStderr())
	loadEnvFile(opts.envFile, logger)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cmd, cfg)

	table := args[0]
	if err := validateIdentifier("table", table); err != nil {
		return err
	}
	start, end := splitTargetTokens(args[1:])
	spec := TargetSpec{Start: start, End: end, Exclude: opts.exclude}

	migrate := opts.migrate || opts.apply
	if err := cfg.validate(opts.inputPath == "" || migrate); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	began := time.Now()

	text, err := loadSchemaText(ctx, cfg, table, logger)
	if err != nil {
		return err
	}
	def, err := parseTableDefinition(text, cfg.Schema, table, ParseOptions{})
	if err != nil {
		return err
	}
	logger.Infof("found %d columns and %d extra features in %s", len(def.Columns), len(def.Extras), qualifiedName(cfg.Schema, table))

	if spec.Empty() {
		out := formatColumnListing(fmt.Sprintf("Columns for %s:", table), def.Columns)
		if opts.ddl {
			out = generateCreateTable(def.Schema, def.Table, def.Columns, def.Extras, def.Options)
		}
		return writeOutput(cmd.OutOrStdout(), opts.outputPath, out)
	}

	columns := reorderColumns(spec, def.Columns)
	unknown := unknownColumnWarnings(spec, def.Columns)
	for _, w := range unknown {
		logger.Warn(w)
	}

	if !migrate {
		out := formatColumnListing(fmt.Sprintf("Ordered columns for %s:", table), columns)
		if opts.ddl {
			out = generateCreateTable(def.Schema, def.Table, columns, def.Extras, def.Options)
		}
		return writeOutput(cmd.OutOrStdout(), opts.outputPath, out)
	}

	logger.Infof("reading catalog metadata...")
	catalog := newPGCatalog(cfg.Connection.connString(), logger)
	in, err := planMigration(ctx, catalog, def, spec, columns, logger)
	if err != nil {
		return err
	}
	in.Warnings = append(unknown, in.Warnings...)

	if !opts.apply {
		in.Transaction = !opts.noTransaction
		return writeOutput(cmd.OutOrStdout(), opts.outputPath, buildMigrationScript(in))
	}

	script := buildMigrationScript(in)
	if opts.outputPath != "" {
		if err := writeOutput(cmd.OutOrStdout(), opts.outputPath, script); err != nil {
			return err
		}
	}

	logger.Infof("applying migration to %s...", qualifiedName(cfg.Schema, table))
	conn, err := pgx.Connect(ctx, cfg.Connection.connString())
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer conn.Close(context.Background())

	if err := applyScript(ctx, conn, cfg, table, script, logger); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	logger.Infof("migration completed in %s", time.Since(began).Round(time.Millisecond))
	return nil
}

// applyFlagOverrides copies explicitly set flags over config and environment values.
func applyFlagOverrides(cmd *cobra.Command, cfg *Config) {
	f := cmd.Flags()
	if f.Changed("host") {
		cfg.Connection.Host = opts.host
	}
	if f.Changed("port") {
		cfg.Connection.Port = opts.port
	}
	if f.Changed("user") {
		cfg.Connection.User = opts.user
	}
	if f.Changed("password") {
		cfg.Connection.Password = opts.password
	}
	if f.Changed("database") {
		cfg.Connection.Database = opts.database
	}
	if f.Changed("sslmode") {
		cfg.Connection.SSLMode = opts.sslMode
	}
	if f.Changed("schema") {
		cfg.Schema = opts.schema
	}
	if f.Changed("pg-dump") {
		cfg.PgDump = opts.pgDump
	}
}

// loadEnvFile loads PG* variables from a .env file when it exists. Variables
// already set in the environment win.
func loadEnvFile(path string, logger *logrus.Logger) {
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		logger.Debugf("no %s file, using existing environment", path)
		return
	}
	if err := godotenv.Load(path); err != nil {
		logger.Warnf("load %s: %v", path, err)
		return
	}
	logger.Debugf("loaded environment from %s", path)
}

func loadSchemaText(ctx context.Context, cfg *Config, table string, logger *logrus.Logger) (string, error) {
	if opts.inputPath != "" {
		logger.Infof("reading schema from %s...", opts.inputPath)
		return readSchemaFile(opts.inputPath)
	}
	pgDump, err := findPgDump(cfg.PgDump)
	if err != nil {
		return "", err
	}
	logger.Infof("dumping schema of %s with %s...", qualifiedName(cfg.Schema, table), pgDump)
	return dumpSchema(ctx, pgDump, cfg.Connection, cfg.Schema, table)
}

// writeOutput writes to path when set, otherwise to stdout.
func writeOutput(stdout io.Writer, path, content string) error {
	if path == "" {
		_, err := io.WriteString(stdout, content)
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
