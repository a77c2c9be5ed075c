package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

// MetadataSource answers the catalog questions a table rebuild depends on.
// Column names are passed and returned exactly as written in the table
// definition (quoted names keep their quotes).
type MetadataSource interface {
	// ForeignKeys returns every foreign key that references schema.table.
	ForeignKeys(ctx context.Context, schema, table string) ([]ForeignKeyRef, error)
	// NotNullColumns returns the subset of columns declared NOT NULL, in the given order.
	NotNullColumns(ctx context.Context, schema, table string, columns []string) ([]string, error)
	// Indexes returns non-primary indexes whose columns are all among columns.
	Indexes(ctx context.Context, schema, table string, columns []string) ([]IndexDef, error)
}

// connectFunc opens a new connection. Each catalog query gets its own.
type connectFunc func(ctx context.Context) (*pgx.Conn, error)

// pgCatalog is the live PostgreSQL MetadataSource.
type pgCatalog struct {
	connect connectFunc
	logger  *logrus.Logger
}

func newPGCatalog(connString string, logger *logrus.Logger) *pgCatalog {
	return &pgCatalog{
		connect: func(ctx context.Context) (*pgx.Conn, error) {
			return pgx.Connect(ctx, connString)
		},
		logger: logger,
	}
}

const foreignKeysQuery = `
	SELECT
		n.nspname::text AS owning_schema,
		c.relname::text AS owning_table,
		con.conname::text AS constraint_name,
		array_agg(la.attname::text ORDER BY k.ord) AS local_columns,
		array_agg(fa.attname::text ORDER BY k.ord) AS foreign_columns,
		con.confupdtype::text AS on_update,
		con.confdeltype::text AS on_delete,
		con.confmatchtype::text AS match_type,
		con.condeferrable AS deferrable,
		con.condeferred AS deferred,
		NOT con.convalidated AS not_valid
	FROM pg_catalog.pg_constraint con
	JOIN pg_catalog.pg_class c ON c.oid = con.conrelid
	JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
	JOIN pg_catalog.pg_class fc ON fc.oid = con.confrelid
	JOIN pg_catalog.pg_namespace fn ON fn.oid = fc.relnamespace
	CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(local_attnum, foreign_attnum, ord)
	JOIN pg_catalog.pg_attribute la ON la.attrelid = con.conrelid AND la.attnum = k.local_attnum
	JOIN pg_catalog.pg_attribute fa ON fa.attrelid = con.confrelid AND fa.attnum = k.foreign_attnum
	WHERE con.contype = 'f'
	  AND fn.nspname = $1
	  AND fc.relname = $2
	GROUP BY con.oid, n.nspname, c.relname, con.conname, con.confupdtype, con.confdeltype,
		con.confmatchtype, con.condeferrable, con.condeferred, con.convalidated
	ORDER BY con.oid
`

const notNullColumnsQuery = `
	SELECT c.column_name::text
	FROM information_schema.columns c
	WHERE c.table_schema = $1
	  AND c.table_name = $2
	  AND c.column_name::text = ANY($3::text[])
	  AND c.is_nullable = 'NO'
`

// indexesQuery compares pg_get_indexdef column output, which is quoted like
// pg_dump output, against the column tokens.
const indexesQuery = `
	WITH idx AS (
		SELECT
			i.relname::text AS index_name,
			pg_get_indexdef(x.indexrelid) || ';' AS index_def,
			ARRAY(
				SELECT pg_get_indexdef(x.indexrelid, k, false)
				FROM generate_series(1, x.indnatts) AS k
				ORDER BY k
			) AS column_names
		FROM pg_catalog.pg_index x
		JOIN pg_catalog.pg_class c ON c.oid = x.indrelid
		JOIN pg_catalog.pg_class i ON i.oid = x.indexrelid
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind = ANY (ARRAY['r'::"char", 'm'::"char", 'p'::"char"])
		  AND i.relkind = ANY (ARRAY['i'::"char", 'I'::"char"])
		  AND n.nspname = $1
		  AND c.relname = $2
		  AND NOT x.indisprimary
	)
	SELECT index_name, index_def, column_names
	FROM idx
	WHERE $3::text[] @> column_names
	ORDER BY index_name
`

// ForeignKeys lists the foreign keys referencing schema.table.
func (p *pgCatalog) ForeignKeys(ctx context.Context, schema, table string) ([]ForeignKeyRef, error) {
	if err := validateTable(schema, table); err != nil {
		return nil, err
	}

	var fks []ForeignKeyRef
	err := p.withConn(ctx, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, foreignKeysQuery, schema, table)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var fk ForeignKeyRef
			var onUpdate, onDelete, matchType string
			if err := rows.Scan(&fk.OwningSchema, &fk.OwningTable, &fk.ConstraintName,
				&fk.LocalColumns, &fk.ForeignColumns, &onUpdate, &onDelete,
				&matchType, &fk.Deferrable, &fk.Deferred, &fk.NotValid); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			fk.OnUpdate = referentialAction(onUpdate)
			fk.OnDelete = referentialAction(onDelete)
			fk.MatchType = matchKind(matchType)
			fks = append(fks, fk)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, &MetadataQueryError{Op: "foreign keys", Schema: schema, Table: table, Err: err}
	}
	p.logger.Debugf("found %d foreign keys referencing %s.%s", len(fks), schema, table)
	return fks, nil
}

// NotNullColumns returns the requested columns that are declared NOT NULL.
func (p *pgCatalog) NotNullColumns(ctx context.Context, schema, table string, columns []string) ([]string, error) {
	if err := validateTable(schema, table); err != nil {
		return nil, err
	}
	if err := validateColumnTokens(columns); err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, nil
	}

	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = catalogName(c)
	}

	notNull := make(map[string]bool)
	err := p.withConn(ctx, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, notNullColumnsQuery, schema, table, names)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var name string
			if err := rows.Scan(&name); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			notNull[name] = true
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, &MetadataQueryError{Op: "not null columns", Schema: schema, Table: table, Err: err}
	}

	var result []string
	for i, c := range columns {
		if notNull[names[i]] {
			result = append(result, c)
		}
	}
	return result, nil
}

// Indexes returns the non-primary indexes on schema.table covered by columns.
func (p *pgCatalog) Indexes(ctx context.Context, schema, table string, columns []string) ([]IndexDef, error) {
	if err := validateTable(schema, table); err != nil {
		return nil, err
	}
	if err := validateColumnTokens(columns); err != nil {
		return nil, err
	}

	var indexes []IndexDef
	err := p.withConn(ctx, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, indexesQuery, schema, table, columns)
		if err != nil {
			return fmt.Errorf("query: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var idx IndexDef
			if err := rows.Scan(&idx.Name, &idx.Definition, &idx.Columns); err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			indexes = append(indexes, idx)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, &MetadataQueryError{Op: "indexes", Schema: schema, Table: table, Err: err}
	}
	return indexes, nil
}

// withConn opens a connection for a single query and always closes it.
func (p *pgCatalog) withConn(ctx context.Context, fn func(*pgx.Conn) error) error {
	conn, err := p.connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if err := conn.Close(context.Background()); err != nil {
			p.logger.Warnf("close catalog connection: %v", err)
		}
	}()
	return fn(conn)
}

func validateTable(schema, table string) error {
	if err := validateIdentifier("schema", schema); err != nil {
		return err
	}
	return validateIdentifier("table", table)
}

// referentialAction maps pg_constraint confupdtype/confdeltype codes to SQL.
func referentialAction(code string) string {
	switch code {
	case "r":
		return "RESTRICT"
	case "c":
		return "CASCADE"
	case "n":
		return "SET NULL"
	case "d":
		return "SET DEFAULT"
	default:
		return "NO ACTION"
	}
}

// matchKind maps pg_constraint confmatchtype codes to SQL.
func matchKind(code string) string {
	switch code {
	case "f":
		return "FULL"
	case "p":
		return "PARTIAL"
	default:
		return "SIMPLE"
	}
}
