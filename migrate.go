package main

import (
	"context"

	"github.com/sirupsen/logrus"
)

// planMigration gathers the catalog facts for a rebuild of def with columns in
// their target order. Lookups run one after another, each on its own connection.
func planMigration(ctx context.Context, src MetadataSource, def *TableDefinition, spec TargetSpec, columns []Column, logger *logrus.Logger) (MigrationInput, error) {
	names := columnNames(columns)
	if err := validateColumnTokens(names); err != nil {
		return MigrationInput{}, err
	}

	logger.Infof("  not null columns...")
	notNull, err := src.NotNullColumns(ctx, def.Schema, def.Table, names)
	if err != nil {
		return MigrationInput{}, err
	}

	logger.Infof("  foreign keys...")
	fks, err := src.ForeignKeys(ctx, def.Schema, def.Table)
	if err != nil {
		return MigrationInput{}, err
	}

	logger.Infof("  indexes...")
	indexes, err := src.Indexes(ctx, def.Schema, def.Table, names)
	if err != nil {
		return MigrationInput{}, err
	}

	logger.Infof("found %d not null columns, %d inbound foreign keys, %d indexes", len(notNull), len(fks), len(indexes))

	warnings := append(excludedColumnWarnings(def, spec, fks), tableOptionWarnings(def)...)
	for _, w := range warnings {
		logger.Warn(w)
	}

	return MigrationInput{
		Schema:      def.Schema,
		Table:       def.Table,
		Columns:     columns,
		Extras:      def.Extras,
		Options:     def.Options,
		Pre:         def.Pre,
		Post:        def.Post,
		ForeignKeys: fks,
		NotNull:     notNull,
		Indexes:     indexes,
		Warnings:    warnings,
	}, nil
}
