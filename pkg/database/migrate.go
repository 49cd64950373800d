package database

import (
	"context"
	"fmt"
	"io/fs"
	"sort"

	dbsql "github.com/AReid987/real-estate-agents/pkg/database/sql"
	"github.com/AReid987/real-estate-agents/pkg/logging"
)

// ApplySchema executes the embedded schema files against db in lexical
// order. The files are idempotent (CREATE TABLE IF NOT EXISTS) so the
// service runs this on every startup.
func ApplySchema(ctx context.Context, db PostgresConn, logger logging.Logger) error {
	names, err := SchemaFiles()
	if err != nil {
		return err
	}

	for _, name := range names {
		content, err := dbsql.Content.ReadFile("schema/" + name)
		if err != nil {
			return fmt.Errorf("failed to read embedded schema %s: %w", name, err)
		}
		if _, err := db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to apply schema %s: %w", name, err)
		}
		logger.WithField("file", name).Info("Applied schema file")
	}

	return nil
}

// SchemaFiles returns the embedded schema file names in apply order.
func SchemaFiles() ([]string, error) {
	entries, err := fs.ReadDir(dbsql.Content, "schema")
	if err != nil {
		return nil, fmt.Errorf("failed to list embedded schema: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
