package database

import (
	"database/sql"
	"fmt"
	"os"
)

const defaultSchemaPath = "docs/schema.sql"

// Migrate applies the schema file to the database. Statements use
// CREATE ... IF NOT EXISTS so re-running on an existing database is safe.
func Migrate(db *sql.DB) error {
	return MigrateFrom(db, defaultSchemaPath)
}

func MigrateFrom(db *sql.DB, schemaPath string) error {
	b, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", schemaPath, err)
	}

	if _, err := db.Exec(string(b)); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
