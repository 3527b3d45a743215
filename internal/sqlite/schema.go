package sqlite

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/larder/pkg/model"
	"github.com/mesh-intelligence/larder/pkg/types"
)

// MetadataTable stores key/value facts about the schema, including the
// model version under "version".
const MetadataTable = "Z_METADATA"

const (
	createMetadata = `CREATE TABLE "Z_METADATA" (
    "id" INTEGER PRIMARY KEY AUTOINCREMENT,
    "key" TEXT NOT NULL UNIQUE,
    "value" TEXT
)`

	queryMetadataTable = `SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'Z_METADATA'`

	queryVersion = `SELECT "value" FROM "Z_METADATA" WHERE "key" = 'version'`

	insertVersion = `INSERT INTO "Z_METADATA" ("key", "value") VALUES ('version', ?)`
)

// quote returns name as an SQLite identifier.
func quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// entityTableDDL builds the CREATE TABLE statement for an entity.
func entityTableDDL(e *model.EntityDescription) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n    %s INTEGER PRIMARY KEY AUTOINCREMENT", quote(e.Plural()), quote(model.ObjectIDColumn))
	for _, p := range e.Properties() {
		fmt.Fprintf(&b, ",\n    %s %s", quote(p.Name()), p.Type().SQLType())
	}
	b.WriteString("\n)")
	return b.String()
}

// joinTableDDL builds the CREATE TABLE statement for a relationship's join
// table. Both sides of a relationship produce the same table name.
func joinTableDDL(r *model.Relationship) string {
	return fmt.Sprintf("CREATE TABLE %s (\n    %s INTEGER PRIMARY KEY AUTOINCREMENT,\n    %s INTEGER NOT NULL,\n    %s INTEGER NOT NULL\n)",
		quote(r.TableName()), quote(model.ObjectIDColumn), quote(r.ColumnName()), quote(r.InverseColumnName()))
}

// schemaStatements returns the DDL for m in creation order. Table names
// are compared case-insensitively, as SQLite does.
func schemaStatements(m *model.Model) ([]string, error) {
	plurals := make(map[string]string)
	var stmts []string
	for _, e := range m.Entities() {
		key := strings.ToLower(e.Plural())
		if other, dup := plurals[key]; dup {
			return nil, fmt.Errorf("%w: %s used by %s and %s", types.ErrDuplicateEntityPlural, e.Plural(), other, e.Name())
		}
		plurals[key] = e.Name()
		stmts = append(stmts, entityTableDDL(e))
	}

	joins := make(map[string]bool)
	for _, e := range m.Entities() {
		for _, r := range e.Relationships() {
			if joins[r.TableName()] {
				continue
			}
			joins[r.TableName()] = true
			stmts = append(stmts, joinTableDDL(r))
		}
	}
	return append(stmts, createMetadata), nil
}

// databaseVersion reads the stored model version. found is false on an
// empty database.
func (s *Store) databaseVersion(c *conn) (version string, found bool, err error) {
	_, _, found, err = c.queryRow(queryMetadataTable)
	if err != nil {
		return "", false, types.NewQueryError("check schema", queryMetadataTable, err)
	}
	if !found {
		return "", false, nil
	}
	_, values, found, err := c.queryRow(queryVersion)
	if err != nil {
		return "", false, types.NewQueryError("check schema", queryVersion, err)
	}
	if !found || values[0] == nil {
		return "", false, types.NewPersistentStoreError("check schema",
			fmt.Errorf("%w: %s has no version", types.ErrStructureIncompatible, MetadataTable))
	}
	switch v := values[0].(type) {
	case []byte:
		return string(v), true, nil
	default:
		return fmt.Sprint(v), true, nil
	}
}

func (s *Store) ensureDatabaseConsistency(c *conn) error {
	version, found, err := s.databaseVersion(c)
	if err != nil {
		return err
	}
	if !found {
		return s.createDatabaseStructure()
	}
	if version != s.model().Version() {
		return s.performMigration(version)
	}
	return nil
}

// createDatabaseStructure creates every table for the model and records
// its version. The whole bootstrap runs in one transaction.
func (s *Store) createDatabaseStructure() error {
	m := s.model()
	stmts, err := schemaStatements(m)
	if err != nil {
		return types.NewPersistentStoreError("bootstrap", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return types.NewPersistentStoreError("bootstrap", err)
	}
	c := s.wrap(tx)
	for _, stmt := range stmts {
		if _, err := c.exec(stmt); err != nil {
			tx.Rollback()
			return types.NewQueryError("bootstrap", stmt, err)
		}
	}
	if _, err := c.exec(insertVersion, m.Version()); err != nil {
		tx.Rollback()
		return types.NewQueryError("bootstrap", insertVersion, err)
	}
	if err := tx.Commit(); err != nil {
		return types.NewPersistentStoreError("bootstrap", err)
	}

	s.logger.Infow("schema created", "store", s.id, "version", m.Version(), "tables", len(stmts))
	if s.delegate != nil {
		s.delegate.DidCreatePersistentStore(s)
	}
	return nil
}

// performMigration is reached when the stored version differs from the
// model's. Migration is not supported.
func (s *Store) performMigration(from string) error {
	to := s.model().Version()
	s.logger.Errorw("schema version mismatch", "store", s.id, "database", from, "model", to)
	return types.NewPersistentStoreError("migrate",
		fmt.Errorf("%w: database is at version %q, model is at %q", types.ErrMigrationUnsupported, from, to))
}
