package database

import (
	"emperror.dev/errors"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// Dialect is the small set of backend specific operations the chassi needs.
// It is selected once at startup and passed to anything that writes rows
// whose conflict behaviour differs between backends.
//
// The interface is sealed: only the backends in this package implement it.
type Dialect interface {
	// Name is the identifier used on disk for per-dialect migration folders.
	Name() string

	// InsertIgnore prepares tx so that a following Create silently skips rows
	// that violate a unique constraint.
	InsertIgnore(tx *gorm.DB) *gorm.DB

	// Upsert prepares tx so that a following Create updates the given columns
	// when a row with the same conflict columns already exists.
	Upsert(tx *gorm.DB, conflict []string, update []string) *gorm.DB

	dialector(dsn string) gorm.Dialector
}

// ParseDialect returns the Dialect registered under name.
func ParseDialect(name string) (Dialect, error) {
	switch name {
	case DialectSQLite:
		return SQLite, nil
	case DialectPostgres:
		return Postgres, nil
	}
	return nil, errors.Errorf("database: unsupported dialect %q", name)
}

var (
	SQLite   Dialect = sqliteDialect{}
	Postgres Dialect = postgresDialect{}
)

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return DialectSQLite }

func (sqliteDialect) InsertIgnore(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Insert{Modifier: "OR IGNORE"})
}

func (sqliteDialect) Upsert(tx *gorm.DB, conflict []string, update []string) *gorm.DB {
	return tx.Clauses(onConflictUpdate(conflict, update))
}

func (sqliteDialect) dialector(dsn string) gorm.Dialector {
	return sqlite.Open(dsn)
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return DialectPostgres }

func (postgresDialect) InsertIgnore(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.OnConflict{DoNothing: true})
}

func (postgresDialect) Upsert(tx *gorm.DB, conflict []string, update []string) *gorm.DB {
	return tx.Clauses(onConflictUpdate(conflict, update))
}

func (postgresDialect) dialector(dsn string) gorm.Dialector {
	return postgres.Open(dsn)
}

func onConflictUpdate(conflict []string, update []string) clause.OnConflict {
	cols := make([]clause.Column, len(conflict))
	for i, c := range conflict {
		cols[i] = clause.Column{Name: c}
	}
	return clause.OnConflict{
		Columns:   cols,
		DoUpdates: clause.AssignmentColumns(update),
	}
}
