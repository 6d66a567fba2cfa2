package database

import (
	"sync/atomic"
	"time"

	"emperror.dev/errors"
	"github.com/apex/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/priyxstudio/sgo/config"
	"github.com/priyxstudio/sgo/internal/models"
)

var (
	o       atomic.Bool
	db      *gorm.DB
	dialect Dialect
)

// Initialize configures the process wide database connection using the
// global configuration. It panics if called more than once.
func Initialize() error {
	if !o.CompareAndSwap(false, true) {
		panic("database: attempt to initialize more than once during application lifecycle")
	}
	instance, d, err := Open(config.Get().Database, config.Get().Debug)
	if err != nil {
		return err
	}
	db = instance
	dialect = d
	return nil
}

// Open connects to the configured backend and brings the chassi tables up to
// date. It does not touch the package level instance, which makes it suitable
// for tests and one-shot commands.
func Open(cfg config.DatabaseConfiguration, debug bool) (*gorm.DB, Dialect, error) {
	d, err := ParseDialect(cfg.Dialect)
	if err != nil {
		return nil, nil, err
	}

	dsn := cfg.DSN
	if d == SQLite {
		dsn = cfg.Path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	} else if dsn == "" {
		return nil, nil, errors.New("database: a dsn is required for the postgres dialect")
	}

	level := logger.Silent
	if debug {
		level = logger.Info
	}
	instance, err := gorm.Open(d.dialector(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "database: could not open database")
	}

	sql, err := instance.DB()
	if err != nil {
		return nil, nil, errors.WithStack(err)
	}
	if d == SQLite {
		sql.SetMaxOpenConns(1)
	}
	sql.SetConnMaxLifetime(time.Hour)

	if err := Migrate(instance); err != nil {
		return nil, nil, err
	}
	log.WithField("dialect", d.Name()).Debug("database connection established")
	return instance, d, nil
}

// Migrate creates or updates the chassi's own tables.
func Migrate(instance *gorm.DB) error {
	err := instance.AutoMigrate(
		&models.Module{},
		&models.ModuleMigration{},
		&models.ModuleConfig{},
		&models.ModuleData{},
		&models.User{},
	)
	return errors.WrapIf(err, "database: failed to run migrations")
}

// Instance returns the gorm database instance that was configured when the
// application was booted.
func Instance() *gorm.DB {
	if db == nil {
		panic("database: attempt to access instance before initialized")
	}
	return db
}

// CurrentDialect returns the dialect selected at boot.
func CurrentDialect() Dialect {
	if dialect == nil {
		panic("database: attempt to access dialect before initialized")
	}
	return dialect
}

// Close releases the package level connection, if any.
func Close() error {
	if db == nil {
		return nil
	}
	sql, err := db.DB()
	if err != nil {
		return err
	}
	return sql.Close()
}
