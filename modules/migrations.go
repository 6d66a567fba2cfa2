package modules

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"emperror.dev/errors"
	"github.com/apex/log"
	"gorm.io/gorm"

	"github.com/priyxstudio/sgo/internal/database"
	"github.com/priyxstudio/sgo/internal/models"
)

// MigrationRunner applies the SQL files a module ships under
// migrations/<dialect>/ and records which ones have run.
type MigrationRunner struct {
	db            *gorm.DB
	dialect       database.Dialect
	transactional bool
}

// NewMigrationRunner returns a runner bound to db. When transactional is
// true every file runs inside its own transaction.
func NewMigrationRunner(db *gorm.DB, dialect database.Dialect, transactional bool) *MigrationRunner {
	return &MigrationRunner{db: db, dialect: dialect, transactional: transactional}
}

// Directory returns the folder holding migrations for the active dialect.
func (r *MigrationRunner) Directory(modulePath string) string {
	return filepath.Join(modulePath, "migrations", r.dialect.Name())
}

// ApplyPending runs every migration file of the module that has not been
// recorded yet, in lexicographic filename order. It returns the names of the
// files applied by this call. A module without a migrations directory is
// valid and results in no work.
func (r *MigrationRunner) ApplyPending(ctx context.Context, slug string, modulePath string) ([]string, error) {
	files, err := r.pendingFiles(ctx, slug, modulePath)
	if err != nil || len(files) == 0 {
		return nil, err
	}

	logger := log.WithFields(log.Fields{"module": slug, "dialect": r.dialect.Name()})
	applied := make([]string, 0, len(files))
	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(r.Directory(modulePath), name))
		if err != nil {
			return applied, errors.Wrapf(err, "modules: failed to read migration %s", name)
		}
		if err := r.apply(ctx, slug, name, SplitStatements(string(b))); err != nil {
			return applied, err
		}
		logger.WithField("migration", name).Info("applied module migration")
		applied = append(applied, name)
	}
	return applied, nil
}

// Applied returns the migration filenames recorded for slug.
func (r *MigrationRunner) Applied(ctx context.Context, slug string) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&models.ModuleMigration{}).
		Where("module_slug = ?", slug).
		Order("migration_name").
		Pluck("migration_name", &names).Error
	return names, errors.WrapIf(err, "modules: failed to load applied migrations")
}

func (r *MigrationRunner) pendingFiles(ctx context.Context, slug string, modulePath string) ([]string, error) {
	entries, err := os.ReadDir(r.Directory(modulePath))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "modules: failed to list migrations")
	}

	applied, err := r.Applied(ctx, slug)
	if err != nil {
		return nil, err
	}
	done := make(map[string]struct{}, len(applied))
	for _, name := range applied {
		done[name] = struct{}{}
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".sql" {
			continue
		}
		if _, ok := done[e.Name()]; ok {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

func (r *MigrationRunner) apply(ctx context.Context, slug, name string, statements []string) error {
	run := func(tx *gorm.DB) error {
		for i, stmt := range statements {
			if err := tx.Exec(stmt).Error; err != nil {
				return &MigrationError{Slug: slug, File: name, Statement: i, Err: err}
			}
		}
		record := models.ModuleMigration{ModuleSlug: slug, MigrationName: name, AppliedAt: time.Now().UTC()}
		return errors.WrapIf(r.dialect.InsertIgnore(tx).Create(&record).Error, "modules: failed to record migration")
	}

	if r.transactional {
		return r.db.WithContext(ctx).Transaction(run)
	}
	return run(r.db.WithContext(ctx))
}

// SplitStatements splits a migration file on ';' and drops blank
// statements.
func SplitStatements(sql string) []string {
	parts := strings.Split(sql, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
