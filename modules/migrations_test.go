package modules

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestSplitStatements(t *testing.T) {
	got := SplitStatements("CREATE TABLE a (id int);\n\n  ;INSERT INTO a VALUES (1);  \n")
	want := []string{"CREATE TABLE a (id int)", "INSERT INTO a VALUES (1)"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
	if len(SplitStatements(" ; ;\n")) != 0 {
		t.Fatal("expected blank statements to be dropped")
	}
}

func TestApplyPendingRunsFilesInOrderOnce(t *testing.T) {
	db, d := openTestDB(t)
	runner := NewMigrationRunner(db, d, true)
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"migrations/sqlite/002_seed.sql":    "INSERT INTO demo_notes (body) VALUES ('hello');",
		"migrations/sqlite/001_create.sql":  "CREATE TABLE demo_notes (id INTEGER PRIMARY KEY, body TEXT);",
		"migrations/sqlite/readme.txt":      "not a migration",
		"migrations/sqlite/003_upper.SQL":   "SELECT definitely not valid sqlite",
		"migrations/postgres/001_other.sql": "SELECT definitely not valid sqlite",
	})

	applied, err := runner.ApplyPending(context.Background(), "demo", dir)
	if err != nil {
		t.Fatalf("expected migrations to apply, got %v", err)
	}
	if want := []string{"001_create.sql", "002_seed.sql"}; !reflect.DeepEqual(applied, want) {
		t.Fatalf("expected %v, got %v", want, applied)
	}

	applied, err = runner.ApplyPending(context.Background(), "demo", dir)
	if err != nil || len(applied) != 0 {
		t.Fatalf("expected a second run to be a no-op, got %v, %v", applied, err)
	}

	var n int64
	if err := db.Table("demo_notes").Count(&n).Error; err != nil || n != 1 {
		t.Fatalf("expected the seed to run exactly once, got %d rows (%v)", n, err)
	}
}

func TestApplyPendingWithoutDirectory(t *testing.T) {
	db, d := openTestDB(t)
	applied, err := NewMigrationRunner(db, d, true).ApplyPending(context.Background(), "demo", t.TempDir())
	if err != nil || applied != nil {
		t.Fatalf("expected no work, got %v, %v", applied, err)
	}
}

func TestApplyPendingFailureIsNotRecorded(t *testing.T) {
	db, d := openTestDB(t)
	runner := NewMigrationRunner(db, d, true)
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"migrations/sqlite/001_ok.sql":     "CREATE TABLE first_table (id INTEGER);",
		"migrations/sqlite/002_broken.sql": "CREATE TABLE second_table (id INTEGER);\nINSERT INTO missing_table VALUES (1);",
		"migrations/sqlite/003_later.sql":  "CREATE TABLE third_table (id INTEGER);",
	})

	applied, err := runner.ApplyPending(context.Background(), "demo", dir)
	var merr *MigrationError
	if !errors.As(err, &merr) {
		t.Fatalf("expected a migration error, got %v", err)
	}
	if merr.File != "002_broken.sql" || merr.Statement != 1 {
		t.Fatalf("unexpected migration error %+v", merr)
	}
	if !reflect.DeepEqual(applied, []string{"001_ok.sql"}) {
		t.Fatalf("expected only the first file to be applied, got %v", applied)
	}

	recorded, err := runner.Applied(context.Background(), "demo")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(recorded, []string{"001_ok.sql"}) {
		t.Fatalf("expected the failing file to stay unrecorded, got %v", recorded)
	}
	if db.Migrator().HasTable("second_table") {
		t.Fatal("expected the failing file to be rolled back")
	}
	if db.Migrator().HasTable("third_table") {
		t.Fatal("expected later files to be skipped")
	}
}

func TestApplyPendingIsScopedPerModule(t *testing.T) {
	db, d := openTestDB(t)
	runner := NewMigrationRunner(db, d, false)
	a, b := t.TempDir(), t.TempDir()
	writeFiles(t, a, map[string]string{"migrations/sqlite/001_init.sql": "CREATE TABLE a_items (id INTEGER);"})
	writeFiles(t, b, map[string]string{"migrations/sqlite/001_init.sql": "CREATE TABLE b_items (id INTEGER);"})

	for slug, dir := range map[string]string{"module-a": a, "module-b": b} {
		applied, err := runner.ApplyPending(context.Background(), slug, dir)
		if err != nil || len(applied) != 1 {
			t.Fatalf("expected %s to apply its own migration, got %v, %v", slug, applied, err)
		}
	}
}
