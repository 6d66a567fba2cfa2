package modules

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/priyxstudio/sgo/events"
	"github.com/priyxstudio/sgo/internal/models"
)

func mustManifest(t *testing.T, body string) *Manifest {
	t.Helper()
	m, err := ParseManifest([]byte(body))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestRegistryListOrder(t *testing.T) {
	db, d := openTestDB(t)
	r := NewRegistry(db, d, nil)
	ctx := context.Background()
	for _, body := range []string{
		`{"slug":"charlie","name":"Charlie","version":"1.0.0"}`,
		`{"slug":"alpha","name":"Alpha","version":"1.0.0"}`,
		`{"slug":"bravo","name":"Bravo","version":"1.0.0"}`,
	} {
		if _, err := r.SaveInstalled(ctx, mustManifest(t, body), ""); err != nil {
			t.Fatal(err)
		}
	}

	if err := r.Reorder(ctx, []string{"charlie", "bravo", "alpha"}); err != nil {
		t.Fatal(err)
	}
	list, err := r.List(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	got := make([]string, len(list))
	for i, m := range list {
		got[i] = m.Slug
	}
	if want := []string{"charlie", "bravo", "alpha"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}

	if err := r.Reorder(ctx, []string{"alpha", "ghost"}); !errors.Is(err, ErrModuleNotFound) {
		t.Fatalf("expected ErrModuleNotFound, got %v", err)
	}
	if m, _ := r.Get(ctx, "alpha"); m.SortOrder != 2 {
		t.Fatalf("expected a failed reorder to be rolled back, got sort order %d", m.SortOrder)
	}
}

func TestRegistryUpdate(t *testing.T) {
	db, d := openTestDB(t)
	pub := &recordingPublisher{}
	r := NewRegistry(db, d, pub)
	ctx := context.Background()
	if _, err := r.SaveInstalled(ctx, mustManifest(t, `{"slug":"demo","name":"Demo","version":"1.0.0"}`), ""); err != nil {
		t.Fatal(err)
	}

	name, color, active := "Renamed", "#abcdef", false
	m, err := r.Update(ctx, "demo", ModuleUpdate{Name: &name, Color: &color, Active: &active})
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "Renamed" || m.Color != "#abcdef" || m.Active {
		t.Fatalf("unexpected module after update %+v", m)
	}

	empty, bad := "", "teal"
	_, err = r.Update(ctx, "demo", ModuleUpdate{Name: &empty, Color: &bad})
	var verr *ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) != 2 {
		t.Fatalf("expected two field errors, got %v", err)
	}
	if _, err := r.Update(ctx, "ghost", ModuleUpdate{}); !errors.Is(err, ErrModuleNotFound) {
		t.Fatalf("expected ErrModuleNotFound, got %v", err)
	}
	if topics := pub.topics(); !reflect.DeepEqual(topics, []string{events.TopicInstalled, events.TopicUpdated}) {
		t.Fatalf("unexpected events %v", topics)
	}
}

func TestRegistryDevLifecycle(t *testing.T) {
	db, d := openTestDB(t)
	pub := &recordingPublisher{}
	r := NewRegistry(db, d, pub)
	ctx := context.Background()
	m := mustManifest(t, `{"slug":"dev-demo","name":"Dev Demo","version":"0.1.0"}`)

	if _, err := r.SaveDev(ctx, m, "http://localhost:5001", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := r.SaveDev(ctx, m, "http://localhost:5001", ""); err != nil {
		t.Fatal(err)
	}
	if n := len(pub.topics()); n != 1 {
		t.Fatalf("expected an unchanged dev module to publish once, got %d events", n)
	}

	gone, err := r.DeactivateDevExcept(ctx, nil)
	if err != nil || !reflect.DeepEqual(gone, []string{"dev-demo"}) {
		t.Fatalf("expected dev-demo to be deactivated, got %v, %v", gone, err)
	}
	saved, err := r.Get(ctx, "dev-demo")
	if err != nil {
		t.Fatal(err)
	}
	if saved.Active || !saved.IsDev() {
		t.Fatalf("expected an inactive dev row, got %+v", saved)
	}

	if _, err := r.SaveDev(ctx, m, "http://localhost:5002", "http://localhost:5002/assets/remoteEntry.js"); err != nil {
		t.Fatal(err)
	}
	saved, _ = r.Get(ctx, "dev-demo")
	if !saved.Active || saved.Path != "http://localhost:5002" || saved.RemoteEntry == "" {
		t.Fatalf("expected the dev row to be reactivated, got %+v", saved)
	}
	want := []string{events.TopicDiscovered, events.TopicDeactivated, events.TopicDiscovered}
	if topics := pub.topics(); !reflect.DeepEqual(topics, want) {
		t.Fatalf("expected %v, got %v", want, topics)
	}
}

func TestRegistryDelete(t *testing.T) {
	db, d := openTestDB(t)
	r := NewRegistry(db, d, nil)
	ctx := context.Background()
	root := t.TempDir()
	dir := filepath.Join(root, "demo")
	writeFiles(t, dir, map[string]string{"dist/index.html": "x"})

	m, err := r.SaveInstalled(ctx, mustManifest(t, `{"slug":"demo","name":"Demo","version":"1.0.0"}`), dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewConfigStore(db, d).Set(ctx, m.ID, "theme", "dark", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := NewDataStore(db).Create(ctx, m.ID, "notes", "n1", []byte(`{"a":1}`)); err != nil {
		t.Fatal(err)
	}
	if err := db.Create(&models.ModuleMigration{ModuleSlug: "demo", MigrationName: "001_init.sql"}).Error; err != nil {
		t.Fatal(err)
	}

	if err := r.Delete(ctx, "demo", root); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("expected module directory to be removed")
	}
	for _, model := range []any{&models.Module{}, &models.ModuleConfig{}, &models.ModuleData{}} {
		var n int64
		db.Model(model).Count(&n)
		if n != 0 {
			t.Fatalf("expected %T rows to be removed, found %d", model, n)
		}
	}
	var n int64
	db.Model(&models.ModuleMigration{}).Count(&n)
	if n != 1 {
		t.Fatal("expected migration records to survive deletion")
	}
	if err := r.Delete(ctx, "demo", root); !errors.Is(err, ErrModuleNotFound) {
		t.Fatalf("expected ErrModuleNotFound, got %v", err)
	}
}

func TestRegistryCounts(t *testing.T) {
	db, d := openTestDB(t)
	r := NewRegistry(db, d, nil)
	ctx := context.Background()
	if _, err := r.SaveInstalled(ctx, mustManifest(t, `{"slug":"a","name":"A","version":"1.0.0"}`), ""); err != nil {
		t.Fatal(err)
	}
	if _, err := r.SaveDev(ctx, mustManifest(t, `{"slug":"b","name":"B","version":"1.0.0"}`), "http://localhost:5001", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := r.DeactivateDevExcept(ctx, nil); err != nil {
		t.Fatal(err)
	}

	c, err := r.Counts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if c != (Counts{Total: 2, Active: 1, Installed: 1, Dev: 1}) {
		t.Fatalf("unexpected counts %+v", c)
	}
}

func TestRegistryInstallClearsDevRemoteEntry(t *testing.T) {
	db, d := openTestDB(t)
	r := NewRegistry(db, d, nil)
	ctx := context.Background()
	m := mustManifest(t, `{"slug":"charts","name":"Charts","version":"0.1.0","exposes":{}}`)

	if _, err := r.SaveDev(ctx, m, "http://localhost:5003", "http://localhost:5003/assets/remoteEntry.js"); err != nil {
		t.Fatal(err)
	}
	saved, err := r.SaveInstalled(ctx, m, "/srv/modules/charts")
	if err != nil {
		t.Fatal(err)
	}
	if saved.RemoteEntry != "" || saved.IsDev() || saved.Path != "/srv/modules/charts" {
		t.Fatalf("expected the installed row to drop the dev server, got %+v", saved)
	}
}
