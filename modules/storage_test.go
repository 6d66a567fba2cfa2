package modules

import (
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"
)

func TestConfigStore(t *testing.T) {
	db, d := openTestDB(t)
	s := NewConfigStore(db, d)
	ctx := context.Background()

	v, err := s.Set(ctx, 1, "theme", "dark", "")
	if err != nil {
		t.Fatal(err)
	}
	if v.Type != "string" {
		t.Fatalf("expected the default type, got %q", v.Type)
	}
	if v, err = s.Set(ctx, 1, "theme", "true", "boolean"); err != nil {
		t.Fatal(err)
	}
	if v.Value != "true" || v.Type != "boolean" {
		t.Fatalf("expected the setting to be replaced, got %+v", v)
	}
	if _, err := s.Set(ctx, 2, "theme", "light", ""); err != nil {
		t.Fatal(err)
	}

	list, err := s.List(ctx, 1)
	if err != nil || len(list) != 1 {
		t.Fatalf("expected settings to be scoped per module, got %d (%v)", len(list), err)
	}
	if err := s.Delete(ctx, 1, "theme"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, 1, "theme"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, 1, "theme"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDataStoreCreate(t *testing.T) {
	db, _ := openTestDB(t)
	s := NewDataStore(db)
	ctx := context.Background()

	row, err := s.Create(ctx, 1, "notes", "", []byte(`{"title":"first"}`))
	if err != nil {
		t.Fatal(err)
	}
	if row.EntityID == "" {
		t.Fatal("expected a generated entity id")
	}

	if _, err := s.Create(ctx, 1, "notes", "n1", []byte(`{}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(ctx, 1, "notes", "n1", []byte(`{}`)); !errors.Is(err, ErrDuplicateEntity) {
		t.Fatalf("expected ErrDuplicateEntity, got %v", err)
	}
	if _, err := s.Create(ctx, 2, "notes", "n1", []byte(`{}`)); err != nil {
		t.Fatalf("expected the same id to be allowed for another module, got %v", err)
	}
	if _, err := s.Create(ctx, 1, "notes", "n2", []byte(`{not json`)); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}

	list, err := s.List(ctx, 1, "notes", 0, 0)
	if err != nil || len(list) != 2 {
		t.Fatalf("expected two documents, got %d (%v)", len(list), err)
	}
	if list, _ = s.List(ctx, 1, "notes", 1, 1); len(list) != 1 {
		t.Fatalf("expected paging to return one document, got %d", len(list))
	}
}

func TestDataStoreMerge(t *testing.T) {
	db, _ := openTestDB(t)
	s := NewDataStore(db)
	ctx := context.Background()
	if _, err := s.Create(ctx, 1, "contacts", "c1", []byte(`{"name":"Ada","tags":["a"],"address":{"city":"London","zip":"N1"}}`)); err != nil {
		t.Fatal(err)
	}

	row, err := s.Merge(ctx, 1, "contacts", "c1", []byte(`{"tags":["b"],"address":{"city":"Paris"}}`))
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Name    string            `json:"name"`
		Tags    []string          `json:"tags"`
		Address map[string]string `json:"address"`
	}
	if err := json.Unmarshal(row.Data, &doc); err != nil {
		t.Fatal(err)
	}
	if doc.Name != "Ada" || len(doc.Tags) != 1 || doc.Tags[0] != "b" {
		t.Fatalf("unexpected merged document %+v", doc)
	}
	if doc.Address["city"] != "Paris" || doc.Address["zip"] != "N1" {
		t.Fatalf("expected nested objects to merge, got %+v", doc.Address)
	}

	stored, err := s.Get(ctx, 1, "contacts", "c1")
	if err != nil {
		t.Fatal(err)
	}
	if string(stored.Data) != string(row.Data) {
		t.Fatalf("expected the merge to be persisted, got %s", stored.Data)
	}

	if _, err := s.Merge(ctx, 1, "contacts", "ghost", []byte(`{}`)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDataStoreReplaceAndDelete(t *testing.T) {
	db, _ := openTestDB(t)
	s := NewDataStore(db)
	ctx := context.Background()
	if _, err := s.Create(ctx, 1, "notes", "n1", []byte(`{"a":1,"b":2}`)); err != nil {
		t.Fatal(err)
	}

	row, err := s.Replace(ctx, 1, "notes", "n1", []byte(`{"c":3}`))
	if err != nil {
		t.Fatal(err)
	}
	if string(row.Data) != `{"c":3}` {
		t.Fatalf("expected the document to be replaced, got %s", row.Data)
	}
	if _, err := s.Replace(ctx, 1, "notes", "n1", []byte(``)); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}

	if err := s.Delete(ctx, 1, "notes", "n1"); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, 1, "notes", "n1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
