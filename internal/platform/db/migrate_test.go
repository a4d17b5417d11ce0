package db

import (
	"context"
	"testing"
	"testing/fstest"
)

func TestLoadMigrations(t *testing.T) {
	files := fstest.MapFS{
		"001_core.sql":   {Data: []byte("CREATE TABLE client (id UUID PRIMARY KEY);")},
		"002_forms.sql":  {Data: []byte("CREATE TABLE form_schema (id UUID PRIMARY KEY);")},
		"003_events.sql": {Data: []byte("CREATE TABLE event_log (id UUID PRIMARY KEY);")},
	}

	migrations, err := NewMigrator(nil, files).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "001_core.sql" {
		t.Errorf("unexpected first migration: %+v", migrations[0])
	}
	if migrations[2].SQL != "CREATE TABLE event_log (id UUID PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", migrations[2].SQL)
	}
}

func TestLoadMigrations_SortOrder(t *testing.T) {
	files := fstest.MapFS{
		"010_tables.sql": {Data: []byte("SELECT 10;")},
		"002_second.sql": {Data: []byte("SELECT 2;")},
		"001_first.sql":  {Data: []byte("SELECT 1;")},
		"005_middle.sql": {Data: []byte("SELECT 5;")},
	}

	migrations, err := NewMigrator(nil, files).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	want := []int{1, 2, 5, 10}
	for i, v := range want {
		if migrations[i].Version != v {
			t.Errorf("position %d: expected version %d, got %d", i, v, migrations[i].Version)
		}
	}
}

func TestLoadMigrations_SkipsNonMigrations(t *testing.T) {
	files := fstest.MapFS{
		"001_core.sql":    {Data: []byte("SELECT 1;")},
		"README.md":       {Data: []byte("docs")},
		"seed.sql":        {Data: []byte("SELECT 0;")},
		"abc_letters.sql": {Data: []byte("SELECT 0;")},
		"sub/002_x.sql":   {Data: []byte("SELECT 2;")},
	}

	migrations, err := NewMigrator(nil, files).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 1 {
		t.Fatalf("expected 1 migration, got %d", len(migrations))
	}
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	files := fstest.MapFS{
		"001_core.sql":  {Data: []byte("SELECT 1;")},
		"001_other.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := NewMigrator(nil, files).LoadMigrations(); err == nil {
		t.Fatal("expected error for duplicate version")
	}
}

func TestMigrator_RejectsBadSchema(t *testing.T) {
	m := NewMigrator(nil, fstest.MapFS{})
	for _, schema := range []string{"public", "tenant_", "tenant_a;drop", "Tenant_acme"} {
		if _, err := m.Up(context.Background(), schema); err == nil {
			t.Errorf("Up(%q): expected error", schema)
		}
		if _, err := m.Status(context.Background(), schema); err == nil {
			t.Errorf("Status(%q): expected error", schema)
		}
	}
}
