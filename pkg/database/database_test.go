package database

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Open(DefaultConfig(filepath.Join(t.TempDir(), "stats.db")))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestConfig_DefaultConfig(t *testing.T) {
	config := DefaultConfig("./stats.db")
	if config.DatabasePath != "./stats.db" {
		t.Errorf("DatabasePath = %s", config.DatabasePath)
	}
	if config.MaxConnections != 10 || config.ConnMaxLifetime != time.Hour || config.ConnMaxIdleTime != 10*time.Minute {
		t.Errorf("unexpected pool defaults: %+v", config)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfig_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty path", func(c *Config) { c.DatabasePath = "" }},
		{"zero connections", func(c *Config) { c.MaxConnections = 0 }},
		{"zero lifetime", func(c *Config) { c.ConnMaxLifetime = 0 }},
		{"zero idle time", func(c *Config) { c.ConnMaxIdleTime = 0 }},
		{"negative busy timeout", func(c *Config) { c.BusyTimeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig("x.db")
			tt.mutate(config)
			if err := config.Validate(); err == nil {
				t.Error("expected validation error")
			}
			if _, err := Open(config); err == nil {
				t.Error("Open must reject an invalid config")
			}
		})
	}
}

func TestOpen_AppliesPragmas(t *testing.T) {
	db := openTestDB(t)

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatal(err)
	}
	if strings.ToLower(journalMode) != "wal" {
		t.Errorf("journal_mode = %s, want wal", journalMode)
	}

	var foreignKeys int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		t.Fatal(err)
	}
	if foreignKeys != 1 {
		t.Error("foreign keys should be enforced")
	}
}

func TestMigrations_ApplyEmbedded(t *testing.T) {
	db := openTestDB(t)
	manager := NewMigrationManager(db)

	if err := manager.ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}
	// Re-running is a no-op
	if err := manager.ApplyMigrations(); err != nil {
		t.Fatalf("second ApplyMigrations failed: %v", err)
	}

	applied, err := manager.AppliedVersions()
	if err != nil {
		t.Fatal(err)
	}
	if !applied["001"] || len(applied) != 1 {
		t.Errorf("applied versions = %v", applied)
	}

	if err := NewSchemaValidator(db).Validate(); err != nil {
		t.Errorf("schema should validate after migrations: %v", err)
	}
}

func TestMigrations_LoadOrderAndNames(t *testing.T) {
	fsys := fstest.MapFS{
		"m/002_add_index.sql":   {Data: []byte("CREATE INDEX idx_t_name ON t(name);")},
		"m/001_create_t.sql":    {Data: []byte("CREATE TABLE t (name TEXT);")},
		"m/README.md":           {Data: []byte("not a migration")},
		"m/003_bad_sql.sql.bak": {Data: []byte("garbage")},
	}
	manager := NewMigrationManagerFS(openTestDB(t), fsys, "m")

	migrations, err := manager.LoadMigrations()
	if err != nil {
		t.Fatal(err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != "001" || migrations[0].Description != "create_t" {
		t.Errorf("first migration = %+v", migrations[0])
	}
	if migrations[1].Version != "002" {
		t.Errorf("second migration = %+v", migrations[1])
	}
	if err := manager.ApplyMigrations(); err != nil {
		t.Fatalf("ApplyMigrations failed: %v", err)
	}
}

func TestMigrations_FailedMigrationIsNotRecorded(t *testing.T) {
	db := openTestDB(t)
	fsys := fstest.MapFS{
		"m/001_broken.sql": {Data: []byte("CREATE TABLE (")},
	}
	manager := NewMigrationManagerFS(db, fsys, "m")

	if err := manager.ApplyMigrations(); err == nil {
		t.Fatal("broken migration should fail")
	}
	applied, err := manager.AppliedVersions()
	if err != nil {
		t.Fatal(err)
	}
	if applied["001"] {
		t.Error("failed migration must not be recorded")
	}
}

func TestSchemaValidator_DetectsMissingPieces(t *testing.T) {
	db := openTestDB(t)
	validator := NewSchemaValidator(db)

	if err := validator.ValidateTablesExist(); err == nil {
		t.Error("empty database should fail table validation")
	}

	if err := NewMigrationManager(db).ApplyMigrations(); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec("DROP INDEX idx_session_interests_interest"); err != nil {
		t.Fatal(err)
	}
	if err := validator.ValidateIndexes(); err == nil {
		t.Error("missing index should be reported")
	}
	if err := validator.ValidateTableStructure(); err != nil {
		t.Errorf("table structure should still be valid: %v", err)
	}
}

func TestSchema_ConstraintsEnforced(t *testing.T) {
	db := openTestDB(t)
	if err := NewMigrationManager(db).ApplyMigrations(); err != nil {
		t.Fatal(err)
	}

	if _, err := db.Exec("INSERT INTO session_interests (session_id, interest) VALUES ('missing', 'Music')"); err == nil {
		t.Error("foreign key on session_interests.session_id not enforced")
	}
	if _, err := db.Exec("INSERT INTO pair_sessions (id, started_at, end_reason) VALUES ('s1', CURRENT_TIMESTAMP, 'bored')"); err == nil {
		t.Error("end_reason check constraint not enforced")
	}
}
