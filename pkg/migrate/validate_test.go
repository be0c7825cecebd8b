package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joaquinvalderas/regenmarket-backend/pkg/migrate"
)

func writeMigration(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write migration: %v", err)
	}
}

const validMigration = `-- +goose Up
CREATE TABLE sample (id uuid PRIMARY KEY);

-- +goose Down
DROP TABLE sample;
`

func TestValidateDirAcceptsWellFormedMigrations(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20260101000000_create_sample.sql", validMigration)
	writeMigration(t, dir, "20260102000000_add_sample_index.sql", validMigration)

	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateDirRejectsBadFilename(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "001_create_sample.sql", validMigration)

	err := migrate.ValidateDir(dir)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "invalid migration filename") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateDirRejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20260101000000_create_sample.sql", validMigration)
	writeMigration(t, dir, "20260101000000_create_sample_again.sql", validMigration)

	err := migrate.ValidateDir(dir)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "duplicate migration version") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateDirRequiresGooseMarkers(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20260101000000_missing_down.sql", "-- +goose Up\nCREATE TABLE sample (id uuid);\n")

	err := migrate.ValidateDir(dir)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "-- +goose Down") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateDirIgnoresNonSQLFiles(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "README.md", "notes\n")
	writeMigration(t, dir, "20260101000000_create_sample.sql", validMigration)

	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateDirRequiresDir(t *testing.T) {
	if err := migrate.ValidateDir(""); err == nil {
		t.Fatalf("expected error")
	}
}
