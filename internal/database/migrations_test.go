package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/acervolabs/constancia/internal/certificates"
	"go.uber.org/zap"
)

func TestOpenSQLiteSeedsCertificateSequence(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := OpenSQLite(databasePath, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	var row certificates.SequenceRow
	if err := database.Where("name = ?", certificates.SequenceName).Take(&row).Error; err != nil {
		testContext.Fatalf("expected seeded sequence row: %v", err)
	}
	if row.Value != 0 {
		testContext.Fatalf("expected fresh sequence to start at 0, got %d", row.Value)
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationSeedCertificateSequence).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}

func TestApplyMigrationsIsIdempotent(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "idempotent.db")

	database, err := OpenSQLite(databasePath, zap.NewNop())
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	sequence, err := certificates.NewGormSequence(database)
	if err != nil {
		testContext.Fatalf("failed to construct sequence: %v", err)
	}
	if _, err := sequence.Next(context.Background()); err != nil {
		testContext.Fatalf("unexpected sequence error: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to re-apply migrations: %v", err)
	}

	var row certificates.SequenceRow
	if err := database.Where("name = ?", certificates.SequenceName).Take(&row).Error; err != nil {
		testContext.Fatalf("failed to reload sequence row: %v", err)
	}
	if row.Value != 1 {
		testContext.Fatalf("expected re-applied migration to leave the counter alone, got %d", row.Value)
	}
}
