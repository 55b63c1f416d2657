package certificates

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:constancia_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Record{}, &IssueEvent{}, &SequenceRow{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newTestService(t *testing.T, clock func() time.Time) (*Service, *gorm.DB) {
	t.Helper()

	db := newTestDB(t)
	sequence, err := NewGormSequence(db)
	if err != nil {
		t.Fatalf("failed to construct sequence: %v", err)
	}
	if clock == nil {
		clock = func() time.Time { return time.Unix(1715300000, 0).UTC() }
	}

	service, err := NewService(ServiceConfig{
		Database: db,
		Clock:    clock,
		Sequence: sequence,
	})
	if err != nil {
		t.Fatalf("failed to construct certificates service: %v", err)
	}
	return service, db
}

func sampleData() CertificateData {
	return CertificateData{
		EventName:       "Taller de Rust",
		EventLocation:   "Lima",
		EventDate:       time.Date(2024, time.May, 10, 0, 0, 0, 0, time.UTC),
		ParticipantName: "Carlos Ruiz",
		ParticipantRole: RolePonente,
		DurationHours:   8,
	}
}

func mustSave(t *testing.T, service *Service, data CertificateData, document RenderedDocument) Record {
	t.Helper()
	record, err := service.Save(context.Background(), data, document)
	if err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	return record
}
