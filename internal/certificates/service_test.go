package certificates

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"
)

func TestSaveAssignsGeneratedIdentifier(t *testing.T) {
	service, _ := newTestService(t, nil)

	record := mustSave(t, service, sampleData(), RenderedDocument("%PDF-fake"))

	pattern := regexp.MustCompile(`^CERT-\d{8}-\d{5}$`)
	if !pattern.MatchString(record.CertificateID) {
		t.Fatalf("identifier %q does not match pattern", record.CertificateID)
	}
	if record.CreatedAtSeconds == 0 {
		t.Fatalf("expected created timestamp to be set")
	}
}

func TestSaveReusesSuppliedIdentifier(t *testing.T) {
	service, _ := newTestService(t, nil)

	data := sampleData()
	data.ID = "CERT-20240510-00042"
	record := mustSave(t, service, data, RenderedDocument("%PDF-fake"))
	if record.CertificateID != "CERT-20240510-00042" {
		t.Fatalf("expected supplied id to be reused, got %q", record.CertificateID)
	}
}

func TestResavePreservesCreatedAtAndUpdatesFields(t *testing.T) {
	current := time.Unix(1715300000, 0).UTC()
	clock := func() time.Time { return current }
	service, db := newTestService(t, clock)

	first := mustSave(t, service, sampleData(), RenderedDocument("%PDF-v1"))

	current = current.Add(48 * time.Hour)
	updated := first.Data()
	updated.EventLocation = "Cusco"
	updated.DurationHours = 12
	second := mustSave(t, service, updated, RenderedDocument("%PDF-v2"))

	if second.CertificateID != first.CertificateID {
		t.Fatalf("expected the same identifier, got %q and %q", first.CertificateID, second.CertificateID)
	}
	if second.CreatedAtSeconds != first.CreatedAtSeconds {
		t.Fatalf("expected created timestamp to be preserved, got %d then %d", first.CreatedAtSeconds, second.CreatedAtSeconds)
	}
	if second.EventLocation != "Cusco" || second.DurationHours != 12 {
		t.Fatalf("expected fields to be last-write-wins, got %+v", second)
	}
	if string(second.DocumentPDF) != "%PDF-v2" {
		t.Fatalf("expected document bytes to be replaced")
	}

	stored, err := service.GetByID(context.Background(), first.CertificateID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stored.CreatedAtSeconds != first.CreatedAtSeconds {
		t.Fatalf("persisted created timestamp changed on re-save")
	}

	var eventCount int64
	if err := db.Model(&IssueEvent{}).Where("certificate_id = ?", first.CertificateID).Count(&eventCount).Error; err != nil {
		t.Fatalf("failed to count issue events: %v", err)
	}
	if eventCount != 2 {
		t.Fatalf("expected one issue event per save, got %d", eventCount)
	}
	var firstIssueCount int64
	if err := db.Model(&IssueEvent{}).Where("certificate_id = ? AND first_issue = ?", first.CertificateID, true).Count(&firstIssueCount).Error; err != nil {
		t.Fatalf("failed to count first issues: %v", err)
	}
	if firstIssueCount != 1 {
		t.Fatalf("expected exactly one first-issue event, got %d", firstIssueCount)
	}
}

func TestGetByIDMissingReportsNotFound(t *testing.T) {
	service, _ := newTestService(t, nil)

	_, err := service.GetByID(context.Background(), "CERT-19990101-00001")
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestSearchEmptyTermEqualsGetAll(t *testing.T) {
	service, _ := newTestService(t, nil)

	for _, participant := range []string{"Carlos Ruiz", "Ana María", "Luis Vega"} {
		data := sampleData()
		data.ParticipantName = participant
		mustSave(t, service, data, RenderedDocument("%PDF-fake"))
	}

	all, err := service.GetAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	searched, err := service.Search(context.Background(), "   ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 3 || len(searched) != len(all) {
		t.Fatalf("expected identical result sets, got %d and %d", len(all), len(searched))
	}

	ids := make(map[string]bool, len(all))
	for _, record := range all {
		ids[record.CertificateID] = true
	}
	for _, record := range searched {
		if !ids[record.CertificateID] {
			t.Fatalf("search result %q missing from get-all set", record.CertificateID)
		}
	}
}

func TestSearchMatchesCaseInsensitiveSubstring(t *testing.T) {
	service, _ := newTestService(t, nil)

	target := sampleData()
	target.ParticipantName = "Ana María"
	saved := mustSave(t, service, target, RenderedDocument("%PDF-fake"))

	other := sampleData()
	other.ParticipantName = "Carlos Ruiz"
	mustSave(t, service, other, RenderedDocument("%PDF-fake"))

	results, err := service.Search(context.Background(), "maría")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected exactly one match, got %d", len(results))
	}
	if results[0].CertificateID != saved.CertificateID {
		t.Fatalf("expected %q, got %q", saved.CertificateID, results[0].CertificateID)
	}
}

func TestSearchMatchesOnIDAndEventName(t *testing.T) {
	service, _ := newTestService(t, nil)

	data := sampleData()
	data.ID = "CERT-20240510-00077"
	mustSave(t, service, data, RenderedDocument("%PDF-fake"))

	byID, err := service.Search(context.Background(), "00077")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(byID) != 1 {
		t.Fatalf("expected match on id substring, got %d results", len(byID))
	}

	byEvent, err := service.Search(context.Background(), "taller de rust")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(byEvent) != 1 {
		t.Fatalf("expected match on event name, got %d results", len(byEvent))
	}

	none, err := service.Search(context.Background(), "inexistente")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no matches, got %d", len(none))
	}
}

func TestDeleteMissingIdentifierIsNoOp(t *testing.T) {
	service, _ := newTestService(t, nil)

	mustSave(t, service, sampleData(), RenderedDocument("%PDF-fake"))

	if err := service.Delete(context.Background(), "CERT-19990101-00001"); err != nil {
		t.Fatalf("expected idempotent delete, got %v", err)
	}

	all, err := service.GetAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected store contents unchanged, got %d records", len(all))
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	service, _ := newTestService(t, nil)

	record := mustSave(t, service, sampleData(), RenderedDocument("%PDF-fake"))
	if err := service.Delete(context.Background(), record.CertificateID); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}

	_, err := service.GetByID(context.Background(), record.CertificateID)
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected record to be gone, got %v", err)
	}
}

func TestNewServiceRequiresDatabaseAndSequence(t *testing.T) {
	db := newTestDB(t)
	sequence, err := NewGormSequence(db)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := NewService(ServiceConfig{Sequence: sequence}); err == nil {
		t.Fatalf("expected missing database to be rejected")
	}
	if _, err := NewService(ServiceConfig{Database: db}); err == nil {
		t.Fatalf("expected missing sequence to be rejected")
	}
}
