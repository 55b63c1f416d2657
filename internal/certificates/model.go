package certificates

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role enumerates the participation roles a certificate can attest.
type Role string

const (
	// RolePonente marks a speaker.
	RolePonente Role = "Ponente"
	// RoleOrganizador marks an organizer.
	RoleOrganizador Role = "Organizador"
	// RoleAsistente marks an attendee and doubles as the fallback wording for
	// any unrecognized role value.
	RoleAsistente Role = "Asistente"
)

const maxIdentifierLength = 190

// ErrInvalidCertificateID indicates that a certificate identifier is empty or
// exceeds storage bounds.
var ErrInvalidCertificateID = errors.New("certificates: invalid certificate id")

// CertificateID represents a validated certificate identifier.
type CertificateID string

// NewCertificateID validates raw input and returns a CertificateID.
func NewCertificateID(rawInput string) (CertificateID, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidCertificateID)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: exceeds %d characters", ErrInvalidCertificateID, maxIdentifierLength)
	}
	return CertificateID(trimmed), nil
}

// String returns the underlying string identifier.
func (id CertificateID) String() string {
	return string(id)
}

// CertificateData carries the already-validated input for one certificate.
// Validation of required fields is the caller's contract; the composer and
// the store consume these values as-is.
type CertificateData struct {
	ID              string
	EventName       string
	EventLocation   string
	EventDate       time.Time
	ParticipantName string
	ParticipantRole Role
	DurationHours   int
}

// RenderedDocument holds the finished single-page PDF bytes.
type RenderedDocument []byte

// Record models the persisted certificate: input data, rendered document and
// creation metadata, keyed by the certificate identifier.
type Record struct {
	CertificateID    string `gorm:"column:certificate_id;primaryKey;size:190;not null"`
	EventName        string `gorm:"column:event_name;size:500;not null"`
	EventLocation    string `gorm:"column:event_location;size:500;not null"`
	EventDateSeconds int64  `gorm:"column:event_date_s;not null"`
	ParticipantName  string `gorm:"column:participant_name;size:500;not null"`
	ParticipantRole  string `gorm:"column:participant_role;size:190;not null"`
	DurationHours    int64  `gorm:"column:duration_hours;not null"`
	DocumentPDF      []byte `gorm:"column:document_pdf;type:blob;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null;index:idx_certificates_created"`
}

// TableName provides the explicit table binding for GORM.
func (Record) TableName() string {
	return "certificates"
}

// Data reconstructs the CertificateData captured by this record.
func (r Record) Data() CertificateData {
	return CertificateData{
		ID:              r.CertificateID,
		EventName:       r.EventName,
		EventLocation:   r.EventLocation,
		EventDate:       time.Unix(r.EventDateSeconds, 0).UTC(),
		ParticipantName: r.ParticipantName,
		ParticipantRole: Role(r.ParticipantRole),
		DurationHours:   int(r.DurationHours),
	}
}

// IssueEvent captures an append-only audit trail of certificate issuance.
// Rows survive certificate deletion.
type IssueEvent struct {
	EventID         string `gorm:"column:event_id;primaryKey;size:190;not null"`
	CertificateID   string `gorm:"column:certificate_id;not null;index:idx_issue_events_certificate"`
	IssuedAtSeconds int64  `gorm:"column:issued_at_s;not null"`
	FirstIssue      bool   `gorm:"column:first_issue;not null;default:false"`
}

// TableName provides the explicit table binding for GORM.
func (IssueEvent) TableName() string {
	return "certificate_issue_events"
}
