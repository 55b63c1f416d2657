package certificates

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	errMissingDatabase = errors.New("database handle is required")
	errMissingSequence = errors.New("sequence provider is required")
	noOpLogger         = zap.NewNop()

	// ErrRecordNotFound reports a lookup for a certificate id that is not
	// persisted. Delete does not use it; deleting a missing id is a no-op.
	ErrRecordNotFound = errors.New("certificates: record not found")
)

// ServiceError carries a dotted operation.reason code alongside the cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew = "certificates.service.new"
	opGenerateID = "certificates.generate_id"
	opSave       = "certificates.save"
	opGetAll     = "certificates.get_all"
	opGetByID    = "certificates.get_by_id"
	opDelete     = "certificates.delete"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

const defaultIDPrefix = "CERT"

// IDProvider issues identifiers for audit rows.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig wires the store's collaborators.
type ServiceConfig struct {
	Database        *gorm.DB
	Clock           func() time.Time
	Sequence        SequenceProvider
	EventIDProvider IDProvider
	IDPrefix        string
	Logger          *zap.Logger
}

// Service persists certificate records keyed by their identifier. Operations
// are safe for the single-writer request/response model; identifier drawing
// and the upsert each run inside their own transaction.
type Service struct {
	db       *gorm.DB
	clock    func() time.Time
	sequence SequenceProvider
	eventIDs IDProvider
	prefix   string
	logger   *zap.Logger
}

// NewService validates the configuration and returns a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.Sequence == nil {
		return nil, newServiceError(opServiceNew, "missing_sequence", errMissingSequence)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	eventIDs := cfg.EventIDProvider
	if eventIDs == nil {
		eventIDs = NewUUIDProvider()
	}
	prefix := strings.TrimSpace(cfg.IDPrefix)
	if prefix == "" {
		prefix = defaultIDPrefix
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Service{
		db:       cfg.Database,
		clock:    clock,
		sequence: cfg.Sequence,
		eventIDs: eventIDs,
		prefix:   prefix,
		logger:   logger,
	}, nil
}

// GenerateID draws the next sequence value and formats it with the supplied
// date. Sequential calls return strictly increasing, distinct identifiers.
func (s *Service) GenerateID(ctx context.Context, today time.Time) (string, error) {
	value, err := s.sequence.Next(ctx)
	if err != nil {
		s.logError(opGenerateID, "sequence_failed", err)
		return "", newServiceError(opGenerateID, "sequence_failed", err)
	}
	return FormatID(s.prefix, today, value), nil
}

// Save upserts the record under data.ID, generating the identifier when the
// field is empty. CreatedAtSeconds is set once on first save and carried
// forward on every re-save; all other fields are last-write-wins. Each save
// appends an IssueEvent audit row. The upsert is all-or-nothing.
func (s *Service) Save(ctx context.Context, data CertificateData, document RenderedDocument) (Record, error) {
	id := strings.TrimSpace(data.ID)
	if id == "" {
		generated, err := s.GenerateID(ctx, s.clock().UTC())
		if err != nil {
			return Record{}, err
		}
		id = generated
	}

	var saved Record
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Record
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("certificate_id = ?", id).
			Take(&existing).Error

		now := s.clock().UTC()
		createdAt := now.Unix()
		firstIssue := true
		if err == nil {
			createdAt = existing.CreatedAtSeconds
			firstIssue = false
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logError(opSave, "record_select_failed", err, zap.String("certificate_id", id))
			return newServiceError(opSave, "record_select_failed", err)
		}

		record := Record{
			CertificateID:    id,
			EventName:        data.EventName,
			EventLocation:    data.EventLocation,
			EventDateSeconds: data.EventDate.UTC().Unix(),
			ParticipantName:  data.ParticipantName,
			ParticipantRole:  string(data.ParticipantRole),
			DurationHours:    int64(data.DurationHours),
			DocumentPDF:      []byte(document),
			CreatedAtSeconds: createdAt,
		}
		if err := tx.Save(&record).Error; err != nil {
			s.logError(opSave, "record_save_failed", err, zap.String("certificate_id", id))
			return newServiceError(opSave, "record_save_failed", err)
		}

		eventID, err := s.eventIDs.NewID()
		if err != nil {
			s.logError(opSave, "event_id_failed", err, zap.String("certificate_id", id))
			return newServiceError(opSave, "event_id_failed", err)
		}
		event := IssueEvent{
			EventID:         eventID,
			CertificateID:   id,
			IssuedAtSeconds: now.Unix(),
			FirstIssue:      firstIssue,
		}
		if err := tx.Create(&event).Error; err != nil {
			s.logError(opSave, "issue_event_failed", err, zap.String("certificate_id", id))
			return newServiceError(opSave, "issue_event_failed", err)
		}

		saved = record
		return nil
	})
	if txErr != nil {
		return Record{}, txErr
	}
	return saved, nil
}

// GetAll returns every persisted record with no ordering guarantee.
func (s *Service) GetAll(ctx context.Context) ([]Record, error) {
	var records []Record
	if err := s.db.WithContext(ctx).Find(&records).Error; err != nil {
		s.logError(opGetAll, "query_failed", err)
		return nil, newServiceError(opGetAll, "query_failed", err)
	}
	return records, nil
}

// Search returns the records whose id, participant name or event name contains
// the trimmed term as a case-insensitive substring. An empty term is
// equivalent to GetAll. Matching is done in Go because sqlite lower-cases
// ASCII only and terms may carry accented characters.
func (s *Service) Search(ctx context.Context, term string) ([]Record, error) {
	records, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(term))
	if needle == "" {
		return records, nil
	}
	matched := make([]Record, 0, len(records))
	for _, record := range records {
		if record.matches(needle) {
			matched = append(matched, record)
		}
	}
	return matched, nil
}

func (r Record) matches(needle string) bool {
	return strings.Contains(strings.ToLower(r.CertificateID), needle) ||
		strings.Contains(strings.ToLower(r.ParticipantName), needle) ||
		strings.Contains(strings.ToLower(r.EventName), needle)
}

// GetByID performs an exact-key lookup. A missing id yields ErrRecordNotFound.
func (s *Service) GetByID(ctx context.Context, id string) (Record, error) {
	var record Record
	err := s.db.WithContext(ctx).
		Where("certificate_id = ?", id).
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		s.logError(opGetByID, "query_failed", err, zap.String("certificate_id", id))
		return Record{}, newServiceError(opGetByID, "query_failed", err)
	}
	return record, nil
}

// Delete removes the record. Deleting a missing id succeeds; issue events are
// kept as audit history.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).
		Where("certificate_id = ?", id).
		Delete(&Record{}).Error; err != nil {
		s.logError(opDelete, "delete_failed", err, zap.String("certificate_id", id))
		return newServiceError(opDelete, "delete_failed", err)
	}
	return nil
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("certificates service error", attrs...)
}
