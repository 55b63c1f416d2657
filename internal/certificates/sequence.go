package certificates

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceName is the durable sequence backing certificate identifiers. It is
// a single process-wide sequence: the value keeps climbing across day
// boundaries even though the identifier embeds a date segment.
const SequenceName = "certificate_ids"

var errMissingSequenceDB = errors.New("database handle is required")

// SequenceProvider hands out durable, monotonically increasing values.
type SequenceProvider interface {
	Next(ctx context.Context) (int64, error)
}

// SequenceRow persists one named counter value.
type SequenceRow struct {
	Name  string `gorm:"column:name;primaryKey;size:190;not null"`
	Value int64  `gorm:"column:value;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (SequenceRow) TableName() string {
	return "id_sequences"
}

type gormSequence struct {
	db   *gorm.DB
	name string
}

// NewGormSequence returns a SequenceProvider backed by the id_sequences table.
func NewGormSequence(db *gorm.DB) (SequenceProvider, error) {
	if db == nil {
		return nil, errMissingSequenceDB
	}
	return &gormSequence{db: db, name: SequenceName}, nil
}

func (s *gormSequence) Next(ctx context.Context) (int64, error) {
	var next int64
	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row SequenceRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("name = ?", s.name).
			Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = SequenceRow{Name: s.name}
		} else if err != nil {
			return err
		}
		row.Value++
		next = row.Value
		return tx.Save(&row).Error
	})
	if txErr != nil {
		return 0, txErr
	}
	return next, nil
}

// FormatID builds the persisted identifier PREFIX-YYYYMMDD-NNNNN. The numeric
// field is zero-padded to five digits and widens past 99999 instead of
// truncating.
func FormatID(prefix string, today time.Time, sequence int64) string {
	return fmt.Sprintf("%s-%s-%05d", prefix, today.Format("20060102"), sequence)
}
