package database

import (
	"errors"
	"time"

	"github.com/acervolabs/constancia/internal/certificates"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationSeedCertificateSequence = "2026-07-20_seed_certificate_id_sequence"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationSeedCertificateSequence, apply: seedCertificateSequence},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// seedCertificateSequence guarantees the identifier counter row exists so the
// first GenerateID call starts from a durable zero.
func seedCertificateSequence(db *gorm.DB) error {
	var row certificates.SequenceRow
	err := db.Where("name = ?", certificates.SequenceName).Take(&row).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return db.Create(&certificates.SequenceRow{Name: certificates.SequenceName}).Error
}
