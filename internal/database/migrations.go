package database

import (
	"errors"
	"time"

	"github.com/inkwell-labs/inkwell/backend/internal/library"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillRootFolders = "2026-08-14_backfill_root_folders"

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
		{name: migrationBackfillRootFolders, apply: backfillRootFolders},
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

// backfillRootFolders creates the distinguished root folder for any owner
// that has library rows but no root, repairing data written before root
// provisioning moved into the sign-in path.
func backfillRootFolders(db *gorm.DB) error {
	var owners []string
	err := db.Raw(`
		SELECT owner_id FROM folders
		UNION
		SELECT owner_id FROM books
	`).Scan(&owners).Error
	if err != nil {
		return err
	}

	idProvider := library.NewUUIDProvider()
	for _, owner := range owners {
		var roots int64
		err := db.Model(&library.Folder{}).
			Where("owner_id = ? AND parent_id IS NULL", owner).
			Count(&roots).Error
		if err != nil {
			return err
		}
		if roots > 0 {
			continue
		}
		rootID, err := idProvider.NewID()
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		root := library.Folder{
			ID:        rootID,
			OwnerID:   owner,
			ParentID:  nil,
			Name:      library.RootName,
			Slug:      library.RootSlug,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := db.Create(&root).Error; err != nil {
			return err
		}
	}
	return nil
}
