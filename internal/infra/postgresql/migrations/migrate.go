package migrations

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"github.com/kursadbilgin/issuance-engine/internal/repository"
	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "000001_create_number_sequences",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&repository.NumberSequenceModel{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.NumberSequenceModel{})
			},
		},
		{
			ID: "000002_create_applications",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.ApplicationModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_applications_application_no ON applications (application_no)`,
					`CREATE INDEX IF NOT EXISTS idx_applications_state_created ON applications (state, created_at)`,
					`CREATE INDEX IF NOT EXISTS idx_applications_batch_id ON applications (batch_id) WHERE batch_id IS NOT NULL`,
					`CREATE INDEX IF NOT EXISTS idx_applications_applicant_ref ON applications (applicant_ref)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.ApplicationModel{})
			},
		},
		{
			ID: "000003_create_batches",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.BatchModel{}, &repository.BatchItemModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_batches_batch_no ON batches (batch_no)`,
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_batch_items_application_id ON batch_items (application_id)`,
					`CREATE INDEX IF NOT EXISTS idx_batch_items_batch_position ON batch_items (batch_id, position)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.BatchItemModel{}, &repository.BatchModel{})
			},
		},
		{
			ID: "000004_create_cards",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.CardModel{}); err != nil {
					return err
				}
				indexes := []string{
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_cards_card_no ON cards (card_no)`,
					`CREATE UNIQUE INDEX IF NOT EXISTS idx_cards_application_id ON cards (application_id)`,
					`CREATE INDEX IF NOT EXISTS idx_cards_status ON cards (status)`,
				}
				for _, sql := range indexes {
					if err := tx.Exec(sql).Error; err != nil {
						return err
					}
				}
				return nil
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.CardModel{})
			},
		},
		{
			ID: "000005_create_status_history",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&repository.StatusChangeModel{}); err != nil {
					return err
				}
				return tx.Exec(`CREATE INDEX IF NOT EXISTS idx_status_history_entity ON status_history (entity_type, entity_id, changed_at)`).Error
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable(&repository.StatusChangeModel{})
			},
		},
	})

	return m.Migrate()
}
