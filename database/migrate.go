package database

import (
	"fmt"

	"newsletter-backend/models"

	"gorm.io/gorm"
)

// Migrate applies (idempotent) schema migrations:
// - AutoMigrate (tables/columns/index tags)
// - response_status_code as SMALLINT + range CHECK
// - response_headers/response_body NOT NULL with empty defaults
// - foreign key: idempotency.user_id → users.id
// - subscriber status CHECK
func Migrate() error {
	return DB.Transaction(func(tx *gorm.DB) error {
		// --- AutoMigrate tables/columns (non-destructive) ---
		if err := tx.AutoMigrate(
			&models.User{},
			&models.Subscriber{},
			&models.NewsletterIssue{},
			&models.IdempotencyRecord{},
		); err != nil {
			return fmt.Errorf("automigrate failed: %w", err)
		}

		// --- Idempotency row invariants (idempotent ALTERs) ---
		alters := []string{
			`ALTER TABLE idempotency ALTER COLUMN response_status_code TYPE smallint`,
			`ALTER TABLE idempotency ALTER COLUMN response_headers SET DEFAULT '[]'::jsonb`,
			`ALTER TABLE idempotency ALTER COLUMN response_headers SET NOT NULL`,
			`ALTER TABLE idempotency ALTER COLUMN response_body SET DEFAULT ''::bytea`,
			`UPDATE idempotency SET response_body = ''::bytea WHERE response_body IS NULL`,
			`ALTER TABLE idempotency ALTER COLUMN response_body SET NOT NULL`,
		}
		for _, stmt := range alters {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("idempotency column migration failed on: %s - %w", stmt, err)
			}
		}

		// --- Foreign key: idempotency.user_id -> users.id ---
		fk := `
DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1
		FROM pg_constraint
		WHERE conrelid = 'idempotency'::regclass
		  AND conname  = 'fk_idempotency_user'
	) THEN
		ALTER TABLE idempotency
		ADD CONSTRAINT fk_idempotency_user
		FOREIGN KEY (user_id)
		REFERENCES users(id)
		ON UPDATE RESTRICT
		ON DELETE CASCADE;
	END IF;
END $$;`
		if err := tx.Exec(fk).Error; err != nil {
			return fmt.Errorf("foreign key migration failed: %w", err)
		}

		// --- Basic CHECK constraints (idempotent) ---
		checks := []string{
			// Saved status codes stay inside the valid HTTP range
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'idempotency'::regclass
					  AND conname  = 'chk_idempotency_status_range'
				) THEN
					ALTER TABLE idempotency
					ADD CONSTRAINT chk_idempotency_status_range
					CHECK (response_status_code IS NULL OR (response_status_code >= 100 AND response_status_code <= 599));
				END IF;
			END $$;`,
			// Subscriber status is a two-state machine
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'subscribers'::regclass
					  AND conname  = 'chk_subscribers_status'
				) THEN
					ALTER TABLE subscribers
					ADD CONSTRAINT chk_subscribers_status
					CHECK (status IN ('pending_confirmation', 'confirmed'));
				END IF;
			END $$;`,
		}
		for _, stmt := range checks {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed: %w", err)
			}
		}

		return nil
	})
}
