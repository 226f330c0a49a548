package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/huddle-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(domain.Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// EnsureAssistantIndexes adds postgres-only partial indexes used by the
// rate limiter and the history loader.
func EnsureAssistantIndexes(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_chat_message_ai_requested_by
		ON chat_message(requested_by, created_at)
		WHERE is_ai = true AND deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_chat_message_ai_requested_by: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_chat_message_thread_created
		ON chat_message(thread_root_id, created_at)
		WHERE thread_root_id IS NOT NULL AND deleted_at IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_chat_message_thread_created: %w", err)
	}
	return nil
}
