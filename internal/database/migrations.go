package database

import (
	"fmt"
	"log/slog"

	"github.com/yukikurage/todo-api/internal/models"
	"gorm.io/gorm"
)

// EnsureIndexes creates the indexes declared on the models that AutoMigrate
// may have skipped on an existing table.
func EnsureIndexes(db *gorm.DB) error {
	indexes := []struct {
		model interface{}
		name  string
	}{
		// Listing is always owner scoped and ordered by sort_order
		{&models.Task{}, "idx_tasks_owner_order"},
		{&models.Task{}, "idx_tasks_status"},
		{&models.Task{}, "idx_tasks_due_date"},

		{&models.User{}, "idx_users_username"},
	}

	migrator := db.Migrator()
	for _, idx := range indexes {
		if migrator.HasIndex(idx.model, idx.name) {
			continue
		}

		if err := migrator.CreateIndex(idx.model, idx.name); err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}

		slog.Info("created index", "index", idx.name)
	}

	return nil
}
