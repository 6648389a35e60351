// Package testutil holds fixtures shared by the package tests.
package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yukikurage/todo-api/internal/database"
	"github.com/yukikurage/todo-api/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a migrated in-memory SQLite database that is closed when the test ends.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(database.SQLiteDSN(":memory:")), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// every new connection would see its own empty in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateUser inserts a user with a placeholder password hash.
func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "hashedpassword",
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// TaskOption customizes a task created by CreateTask.
type TaskOption func(*models.Task)

func WithStatus(status models.TaskStatus) TaskOption {
	return func(task *models.Task) { task.Status = status }
}

func WithPriority(priority models.TaskPriority) TaskOption {
	return func(task *models.Task) { task.Priority = priority }
}

func WithDueDate(due models.Date) TaskOption {
	return func(task *models.Task) { task.DueDate = due }
}

func WithDescription(description string) TaskOption {
	return func(task *models.Task) { task.Description = description }
}

func WithOrder(order int) TaskOption {
	return func(task *models.Task) { task.Order = order }
}

func WithCreatedAt(createdAt time.Time) TaskOption {
	return func(task *models.Task) {
		task.CreatedAt = createdAt
		task.UpdatedAt = createdAt
	}
}

// CreateTask inserts a pending, medium priority task due tomorrow unless options say otherwise.
func CreateTask(t *testing.T, db *gorm.DB, owner *models.User, title string, opts ...TaskOption) *models.Task {
	t.Helper()

	task := &models.Task{
		OwnerID:  owner.ID,
		Title:    title,
		Status:   models.TaskStatusPending,
		Priority: models.TaskPriorityMedium,
		DueDate:  models.DateOf(time.Now()).AddDays(1),
	}
	for _, opt := range opts {
		opt(task)
	}

	require.NoError(t, db.Omit("Owner").Create(task).Error)
	return task
}
