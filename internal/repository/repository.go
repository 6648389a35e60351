package repository

import (
	"context"
	"errors"

	"github.com/yukikurage/todo-api/internal/database"
	"github.com/yukikurage/todo-api/internal/models"
	"github.com/yukikurage/todo-api/internal/utils"
)

// ErrDuplicateUsername is returned when the username unique index rejects an insert.
var ErrDuplicateUsername = errors.New("user repository: username already exists")

// ErrOwnerNotFound is returned when a task is created for a user that does not exist.
var ErrOwnerNotFound = errors.New("task repository: owner does not exist")

// TaskRepository defines the interface for task data access.
// Every method that reads or writes a single task is scoped to its owner;
// a task owned by someone else is reported as gorm.ErrRecordNotFound.
type TaskRepository interface {
	// Create inserts a new task, or returns ErrOwnerNotFound
	Create(ctx context.Context, task *models.Task) error

	// FindForOwner finds a task by ID among the owner's tasks
	FindForOwner(ctx context.Context, ownerID, id uint64) (*models.Task, error)

	// List retrieves tasks matching the filter and the total before pagination
	List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error)

	// Update saves every column of a task
	Update(ctx context.Context, task *models.Task) error

	// UpdateOrder writes only the order of an owned task
	UpdateOrder(ctx context.Context, ownerID, id uint64, order int) error

	// Delete permanently removes an owned task
	Delete(ctx context.Context, ownerID, id uint64) error

	// CountByStatus counts the owner's tasks per status
	CountByStatus(ctx context.Context, ownerID uint64) (map[models.TaskStatus]int64, error)

	// CountOverdue counts the owner's open tasks due before today
	CountOverdue(ctx context.Context, ownerID uint64, today models.Date) (int64, error)
}

// TaskFilter holds filtering options for listing tasks.
// Nil and empty fields are not applied.
type TaskFilter struct {
	OwnerID     uint64
	Status      *models.TaskStatus
	Priority    *models.TaskPriority
	DueOn       *models.Date
	DueFrom     *models.Date
	DueTo       *models.Date
	OverdueAsOf *models.Date
	Search      string
	Pagination  *utils.PaginationParams
}

// Scopes returns the predicates of the filter, owner first. Pagination and
// ordering are not included.
func (f TaskFilter) Scopes() []database.Scope {
	scopes := []database.Scope{database.OwnedBy(f.OwnerID)}

	if f.Status != nil {
		scopes = append(scopes, database.WithStatus(*f.Status))
	}
	if f.Priority != nil {
		scopes = append(scopes, database.WithPriority(*f.Priority))
	}
	if f.DueOn != nil {
		scopes = append(scopes, database.DueOn(*f.DueOn))
	}
	if f.DueFrom != nil && f.DueTo != nil {
		scopes = append(scopes, database.DueBetween(*f.DueFrom, *f.DueTo))
	}
	if f.OverdueAsOf != nil {
		scopes = append(scopes, database.Overdue(*f.OverdueAsOf))
	}
	if f.Search != "" {
		scopes = append(scopes, database.Search(f.Search))
	}

	return scopes
}

// UserRepository defines the interface for user data access
type UserRepository interface {
	// Create creates a new user, returning ErrDuplicateUsername on a taken username
	Create(ctx context.Context, user *models.User) error

	// FindByID finds a user by ID
	FindByID(ctx context.Context, id uint64) (*models.User, error)

	// FindByUsername finds a user by username
	FindByUsername(ctx context.Context, username string) (*models.User, error)

	// DeleteWithTasks deletes a user and every task they own in one transaction
	DeleteWithTasks(ctx context.Context, id uint64) error
}
