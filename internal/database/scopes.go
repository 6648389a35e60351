package database

import (
	"strings"

	"gorm.io/gorm"

	"github.com/yukikurage/todo-api/internal/models"
	"github.com/yukikurage/todo-api/internal/utils"
)

// Scope is a composable query predicate.
type Scope = func(db *gorm.DB) *gorm.DB

// Paginate applies pagination to a GORM query
func Paginate(params utils.PaginationParams) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset(params.Offset).Limit(params.Limit)
	}
}

// OwnedBy restricts tasks to a single owner.
func OwnedBy(ownerID uint64) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tasks.owner_id = ?", ownerID)
	}
}

func WithStatus(status models.TaskStatus) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tasks.status = ?", status)
	}
}

func WithPriority(priority models.TaskPriority) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tasks.priority = ?", priority)
	}
}

func DueOn(day models.Date) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tasks.due_date = ?", day)
	}
}

// DueBetween matches due dates in [from, to], both ends inclusive.
func DueBetween(from, to models.Date) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tasks.due_date >= ? AND tasks.due_date <= ?", from, to)
	}
}

// Overdue matches open tasks whose due date is before today.
func Overdue(today models.Date) Scope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("tasks.due_date < ? AND tasks.status IN ?", today, models.OpenTaskStatuses)
	}
}

// Search matches term as a case-insensitive substring of the title or the description.
func Search(term string) Scope {
	pattern := "%" + escapeLike(strings.ToLower(term)) + "%"
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("(LOWER(tasks.title) LIKE ? ESCAPE '!' OR LOWER(tasks.description) LIKE ? ESCAPE '!')", pattern, pattern)
	}
}

// DefaultOrder sorts by order ascending, newest first among equal orders.
func DefaultOrder(db *gorm.DB) *gorm.DB {
	return db.Order("tasks.sort_order ASC").Order("tasks.created_at DESC").Order("tasks.id DESC")
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}
