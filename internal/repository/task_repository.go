package repository

import (
	"context"
	"errors"

	"github.com/yukikurage/todo-api/internal/database"
	"github.com/yukikurage/todo-api/internal/models"
	"gorm.io/gorm"
)

// GormTaskRepository is a GORM implementation of TaskRepository
type GormTaskRepository struct {
	db *gorm.DB
}

// NewTaskRepository creates a new TaskRepository
func NewTaskRepository(db *gorm.DB) TaskRepository {
	return &GormTaskRepository{db: db}
}

// Create loads the owner and inserts the task in one transaction.
// A missing owner yields ErrOwnerNotFound and nothing is written.
func (r *GormTaskRepository) Create(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&task.Owner, task.OwnerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOwnerNotFound
			}
			return err
		}

		// the foreign key catches an owner deleted after the lookup
		if err := tx.Omit("Owner").Create(task).Error; err != nil {
			if errors.Is(err, gorm.ErrForeignKeyViolated) {
				return ErrOwnerNotFound
			}
			return err
		}
		return nil
	})
}

// FindForOwner finds a task by ID among the owner's tasks
func (r *GormTaskRepository) FindForOwner(ctx context.Context, ownerID, id uint64) (*models.Task, error) {
	var task models.Task
	if err := r.db.WithContext(ctx).
		Preload("Owner").
		Scopes(database.OwnedBy(ownerID)).
		Where("tasks.id = ?", id).
		First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// List retrieves tasks matching the filter in the default order
func (r *GormTaskRepository) List(ctx context.Context, filter TaskFilter) ([]models.Task, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Task{}).Scopes(filter.Scopes()...)

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	listQuery := query.Session(&gorm.Session{}).Scopes(database.DefaultOrder)
	if filter.Pagination != nil {
		listQuery = listQuery.Scopes(database.Paginate(*filter.Pagination))
	}

	tasks := []models.Task{}
	if err := listQuery.Preload("Owner").Find(&tasks).Error; err != nil {
		return nil, 0, err
	}

	return tasks, total, nil
}

// Update saves every column of a task
func (r *GormTaskRepository) Update(ctx context.Context, task *models.Task) error {
	return r.db.WithContext(ctx).Omit("Owner").Save(task).Error
}

// UpdateOrder writes only the order column so that a concurrent edit of
// other fields is not overwritten
func (r *GormTaskRepository) UpdateOrder(ctx context.Context, ownerID, id uint64, order int) error {
	result := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Scopes(database.OwnedBy(ownerID)).
		Where("tasks.id = ?", id).
		Update("sort_order", order)
	return result.Error
}

// Delete permanently removes an owned task
func (r *GormTaskRepository) Delete(ctx context.Context, ownerID, id uint64) error {
	result := r.db.WithContext(ctx).
		Scopes(database.OwnedBy(ownerID)).
		Where("tasks.id = ?", id).
		Delete(&models.Task{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountByStatus counts the owner's tasks per status
func (r *GormTaskRepository) CountByStatus(ctx context.Context, ownerID uint64) (map[models.TaskStatus]int64, error) {
	var rows []struct {
		Status models.TaskStatus
		Count  int64
	}

	if err := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Select("tasks.status AS status, COUNT(*) AS count").
		Scopes(database.OwnedBy(ownerID)).
		Group("tasks.status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[models.TaskStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// CountOverdue counts the owner's open tasks due before today
func (r *GormTaskRepository) CountOverdue(ctx context.Context, ownerID uint64, today models.Date) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Task{}).
		Scopes(database.OwnedBy(ownerID), database.Overdue(today)).
		Count(&count).Error
	return count, err
}
