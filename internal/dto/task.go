package dto

import (
	"time"

	"github.com/yukikurage/todo-api/internal/models"
	"github.com/yukikurage/todo-api/internal/services"
	"github.com/yukikurage/todo-api/internal/utils"
)

// AccountDTO represents an account in API responses
type AccountDTO struct {
	ID        uint64 `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// TaskDTO represents a task in API responses. Owner is the owner's username.
type TaskDTO struct {
	ID          uint64              `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      models.TaskStatus   `json:"status"`
	Priority    models.TaskPriority `json:"priority"`
	DueDate     models.Date         `json:"due_date"`
	Order       int                 `json:"order"`
	Owner       string              `json:"owner"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

// TaskListResponse represents a paginated list of tasks
type TaskListResponse struct {
	Tasks      []TaskDTO                `json:"tasks"`
	Pagination utils.PaginationResponse `json:"pagination"`
}

// ReorderResponse reports the result of a reorder request. Status is always
// "success"; Outcome is "partial" when any item was skipped.
type ReorderResponse struct {
	Status  string                       `json:"status"`
	Outcome string                       `json:"outcome"`
	Results []services.ReorderItemResult `json:"results"`
}

// GeneratedTasksResponse wraps AI task suggestions
type GeneratedTasksResponse struct {
	Tasks []services.GeneratedTask `json:"tasks"`
}

// Conversion functions

// ToAccountDTO converts a User model to AccountDTO
func ToAccountDTO(user models.User) AccountDTO {
	return AccountDTO{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}
}

// ToTaskDTO converts a Task model to TaskDTO
func ToTaskDTO(task models.Task) TaskDTO {
	return TaskDTO{
		ID:          task.ID,
		Title:       task.Title,
		Description: task.Description,
		Status:      task.Status,
		Priority:    task.Priority,
		DueDate:     task.DueDate,
		Order:       task.Order,
		Owner:       task.Owner.Username,
		CreatedAt:   task.CreatedAt,
		UpdatedAt:   task.UpdatedAt,
	}
}

// ToTaskListResponse converts a page of tasks to TaskListResponse
func ToTaskListResponse(tasks []models.Task, pagination utils.PaginationParams, total int64) TaskListResponse {
	items := make([]TaskDTO, len(tasks))
	for i, task := range tasks {
		items[i] = ToTaskDTO(task)
	}

	return TaskListResponse{
		Tasks:      items,
		Pagination: pagination.Response(total),
	}
}

// ToReorderResponse summarises per-item reorder results
func ToReorderResponse(results []services.ReorderItemResult) ReorderResponse {
	outcome := string(services.ReorderApplied)
	for _, r := range results {
		if r.Result != services.ReorderApplied {
			outcome = "partial"
			break
		}
	}
	if results == nil {
		results = []services.ReorderItemResult{}
	}

	return ReorderResponse{
		Status:  "success",
		Outcome: outcome,
		Results: results,
	}
}
