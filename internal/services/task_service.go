package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/yukikurage/todo-api/internal/constants"
	"github.com/yukikurage/todo-api/internal/models"
	"github.com/yukikurage/todo-api/internal/repository"
	"github.com/yukikurage/todo-api/internal/utils"
	"gorm.io/gorm"
)

// StatsCache stores derived values as JSON. Implemented by *cache.Cache.
// A value computed after Claim is written by SetClaimed only if no
// DeletePattern covering the key ran in between.
type StatsCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Claim(ctx context.Context, key string) (string, error)
	SetClaimed(ctx context.Context, key, token string, value any) (bool, error)
	DeletePattern(ctx context.Context, pattern string) error
}

// TaskSuggester turns free text into task suggestions. Implemented by *AIService.
type TaskSuggester interface {
	GenerateTasksFromText(ctx context.Context, text string, today models.Date) ([]GeneratedTask, error)
}

// TaskService handles task business logic. Every operation is scoped to the
// calling owner; tasks of other owners behave as if they did not exist.
type TaskService struct {
	taskRepo  repository.TaskRepository
	cache     StatsCache
	suggester TaskSuggester
	now       func() time.Time
}

// NewTaskService creates a new TaskService. cache and suggester may be nil;
// a nil clock means time.Now.
func NewTaskService(taskRepo repository.TaskRepository, cache StatsCache, suggester TaskSuggester, now func() time.Time) *TaskService {
	if now == nil {
		now = time.Now
	}
	return &TaskService{
		taskRepo:  taskRepo,
		cache:     cache,
		suggester: suggester,
		now:       now,
	}
}

const (
	DueFilterToday    = "today"
	DueFilterUpcoming = "upcoming"
	DueFilterOverdue  = "overdue"
)

// ListTasksInput holds the raw query filters. Empty or unrecognised values are not applied.
type ListTasksInput struct {
	OwnerID    uint64
	Status     string
	Priority   string
	DueDate    string
	Search     string
	Pagination utils.PaginationParams
}

// CreateTaskInput represents input for creating or fully replacing a task.
// Zero Status and Priority select the defaults.
type CreateTaskInput struct {
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.TaskPriority
	DueDate     models.Date
	Order       int
}

// UpdateTaskInput represents a partial update; nil fields are left unchanged.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Status      *models.TaskStatus
	Priority    *models.TaskPriority
	DueDate     *models.Date
	Order       *int
}

func (s *TaskService) today() models.Date {
	return models.DateOf(s.now())
}

// ListTasks returns the owner's tasks matching the filters and the total before pagination.
func (s *TaskService) ListTasks(ctx context.Context, input ListTasksInput) ([]models.Task, int64, error) {
	pagination := input.Pagination
	filter := repository.TaskFilter{
		OwnerID:    input.OwnerID,
		Search:     strings.TrimSpace(input.Search),
		Pagination: &pagination,
	}

	if status := models.TaskStatus(input.Status); status.Valid() {
		filter.Status = &status
	}
	if priority := models.TaskPriority(input.Priority); priority.Valid() {
		filter.Priority = &priority
	}

	today := s.today()
	switch input.DueDate {
	case DueFilterToday:
		filter.DueOn = &today
	case DueFilterUpcoming:
		end := today.AddDays(constants.UpcomingWindowDays)
		filter.DueFrom = &today
		filter.DueTo = &end
	case DueFilterOverdue:
		filter.OverdueAsOf = &today
	}

	tasks, total, err := s.taskRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}

	return tasks, total, nil
}

// GetTask returns one of the owner's tasks.
func (s *TaskService) GetTask(ctx context.Context, ownerID, taskID uint64) (*models.Task, error) {
	task, err := s.taskRepo.FindForOwner(ctx, ownerID, taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return task, nil
}

// CreateTask validates input and stores a new task owned by ownerID.
func (s *TaskService) CreateTask(ctx context.Context, ownerID uint64, input CreateTaskInput) (*models.Task, error) {
	input = withDefaults(input)
	if err := s.validateTask(input); err != nil {
		return nil, err
	}

	task := &models.Task{
		OwnerID:     ownerID,
		Title:       strings.TrimSpace(input.Title),
		Description: input.Description,
		Status:      input.Status,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
		Order:       input.Order,
	}

	if err := s.taskRepo.Create(ctx, task); err != nil {
		// the token outlived its account
		if errors.Is(err, repository.ErrOwnerNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	s.invalidateStats(ctx, ownerID)
	return task, nil
}

// ReplaceTask overwrites every mutable field of an owned task, validated like CreateTask.
func (s *TaskService) ReplaceTask(ctx context.Context, ownerID, taskID uint64, input CreateTaskInput) (*models.Task, error) {
	task, err := s.GetTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}

	input = withDefaults(input)
	if err := s.validateTask(input); err != nil {
		return nil, err
	}

	task.Title = strings.TrimSpace(input.Title)
	task.Description = input.Description
	task.Status = input.Status
	task.Priority = input.Priority
	task.DueDate = input.DueDate
	task.Order = input.Order

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.invalidateStats(ctx, ownerID)
	return task, nil
}

// UpdateTask applies the provided fields to an owned task. The due date is
// only checked against today when it is part of the update.
func (s *TaskService) UpdateTask(ctx context.Context, ownerID, taskID uint64, input UpdateTaskInput) (*models.Task, error) {
	task, err := s.GetTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}

	verr := &ValidationError{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		validateTitle(verr, title)
		task.Title = title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			verr.Add("status", msgBadChoice)
		}
		task.Status = *input.Status
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			verr.Add("priority", msgBadChoice)
		}
		task.Priority = *input.Priority
	}
	if input.DueDate != nil {
		s.validateDueDate(verr, *input.DueDate)
		task.DueDate = *input.DueDate
	}
	if input.Order != nil {
		task.Order = *input.Order
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	if err := s.taskRepo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	s.invalidateStats(ctx, ownerID)
	return task, nil
}

// DeleteTask permanently removes an owned task.
func (s *TaskService) DeleteTask(ctx context.Context, ownerID, taskID uint64) error {
	if err := s.taskRepo.Delete(ctx, ownerID, taskID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTaskNotFound
		}
		return fmt.Errorf("failed to delete task: %w", err)
	}

	s.invalidateStats(ctx, ownerID)
	return nil
}

// ReorderResult is the per-item result of ReorderTasks.
type ReorderResult string

const (
	ReorderApplied  ReorderResult = "applied"
	ReorderNotFound ReorderResult = "not_found"
	ReorderInvalid  ReorderResult = "invalid"
)

// ReorderItem asks for task ID to be given a new order. Either field may be missing.
type ReorderItem struct {
	ID    *uint64 `json:"id"`
	Order *int    `json:"order"`
}

// ReorderItemResult reports what happened to one ReorderItem.
type ReorderItemResult struct {
	ID     *uint64       `json:"id"`
	Order  *int          `json:"order"`
	Result ReorderResult `json:"result"`
}

// ReorderTasks writes the requested order of each owned task, one at a time
// and in request order. Items that are incomplete or name a task the owner
// does not have are skipped. A storage fault stops processing; items already
// applied stay applied.
func (s *TaskService) ReorderTasks(ctx context.Context, ownerID uint64, items []ReorderItem) ([]ReorderItemResult, error) {
	results := make([]ReorderItemResult, 0, len(items))
	applied := 0
	defer func() {
		if applied > 0 {
			s.invalidateStats(ctx, ownerID)
		}
	}()

	for _, item := range items {
		result := ReorderItemResult{ID: item.ID, Order: item.Order}

		if item.ID == nil || item.Order == nil {
			result.Result = ReorderInvalid
			results = append(results, result)
			continue
		}

		if _, err := s.taskRepo.FindForOwner(ctx, ownerID, *item.ID); err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return results, fmt.Errorf("failed to find task %d: %w", *item.ID, err)
			}
			result.Result = ReorderNotFound
			results = append(results, result)
			continue
		}

		if err := s.taskRepo.UpdateOrder(ctx, ownerID, *item.ID, *item.Order); err != nil {
			return results, fmt.Errorf("failed to reorder task %d: %w", *item.ID, err)
		}
		applied++
		result.Result = ReorderApplied
		results = append(results, result)
	}

	return results, nil
}

// GenerateTasksInput represents input for AI task generation
type GenerateTasksInput struct {
	Text    string
	OwnerID uint64
}

// GenerateTasks asks the suggester for tasks found in text. Nothing is stored.
// Suggestions without a title are dropped, past due dates are cleared and
// unknown priorities fall back to medium.
func (s *TaskService) GenerateTasks(ctx context.Context, input GenerateTasksInput) ([]GeneratedTask, error) {
	if s.suggester == nil {
		return nil, ErrAIServiceNotConfigured
	}

	today := s.today()
	aiTasks, err := s.suggester.GenerateTasksFromText(ctx, input.Text, today)
	if err != nil {
		return nil, fmt.Errorf("failed to generate tasks: %w", err)
	}

	if len(aiTasks) == 0 {
		return nil, ErrAINoTasksGenerated
	}
	if len(aiTasks) > constants.MaxAIGeneratedTasks {
		return nil, fmt.Errorf("%w (max %d)", ErrAITooManyTasks, constants.MaxAIGeneratedTasks)
	}

	validTasks := make([]GeneratedTask, 0, len(aiTasks))
	for _, aiTask := range aiTasks {
		aiTask.Title = strings.TrimSpace(aiTask.Title)
		if aiTask.Title == "" {
			continue
		}
		if utf8.RuneCountInString(aiTask.Title) > constants.MaxTitleLength {
			aiTask.Title = string([]rune(aiTask.Title)[:constants.MaxTitleLength])
		}
		if aiTask.DueDate != nil && aiTask.DueDate.Before(today) {
			aiTask.DueDate = nil
		}
		if !aiTask.Priority.Valid() {
			aiTask.Priority = models.TaskPriorityMedium
		}

		validTasks = append(validTasks, aiTask)
	}

	if len(validTasks) == 0 {
		return nil, ErrAINoValidTasks
	}

	return validTasks, nil
}

func withDefaults(input CreateTaskInput) CreateTaskInput {
	if input.Status == "" {
		input.Status = models.TaskStatusPending
	}
	if input.Priority == "" {
		input.Priority = models.TaskPriorityMedium
	}
	return input
}

func (s *TaskService) validateTask(input CreateTaskInput) error {
	verr := &ValidationError{}
	validateTitle(verr, strings.TrimSpace(input.Title))
	if !input.Status.Valid() {
		verr.Add("status", msgBadChoice)
	}
	if !input.Priority.Valid() {
		verr.Add("priority", msgBadChoice)
	}
	if input.DueDate.IsZero() {
		verr.Add("due_date", msgRequired)
	} else {
		s.validateDueDate(verr, input.DueDate)
	}
	return verr.Err()
}

func validateTitle(verr *ValidationError, title string) {
	switch {
	case title == "":
		verr.Add("title", msgBlank)
	case utf8.RuneCountInString(title) > constants.MaxTitleLength:
		verr.Add("title", msgTooLong)
	}
}

func (s *TaskService) validateDueDate(verr *ValidationError, due models.Date) {
	if due.Before(s.today()) {
		verr.Add("due_date", msgPastDue)
	}
}

func (s *TaskService) invalidateStats(ctx context.Context, ownerID uint64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeletePattern(ctx, statsCachePattern(ownerID)); err != nil {
		slog.WarnContext(ctx, "failed to invalidate stats cache", "owner_id", ownerID, "error", err)
	}
}
