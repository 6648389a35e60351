package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/todo-api/internal/dto"
	apierrors "github.com/yukikurage/todo-api/internal/errors"
	"github.com/yukikurage/todo-api/internal/middleware"
	"github.com/yukikurage/todo-api/internal/models"
	"github.com/yukikurage/todo-api/internal/services"
	"github.com/yukikurage/todo-api/internal/utils"
	"github.com/yukikurage/todo-api/internal/validation"
)

const msgBadDate = "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."

type TaskHandler struct {
	taskService  *services.TaskService
	statsService *services.StatsService
}

func NewTaskHandler(taskService *services.TaskService, statsService *services.StatsService) *TaskHandler {
	return &TaskHandler{
		taskService:  taskService,
		statsService: statsService,
	}
}

type createTaskRequest struct {
	Title       string              `json:"title" binding:"required,max=255"`
	Description string              `json:"description"`
	Status      models.TaskStatus   `json:"status" binding:"omitempty,oneof=pending in_progress completed"`
	Priority    models.TaskPriority `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     *string             `json:"due_date" binding:"required"`
	Order       int                 `json:"order"`
}

// Fields that are not listed (id, owner, created_at, updated_at) are ignored.
type updateTaskRequest struct {
	Title       *string              `json:"title" binding:"omitempty,max=255"`
	Description *string              `json:"description"`
	Status      *models.TaskStatus   `json:"status" binding:"omitempty,oneof=pending in_progress completed"`
	Priority    *models.TaskPriority `json:"priority" binding:"omitempty,oneof=low medium high"`
	DueDate     *string              `json:"due_date"`
	Order       *int                 `json:"order"`
}

func (r createTaskRequest) toInput() (services.CreateTaskInput, error) {
	input := services.CreateTaskInput{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
		Order:       r.Order,
	}
	due, err := models.ParseDateOrTimestamp(*r.DueDate)
	if err != nil {
		return input, services.NewValidationError("due_date", msgBadDate)
	}
	input.DueDate = due
	return input, nil
}

func (r updateTaskRequest) toInput() (services.UpdateTaskInput, error) {
	input := services.UpdateTaskInput{
		Title:       r.Title,
		Description: r.Description,
		Status:      r.Status,
		Priority:    r.Priority,
		Order:       r.Order,
	}
	if r.DueDate != nil {
		due, err := models.ParseDateOrTimestamp(*r.DueDate)
		if err != nil {
			return input, services.NewValidationError("due_date", msgBadDate)
		}
		input.DueDate = &due
	}
	return input, nil
}

// ListTasks returns the current user's tasks, filtered and paginated
func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	tasks, total, err := h.taskService.ListTasks(c.Request.Context(), services.ListTasksInput{
		OwnerID:    userID,
		Status:     c.Query("status"),
		Priority:   c.Query("priority"),
		DueDate:    c.Query("due_date"),
		Search:     c.Query("search"),
		Pagination: params,
	})
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(tasks, params, total))
}

// GetTask returns a specific task by ID
// Task is already loaded by RequireTaskAccess middleware
func (h *TaskHandler) GetTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*task))
}

// CreateTask creates a new task owned by the current user
func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondTaskError(c, err)
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), userID, input)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.ToTaskDTO(*task))
}

// UpdateTask changes only the fields present in the body
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondTaskError(c, err)
		return
	}

	updated, err := h.taskService.UpdateTask(c.Request.Context(), task.OwnerID, task.ID, input)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*updated))
}

// ReplaceTask overwrites every mutable field of a task
func (h *TaskHandler) ReplaceTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondTaskError(c, err)
		return
	}

	replaced, err := h.taskService.ReplaceTask(c.Request.Context(), task.OwnerID, task.ID, input)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskDTO(*replaced))
}

// DeleteTask deletes a task
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	task, ok := middleware.GetTask(c)
	if !ok {
		apierrors.InternalError(c, "Task not found in context")
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), task.OwnerID, task.ID); err != nil {
		respondTaskError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ReorderTasks applies a new order to several tasks at once
func (h *TaskHandler) ReorderTasks(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	type ReorderRequest struct {
		TaskOrders []services.ReorderItem `json:"task_orders"`
	}

	var req ReorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	results, err := h.taskService.ReorderTasks(c.Request.Context(), userID, req.TaskOrders)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToReorderResponse(results))
}

// GetStats returns aggregate statistics of the current user's tasks
func (h *TaskHandler) GetStats(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	stats, err := h.statsService.TaskStats(c.Request.Context(), userID)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GenerateTasks generates task suggestions from text using AI
func (h *TaskHandler) GenerateTasks(c *gin.Context) {
	userID, exists := middleware.GetUserID(c)
	if !exists {
		apierrors.Unauthorized(c, "")
		return
	}

	type GenerateTasksRequest struct {
		Text string `json:"text" binding:"required"`
	}

	var req GenerateTasksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	tasks, err := h.taskService.GenerateTasks(c.Request.Context(), services.GenerateTasksInput{
		Text:    req.Text,
		OwnerID: userID,
	})
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.GeneratedTasksResponse{Tasks: tasks})
}

func respondBindError(c *gin.Context, err error) {
	if fields, ok := validation.FieldErrors(err); ok {
		apierrors.ValidationFailed(c, fields)
		return
	}
	apierrors.BadRequest(c, "Invalid request body")
}

func respondTaskError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		apierrors.ValidationFailed(c, verr.Fields)
	case errors.Is(err, services.ErrTaskNotFound):
		apierrors.NotFound(c, "Task not found")
	case errors.Is(err, services.ErrUserNotFound):
		apierrors.Unauthorized(c, "Account no longer exists")
	case errors.Is(err, services.ErrAIServiceNotConfigured):
		apierrors.ServiceUnavailable(c, "AI service is not configured. Please set OPENAI_API_KEY environment variable.")
	case errors.Is(err, services.ErrAINoTasksGenerated),
		errors.Is(err, services.ErrAINoValidTasks):
		apierrors.RespondWithError(c, http.StatusUnprocessableEntity, apierrors.NewAPIError(apierrors.ErrCodeInvalidInput, err.Error()))
	case errors.Is(err, services.ErrAITooManyTasks):
		apierrors.RespondWithError(c, http.StatusBadGateway, apierrors.NewAPIError(apierrors.ErrCodeInternalError, err.Error()))
	default:
		slog.ErrorContext(c.Request.Context(), "task request failed", "path", c.FullPath(), "error", err)
		_ = c.Error(err)
		apierrors.InternalError(c, "")
	}
}
