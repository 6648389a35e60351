package services

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/yukikurage/todo-api/internal/models"
	"github.com/yukikurage/todo-api/internal/repository"
)

// TaskStats summarises an owner's tasks.
type TaskStats struct {
	TotalTasks      int64   `json:"total_tasks"`
	CompletedTasks  int64   `json:"completed_tasks"`
	PendingTasks    int64   `json:"pending_tasks"`
	InProgressTasks int64   `json:"in_progress_tasks"`
	OverdueTasks    int64   `json:"overdue_tasks"`
	CompletionRate  float64 `json:"completion_rate"`
}

// StatsService computes task statistics, optionally through a cache.
type StatsService struct {
	taskRepo repository.TaskRepository
	cache    StatsCache
	now      func() time.Time
}

// NewStatsService creates a new StatsService. cache may be nil; a nil clock means time.Now.
func NewStatsService(taskRepo repository.TaskRepository, cache StatsCache, now func() time.Time) *StatsService {
	if now == nil {
		now = time.Now
	}
	return &StatsService{
		taskRepo: taskRepo,
		cache:    cache,
		now:      now,
	}
}

// statsCacheKey partitions cached stats by day because the overdue count changes at midnight.
func statsCacheKey(ownerID uint64, day models.Date) string {
	return fmt.Sprintf("stats:%d:%s", ownerID, day)
}

func statsCachePattern(ownerID uint64) string {
	return fmt.Sprintf("stats:%d:*", ownerID)
}

// TaskStats returns the statistics of the owner's tasks as of today.
func (s *StatsService) TaskStats(ctx context.Context, ownerID uint64) (*TaskStats, error) {
	today := models.DateOf(s.now())
	key := statsCacheKey(ownerID, today)

	var token string
	if s.cache != nil {
		var cached TaskStats
		found, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			slog.WarnContext(ctx, "failed to read stats cache", "key", key, "error", err)
		} else if found {
			return &cached, nil
		}

		if token, err = s.cache.Claim(ctx, key); err != nil {
			slog.WarnContext(ctx, "failed to claim stats cache", "key", key, "error", err)
		}
	}

	counts, err := s.taskRepo.CountByStatus(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	overdue, err := s.taskRepo.CountOverdue(ctx, ownerID, today)
	if err != nil {
		return nil, fmt.Errorf("failed to count overdue tasks: %w", err)
	}

	stats := &TaskStats{
		CompletedTasks:  counts[models.TaskStatusCompleted],
		PendingTasks:    counts[models.TaskStatusPending],
		InProgressTasks: counts[models.TaskStatusInProgress],
		OverdueTasks:    overdue,
	}
	for _, n := range counts {
		stats.TotalTasks += n
	}
	stats.CompletionRate = CompletionRate(stats.CompletedTasks, stats.TotalTasks)

	if token != "" {
		stored, err := s.cache.SetClaimed(ctx, key, token, stats)
		switch {
		case err != nil:
			slog.WarnContext(ctx, "failed to write stats cache", "key", key, "error", err)
		case !stored:
			// tasks changed while counting
			slog.DebugContext(ctx, "stats cache fill skipped", "key", key)
		}
	}

	return stats, nil
}

// CompletionRate is completed/total as a percentage rounded to two decimals, 0 for no tasks.
func CompletionRate(completed, total int64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*100*100) / 100
}
