package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/yukikurage/todo-api/internal/models"
	"github.com/yukikurage/todo-api/internal/repository"
	"github.com/yukikurage/todo-api/internal/testutil"
	"github.com/yukikurage/todo-api/internal/utils"
	"gorm.io/gorm"
)

type TaskServiceTestSuite struct {
	suite.Suite
	db      *gorm.DB
	cache   *memoryCache
	service *TaskService
	ctx     context.Context
	alice   *models.User
	bob     *models.User
}

func (s *TaskServiceTestSuite) SetupTest() {
	s.db = testutil.NewTestDB(s.T())
	s.cache = newMemoryCache()
	s.service = NewTaskService(repository.NewTaskRepository(s.db), s.cache, nil, fixedClock)
	s.ctx = context.Background()
	s.alice = testutil.CreateUser(s.T(), s.db, "alice")
	s.bob = testutil.CreateUser(s.T(), s.db, "bob")
}

func (s *TaskServiceTestSuite) list(input ListTasksInput) []models.Task {
	if input.OwnerID == 0 {
		input.OwnerID = s.alice.ID
	}
	if input.Pagination.Limit == 0 {
		input.Pagination = utils.NewPaginationParams("", "")
	}
	tasks, _, err := s.service.ListTasks(s.ctx, input)
	s.Require().NoError(err)
	return tasks
}

func titles(tasks []models.Task) []string {
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.Title
	}
	return out
}

func (s *TaskServiceTestSuite) requireFieldError(err error, field, message string) {
	var verr *ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Contains(verr.Fields[field], message)
}

func (s *TaskServiceTestSuite) TestCreateTask_Defaults() {
	task, err := s.service.CreateTask(s.ctx, s.alice.ID, CreateTaskInput{
		Title:   "  Write report  ",
		DueDate: testToday,
	})
	s.Require().NoError(err)

	s.Equal("Write report", task.Title)
	s.Equal(models.TaskStatusPending, task.Status)
	s.Equal(models.TaskPriorityMedium, task.Priority)
	s.Equal(0, task.Order)
	s.Equal(s.alice.ID, task.OwnerID)
	s.Equal("alice", task.Owner.Username)

	found, err := s.service.GetTask(s.ctx, s.alice.ID, task.ID)
	s.Require().NoError(err)
	s.Equal(task.Title, found.Title)
	s.True(found.DueDate.Equal(testToday))
	s.Equal(models.TaskStatusPending, found.Status)
	s.Equal(models.TaskPriorityMedium, found.Priority)
}

func (s *TaskServiceTestSuite) TestCreateTask_DueDate() {
	_, err := s.service.CreateTask(s.ctx, s.alice.ID, CreateTaskInput{Title: "late", DueDate: testToday.AddDays(-1)})
	s.requireFieldError(err, "due_date", msgPastDue)

	_, err = s.service.CreateTask(s.ctx, s.alice.ID, CreateTaskInput{Title: "today", DueDate: testToday})
	s.NoError(err)

	_, err = s.service.CreateTask(s.ctx, s.alice.ID, CreateTaskInput{Title: "no date"})
	s.requireFieldError(err, "due_date", msgRequired)
}

func (s *TaskServiceTestSuite) TestCreateTask_Validation() {
	_, err := s.service.CreateTask(s.ctx, s.alice.ID, CreateTaskInput{
		Title:    "   ",
		Status:   "done",
		Priority: "urgent",
		DueDate:  testToday,
	})

	var verr *ValidationError
	s.Require().ErrorAs(err, &verr)
	s.Equal([]string{msgBlank}, verr.Fields["title"])
	s.Equal([]string{msgBadChoice}, verr.Fields["status"])
	s.Equal([]string{msgBadChoice}, verr.Fields["priority"])
	s.NotContains(verr.Fields, "due_date")
}

func (s *TaskServiceTestSuite) TestCreateTask_InvalidatesStats() {
	s.Require().NoError(s.cache.Set(s.ctx, statsCacheKey(s.alice.ID, testToday), TaskStats{TotalTasks: 99}))
	s.Require().NoError(s.cache.Set(s.ctx, statsCacheKey(s.bob.ID, testToday), TaskStats{TotalTasks: 5}))

	_, err := s.service.CreateTask(s.ctx, s.alice.ID, CreateTaskInput{Title: "x", DueDate: testToday})
	s.Require().NoError(err)

	s.NotContains(s.cache.data, statsCacheKey(s.alice.ID, testToday))
	s.Contains(s.cache.data, statsCacheKey(s.bob.ID, testToday))
}

func (s *TaskServiceTestSuite) TestCreateTask_CacheFailureIsNotFatal() {
	s.cache.failWith = errCacheDown

	_, err := s.service.CreateTask(s.ctx, s.alice.ID, CreateTaskInput{Title: "x", DueDate: testToday})
	s.NoError(err)
}

func (s *TaskServiceTestSuite) TestCreateTask_DeletedOwner() {
	owner := testutil.CreateUser(s.T(), s.db, "carol")
	s.Require().NoError(repository.NewUserRepository(s.db).DeleteWithTasks(s.ctx, owner.ID))

	_, err := s.service.CreateTask(s.ctx, owner.ID, CreateTaskInput{Title: "ghost", DueDate: testToday})
	s.ErrorIs(err, ErrUserNotFound)

	var count int64
	s.Require().NoError(s.db.Model(&models.Task{}).Count(&count).Error)
	s.Zero(count)
}

func (s *TaskServiceTestSuite) TestListTasks_NoCrossOwnerResults() {
	testutil.CreateTask(s.T(), s.db, s.alice, "mine")
	testutil.CreateTask(s.T(), s.db, s.bob, "theirs")

	tasks := s.list(ListTasksInput{})
	s.Equal([]string{"mine"}, titles(tasks))
	for _, task := range tasks {
		s.Equal(s.alice.ID, task.OwnerID)
	}

	_, err := s.service.GetTask(s.ctx, s.bob.ID, tasks[0].ID)
	s.ErrorIs(err, ErrTaskNotFound)
}

func (s *TaskServiceTestSuite) TestListTasks_DueDateFilters() {
	yesterday := testToday.AddDays(-1)
	testutil.CreateTask(s.T(), s.db, s.alice, "today", testutil.WithDueDate(testToday))
	testutil.CreateTask(s.T(), s.db, s.alice, "week", testutil.WithDueDate(testToday.AddDays(7)))
	testutil.CreateTask(s.T(), s.db, s.alice, "later", testutil.WithDueDate(testToday.AddDays(8)))
	testutil.CreateTask(s.T(), s.db, s.alice, "late pending", testutil.WithDueDate(yesterday))
	testutil.CreateTask(s.T(), s.db, s.alice, "late started", testutil.WithDueDate(yesterday), testutil.WithStatus(models.TaskStatusInProgress))
	testutil.CreateTask(s.T(), s.db, s.alice, "late done", testutil.WithDueDate(yesterday), testutil.WithStatus(models.TaskStatusCompleted))

	s.ElementsMatch([]string{"today"}, titles(s.list(ListTasksInput{DueDate: DueFilterToday})))
	s.ElementsMatch([]string{"today", "week"}, titles(s.list(ListTasksInput{DueDate: DueFilterUpcoming})))

	overdue := s.list(ListTasksInput{DueDate: DueFilterOverdue})
	s.ElementsMatch([]string{"late pending", "late started"}, titles(overdue))
	for _, task := range overdue {
		s.True(task.DueDate.Before(testToday))
		s.NotEqual(models.TaskStatusCompleted, task.Status)
	}

	s.Len(s.list(ListTasksInput{DueDate: "someday"}), 6)
}

func (s *TaskServiceTestSuite) TestListTasks_UnknownFiltersIgnored() {
	testutil.CreateTask(s.T(), s.db, s.alice, "a", testutil.WithPriority(models.TaskPriorityHigh))
	testutil.CreateTask(s.T(), s.db, s.alice, "b", testutil.WithStatus(models.TaskStatusCompleted))

	s.Len(s.list(ListTasksInput{Status: "archived", Priority: "urgent", Search: "   "}), 2)
	s.Equal([]string{"a"}, titles(s.list(ListTasksInput{Priority: "high"})))
	s.Equal([]string{"b"}, titles(s.list(ListTasksInput{Status: "completed"})))
}

func (s *TaskServiceTestSuite) TestListTasks_SearchMatchesDescriptionOnly() {
	testutil.CreateTask(s.T(), s.db, s.alice, "Groceries", testutil.WithDescription("Pick up the Quarterly invoice"))
	testutil.CreateTask(s.T(), s.db, s.alice, "Other")

	s.Equal([]string{"Groceries"}, titles(s.list(ListTasksInput{Search: "quarterly"})))
}

func (s *TaskServiceTestSuite) TestListTasks_EqualOrderNewestFirst() {
	base := time.Date(2026, time.October, 1, 8, 0, 0, 0, time.UTC)
	testutil.CreateTask(s.T(), s.db, s.alice, "older", testutil.WithCreatedAt(base))
	testutil.CreateTask(s.T(), s.db, s.alice, "newer", testutil.WithCreatedAt(base.Add(time.Minute)))
	testutil.CreateTask(s.T(), s.db, s.alice, "first", testutil.WithOrder(-1), testutil.WithCreatedAt(base))

	s.Equal([]string{"first", "newer", "older"}, titles(s.list(ListTasksInput{})))
}

func (s *TaskServiceTestSuite) TestListTasks_Pagination() {
	for i := 0; i < 3; i++ {
		testutil.CreateTask(s.T(), s.db, s.alice, "t", testutil.WithOrder(i))
	}

	tasks, total, err := s.service.ListTasks(s.ctx, ListTasksInput{
		OwnerID:    s.alice.ID,
		Pagination: utils.NewPaginationParams("2", "2"),
	})
	s.Require().NoError(err)
	s.EqualValues(3, total)
	s.Len(tasks, 1)
	s.Equal(2, tasks[0].Order)
}

func (s *TaskServiceTestSuite) TestUpdateTask_Partial() {
	task := testutil.CreateTask(s.T(), s.db, s.alice, "Original",
		testutil.WithDescription("keep me"),
		testutil.WithDueDate(testToday.AddDays(3)),
	)
	before := task.UpdatedAt

	updated, err := s.service.UpdateTask(s.ctx, s.alice.ID, task.ID, UpdateTaskInput{
		Status: ptr(models.TaskStatusCompleted),
	})
	s.Require().NoError(err)
	s.Equal(models.TaskStatusCompleted, updated.Status)
	s.Equal("Original", updated.Title)
	s.Equal("keep me", updated.Description)
	s.Equal(s.alice.ID, updated.OwnerID)
	s.True(updated.DueDate.Equal(testToday.AddDays(3)))
	s.False(updated.UpdatedAt.Before(before))

	found, err := s.service.GetTask(s.ctx, s.alice.ID, task.ID)
	s.Require().NoError(err)
	s.Equal(models.TaskStatusCompleted, found.Status)
	s.Equal("alice", found.Owner.Username)
}

func (s *TaskServiceTestSuite) TestUpdateTask_PastDueDateOnlyCheckedWhenPresent() {
	task := testutil.CreateTask(s.T(), s.db, s.alice, "already late", testutil.WithDueDate(testToday.AddDays(-5)))

	_, err := s.service.UpdateTask(s.ctx, s.alice.ID, task.ID, UpdateTaskInput{Title: ptr("renamed")})
	s.NoError(err)

	_, err = s.service.UpdateTask(s.ctx, s.alice.ID, task.ID, UpdateTaskInput{DueDate: ptr(testToday.AddDays(-1))})
	s.requireFieldError(err, "due_date", msgPastDue)
}

func (s *TaskServiceTestSuite) TestUpdateTask_Validation() {
	task := testutil.CreateTask(s.T(), s.db, s.alice, "valid")

	_, err := s.service.UpdateTask(s.ctx, s.alice.ID, task.ID, UpdateTaskInput{
		Title:    ptr(""),
		Priority: ptr(models.TaskPriority("urgent")),
	})
	s.requireFieldError(err, "title", msgBlank)
	s.requireFieldError(err, "priority", msgBadChoice)

	found, err := s.service.GetTask(s.ctx, s.alice.ID, task.ID)
	s.Require().NoError(err)
	s.Equal("valid", found.Title)
}

func (s *TaskServiceTestSuite) TestUpdateTask_ForeignTask() {
	task := testutil.CreateTask(s.T(), s.db, s.bob, "bob's")

	_, err := s.service.UpdateTask(s.ctx, s.alice.ID, task.ID, UpdateTaskInput{Title: ptr("stolen")})
	s.ErrorIs(err, ErrTaskNotFound)
}

func (s *TaskServiceTestSuite) TestReplaceTask() {
	task := testutil.CreateTask(s.T(), s.db, s.alice, "Original",
		testutil.WithDescription("old"),
		testutil.WithPriority(models.TaskPriorityHigh),
		testutil.WithOrder(4),
	)

	replaced, err := s.service.ReplaceTask(s.ctx, s.alice.ID, task.ID, CreateTaskInput{
		Title:   "Replaced",
		DueDate: testToday.AddDays(2),
	})
	s.Require().NoError(err)
	s.Equal("Replaced", replaced.Title)
	s.Equal("", replaced.Description)
	s.Equal(models.TaskPriorityMedium, replaced.Priority)
	s.Equal(0, replaced.Order)
	s.Equal(task.ID, replaced.ID)

	_, err = s.service.ReplaceTask(s.ctx, s.alice.ID, task.ID, CreateTaskInput{Title: "Replaced"})
	s.requireFieldError(err, "due_date", msgRequired)

	_, err = s.service.ReplaceTask(s.ctx, s.bob.ID, task.ID, CreateTaskInput{Title: "x", DueDate: testToday})
	s.ErrorIs(err, ErrTaskNotFound)
}

func (s *TaskServiceTestSuite) TestDeleteTask() {
	mine := testutil.CreateTask(s.T(), s.db, s.alice, "mine")
	theirs := testutil.CreateTask(s.T(), s.db, s.bob, "theirs")

	s.ErrorIs(s.service.DeleteTask(s.ctx, s.alice.ID, theirs.ID), ErrTaskNotFound)
	s.Require().NoError(s.service.DeleteTask(s.ctx, s.alice.ID, mine.ID))

	_, err := s.service.GetTask(s.ctx, s.alice.ID, mine.ID)
	s.ErrorIs(err, ErrTaskNotFound)
	_, err = s.service.GetTask(s.ctx, s.bob.ID, theirs.ID)
	s.NoError(err)
	s.Contains(s.cache.deleted, statsCachePattern(s.alice.ID))
}

func (s *TaskServiceTestSuite) TestReorderTasks_SkipsForeignTasks() {
	a := testutil.CreateTask(s.T(), s.db, s.alice, "a")
	b := testutil.CreateTask(s.T(), s.db, s.alice, "b")
	foreign := testutil.CreateTask(s.T(), s.db, s.bob, "foreign", testutil.WithOrder(3))

	results, err := s.service.ReorderTasks(s.ctx, s.alice.ID, []ReorderItem{
		{ID: ptr(a.ID), Order: ptr(2)},
		{ID: ptr(b.ID), Order: ptr(1)},
		{ID: ptr(foreign.ID), Order: ptr(0)},
		{ID: ptr(a.ID)},
	})
	s.Require().NoError(err)
	s.Require().Len(results, 4)
	s.Equal(ReorderApplied, results[0].Result)
	s.Equal(ReorderApplied, results[1].Result)
	s.Equal(ReorderNotFound, results[2].Result)
	s.Equal(ReorderInvalid, results[3].Result)

	s.Equal([]string{"b", "a"}, titles(s.list(ListTasksInput{})))

	untouched, err := s.service.GetTask(s.ctx, s.bob.ID, foreign.ID)
	s.Require().NoError(err)
	s.Equal(3, untouched.Order)
}

func (s *TaskServiceTestSuite) TestReorderTasks_Empty() {
	results, err := s.service.ReorderTasks(s.ctx, s.alice.ID, nil)
	s.Require().NoError(err)
	s.Empty(results)
	s.Empty(s.cache.deleted)
}

func (s *TaskServiceTestSuite) TestGenerateTasks() {
	suggester := &fakeSuggester{tasks: []GeneratedTask{
		{Title: "  Call the plumber ", Priority: models.TaskPriorityHigh, DueDate: ptr(testToday.AddDays(1))},
		{Title: "   "},
		{Title: "Pay rent", Priority: "asap", DueDate: ptr(testToday.AddDays(-2))},
	}}
	service := NewTaskService(repository.NewTaskRepository(s.db), nil, suggester, fixedClock)

	tasks, err := service.GenerateTasks(s.ctx, GenerateTasksInput{Text: "notes", OwnerID: s.alice.ID})
	s.Require().NoError(err)
	s.Require().Len(tasks, 2)
	s.Equal("notes", suggester.text)
	s.True(suggester.today.Equal(testToday))

	s.Equal("Call the plumber", tasks[0].Title)
	s.Equal(models.TaskPriorityHigh, tasks[0].Priority)
	s.NotNil(tasks[0].DueDate)

	s.Equal("Pay rent", tasks[1].Title)
	s.Equal(models.TaskPriorityMedium, tasks[1].Priority)
	s.Nil(tasks[1].DueDate)

	s.Empty(s.list(ListTasksInput{}))
}

func (s *TaskServiceTestSuite) TestGenerateTasks_Errors() {
	_, err := s.service.GenerateTasks(s.ctx, GenerateTasksInput{Text: "x"})
	s.ErrorIs(err, ErrAIServiceNotConfigured)

	repo := repository.NewTaskRepository(s.db)

	_, err = NewTaskService(repo, nil, &fakeSuggester{}, fixedClock).GenerateTasks(s.ctx, GenerateTasksInput{Text: "x"})
	s.ErrorIs(err, ErrAINoTasksGenerated)

	_, err = NewTaskService(repo, nil, &fakeSuggester{tasks: []GeneratedTask{{Title: ""}}}, fixedClock).
		GenerateTasks(s.ctx, GenerateTasksInput{Text: "x"})
	s.ErrorIs(err, ErrAINoValidTasks)

	many := make([]GeneratedTask, 21)
	for i := range many {
		many[i].Title = "t"
	}
	_, err = NewTaskService(repo, nil, &fakeSuggester{tasks: many}, fixedClock).GenerateTasks(s.ctx, GenerateTasksInput{Text: "x"})
	s.ErrorIs(err, ErrAITooManyTasks)
}

func TestTaskServiceTestSuite(t *testing.T) {
	suite.Run(t, new(TaskServiceTestSuite))
}
