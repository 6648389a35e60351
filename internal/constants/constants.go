package constants

const (
	// ContextKeyUserID is the gin context key holding the authenticated user ID
	ContextKeyUserID = "user_id"
	// ContextKeyUsername is the gin context key holding the authenticated username
	ContextKeyUsername = "username"
	// ContextKeyTask is the gin context key holding the task loaded by RequireTaskAccess
	ContextKeyTask = "task"

	MinPasswordLength = 8
	// bcrypt ignores input beyond 72 bytes
	MaxPasswordLength = 72
	MinUsernameLength = 3
	MaxUsernameLength = 150
	MaxTitleLength    = 255

	MinPageSize     = 1
	DefaultPageSize = 50
	MaxPageSize     = 100

	// UpcomingWindowDays is the inclusive look-ahead of the "upcoming" due date filter
	UpcomingWindowDays = 7

	MaxAIGeneratedTasks = 20
)
