package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yukikurage/todo-api/internal/auth"
	"github.com/yukikurage/todo-api/internal/constants"
	"github.com/yukikurage/todo-api/internal/models"
	"github.com/yukikurage/todo-api/internal/repository"
	"gorm.io/gorm"
)

var (
	ErrUsernameTaken        = errors.New("a user with that username already exists")
	ErrInvalidCredentials   = errors.New("invalid username or password")
	ErrInvalidRefreshToken  = errors.New("invalid or expired refresh token")
	ErrUserNotFound         = errors.New("user not found")
	ErrFailedToHashPassword = errors.New("failed to hash password")
)

const msgBadUsername = "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."

// TokenIssuer signs token pairs and verifies refresh tokens. Implemented by *auth.Manager.
type TokenIssuer interface {
	IssuePair(identity auth.Identity) (*auth.TokenPair, error)
	VerifyRefreshToken(token string) (auth.Identity, error)
}

// AuthService handles account and token related business logic.
type AuthService struct {
	userRepo repository.UserRepository
	tokens   TokenIssuer
	hasher   *auth.PasswordHasher
	cache    StatsCache
}

// NewAuthService creates a new AuthService. cache may be nil.
func NewAuthService(userRepo repository.UserRepository, tokens TokenIssuer, hasher *auth.PasswordHasher, cache StatsCache) *AuthService {
	return &AuthService{
		userRepo: userRepo,
		tokens:   tokens,
		hasher:   hasher,
		cache:    cache,
	}
}

// RegisterInput represents the information needed to create an account.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register validates input and creates a new account. The email format is
// checked by the request binding.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	username := strings.TrimSpace(input.Username)
	email := strings.TrimSpace(input.Email)

	verr := &ValidationError{}
	validateUsername(verr, username)
	validatePassword(verr, input.Password)
	if err := verr.Err(); err != nil {
		return nil, err
	}

	if _, err := s.userRepo.FindByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, ErrFailedToHashPassword
	}

	user := &models.User{
		Username:     username,
		Email:        email,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		PasswordHash: hash,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// LoginInput holds the credentials for authentication.
type LoginInput struct {
	Username string
	Password string
}

// Login verifies credentials and issues a token pair.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*auth.TokenPair, error) {
	user, err := s.userRepo.FindByUsername(ctx, strings.TrimSpace(input.Username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

// Refresh exchanges a valid refresh token for a new pair. The account must still exist.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	identity, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.userRepo.FindByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return s.issue(user)
}

func (s *AuthService) issue(user *models.User) (*auth.TokenPair, error) {
	pair, err := s.tokens.IssuePair(auth.Identity{UserID: user.ID, Username: user.Username})
	if err != nil {
		return nil, fmt.Errorf("failed to issue tokens: %w", err)
	}
	return pair, nil
}

// GetUser retrieves a user by ID.
func (s *AuthService) GetUser(ctx context.Context, id uint64) (*models.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return user, nil
}

// DeleteAccount removes the account and every task it owns.
func (s *AuthService) DeleteAccount(ctx context.Context, id uint64) error {
	if err := s.userRepo.DeleteWithTasks(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete account: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.DeletePattern(ctx, statsCachePattern(id)); err != nil {
			slog.WarnContext(ctx, "failed to invalidate stats cache", "owner_id", id, "error", err)
		}
	}
	return nil
}

func validateUsername(verr *ValidationError, username string) {
	n := utf8.RuneCountInString(username)
	switch {
	case n == 0:
		verr.Add("username", msgRequired)
		return
	case n < constants.MinUsernameLength:
		verr.Add("username", msgTooShort)
	case n > constants.MaxUsernameLength:
		verr.Add("username", msgTooLong)
	}

	for _, r := range username {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || strings.ContainsRune("@.+-_", r) {
			continue
		}
		verr.Add("username", msgBadUsername)
		return
	}
}

func validatePassword(verr *ValidationError, password string) {
	switch {
	case password == "":
		verr.Add("password", msgRequired)
	case len(password) < constants.MinPasswordLength:
		verr.Add("password", fmt.Sprintf("Ensure this field has at least %d characters.", constants.MinPasswordLength))
	case len(password) > constants.MaxPasswordLength:
		verr.Add("password", fmt.Sprintf("Ensure this field has no more than %d bytes.", constants.MaxPasswordLength))
	}
}
