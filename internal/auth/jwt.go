// Package auth issues and verifies the bearer tokens used by the API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidToken is returned when the token is malformed, forged or of the wrong type.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken is returned when the token has expired.
	ErrExpiredToken = errors.New("token has expired")
)

// TokenType distinguishes access tokens from refresh tokens.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Identity is the caller a verified token speaks for.
type Identity struct {
	UserID   uint64
	Username string
}

// TokenVerifier turns an access token into the identity it was issued to.
type TokenVerifier interface {
	VerifyAccessToken(token string) (Identity, error)
}

// Config holds JWT configuration.
type Config struct {
	SecretKey            string
	Issuer               string
	AccessTokenDuration  time.Duration
	RefreshTokenDuration time.Duration
}

// Claims are the claims carried by every token.
type Claims struct {
	UserID    uint64    `json:"user_id"`
	Username  string    `json:"username"`
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenPair is a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Manager signs and validates HS256 tokens.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager creates a Manager. A nil clock means time.Now.
func NewManager(config Config, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{config: config, now: now}
}

// IssuePair signs a new access and refresh token for identity.
func (m *Manager) IssuePair(identity Identity) (*TokenPair, error) {
	access, err := m.generateToken(identity, TokenTypeAccess, m.config.AccessTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to sign access token: %w", err)
	}
	refresh, err := m.generateToken(identity, TokenTypeRefresh, m.config.RefreshTokenDuration)
	if err != nil {
		return nil, fmt.Errorf("failed to sign refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(m.config.AccessTokenDuration.Seconds()),
	}, nil
}

func (m *Manager) generateToken(identity Identity, tokenType TokenType, duration time.Duration) (string, error) {
	now := m.now()
	claims := Claims{
		UserID:    identity.UserID,
		Username:  identity.Username,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.config.Issuer,
			Subject:   fmt.Sprintf("%d", identity.UserID),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(m.config.SecretKey))
}

// ValidateToken validates the signature, issuer and lifetime of a token and returns its claims.
func (m *Manager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(m.config.SecretKey), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.config.Issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == 0 {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// VerifyAccessToken validates an access token. Refresh tokens are rejected.
func (m *Manager) VerifyAccessToken(tokenString string) (Identity, error) {
	return m.verify(tokenString, TokenTypeAccess)
}

// VerifyRefreshToken validates a refresh token. Access tokens are rejected.
func (m *Manager) VerifyRefreshToken(tokenString string) (Identity, error) {
	return m.verify(tokenString, TokenTypeRefresh)
}

func (m *Manager) verify(tokenString string, want TokenType) (Identity, error) {
	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		return Identity{}, err
	}
	if claims.TokenType != want {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: claims.UserID, Username: claims.Username}, nil
}
