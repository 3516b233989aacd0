package auth

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/config"
)

// TokenKind distinguishes access from refresh credentials.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// TokenClaims represents the claims carried by a verified token
type TokenClaims struct {
	UserID    uuid.UUID
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenService defines the interface for token creation and validation.
// Implementations include PasetoService (PASETO v4.local) and JWTService (HS256).
type TokenService interface {
	CreateToken(userID uuid.UUID, duration time.Duration) (string, error)
	// VerifyToken returns ErrInvalidToken for every kind of failure.
	VerifyToken(tokenStr string) (*TokenClaims, error)
}

// Tokens issues and verifies the access/refresh pair. Each kind has its own
// key and lifetime, so a leaked refresh key cannot mint access tokens.
type Tokens struct {
	access     TokenService
	refresh    TokenService
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokens(access, refresh TokenService, accessTTL, refreshTTL time.Duration) *Tokens {
	return &Tokens{
		access:     access,
		refresh:    refresh,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// NewTokensFromConfig builds the token pair service for the configured format.
func NewTokensFromConfig(cfg config.AuthConfig) (*Tokens, error) {
	var access, refresh TokenService
	var err error

	switch cfg.TokenFormat {
	case config.TokenFormatPaseto:
		if access, err = NewPasetoService(cfg.AccessTokenKey, AccessToken); err != nil {
			return nil, fmt.Errorf("access token service: %w", err)
		}
		if refresh, err = NewPasetoService(cfg.RefreshTokenKey, RefreshToken); err != nil {
			return nil, fmt.Errorf("refresh token service: %w", err)
		}
	case config.TokenFormatJWT:
		if access, err = NewJWTService(cfg.AccessTokenKey, AccessToken); err != nil {
			return nil, fmt.Errorf("access token service: %w", err)
		}
		if refresh, err = NewJWTService(cfg.RefreshTokenKey, RefreshToken); err != nil {
			return nil, fmt.Errorf("refresh token service: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported token format %q", cfg.TokenFormat)
	}

	return NewTokens(access, refresh, cfg.AccessTokenDuration, cfg.RefreshTokenDuration), nil
}

func (t *Tokens) IssueAccess(userID uuid.UUID) (string, error) {
	return t.access.CreateToken(userID, t.accessTTL)
}

func (t *Tokens) IssueRefresh(userID uuid.UUID) (string, error) {
	return t.refresh.CreateToken(userID, t.refreshTTL)
}

// Verify checks a token of the given kind.
func (t *Tokens) Verify(token string, kind TokenKind) (*TokenClaims, error) {
	switch kind {
	case AccessToken:
		return t.access.VerifyToken(token)
	case RefreshToken:
		return t.refresh.VerifyToken(token)
	}
	return nil, ErrInvalidToken
}

func (t *Tokens) AccessTTL() time.Duration  { return t.accessTTL }
func (t *Tokens) RefreshTTL() time.Duration { return t.refreshTTL }
