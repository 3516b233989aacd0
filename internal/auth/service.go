package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/logging"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/metrics"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/otp"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/user"
)

// UserStore is the credential store the auth core depends on.
type UserStore interface {
	Create(ctx context.Context, nu user.NewUser) (*user.User, error)
	GetByEmail(ctx context.Context, email string) (*user.User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	ExistsByEmailOrPhone(ctx context.Context, email, phone string) (bool, error)
	AdminExists(ctx context.Context) (bool, error)
	MarkEmailVerified(ctx context.Context, userID uuid.UUID) error
	UpdateLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	Deactivate(ctx context.Context, userID uuid.UUID) error
}

// OTPStore holds short-lived one-time codes keyed by email.
type OTPStore interface {
	Issue(ctx context.Context, email string) (string, error)
	Exists(ctx context.Context, email, code string) (bool, error)
	Consume(ctx context.Context, email, code string) error
	Clear(ctx context.Context, email string) error
}

// RefreshTokenRepository is the allow-list of live refresh tokens.
type RefreshTokenRepository interface {
	Store(ctx context.Context, userID uuid.UUID, token string, expiresAt time.Time) error
	Lookup(ctx context.Context, token string) (uuid.UUID, error)
	Revoke(ctx context.Context, userID uuid.UUID, token string) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) error
}

// EmailService defines the interface for email operations
type EmailService interface {
	SendVerificationCode(ctx context.Context, toEmail, name, code string) error
	SendLoginVerificationCode(ctx context.Context, toEmail, name, code string) error
	SendPasswordResetCode(ctx context.Context, toEmail, name, code string) error
}

// Flow labels for OTP and token metrics.
const (
	flowRegister = "register"
	flowLogin    = "login"
	flowReset    = "reset_password"
	flowRefresh  = "refresh"
)

// RegisterInput is the typed registration payload.
type RegisterInput struct {
	Firstname string
	Lastname  string
	Email     string
	Phone     string
	Password  string
	Role      user.Role // empty means tenant
}

// AuthResult is returned whenever a token pair is issued to a user.
type AuthResult struct {
	User         *user.User `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
}

// TokenPair is returned by refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// LoginResult is either a token pair (Auth set) or a pending OTP step
// (RequiresVerification set).
type LoginResult struct {
	Auth                 *AuthResult
	Email                string
	RequiresVerification bool
}

// Service handles authentication business logic
type Service struct {
	users   UserStore
	otps    OTPStore
	tokens  *Tokens
	refresh RefreshTokenRepository
	email   EmailService
	logger  *logging.Logger
	now     func() time.Time
}

func NewService(
	users UserStore,
	otps OTPStore,
	tokens *Tokens,
	refresh RefreshTokenRepository,
	email EmailService,
	logger *logging.Logger,
) *Service {
	return &Service{
		users:   users,
		otps:    otps,
		tokens:  tokens,
		refresh: refresh,
		email:   email,
		logger:  logger,
		now:     time.Now,
	}
}

// NormalizeEmail lower-cases and trims an address before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	if email == "" || len(email) > 254 {
		return ErrInvalidEmailFormat
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmailFormat
	}
	return nil
}

// Register creates an unverified user and sends a verification code.
// Delivery failure does not fail registration; the user can get a fresh
// code by logging in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (string, error) {
	firstname := strings.TrimSpace(in.Firstname)
	lastname := strings.TrimSpace(in.Lastname)
	phone := strings.TrimSpace(in.Phone)
	email := NormalizeEmail(in.Email)
	if firstname == "" || lastname == "" || phone == "" || email == "" || strings.TrimSpace(in.Password) == "" {
		return "", ErrMissingFields
	}
	if err := validateEmail(email); err != nil {
		return "", err
	}
	if len(in.Password) < MinPasswordLength {
		return "", ErrPasswordTooShort
	}

	role := in.Role
	if role == "" {
		role = user.RoleTenant
	}
	if !role.Valid() {
		return "", ErrInvalidRole
	}

	if role == user.RoleAdmin {
		exists, err := s.users.AdminExists(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to check admin: %w", err)
		}
		if exists {
			metrics.AuthRegistrationsTotal.WithLabelValues(metrics.ResultFailure).Inc()
			return "", ErrAdminExists
		}
	}

	exists, err := s.users.ExistsByEmailOrPhone(ctx, email, phone)
	if err != nil {
		return "", fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		metrics.AuthRegistrationsTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return "", ErrUserExists
	}

	passwordHash, err := HashPassword(in.Password)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}

	newUser, err := s.users.Create(ctx, user.NewUser{
		Firstname:    firstname,
		Lastname:     lastname,
		Email:        email,
		Phone:        phone,
		PasswordHash: passwordHash,
		Role:         role,
	})
	if err != nil {
		metrics.AuthRegistrationsTotal.WithLabelValues(metrics.ResultFailure).Inc()
		switch {
		case errors.Is(err, user.ErrAdminExists):
			return "", ErrAdminExists
		case errors.Is(err, user.ErrDuplicateEmail), errors.Is(err, user.ErrDuplicatePhone):
			return "", ErrUserExists
		}
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	metrics.AuthRegistrationsTotal.WithLabelValues(metrics.ResultSuccess).Inc()

	logger := s.logger.WithFields(map[string]any{"user_id": newUser.ID})
	if err := s.sendCode(ctx, flowRegister, newUser, s.email.SendVerificationCode); err != nil {
		logger.Warn("failed to send registration code", "error", err)
	}

	return newUser.Email, nil
}

// VerifyRegistrationOTP marks the user verified and issues a token pair.
// An already verified user gets alreadyVerified=true and no tokens; no code
// is consumed in that case.
func (s *Service) VerifyRegistrationOTP(ctx context.Context, email, code string) (result *AuthResult, alreadyVerified bool, err error) {
	email = NormalizeEmail(email)

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, false, ErrUserNotFound
		}
		return nil, false, fmt.Errorf("failed to get user: %w", err)
	}

	if u.IsEmailVerified {
		return nil, true, nil
	}
	if !u.IsActive {
		return nil, false, ErrAccountInactive
	}

	if err := s.consumeCode(ctx, flowRegister, email, code); err != nil {
		return nil, false, err
	}

	if err := s.users.MarkEmailVerified(ctx, u.ID); err != nil {
		return nil, false, fmt.Errorf("failed to verify email: %w", err)
	}
	u.IsEmailVerified = true

	result, err = s.issuePair(ctx, u, flowRegister)
	if err != nil {
		return nil, false, err
	}
	return result, false, nil
}

// Login checks credentials. Verified users get tokens straight away;
// unverified users get a fresh code and must call VerifyLoginOTP.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			metrics.AuthLoginsTotal.WithLabelValues(metrics.ResultFailure).Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if !VerifyPassword(u.PasswordHash, password) {
		metrics.AuthLoginsTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return nil, ErrInvalidCredentials
	}

	if !u.IsActive {
		metrics.AuthLoginsTotal.WithLabelValues(metrics.ResultFailure).Inc()
		return nil, ErrAccountInactive
	}

	if !u.IsEmailVerified {
		if err := s.otps.Clear(ctx, email); err != nil {
			return nil, fmt.Errorf("failed to clear previous codes: %w", err)
		}
		if err := s.sendCode(ctx, flowLogin, u, s.email.SendLoginVerificationCode); err != nil {
			return nil, err
		}
		return &LoginResult{Email: u.Email, RequiresVerification: true}, nil
	}

	if err := s.completeLogin(ctx, u); err != nil {
		return nil, err
	}

	result, err := s.issuePair(ctx, u, flowLogin)
	if err != nil {
		return nil, err
	}

	metrics.AuthLoginsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	return &LoginResult{Auth: result, Email: u.Email}, nil
}

// VerifyLoginOTP finishes a login that required a code.
func (s *Service) VerifyLoginOTP(ctx context.Context, email, code string) (*AuthResult, error) {
	email = NormalizeEmail(email)

	ok, err := s.otps.Exists(ctx, email, code)
	if err != nil {
		return nil, fmt.Errorf("failed to check code: %w", err)
	}
	if !ok {
		metrics.OTPVerificationsTotal.WithLabelValues(flowLogin, metrics.ResultFailure).Inc()
		return nil, ErrInvalidOTP
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	// An inactive user is rejected before the code is spent.
	if !u.IsActive {
		return nil, ErrAccountInactive
	}

	if err := s.consumeCode(ctx, flowLogin, email, code); err != nil {
		return nil, err
	}

	if !u.IsEmailVerified {
		if err := s.users.MarkEmailVerified(ctx, u.ID); err != nil {
			return nil, fmt.Errorf("failed to verify email: %w", err)
		}
		u.IsEmailVerified = true
	}

	if err := s.completeLogin(ctx, u); err != nil {
		return nil, err
	}

	result, err := s.issuePair(ctx, u, flowLogin)
	if err != nil {
		return nil, err
	}

	metrics.AuthLoginsTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	return result, nil
}

// RefreshAccessToken rotates a refresh token. The presented token is
// revoked; a second use of it fails.
func (s *Service) RefreshAccessToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, RefreshToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	owner, err := s.refresh.Lookup(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, ErrRefreshTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}
	if owner != claims.UserID {
		return nil, ErrInvalidToken
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !u.IsActive {
		return nil, ErrInvalidToken
	}

	if err := s.refresh.Revoke(ctx, u.ID, refreshToken); err != nil {
		if errors.Is(err, ErrRefreshTokenNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to revoke old refresh token: %w", err)
	}

	result, err := s.issuePair(ctx, u, flowRefresh)
	if err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: result.AccessToken, RefreshToken: result.RefreshToken}, nil
}

// ForgotPassword sends a reset code to a registered address.
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = NormalizeEmail(email)

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return "", ErrUserNotFound
		}
		return "", fmt.Errorf("failed to get user: %w", err)
	}

	if err := s.otps.Clear(ctx, email); err != nil {
		return "", fmt.Errorf("failed to clear previous codes: %w", err)
	}
	if err := s.sendCode(ctx, flowReset, u, s.email.SendPasswordResetCode); err != nil {
		return "", err
	}

	return u.Email, nil
}

// VerifyForgotPasswordOTP checks a reset code without spending it, so the
// same code can be presented to ResetPassword.
func (s *Service) VerifyForgotPasswordOTP(ctx context.Context, email, code string) (string, error) {
	email = NormalizeEmail(email)

	ok, err := s.otps.Exists(ctx, email, code)
	if err != nil {
		return "", fmt.Errorf("failed to check code: %w", err)
	}
	if !ok {
		metrics.OTPVerificationsTotal.WithLabelValues(flowReset, metrics.ResultFailure).Inc()
		return "", ErrInvalidOTP
	}

	return email, nil
}

// ResetPassword spends the reset code, rewrites the password hash and
// signs the user out everywhere.
func (s *Service) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = NormalizeEmail(email)
	if len(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	ok, err := s.otps.Exists(ctx, email, code)
	if err != nil {
		return fmt.Errorf("failed to check code: %w", err)
	}
	if !ok {
		metrics.OTPVerificationsTotal.WithLabelValues(flowReset, metrics.ResultFailure).Inc()
		return ErrInvalidOTP
	}

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	// The code stays valid until the new hash is stored, so a failed write
	// can be retried with the same code.
	if err := s.users.UpdatePassword(ctx, u.ID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.consumeCode(ctx, flowReset, email, code); err != nil {
		if !errors.Is(err, ErrInvalidOTP) {
			return err
		}
		// A concurrent reset spent the code first; both writes used a
		// verified code, so the request still succeeded.
		s.logger.Warn("reset code already consumed by a concurrent request", "user_id", u.ID)
	}

	if err := s.refresh.RevokeAllForUser(ctx, u.ID); err != nil {
		s.logger.Warn("failed to revoke all user tokens after password reset", "user_id", u.ID, "error", err)
	}

	return nil
}

// Logout revokes the presented refresh token, if any. It never fails; the
// caller clears client-held credentials regardless.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	if refreshToken == "" {
		return
	}

	claims, err := s.tokens.Verify(refreshToken, RefreshToken)
	if err != nil {
		return
	}

	if err := s.refresh.Revoke(ctx, claims.UserID, refreshToken); err != nil && !errors.Is(err, ErrRefreshTokenNotFound) {
		s.logger.Warn("failed to revoke refresh token on logout", "user_id", claims.UserID, "error", err)
	}
}

// ChangePassword replaces the password of an authenticated user after
// checking the current one.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return ErrPasswordTooShort
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	if !VerifyPassword(u.PasswordHash, oldPassword) {
		return ErrInvalidCredentials
	}

	passwordHash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, u.ID, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	if err := s.refresh.RevokeAllForUser(ctx, u.ID); err != nil {
		s.logger.Warn("failed to revoke all user tokens after password change", "user_id", u.ID, "error", err)
	}

	return nil
}

// Deactivate soft deletes a user and drops their refresh tokens. Access
// tokens already handed out stop working at the session boundary.
func (s *Service) Deactivate(ctx context.Context, userID uuid.UUID) error {
	if err := s.users.Deactivate(ctx, userID); err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to deactivate user: %w", err)
	}

	if err := s.refresh.RevokeAllForUser(ctx, userID); err != nil {
		s.logger.Warn("failed to revoke all user tokens after deactivation", "user_id", userID, "error", err)
	}

	return nil
}

// Authenticate resolves an access token to an active user.
func (s *Service) Authenticate(ctx context.Context, accessToken string) (*user.User, error) {
	claims, err := s.tokens.Verify(accessToken, AccessToken)
	if err != nil {
		return nil, ErrInvalidToken
	}

	u, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if !u.IsActive {
		return nil, ErrInvalidToken
	}

	return u, nil
}

func (s *Service) completeLogin(ctx context.Context, u *user.User) error {
	now := s.now()
	if err := s.users.UpdateLastLogin(ctx, u.ID, now); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	u.LastLogin = &now
	return nil
}

type sendFunc func(ctx context.Context, toEmail, name, code string) error

// sendCode issues a new code for u and hands it to send. Any failure is
// reported as ErrNotificationFailed.
func (s *Service) sendCode(ctx context.Context, flow string, u *user.User, send sendFunc) error {
	code, err := s.otps.Issue(ctx, u.Email)
	if err != nil {
		metrics.OTPIssuedTotal.WithLabelValues(flow, metrics.ResultFailure).Inc()
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}

	if err := send(ctx, u.Email, u.Firstname, code); err != nil {
		metrics.OTPIssuedTotal.WithLabelValues(flow, metrics.ResultFailure).Inc()
		return fmt.Errorf("%w: %v", ErrNotificationFailed, err)
	}

	metrics.OTPIssuedTotal.WithLabelValues(flow, metrics.ResultSuccess).Inc()
	return nil
}

func (s *Service) consumeCode(ctx context.Context, flow, email, code string) error {
	if err := s.otps.Consume(ctx, email, code); err != nil {
		if errors.Is(err, otp.ErrNotFound) {
			metrics.OTPVerificationsTotal.WithLabelValues(flow, metrics.ResultFailure).Inc()
			return ErrInvalidOTP
		}
		return fmt.Errorf("failed to consume code: %w", err)
	}
	metrics.OTPVerificationsTotal.WithLabelValues(flow, metrics.ResultSuccess).Inc()
	return nil
}

// issuePair creates access and refresh tokens for u and records the
// refresh token in the allow-list.
func (s *Service) issuePair(ctx context.Context, u *user.User, flow string) (*AuthResult, error) {
	accessToken, err := s.tokens.IssueAccess(u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create access token: %w", err)
	}

	refreshToken, err := s.tokens.IssueRefresh(u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh token: %w", err)
	}

	expiresAt := s.now().Add(s.tokens.RefreshTTL())
	if err := s.refresh.Store(ctx, u.ID, refreshToken, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	metrics.TokensIssuedTotal.WithLabelValues(flow).Inc()

	return &AuthResult{
		User:         u,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}
