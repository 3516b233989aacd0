package auth

import "errors"

var (
	// Registration
	ErrMissingFields      = errors.New("firstname, lastname, email, phone and password are required")
	ErrUserExists         = errors.New("user with this email or phone already exists")
	ErrAdminExists        = errors.New("an admin account already exists")
	ErrInvalidRole        = errors.New("role must be one of tenant, owner, admin")
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")

	// Login and OTP
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountInactive    = errors.New("account is deactivated")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidOTP         = errors.New("invalid or expired OTP")
	ErrNotificationFailed = errors.New("failed to deliver verification code")

	// Tokens
	ErrInvalidToken         = errors.New("invalid or expired token")
	ErrRefreshTokenNotFound = errors.New("refresh token not found or revoked")
)
