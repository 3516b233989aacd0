package auth

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/httputil"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/logging"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/ratelimit"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/user"
)

// Handler contains HTTP handlers for authentication endpoints
type Handler struct {
	service     *Service
	rateLimiter *ratelimit.Limiter
	cookies     CookieSettings
}

func NewHandler(service *Service, rateLimiter *ratelimit.Limiter, cookies CookieSettings) *Handler {
	return &Handler{
		service:     service,
		rateLimiter: rateLimiter,
		cookies:     cookies,
	}
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Firstname string `json:"firstname" validate:"required,notblank"`
	Lastname  string `json:"lastname" validate:"required,notblank"`
	Email     string `json:"email" validate:"required,notblank"`
	Phone     string `json:"phone" validate:"required,notblank"`
	Password  string `json:"password" validate:"required,notblank"`
	Role      string `json:"role,omitempty"`
}

// OTPRequest carries an email and the code sent to it
type OTPRequest struct {
	Email string `json:"email" validate:"required"`
	OTP   string `json:"otp" validate:"required"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ForgotPasswordRequest represents the password reset request
type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required"`
}

// ResetPasswordRequest represents the password reset confirmation
type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required"`
	OTP         string `json:"otp" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// RefreshRequest represents the token refresh request body
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// EmailResponse is returned when the next step happens out of band
type EmailResponse struct {
	Email string `json:"email"`
}

// LoginPendingResponse is returned when login needs an OTP step
type LoginPendingResponse struct {
	Email                string `json:"email"`
	RequiresVerification bool   `json:"requiresVerification"`
}

// Register handles user registration
// @Summary      Register a new user
// @Description  Create an unverified account and email a 6-digit verification code.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RegisterRequest true "Registration details"
// @Success      201 {object} httputil.Envelope{data=EmailResponse}
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      409 {object} httputil.ErrorResponse "Email, phone or admin already exists"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Router       /users/register [post]
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.rateLimited(w, r, "register") {
		return
	}

	var req RegisterRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid registration request body", "error", err.Error())
		httputil.RespondDecodeError(w, err)
		return
	}

	logger = logger.WithFields(map[string]any{"email": NormalizeEmail(req.Email)})

	email, err := h.service.Register(r.Context(), RegisterInput{
		Firstname: req.Firstname,
		Lastname:  req.Lastname,
		Email:     req.Email,
		Phone:     req.Phone,
		Password:  req.Password,
		Role:      user.Role(strings.ToLower(strings.TrimSpace(req.Role))),
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrAdminExists):
			logger.Warn("registration failed: admin already exists")
			respondError(w, "admin account already exists, only one admin is allowed", httputil.CodeAdminAlreadyExists, http.StatusConflict)
		case errors.Is(err, ErrUserExists):
			logger.Warn("registration failed: user already exists")
			respondError(w, "user with email or phone already exists", httputil.CodeUserAlreadyExists, http.StatusConflict)
		case errors.Is(err, ErrMissingFields):
			respondError(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
		case errors.Is(err, ErrInvalidEmailFormat):
			respondError(w, err.Error(), httputil.CodeInvalidEmailFormat, http.StatusBadRequest)
		case errors.Is(err, ErrPasswordTooShort):
			respondError(w, err.Error(), httputil.CodePasswordTooShort, http.StatusBadRequest)
		case errors.Is(err, ErrInvalidRole):
			respondError(w, err.Error(), httputil.CodeInvalidRole, http.StatusBadRequest)
		default:
			logger.Error("registration failed: internal error", "error", err.Error())
			respondError(w, "failed to register user", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("user registered successfully")

	httputil.RespondSuccess(w, "User registered successfully. Please verify your email with the OTP sent.",
		EmailResponse{Email: email}, http.StatusCreated)
}

// VerifyOTP handles registration OTP verification
// @Summary      Verify registration OTP
// @Description  Verify the email address with the registration code and receive a token pair.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body OTPRequest true "Email and code"
// @Success      200 {object} httputil.Envelope{data=AuthResult}
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Invalid or expired OTP"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Router       /users/verify-otp [post]
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.rateLimited(w, r, "verify_otp") {
		return
	}

	var req OTPRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondDecodeError(w, err)
		return
	}

	logger = logger.WithFields(map[string]any{"email": NormalizeEmail(req.Email)})

	result, alreadyVerified, err := h.service.VerifyRegistrationOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.respondOTPError(w, logger, "registration otp verification", err)
		return
	}

	if alreadyVerified {
		httputil.RespondSuccess(w, "User is already verified. Please login.", nil, http.StatusOK)
		return
	}

	logger.Info("email verified successfully", "user_id", result.User.ID)

	SetAuthCookies(w, result.AccessToken, result.RefreshToken, h.cookies)
	httputil.RespondSuccess(w, "Email verified successfully", result, http.StatusOK)
}

// Login handles user login
// @Summary      User login
// @Description  Check credentials. Verified users receive tokens; unverified users are emailed a code.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} httputil.Envelope{data=AuthResult}
// @Failure      401 {object} httputil.ErrorResponse "Invalid credentials"
// @Failure      403 {object} httputil.ErrorResponse "Account deactivated"
// @Failure      500 {object} httputil.ErrorResponse "Verification code could not be sent"
// @Router       /users/login [post]
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.rateLimited(w, r, "login") {
		return
	}

	var req LoginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid login request body", "error", err.Error())
		httputil.RespondDecodeError(w, err)
		return
	}

	logger = logger.WithFields(map[string]any{"email": NormalizeEmail(req.Email)})

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			logger.Warn("login failed: invalid credentials")
			respondError(w, "invalid user credentials", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
		case errors.Is(err, ErrAccountInactive):
			logger.Warn("login failed: account inactive")
			respondError(w, "your account has been terminated, please contact support", httputil.CodeAccountInactive, http.StatusForbidden)
		case errors.Is(err, ErrNotificationFailed):
			logger.Error("login failed: could not send verification code", "error", err.Error())
			respondError(w, "error sending verification OTP, please try again", httputil.CodeDeliveryFailed, http.StatusInternalServerError)
		default:
			logger.Error("login failed: internal error", "error", err.Error())
			respondError(w, "failed to login", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	if result.RequiresVerification {
		logger.Info("login pending email verification")
		httputil.RespondSuccess(w, "Please verify your email first. OTP sent to your email.",
			LoginPendingResponse{Email: result.Email, RequiresVerification: true}, http.StatusOK)
		return
	}

	logger.Info("user logged in successfully", "user_id", result.Auth.User.ID)

	SetAuthCookies(w, result.Auth.AccessToken, result.Auth.RefreshToken, h.cookies)
	httputil.RespondSuccess(w, "User logged in successfully", result.Auth, http.StatusOK)
}

// VerifyLoginOTP handles the second login step
// @Summary      Verify login OTP
// @Description  Complete a login that required an emailed code.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body OTPRequest true "Email and code"
// @Success      200 {object} httputil.Envelope{data=AuthResult}
// @Failure      401 {object} httputil.ErrorResponse "Invalid or expired OTP"
// @Failure      403 {object} httputil.ErrorResponse "Account deactivated"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Router       /users/verify-login-otp [post]
func (h *Handler) VerifyLoginOTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.rateLimited(w, r, "verify_login_otp") {
		return
	}

	var req OTPRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondDecodeError(w, err)
		return
	}

	logger = logger.WithFields(map[string]any{"email": NormalizeEmail(req.Email)})

	result, err := h.service.VerifyLoginOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.respondOTPError(w, logger, "login otp verification", err)
		return
	}

	logger.Info("user logged in successfully", "user_id", result.User.ID)

	SetAuthCookies(w, result.AccessToken, result.RefreshToken, h.cookies)
	httputil.RespondSuccess(w, "User logged in successfully", result, http.StatusOK)
}

// ForgotPassword handles password reset requests
// @Summary      Request password reset
// @Description  Email a reset code to a registered address.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ForgotPasswordRequest true "Email address"
// @Success      200 {object} httputil.Envelope{data=EmailResponse}
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Failure      429 {object} httputil.ErrorResponse "Too many requests"
// @Failure      500 {object} httputil.ErrorResponse "Reset code could not be sent"
// @Router       /users/forgot-password [post]
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req ForgotPasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid forgot password request body", "error", err.Error())
		httputil.RespondDecodeError(w, err)
		return
	}

	email := NormalizeEmail(req.Email)
	logger = logger.WithFields(map[string]any{"email": email})

	if h.rateLimited(w, r, "forgot_password") {
		return
	}

	if h.rateLimiter != nil {
		onCooldown, err := h.rateLimiter.CheckEmailCooldown(r.Context(), email)
		if err != nil {
			logger.Error("failed to check email cooldown", "error", err.Error())
		} else if onCooldown {
			logger.Warn("email on cooldown")
			respondError(w, "please wait before requesting another reset", httputil.CodeCooldownActive, http.StatusTooManyRequests)
			return
		}
	}

	sentTo, err := h.service.ForgotPassword(r.Context(), email)
	if err != nil {
		switch {
		case errors.Is(err, ErrUserNotFound):
			logger.Warn("forgot password failed: user not found")
			respondError(w, "user with this email does not exist", httputil.CodeUserNotFound, http.StatusNotFound)
		case errors.Is(err, ErrNotificationFailed):
			logger.Error("forgot password failed: could not send reset code", "error", err.Error())
			respondError(w, "error sending reset OTP, please try again", httputil.CodeDeliveryFailed, http.StatusInternalServerError)
		default:
			logger.Error("forgot password failed: internal error", "error", err.Error())
			respondError(w, "failed to start password reset", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	if h.rateLimiter != nil {
		if err := h.rateLimiter.SetEmailCooldown(r.Context(), email); err != nil {
			logger.Error("failed to set email cooldown", "error", err.Error())
		}
	}

	logger.Info("password reset code sent")

	httputil.RespondSuccess(w, "OTP sent to your email. Please verify to reset password.",
		EmailResponse{Email: sentTo}, http.StatusOK)
}

// VerifyForgotPasswordOTP checks a reset code without using it up
// @Summary      Verify password reset OTP
// @Description  Check a reset code. The code stays valid for the reset call.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body OTPRequest true "Email and code"
// @Success      200 {object} httputil.Envelope{data=EmailResponse}
// @Failure      401 {object} httputil.ErrorResponse "Invalid or expired OTP"
// @Router       /users/verify-forgot-password-otp [post]
func (h *Handler) VerifyForgotPasswordOTP(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.rateLimited(w, r, "verify_reset_otp") {
		return
	}

	var req OTPRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondDecodeError(w, err)
		return
	}

	logger = logger.WithFields(map[string]any{"email": NormalizeEmail(req.Email)})

	email, err := h.service.VerifyForgotPasswordOTP(r.Context(), req.Email, req.OTP)
	if err != nil {
		h.respondOTPError(w, logger, "reset otp verification", err)
		return
	}

	httputil.RespondSuccess(w, "OTP verified successfully. You can now reset your password.",
		EmailResponse{Email: email}, http.StatusOK)
}

// ResetPassword handles password reset with an OTP
// @Summary      Reset password
// @Description  Set a new password using a reset code. All sessions are signed out.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body ResetPasswordRequest true "Email, code and new password"
// @Success      200 {object} httputil.Envelope
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Invalid or expired OTP"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Router       /users/reset-password [post]
func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	if h.rateLimited(w, r, "reset_password") {
		return
	}

	var req ResetPasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid reset password request body", "error", err.Error())
		httputil.RespondDecodeError(w, err)
		return
	}

	logger = logger.WithFields(map[string]any{"email": NormalizeEmail(req.Email)})

	err := h.service.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword)
	if err != nil {
		if errors.Is(err, ErrPasswordTooShort) {
			respondError(w, err.Error(), httputil.CodePasswordTooShort, http.StatusBadRequest)
			return
		}
		h.respondOTPError(w, logger, "password reset", err)
		return
	}

	logger.Info("password reset successfully")

	httputil.RespondSuccess(w, "Password reset successfully. You can now login with your new password.", nil, http.StatusOK)
}

// Refresh handles access token refresh
// @Summary      Refresh tokens
// @Description  Exchange a refresh token (cookie or body) for a new pair. The old refresh token stops working.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest false "Refresh token when not sent as a cookie"
// @Success      200 {object} httputil.Envelope{data=TokenPair}
// @Failure      401 {object} httputil.ErrorResponse "Missing, invalid or expired refresh token"
// @Router       /users/refresh-token [post]
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	refreshToken := h.refreshTokenFromRequest(r)
	if refreshToken == "" {
		logger.Warn("refresh token missing from both cookie and body")
		respondError(w, "refresh token is required", httputil.CodeRefreshTokenRequired, http.StatusUnauthorized)
		return
	}

	tokens, err := h.service.RefreshAccessToken(r.Context(), refreshToken)
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			logger.Warn("token refresh failed: invalid or expired token")
			respondError(w, "invalid or expired refresh token", httputil.CodeInvalidRefreshToken, http.StatusUnauthorized)
			return
		}
		logger.Error("token refresh failed: internal error", "error", err.Error())
		respondError(w, "failed to refresh token", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("access token refreshed successfully")

	SetAuthCookies(w, tokens.AccessToken, tokens.RefreshToken, h.cookies)
	httputil.RespondSuccess(w, "Access token refreshed successfully", tokens, http.StatusOK)
}

// Logout handles user logout
// @Summary      User logout
// @Description  Revoke the presented refresh token and clear auth cookies.
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body RefreshRequest false "Refresh token when not sent as a cookie"
// @Success      200 {object} httputil.Envelope
// @Router       /users/logout [post]
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	h.service.Logout(r.Context(), h.refreshTokenFromRequest(r))
	ClearAuthCookies(w, h.cookies)

	logger.Info("user logged out successfully")

	httputil.RespondSuccess(w, "User logged out successfully", nil, http.StatusOK)
}

// refreshTokenFromRequest prefers the cookie and falls back to the JSON body.
func (h *Handler) refreshTokenFromRequest(r *http.Request) string {
	if token, err := GetRefreshTokenFromCookie(r); err == nil {
		return token
	}

	var req RefreshRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		return ""
	}
	return strings.TrimSpace(req.RefreshToken)
}

func (h *Handler) respondOTPError(w http.ResponseWriter, logger *logging.Logger, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidOTP):
		logger.Warn(op+" failed: invalid or expired otp")
		respondError(w, "invalid or expired OTP", httputil.CodeInvalidOTP, http.StatusUnauthorized)
	case errors.Is(err, ErrUserNotFound):
		logger.Warn(op + " failed: user not found")
		respondError(w, "user not found", httputil.CodeUserNotFound, http.StatusNotFound)
	case errors.Is(err, ErrAccountInactive):
		logger.Warn(op + " failed: account inactive")
		respondError(w, "your account has been terminated, please contact support", httputil.CodeAccountInactive, http.StatusForbidden)
	default:
		logger.Error(op+" failed: internal error", "error", err.Error())
		respondError(w, "internal server error", httputil.CodeInternalError, http.StatusInternalServerError)
	}
}

// rateLimited checks and records an attempt for purpose. It writes the 429
// itself. Redis errors fail open.
func (h *Handler) rateLimited(w http.ResponseWriter, r *http.Request, purpose string) bool {
	if h.rateLimiter == nil {
		return false
	}

	logger := logging.GetLoggerFromContext(r.Context())
	ip := getClientIP(r)

	exceeded, err := h.rateLimiter.CheckIPRateLimitWithPurpose(r.Context(), ip, purpose)
	if err != nil {
		logger.Error("failed to check IP rate limit", "error", err.Error())
		return false
	}
	if exceeded {
		logger.Warn("IP rate limit exceeded", "ip", ip, "purpose", purpose)
		respondError(w, "too many requests, please try again later", httputil.CodeTooManyRequests, http.StatusTooManyRequests)
		return true
	}

	if err := h.rateLimiter.RecordIPRequestWithPurpose(r.Context(), ip, purpose); err != nil {
		logger.Error("failed to record IP request", "error", err.Error())
	}
	return false
}

// respondError sends an error response with a machine-readable code
func respondError(w http.ResponseWriter, message string, code string, statusCode int) {
	httputil.RespondErrorWithCode(w, message, code, statusCode)
}

// getClientIP returns the host part of RemoteAddr. When proxy headers are
// trusted, middleware.RealIP has already rewritten it.
func getClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
