package httputil

// Machine-readable error codes returned in ErrorResponse.Code.
const (
	CodeInternalError      = "INTERNAL_ERROR"
	CodeInvalidRequestBody = "INVALID_REQUEST_BODY"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeTooManyRequests    = "TOO_MANY_REQUESTS"
	CodeCooldownActive     = "COOLDOWN_ACTIVE"
	CodeNotFound           = "NOT_FOUND"
	CodeInvalidID          = "INVALID_ID"

	// Registration
	CodeUserAlreadyExists  = "USER_ALREADY_EXISTS"
	CodeAdminAlreadyExists = "ADMIN_ALREADY_EXISTS"
	CodeInvalidEmailFormat = "INVALID_EMAIL_FORMAT"
	CodePasswordTooShort   = "PASSWORD_TOO_SHORT"
	CodeInvalidRole        = "INVALID_ROLE"

	// Login / OTP
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeInvalidOTP         = "INVALID_OTP"
	CodeAccountInactive    = "ACCOUNT_INACTIVE"
	CodeUserNotFound       = "USER_NOT_FOUND"
	CodeDeliveryFailed     = "OTP_DELIVERY_FAILED"

	// Tokens / session boundary
	CodeMissingAuth          = "MISSING_AUTH"
	CodeInvalidAuthHeader    = "INVALID_AUTH_HEADER"
	CodeUnauthenticated      = "UNAUTHENTICATED"
	CodeForbidden            = "FORBIDDEN"
	CodeRefreshTokenRequired = "REFRESH_TOKEN_REQUIRED"
	CodeInvalidRefreshToken  = "INVALID_REFRESH_TOKEN"
)
