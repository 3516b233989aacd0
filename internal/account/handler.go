// Package account serves the authenticated user-management routes: the
// caller's own profile, the admin user list, profile edits, soft delete and
// password change.
package account

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/auth"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/httputil"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/logging"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/user"
)

// UserStore is the read/update side of the credential store.
type UserStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*user.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, upd user.ProfileUpdate) (*user.User, error)
	List(ctx context.Context, f user.ListFilter) ([]*user.User, int, error)
}

// CredentialService performs the account changes that touch sessions.
type CredentialService interface {
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword string) error
	Deactivate(ctx context.Context, userID uuid.UUID) error
}

type Handler struct {
	users       UserStore
	credentials CredentialService
	cookies     auth.CookieSettings
}

func NewHandler(users UserStore, credentials CredentialService, cookies auth.CookieSettings) *Handler {
	return &Handler{users: users, credentials: credentials, cookies: cookies}
}

// UpdateProfileRequest lists the only fields a profile update may carry.
// Anything else in the body is rejected.
type UpdateProfileRequest struct {
	Firstname *string `json:"firstname,omitempty"`
	Lastname  *string `json:"lastname,omitempty"`
}

// ChangePasswordRequest represents the password change body
type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required"`
}

// ListResponse is one page of users
type ListResponse struct {
	Users      []*user.User `json:"users"`
	Total      int          `json:"total"`
	Page       int          `json:"page"`
	Limit      int          `json:"limit"`
	TotalPages int          `json:"totalPages"`
}

// Me returns the authenticated user
// @Summary      Current user
// @Tags         users
// @Produce      json
// @Success      200 {object} httputil.Envelope{data=user.User}
// @Failure      401 {object} httputil.ErrorResponse "Not authenticated"
// @Security     BearerAuth
// @Router       /users/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "authentication required", httputil.CodeUnauthenticated, http.StatusUnauthorized)
		return
	}
	httputil.RespondSuccess(w, "User fetched successfully", u, http.StatusOK)
}

// List returns a page of users
// @Summary      List users
// @Description  Admin only. Newest first, optionally filtered by role.
// @Tags         users
// @Produce      json
// @Param        role  query string false "tenant, owner or admin"
// @Param        page  query int    false "Page number" default(1)
// @Param        limit query int    false "Page size" default(10)
// @Success      200 {object} httputil.Envelope{data=ListResponse}
// @Failure      400 {object} httputil.ErrorResponse "Unknown role"
// @Failure      403 {object} httputil.ErrorResponse "Not an admin"
// @Security     BearerAuth
// @Router       /users [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	role := user.Role(strings.ToLower(r.URL.Query().Get("role")))
	if role != "" && !role.Valid() {
		httputil.RespondErrorWithCode(w, "role must be tenant, owner or admin", httputil.CodeInvalidRole, http.StatusBadRequest)
		return
	}

	page := httputil.ParsePage(r)
	users, total, err := h.users.List(r.Context(), user.ListFilter{
		Role:   role,
		Limit:  page.Limit,
		Offset: page.Offset(),
	})
	if err != nil {
		logger.Error("failed to list users", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to fetch users", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondSuccess(w, "Users fetched successfully", ListResponse{
		Users:      users,
		Total:      total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: page.TotalPages(total),
	}, http.StatusOK)
}

// Get returns one user
// @Summary      Get user
// @Description  The user themself or an admin.
// @Tags         users
// @Produce      json
// @Param        id path string true "User ID"
// @Success      200 {object} httputil.Envelope{data=user.User}
// @Failure      403 {object} httputil.ErrorResponse "Another user's account"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Security     BearerAuth
// @Router       /users/{id} [get]
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	id, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}

	u, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			httputil.RespondErrorWithCode(w, "user not found", httputil.CodeUserNotFound, http.StatusNotFound)
			return
		}
		logger.Error("failed to get user", "target_id", id, "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to fetch user", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondSuccess(w, "User fetched successfully", u, http.StatusOK)
}

// Update edits a user's name
// @Summary      Update user
// @Description  Only firstname and lastname can change here. Any other field is rejected.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        id      path string               true "User ID"
// @Param        request body UpdateProfileRequest true "Fields to change"
// @Success      200 {object} httputil.Envelope{data=user.User}
// @Failure      400 {object} httputil.ErrorResponse "Unknown field or empty value"
// @Failure      403 {object} httputil.ErrorResponse "Another user's account"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Security     BearerAuth
// @Router       /users/{id} [put]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	id, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}

	var req UpdateProfileRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid profile update body", "error", err.Error())
		httputil.RespondDecodeError(w, err)
		return
	}

	upd, err := req.toUpdate()
	if err != nil {
		httputil.RespondErrorWithCode(w, err.Error(), httputil.CodeValidationFailed, http.StatusBadRequest)
		return
	}

	u, err := h.users.UpdateProfile(r.Context(), id, upd)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			httputil.RespondErrorWithCode(w, "user not found", httputil.CodeUserNotFound, http.StatusNotFound)
			return
		}
		logger.Error("failed to update profile", "target_id", id, "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to update user", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("profile updated", "target_id", id)
	httputil.RespondSuccess(w, "User updated successfully", u, http.StatusOK)
}

var errBlankName = errors.New("firstname and lastname cannot be blank")

func (req UpdateProfileRequest) toUpdate() (user.ProfileUpdate, error) {
	var upd user.ProfileUpdate
	if req.Firstname != nil {
		v := strings.TrimSpace(*req.Firstname)
		if v == "" {
			return upd, errBlankName
		}
		upd.Firstname = &v
	}
	if req.Lastname != nil {
		v := strings.TrimSpace(*req.Lastname)
		if v == "" {
			return upd, errBlankName
		}
		upd.Lastname = &v
	}
	return upd, nil
}

// Delete soft deletes a user
// @Summary      Delete user
// @Description  Deactivates the account and signs it out everywhere.
// @Tags         users
// @Produce      json
// @Param        id path string true "User ID"
// @Success      200 {object} httputil.Envelope
// @Failure      403 {object} httputil.ErrorResponse "Another user's account"
// @Failure      404 {object} httputil.ErrorResponse "User not found"
// @Security     BearerAuth
// @Router       /users/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	id, ok := h.authorizeTarget(w, r)
	if !ok {
		return
	}

	if err := h.credentials.Deactivate(r.Context(), id); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			httputil.RespondErrorWithCode(w, "user not found", httputil.CodeUserNotFound, http.StatusNotFound)
			return
		}
		logger.Error("failed to deactivate user", "target_id", id, "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to delete user", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	if caller, _ := auth.UserFromContext(r.Context()); caller.ID == id {
		auth.ClearAuthCookies(w, h.cookies)
	}

	logger.Info("user deactivated", "target_id", id)
	httputil.RespondSuccess(w, "User deleted successfully", nil, http.StatusOK)
}

// ChangePassword changes the caller's password
// @Summary      Change password
// @Description  Requires the current password. Every refresh token of the account is revoked.
// @Tags         users
// @Accept       json
// @Produce      json
// @Param        request body ChangePasswordRequest true "Old and new password"
// @Success      200 {object} httputil.Envelope
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Wrong current password"
// @Security     BearerAuth
// @Router       /users/password [put]
func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "authentication required", httputil.CodeUnauthenticated, http.StatusUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondDecodeError(w, err)
		return
	}

	err := h.credentials.ChangePassword(r.Context(), caller.ID, req.OldPassword, req.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrPasswordTooShort):
			httputil.RespondErrorWithCode(w, err.Error(), httputil.CodePasswordTooShort, http.StatusBadRequest)
		case errors.Is(err, auth.ErrInvalidCredentials):
			logger.Warn("password change failed: wrong current password")
			httputil.RespondErrorWithCode(w, "invalid old password", httputil.CodeInvalidCredentials, http.StatusUnauthorized)
		case errors.Is(err, auth.ErrUserNotFound):
			httputil.RespondErrorWithCode(w, "user not found", httputil.CodeUserNotFound, http.StatusNotFound)
		default:
			logger.Error("password change failed: internal error", "error", err.Error())
			httputil.RespondErrorWithCode(w, "failed to update password", httputil.CodeInternalError, http.StatusInternalServerError)
		}
		return
	}

	logger.Info("password changed")
	httputil.RespondSuccess(w, "Password updated successfully", nil, http.StatusOK)
}

// authorizeTarget parses {id} and checks that the caller is that user or an
// admin. It writes the error response itself.
func (h *Handler) authorizeTarget(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		httputil.RespondErrorWithCode(w, "authentication required", httputil.CodeUnauthenticated, http.StatusUnauthorized)
		return uuid.Nil, false
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid user id", httputil.CodeInvalidID, http.StatusBadRequest)
		return uuid.Nil, false
	}

	if caller.ID != id && caller.Role != user.RoleAdmin {
		logging.GetLoggerFromContext(r.Context()).Warn("access to another user's account denied", "target_id", id)
		httputil.RespondErrorWithCode(w, "you do not have permission to access this resource", httputil.CodeForbidden, http.StatusForbidden)
		return uuid.Nil, false
	}

	return id, true
}
