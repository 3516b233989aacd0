package contact

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/email"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/httputil"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/logging"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/metrics"
)

// Store is the persistence the handler needs.
type Store interface {
	Create(ctx context.Context, c *Contact) (*Contact, error)
	List(ctx context.Context, f ListFilter) ([]*Contact, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Notifier forwards new submissions to staff.
type Notifier interface {
	SendContactNotification(ctx context.Context, toEmail string, d email.ContactDetails) error
}

type Handler struct {
	store    Store
	notifier Notifier
	notifyTo string
}

// NewHandler builds the contact handler. Notifications are skipped when
// notifier is nil or notifyTo is empty.
func NewHandler(store Store, notifier Notifier, notifyTo string) *Handler {
	return &Handler{store: store, notifier: notifier, notifyTo: notifyTo}
}

// SubmitRequest is the body of a contact or enquiry submission
type SubmitRequest struct {
	Name    string `json:"name" validate:"required,notblank"`
	Email   string `json:"email,omitempty" validate:"omitempty,email"`
	Number  string `json:"number" validate:"required,notblank"`
	City    string `json:"city,omitempty"`
	Message string `json:"message" validate:"required,notblank"`
}

// ListResponse is one page of submissions
type ListResponse struct {
	Contacts   []*Contact `json:"contacts"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	TotalPages int        `json:"totalPages"`
}

// SubmitContact handles general contact messages
// @Summary      Send a contact message
// @Tags         contact
// @Accept       json
// @Produce      json
// @Param        request body SubmitRequest true "Contact details"
// @Success      201 {object} httputil.Envelope{data=Contact}
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Router       /contact/contact [post]
func (h *Handler) SubmitContact(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, TypeContact)
}

// SubmitEnquiry handles property enquiries
// @Summary      Send a property enquiry
// @Tags         contact
// @Accept       json
// @Produce      json
// @Param        request body SubmitRequest true "Enquiry details"
// @Success      201 {object} httputil.Envelope{data=Contact}
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Router       /contact/enquiry [post]
func (h *Handler) SubmitEnquiry(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, TypeEnquiry)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request, typ Type) {
	logger := logging.GetLoggerFromContext(r.Context())

	var req SubmitRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		logger.Warn("invalid contact request body", "error", err.Error())
		httputil.RespondDecodeError(w, err)
		return
	}

	c, err := h.store.Create(r.Context(), &Contact{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.ToLower(strings.TrimSpace(req.Email)),
		Number:  strings.TrimSpace(req.Number),
		City:    strings.TrimSpace(req.City),
		Message: strings.TrimSpace(req.Message),
		Type:    typ,
	})
	if err != nil {
		logger.Error("failed to store contact", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to submit "+string(typ), httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	metrics.ContactSubmissionsTotal.WithLabelValues(string(typ)).Inc()
	logger.Info("contact submitted", "contact_id", c.ID, "type", typ)

	h.notify(r.Context(), c)

	httputil.RespondSuccess(w, "Thank you, we will get back to you soon", c, http.StatusCreated)
}

// notify sends the staff email in the background. The request context is
// detached so the send outlives the response.
func (h *Handler) notify(ctx context.Context, c *Contact) {
	if h.notifier == nil || h.notifyTo == "" {
		return
	}

	ctx = context.WithoutCancel(ctx)
	go func() {
		err := h.notifier.SendContactNotification(ctx, h.notifyTo, email.ContactDetails{
			Type:    string(c.Type),
			Name:    c.Name,
			Email:   c.Email,
			Number:  c.Number,
			City:    c.City,
			Message: c.Message,
		})
		if err != nil {
			logging.GetLoggerFromContext(ctx).Error("failed to send contact notification", "contact_id", c.ID, "error", err.Error())
		}
	}()
}

// List handles the admin listing of submissions
// @Summary      List contact submissions
// @Tags         contact
// @Produce      json
// @Param        type  query string false "contact or enquiry"
// @Param        page  query int    false "Page number" default(1)
// @Param        limit query int    false "Page size" default(10)
// @Success      200 {object} httputil.Envelope{data=ListResponse}
// @Failure      400 {object} httputil.ErrorResponse "Unknown type"
// @Failure      401 {object} httputil.ErrorResponse "Not authenticated"
// @Failure      403 {object} httputil.ErrorResponse "Not an admin"
// @Security     BearerAuth
// @Router       /contact/details [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	typ := Type(strings.ToLower(r.URL.Query().Get("type")))
	if typ != "" && !typ.Valid() {
		httputil.RespondErrorWithCode(w, "type must be contact or enquiry", httputil.CodeValidationFailed, http.StatusBadRequest)
		return
	}

	page := httputil.ParsePage(r)
	contacts, total, err := h.store.List(r.Context(), ListFilter{
		Type:   typ,
		Limit:  page.Limit,
		Offset: page.Offset(),
	})
	if err != nil {
		logger.Error("failed to list contacts", "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to fetch contacts", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	httputil.RespondSuccess(w, "Contacts fetched successfully", ListResponse{
		Contacts:   contacts,
		Total:      total,
		Page:       page.Page,
		Limit:      page.Limit,
		TotalPages: page.TotalPages(total),
	}, http.StatusOK)
}

// Delete handles removal of a submission
// @Summary      Delete a contact submission
// @Tags         contact
// @Produce      json
// @Param        id path string true "Contact ID"
// @Success      200 {object} httputil.Envelope
// @Failure      400 {object} httputil.ErrorResponse "Invalid ID"
// @Failure      404 {object} httputil.ErrorResponse "Contact not found"
// @Security     BearerAuth
// @Router       /contact/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	logger := logging.GetLoggerFromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.RespondErrorWithCode(w, "invalid contact id", httputil.CodeInvalidID, http.StatusBadRequest)
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrNotFound) {
			httputil.RespondErrorWithCode(w, "contact not found", httputil.CodeNotFound, http.StatusNotFound)
			return
		}
		logger.Error("failed to delete contact", "contact_id", id, "error", err.Error())
		httputil.RespondErrorWithCode(w, "failed to delete contact", httputil.CodeInternalError, http.StatusInternalServerError)
		return
	}

	logger.Info("contact deleted", "contact_id", id)
	httputil.RespondSuccess(w, "Contact deleted successfully", nil, http.StatusOK)
}
