package contact

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/email"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/httputil"
	"github.com/Mr-HimanshuMaurya/Buddy-backend/internal/logging"
)

type fakeStore struct {
	mu       sync.Mutex
	contacts map[uuid.UUID]*Contact
	lastList ListFilter
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{contacts: make(map[uuid.UUID]*Contact)}
}

func (s *fakeStore) Create(_ context.Context, c *Contact) (*Contact, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *c
	stored.ID = uuid.New()
	stored.CreatedAt = time.Now()
	s.contacts[stored.ID] = &stored
	return &stored, nil
}

func (s *fakeStore) List(_ context.Context, f ListFilter) ([]*Contact, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastList = f
	var out []*Contact
	for _, c := range s.contacts {
		if f.Type == "" || c.Type == f.Type {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func (s *fakeStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contacts[id]; !ok {
		return ErrNotFound
	}
	delete(s.contacts, id)
	return nil
}

type fakeNotifier struct {
	sent chan email.ContactDetails
	to   chan string
	err  error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{sent: make(chan email.ContactDetails, 1), to: make(chan string, 1)}
}

func (n *fakeNotifier) SendContactNotification(_ context.Context, to string, d email.ContactDetails) error {
	n.to <- to
	n.sent <- d
	return n.err
}

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(logging.WithLogger(r.Context(), logging.NewNop())))
		})
	})
	r.Post("/contact", h.SubmitContact)
	r.Post("/enquiry", h.SubmitEnquiry)
	r.Get("/details", h.List)
	r.Delete("/{id}", h.Delete)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))
	return rec
}

func TestSubmitEnquiry_StoresAndNotifies(t *testing.T) {
	store := newFakeStore()
	notifier := newFakeNotifier()
	router := newTestRouter(NewHandler(store, notifier, "staff@example.com"))

	rec := do(t, router, http.MethodPost, "/enquiry", map[string]string{
		"name":    " Ravi ",
		"email":   "Ravi@Example.COM",
		"number":  "555",
		"message": "Is the flat free?",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var env struct {
		Success bool    `json:"success"`
		Data    Contact `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.True(t, env.Success)
	assert.Equal(t, "Ravi", env.Data.Name)
	assert.Equal(t, "ravi@example.com", env.Data.Email)
	assert.Equal(t, TypeEnquiry, env.Data.Type)

	select {
	case d := <-notifier.sent:
		assert.Equal(t, "staff@example.com", <-notifier.to)
		assert.Equal(t, "enquiry", d.Type)
		assert.Equal(t, "Is the flat free?", d.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not sent")
	}
}

func TestSubmit_NotificationFailureIsIgnored(t *testing.T) {
	notifier := newFakeNotifier()
	notifier.err = errors.New("smtp down")
	router := newTestRouter(NewHandler(newFakeStore(), notifier, "staff@example.com"))

	rec := do(t, router, http.MethodPost, "/contact", map[string]string{"name": "A", "number": "1", "message": "hi"})
	assert.Equal(t, http.StatusCreated, rec.Code)

	select {
	case <-notifier.sent:
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not attempted")
	}
}

func TestSubmit_NoNotifyAddress(t *testing.T) {
	notifier := newFakeNotifier()
	router := newTestRouter(NewHandler(newFakeStore(), notifier, ""))

	rec := do(t, router, http.MethodPost, "/contact", map[string]string{"name": "A", "number": "1", "message": "hi"})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Empty(t, notifier.sent)
}

func TestSubmit_Validation(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(NewHandler(store, nil, ""))

	tests := []struct {
		name string
		body map[string]string
		code string
	}{
		{"missing message", map[string]string{"name": "A", "number": "1"}, httputil.CodeValidationFailed},
		{"blank name", map[string]string{"name": "   ", "number": "1", "message": "m"}, httputil.CodeValidationFailed},
		{"blank number", map[string]string{"name": "A", "number": " ", "message": "m"}, httputil.CodeValidationFailed},
		{"blank message", map[string]string{"name": "A", "number": "1", "message": "\n"}, httputil.CodeValidationFailed},
		{"bad email", map[string]string{"name": "A", "number": "1", "message": "m", "email": "nope"}, httputil.CodeValidationFailed},
		{"unknown field", map[string]string{"name": "A", "number": "1", "message": "m", "type": "enquiry"}, httputil.CodeInvalidRequestBody},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, "/contact", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp httputil.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.code, resp.Code)
		})
	}
	assert.Empty(t, store.contacts)
}

func TestSubmit_StoreError(t *testing.T) {
	store := newFakeStore()
	store.err = errors.New("db down")
	router := newTestRouter(NewHandler(store, nil, ""))

	rec := do(t, router, http.MethodPost, "/contact", map[string]string{"name": "A", "number": "1", "message": "m"})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestList(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(NewHandler(store, nil, ""))
	do(t, router, http.MethodPost, "/contact", map[string]string{"name": "A", "number": "1", "message": "m"})
	do(t, router, http.MethodPost, "/enquiry", map[string]string{"name": "B", "number": "2", "message": "m"})

	rec := do(t, router, http.MethodGet, "/details?type=enquiry&page=2&limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var env struct {
		Data ListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, 1, env.Data.Total)
	assert.Equal(t, 2, env.Data.Page)
	assert.Equal(t, 5, env.Data.Limit)
	assert.Equal(t, 1, env.Data.TotalPages)
	assert.Equal(t, ListFilter{Type: TypeEnquiry, Limit: 5, Offset: 5}, store.lastList)

	rec = do(t, router, http.MethodGet, "/details?type=spam", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_Delete(t *testing.T) {
	store := newFakeStore()
	router := newTestRouter(NewHandler(store, nil, ""))
	c, err := store.Create(context.Background(), &Contact{Name: "A", Number: "1", Message: "m", Type: TypeContact})
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, do(t, router, http.MethodDelete, "/not-a-uuid", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, router, http.MethodDelete, "/"+c.ID.String(), nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, router, http.MethodDelete, "/"+c.ID.String(), nil).Code)
}
