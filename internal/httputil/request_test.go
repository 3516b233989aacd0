package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"otp" validate:"required,len=6,numeric"`
	Name  string `json:"name,omitempty" validate:"omitempty,notblank"`
}

func newRequest(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantFields []string
		wantErr    bool
	}{
		{name: "ok", body: `{"email":"a@x.com","otp":"123456"}`},
		{name: "missing otp", body: `{"email":"a@x.com"}`, wantFields: []string{"otp"}},
		{name: "blank name", body: `{"email":"a@x.com","otp":"123456","name":"  "}`, wantFields: []string{"name"}},
		{name: "bad email and otp", body: `{"email":"nope","otp":"12"}`, wantFields: []string{"email", "otp"}},
		{name: "unknown field", body: `{"email":"a@x.com","otp":"123456","role":"admin"}`, wantErr: true},
		{name: "trailing data", body: `{"email":"a@x.com","otp":"123456"}{}`, wantErr: true},
		{name: "empty", body: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req sampleRequest
			err := DecodeJSON(newRequest(tt.body), &req)

			switch {
			case tt.wantFields != nil:
				var verr *ValidationError
				require.True(t, errors.As(err, &verr), "got %v", err)
				assert.Equal(t, tt.wantFields, verr.Fields)
			case tt.wantErr:
				require.Error(t, err)
				var verr *ValidationError
				assert.False(t, errors.As(err, &verr))
			default:
				require.NoError(t, err)
				assert.Equal(t, "a@x.com", req.Email)
			}
		})
	}
}

func TestRespondSuccess_NilDataIsEmptyObject(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondSuccess(rec, "done", nil, http.StatusOK)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, true, got["success"])
	assert.Equal(t, "done", got["message"])
	assert.Equal(t, map[string]any{}, got["data"])
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestRespondDecodeError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondDecodeError(rec, &ValidationError{Fields: []string{"email"}})

	var got ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, CodeValidationFailed, got.Code)
	assert.False(t, got.Success)
}
