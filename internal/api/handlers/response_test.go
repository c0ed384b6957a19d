package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-SettlementService/internal/domain"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{domain.NewError(domain.ErrValidation, "bad"), http.StatusBadRequest},
		{domain.NewError(domain.ErrNotFound, "missing"), http.StatusNotFound},
		{domain.NewError(domain.ErrInvalidTransition, "no"), http.StatusConflict},
		{domain.NewError(domain.ErrRefundRequired, "refund"), http.StatusConflict},
		{domain.NewError(domain.ErrSignatureRejected, "forged"), http.StatusOK},
		{domain.NewError(domain.ErrPreconditionFailed, "race"), http.StatusConflict},
		{domain.NewError(domain.ErrGatewayUnavailable, "down"), http.StatusAccepted},
		{domain.NewError(domain.ErrInternal, "boom"), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, StatusOf(tt.err), tt.err.Error())
	}
}

func TestRespondDomainError(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondDomainError(rec, domain.NewError(domain.ErrRefundRequired, "booking 7 has a completed payment"))

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "RefundRequired", body.Kind)
	assert.Equal(t, "booking 7 has a completed payment", body.Error)

	rec = httptest.NewRecorder()
	RespondDomainError(rec, domain.WrapError(domain.ErrInternal, errors.New("pq: connection refused"), "failed"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pq:")
}

func TestDecodeAndValidate(t *testing.T) {
	type payload struct {
		ID    int64  `json:"id" validate:"required,gt=0"`
		Email string `json:"email" validate:"omitempty,email"`
	}

	tests := []struct {
		name string
		body string
		ok   bool
	}{
		{"valid", `{"id":1,"email":"a@b.co"}`, true},
		{"missing id", `{"email":"a@b.co"}`, false},
		{"bad email", `{"id":1,"email":"nope"}`, false},
		{"unknown field", `{"id":1,"extra":true}`, false},
		{"broken json", `{"id":`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var dst payload
			err := DecodeAndValidate(r, &dst)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
