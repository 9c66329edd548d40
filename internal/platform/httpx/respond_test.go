package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fieldsErr struct{ fields map[string]string }

func (e fieldsErr) Error() string                  { return "invalid" }
func (e fieldsErr) Unwrap() error                  { return ErrValidation }
func (e fieldsErr) FieldErrors() map[string]string { return e.fields }

func TestRespondErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("invoice: %w", ErrNotFound), http.StatusNotFound},
		{ErrValidation, http.StatusBadRequest},
		{fmt.Errorf("render: %w", ErrUnprocessable), http.StatusUnprocessableEntity},
		{fmt.Errorf("email: %w", ErrUpstream), http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		assert.Equal(t, tc.status, rec.Code, tc.err.Error())
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}

func TestRespondErrorCarriesFields(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, fieldsErr{fields: map[string]string{"clientName": "required"}})

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "required", body.Fields["clientName"])
}
