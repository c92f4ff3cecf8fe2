package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRespondError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("%w: bad body", ErrValidation), http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code)
		require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

		var p ProblemDetail
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
		require.Equal(t, tc.status, p.Status)
	}
}

func TestWriteProblemDefaultsTitle(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteProblem(rec, ProblemDetail{Status: http.StatusConflict, Kind: "period_closed", Errors: map[string]any{"period_id": 4}})

	var p map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Equal(t, "Conflict", p["title"])
	require.Equal(t, "period_closed", p["kind"])
	require.Equal(t, float64(4), p["errors"].(map[string]any)["period_id"])
}
