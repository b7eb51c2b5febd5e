package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("user 7: %w", ErrNotFound), http.StatusNotFound},
		{errors.Join(ErrValidation, errors.New("page")), http.StatusBadRequest},
		{ErrForbidden, http.StatusForbidden},
		{ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("build snapshot: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		err, status := tc.err, tc.status
		rr := httptest.NewRecorder()
		RespondError(rr, err)
		require.Equal(t, status, rr.Code)
		require.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))

		var problem ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
		require.Equal(t, status, problem.Status)
		require.Equal(t, "about:blank", problem.Type)
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, errors.New("pq: password authentication failed"))
	require.NotContains(t, rr.Body.String(), "password")
}

func TestJSONKeepsPlainContentType(t *testing.T) {
	rr := httptest.NewRecorder()
	JSON(rr, http.StatusOK, map[string]string{"status": "ok"})
	require.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	require.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestProblemDefaultsTitle(t *testing.T) {
	rr := httptest.NewRecorder()
	Problem(rr, http.StatusTooManyRequests, "", "slow down")

	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &problem))
	require.Equal(t, "Too Many Requests", problem.Title)
	require.Equal(t, "slow down", problem.Detail)
	require.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
}

func TestDecodeJSON(t *testing.T) {
	var form struct {
		Email string `json:"email"`
	}
	ok := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@firm.test"}`))
	require.NoError(t, DecodeJSON(ok, &form))
	require.Equal(t, "a@firm.test", form.Email)

	trailing := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a"} {"email":"b"}`))
	require.Error(t, DecodeJSON(trailing, &form))

	require.Error(t, DecodeJSON(httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`)), &form))
}
