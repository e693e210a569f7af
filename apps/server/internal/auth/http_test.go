package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(h *HTTPHandler, method, path, body, token string) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHTTPRegisterMeLogout(t *testing.T) {
	h := NewHTTPHandler(newMemory())

	rec := serve(h, http.MethodPost, "/api/auth/register", `{"username":"carol_9","password":"hunter22"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp authResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionToken)

	rec = serve(h, http.MethodGet, "/api/auth/me", "", resp.SessionToken)
	require.Equal(t, http.StatusOK, rec.Code)
	var me Account
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "carol_9", me.Username)

	rec = serve(h, http.MethodPost, "/api/auth/register", `{"username":"carol_9","password":"hunter22"}`, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = serve(h, http.MethodPost, "/api/auth/logout", "", resp.SessionToken)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = serve(h, http.MethodGet, "/api/auth/me", "", resp.SessionToken)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHTTPRejectsBadRequests(t *testing.T) {
	h := NewHTTPHandler(newMemory())

	assert.Equal(t, http.StatusMethodNotAllowed, serve(h, http.MethodGet, "/api/auth/login", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, serve(h, http.MethodPost, "/api/auth/login", `{"user":"x"}`, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodPost, "/api/auth/login", `{"username":"x","password":"y"}`, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodPost, "/api/auth/logout", "", "").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodPost, "/api/auth/guest", "", "").Code)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", BearerToken("Bearer abc"))
	assert.Equal(t, "", BearerToken("Basic abc"))
	assert.Equal(t, "", BearerToken(""))
}
