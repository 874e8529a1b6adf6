package adminctl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/auth/register", r.URL.Path)

		var req registerRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "admin@example.com", req.Email)
		require.Equal(t, "Passw0rd", req.Password)
		require.Equal(t, "Admin", req.DisplayName)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(TokenPair{AccessToken: "at", RefreshToken: "rt"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	pair, err := c.Register(context.Background(), "admin@example.com", "Passw0rd", "Admin")
	require.NoError(t, err)
	require.Equal(t, "at", pair.AccessToken)
	require.Equal(t, "rt", pair.RefreshToken)
}

func TestRegister_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "email already registered"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.Register(context.Background(), "admin@example.com", "Passw0rd", "Admin")
	require.ErrorContains(t, err, "email already registered")
}

func TestRegister_ConnectionRefused(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	_, err := c.Register(context.Background(), "admin@example.com", "Passw0rd", "Admin")
	require.Error(t, err)
}
