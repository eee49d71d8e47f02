package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/runoshun/tracksync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthClient_LoginAndVerify(t *testing.T) {
	// Setup
	var verifyBody map[string]string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/api/v1/auth/login":
			_, _ = w.Write([]byte(`{"data":{"loginSessionToken":"ls-1"}}`))
		case "/api/v1/auth/verify-login-otp":
			_ = json.NewDecoder(r.Body).Decode(&verifyBody)
			_, _ = w.Write([]byte(`{"data":{"accessToken":"a1","refreshToken":"r1","user":{"_id":"u1","email":"a@x.com","name":"Ada","role":"member","permissions":["time:write"]}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	auth := NewAuthClient(client, testutil.NewMockClock(now))

	// Execute
	token, err := auth.Login(context.Background(), "a@x.com")
	require.NoError(t, err)
	cred, err := auth.VerifyLoginOTP(context.Background(), token, "123456")
	require.NoError(t, err)

	// Assert
	assert.Equal(t, "ls-1", token)
	assert.Equal(t, map[string]string{"loginSessionToken": "ls-1", "otp": "123456"}, verifyBody)
	assert.Equal(t, "a1", cred.AccessToken)
	assert.Equal(t, "r1", cred.RefreshToken)
	assert.Equal(t, "u1", cred.UserID)
	assert.Equal(t, "Ada", cred.Name)
	assert.Equal(t, []string{"time:write"}, cred.Permissions)
	assert.Equal(t, now, cred.LastLoginAt)
}

func TestAuthClient_VerifyRejected(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Invalid OTP"}`))
	})
	auth := NewAuthClient(client, testutil.NewMockClock(time.Now()))

	_, err := auth.VerifyLoginOTP(context.Background(), "ls-1", "000000")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid OTP", apiErr.Message)
}

func TestAuthClient_RefreshToken(t *testing.T) {
	var sent map[string]string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/auth/refresh-token", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&sent)
		_, _ = w.Write([]byte(`{"accessToken":"a2"}`))
	})
	auth := NewAuthClient(client, testutil.NewMockClock(time.Now()))

	res, err := auth.RefreshToken(context.Background(), "r1")

	require.NoError(t, err)
	assert.Equal(t, "r1", sent["refreshToken"])
	assert.Equal(t, "a2", res.AccessToken)
	assert.Empty(t, res.RefreshToken)
	assert.Nil(t, res.Profile)
}

func TestAuthClient_RefreshRejectedIsNotRetried(t *testing.T) {
	calls := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	})
	auth := NewAuthClient(client, testutil.NewMockClock(time.Now()))

	_, err := auth.RefreshToken(context.Background(), "r1")

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestAuthClient_Logout(t *testing.T) {
	var path string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
	})
	auth := NewAuthClient(client, testutil.NewMockClock(time.Now()))

	require.NoError(t, auth.Logout(context.Background(), "r1"))
	assert.Equal(t, "/api/v1/auth/logout", path)
}
