package domain

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"sub": "u1", "exp": exp.Unix()}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)
	return s
}

func TestCredential_IsLoggedIn(t *testing.T) {
	var nilCred *Credential
	assert.False(t, nilCred.IsLoggedIn())
	assert.False(t, (&Credential{RefreshToken: "r"}).IsLoggedIn())
	assert.True(t, (&Credential{AccessToken: "a"}).IsLoggedIn())
}

func TestCredential_AccessTokenExpiry(t *testing.T) {
	exp := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cred := &Credential{AccessToken: signedToken(t, exp)}

	got, ok := cred.AccessTokenExpiry()
	require.True(t, ok)
	assert.True(t, got.Equal(exp))
}

func TestCredential_AccessTokenExpiry_OpaqueToken(t *testing.T) {
	cred := &Credential{AccessToken: "opaque-token"}

	_, ok := cred.AccessTokenExpiry()
	assert.False(t, ok)
	assert.False(t, cred.ExpiresWithin(time.Now(), time.Hour), "opaque tokens never expire locally")
}

func TestCredential_ExpiresWithin(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		exp  time.Time
		want bool
	}{
		{"already expired", now.Add(-time.Minute), true},
		{"inside skew", now.Add(10 * time.Second), true},
		{"outside skew", now.Add(5 * time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred := &Credential{AccessToken: signedToken(t, tt.exp)}
			assert.Equal(t, tt.want, cred.ExpiresWithin(now, 30*time.Second))
		})
	}
}

func TestCredential_ApplyProfile(t *testing.T) {
	cred := &Credential{AccessToken: "a", Email: "old@x.com", Name: "Old"}

	cred.ApplyProfile(&Profile{Name: "New", Permissions: []string{"report", "report", "admin"}})

	assert.Equal(t, "old@x.com", cred.Email, "empty profile fields keep existing values")
	assert.Equal(t, "New", cred.Name)
	assert.Equal(t, []string{"report", "admin"}, cred.Permissions)
	assert.True(t, cred.HasPermission("admin"))
	assert.False(t, cred.HasPermission("owner"))
}

func TestCredential_Clone(t *testing.T) {
	cred := &Credential{AccessToken: "a", Permissions: []string{"p"}}

	cp := cred.Clone()
	cp.Permissions[0] = "changed"

	assert.Equal(t, "p", cred.Permissions[0])
}
