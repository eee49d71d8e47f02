package domain

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credential is the signed-in user record.
// Fields are ordered to minimize memory padding.
type Credential struct {
	LastLoginAt  time.Time `json:"lastLoginAt"`
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	UserID       string    `json:"userId"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Permissions  []string  `json:"permissions,omitempty"`
}

// Profile holds the user fields the server may return alongside tokens.
type Profile struct {
	UserID      string   `json:"_id"`
	Email       string   `json:"email"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
}

// IsLoggedIn reports whether the credential carries an access token.
func (c *Credential) IsLoggedIn() bool {
	return c != nil && c.AccessToken != ""
}

// HasPermission reports whether perm is in the permission set.
func (c *Credential) HasPermission(perm string) bool {
	if c == nil {
		return false
	}
	return slices.Contains(c.Permissions, perm)
}

// ApplyProfile copies non-empty profile fields onto the credential.
// Permissions are replaced as a set (duplicates removed, order kept).
func (c *Credential) ApplyProfile(p *Profile) {
	if p == nil {
		return
	}
	if p.UserID != "" {
		c.UserID = p.UserID
	}
	if p.Email != "" {
		c.Email = p.Email
	}
	if p.Name != "" {
		c.Name = p.Name
	}
	if p.Role != "" {
		c.Role = p.Role
	}
	if p.Permissions != nil {
		c.Permissions = dedupe(p.Permissions)
	}
}

// AccessTokenExpiry returns the exp claim of the access token.
// The signature is not verified; the server remains the authority.
// ok is false when the token is not a JWT or carries no exp.
func (c *Credential) AccessTokenExpiry() (exp time.Time, ok bool) {
	if !c.IsLoggedIn() {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.AccessToken, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// ExpiresWithin reports whether the access token expires before now+skew.
// Tokens without a readable expiry never report as expiring.
func (c *Credential) ExpiresWithin(now time.Time, skew time.Duration) bool {
	exp, ok := c.AccessTokenExpiry()
	if !ok {
		return false
	}
	return !exp.After(now.Add(skew))
}

// Clone returns a deep copy.
func (c *Credential) Clone() *Credential {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Permissions = slices.Clone(c.Permissions)
	return &cp
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
