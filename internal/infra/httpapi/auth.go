package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/runoshun/tracksync/internal/domain"
)

// AuthClient implements domain.AuthAPI on the raw Client.
// It never goes through the Gateway, so a rejected refresh cannot recurse.
type AuthClient struct {
	client *Client
	clock  domain.Clock
}

// Ensure AuthClient implements domain.AuthAPI.
var _ domain.AuthAPI = (*AuthClient)(nil)

// NewAuthClient creates an AuthClient.
func NewAuthClient(client *Client, clock domain.Clock) *AuthClient {
	return &AuthClient{client: client, clock: clock}
}

type tokenPayload struct {
	User         *domain.Profile `json:"user"`
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
}

func (a *AuthClient) post(ctx context.Context, path string, body, out any) error {
	resp, err := a.client.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return newAPIError(resp)
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

// Login starts an OTP login for email.
func (a *AuthClient) Login(ctx context.Context, email string) (string, error) {
	var out struct {
		LoginSessionToken string `json:"loginSessionToken"`
		Token             string `json:"token"`
	}
	if err := a.post(ctx, "auth/login", map[string]string{"email": email}, &out); err != nil {
		return "", err
	}
	if out.LoginSessionToken != "" {
		return out.LoginSessionToken, nil
	}
	if out.Token != "" {
		return out.Token, nil
	}
	return "", errors.New("login response carried no session token")
}

// VerifyLoginOTP exchanges the login session token and OTP for a credential.
func (a *AuthClient) VerifyLoginOTP(ctx context.Context, sessionToken, otp string) (*domain.Credential, error) {
	var out tokenPayload
	body := map[string]string{"loginSessionToken": sessionToken, "otp": otp}
	if err := a.post(ctx, "auth/verify-login-otp", body, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, errors.New("verify response carried no access token")
	}
	cred := &domain.Credential{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		LastLoginAt:  a.clock.Now(),
	}
	cred.ApplyProfile(out.User)
	return cred, nil
}

// RefreshToken exchanges a refresh token for new tokens.
func (a *AuthClient) RefreshToken(ctx context.Context, refreshToken string) (*domain.RefreshResult, error) {
	var out tokenPayload
	if err := a.post(ctx, "auth/refresh-token", map[string]string{"refreshToken": refreshToken}, &out); err != nil {
		return nil, err
	}
	return &domain.RefreshResult{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		Profile:      out.User,
	}, nil
}

// Logout invalidates the refresh token server-side.
func (a *AuthClient) Logout(ctx context.Context, refreshToken string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return a.post(ctx, "auth/logout", map[string]string{"refreshToken": refreshToken}, nil)
}
