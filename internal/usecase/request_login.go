package usecase

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/runoshun/tracksync/internal/domain"
)

// RequestLoginInput contains the parameters for starting an OTP login.
type RequestLoginInput struct {
	Email string // Address the OTP is sent to
}

// RequestLoginOutput contains the result of starting an OTP login.
type RequestLoginOutput struct {
	Email string // Normalized address
}

// RequestLogin is the use case for starting an OTP login.
type RequestLogin struct {
	auth  domain.AuthAPI
	store domain.SessionStore
}

// NewRequestLogin creates a new RequestLogin use case.
func NewRequestLogin(auth domain.AuthAPI, store domain.SessionStore) *RequestLogin {
	return &RequestLogin{auth: auth, store: store}
}

// Execute validates the address, asks the server to send an OTP and keeps
// the login session token for VerifyLogin.
func (uc *RequestLogin) Execute(ctx context.Context, in RequestLoginInput) (*RequestLoginOutput, error) {
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}

	token, err := uc.auth.Login(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("request login: %w", err)
	}
	if err := uc.store.SaveLoginSession(token); err != nil {
		return nil, err
	}
	return &RequestLoginOutput{Email: email}, nil
}

func normalizeEmail(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || !strings.Contains(s[strings.LastIndex(s, "@")+1:], ".") {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidEmail, s)
	}
	return s, nil
}
