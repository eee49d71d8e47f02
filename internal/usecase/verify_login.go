package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/runoshun/tracksync/internal/domain"
)

// VerifyLoginInput contains the parameters for completing an OTP login.
type VerifyLoginInput struct {
	OTP string // One-time password from the email
}

// VerifyLoginOutput contains the result of completing an OTP login.
type VerifyLoginOutput struct {
	Credential *domain.Credential // The signed-in user
}

// VerifyLogin is the use case for completing an OTP login.
type VerifyLogin struct {
	auth    domain.AuthAPI
	store   domain.SessionStore
	session SessionArmer
}

// NewVerifyLogin creates a new VerifyLogin use case.
func NewVerifyLogin(auth domain.AuthAPI, store domain.SessionStore, session SessionArmer) *VerifyLogin {
	return &VerifyLogin{auth: auth, store: store, session: session}
}

// Execute exchanges the OTP for a credential and saves it.
func (uc *VerifyLogin) Execute(ctx context.Context, in VerifyLoginInput) (*VerifyLoginOutput, error) {
	otp := strings.TrimSpace(in.OTP)
	if otp == "" {
		return nil, domain.ErrEmptyOTP
	}

	token, err := uc.store.LoginSession()
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, domain.ErrNoLoginInProgress
	}

	cred, err := uc.auth.VerifyLoginOTP(ctx, token, otp)
	if err != nil {
		return nil, fmt.Errorf("verify login: %w", err)
	}
	if err := uc.store.Save(cred); err != nil {
		return nil, err
	}
	// The session token is single-use.
	_ = uc.store.ClearLoginSession()
	uc.session.Arm()

	return &VerifyLoginOutput{Credential: cred.Clone()}, nil
}
