package domain

import "errors"

// Domain errors.
var (
	ErrNetwork           = errors.New("network request failed")
	ErrSessionExpired    = errors.New("session expired, please log in again")
	ErrNotLoggedIn       = errors.New("not logged in")
	ErrNoRefreshToken    = errors.New("no refresh token available")
	ErrInvalidEmail      = errors.New("invalid email address")
	ErrEmptyOTP          = errors.New("otp cannot be empty")
	ErrNoLoginInProgress = errors.New("no login in progress (run 'tracksync login <email>' first)")
	ErrProjectRequired   = errors.New("project is required")
	ErrEmptyTaskName     = errors.New("task name cannot be empty")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrPendingIncomplete = errors.New("pending entries without tasks remain")
	ErrGroupNotFound     = errors.New("pending entry group not found")
	ErrInvalidGroupKey   = errors.New("group key must be <project>@<YYYY-MM-DD>")
	ErrConnectTimeout    = errors.New("realtime connect timed out")
	ErrNotInitialized    = errors.New("store not initialized")
	ErrConfigExists      = errors.New("config file already exists")
	ErrAlreadyDone       = errors.New("already applied on the server")
)
