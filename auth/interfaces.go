package auth

import (
	"context"

	"github.com/collabflow/collabflow-cli/db"
)

// TokenStorer defines the contract for any component that can store and retrieve the session.
type TokenStorer interface {
	GetTokenRecord() (*db.Token, error)
	UpsertTokenRecord(token *db.Token) error
	ClearTokenRecord() error
}

// TokenRefresher defines the contract for any component that can perform a token refresh action.
// A call issues exactly one refresh request and returns the new access token.
type TokenRefresher interface {
	PerformTokenRefresh(ctx context.Context) (accessToken string, err error)
}

// LoginRedirector is told when the session cannot be recovered and the user has to log in again.
type LoginRedirector interface {
	RedirectToLogin(reason error)
}

// RedirectFunc adapts a plain function to LoginRedirector.
type RedirectFunc func(reason error)

func (f RedirectFunc) RedirectToLogin(reason error) { f(reason) }
