package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Login exchanges credentials for an access token and opens the session.
// The refresh cookie from the response is kept for later refreshes.
func (c *Client) Login(ctx context.Context, in LoginRequest) (*AuthResponse, error) {
	if in.UsernameOrEmail == "" || in.Password == "" {
		return nil, fmt.Errorf("username and password cannot be empty")
	}
	var res AuthResponse
	err := c.Do(ctx, &Request{
		Method:           http.MethodPost,
		Path:             "/auth/login",
		Body:             in,
		SkipAuthRecovery: true,
	}, &res)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if res.AccessToken == "" {
		return nil, fmt.Errorf("login failed: response carried no access token")
	}
	c.session.SetTokens(res.AccessToken, res.RefreshToken, in.UsernameOrEmail)
	log.Info().Str("user", in.UsernameOrEmail).Msg("Logged in")
	return &res, nil
}

// Register creates an account. It does not log in.
func (c *Client) Register(ctx context.Context, in RegisterRequest) (*User, error) {
	var user User
	err := c.Do(ctx, &Request{
		Method:           http.MethodPost,
		Path:             "/auth/register",
		Body:             in,
		SkipAuthRecovery: true,
	}, &user)
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}
	return &user, nil
}

// Logout asks the server to clear the refresh cookie and drops the local
// session whether or not the call succeeded.
func (c *Client) Logout(ctx context.Context) error {
	defer c.session.Clear()
	err := c.Do(ctx, &Request{
		Method:           http.MethodPost,
		Path:             "/auth/logout",
		SkipAuthRecovery: true,
		sendCredential:   true,
	}, nil)
	if err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}
