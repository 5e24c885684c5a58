package cmd

import (
	"github.com/collabflow/collabflow-cli/client"
	"github.com/collabflow/collabflow-cli/pkg/validation"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// loginCmd signs in and stores the session in the local database.
func loginCmd() *cobra.Command {
	var username, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to CollabFlow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			var err error
			if username == "" {
				if username, err = p.input("Username or email: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = p.password("Password: "); err != nil {
					return err
				}
			}
			if err := validation.ValidateNonEmptyString("username", username); err != nil {
				return validationError(err)
			}
			if err := validation.ValidateNonEmptyString("password", password); err != nil {
				return validationError(err)
			}

			log.Info().Str("user", username).Msg("Logging in")
			_, err = env.client.Login(cmd.Context(), client.LoginRequest{UsernameOrEmail: username, Password: password})
			if err != nil {
				return cliError(err, "Login failed. Please try again.")
			}
			// Cached teams may belong to a previous account.
			if err := env.teams.Clear(cmd.Context()); err != nil {
				log.Warn().Err(err).Msg("Failed to clear the team cache")
			}
			cmd.Printf("Login successful. Signed in as %s.\n", username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username or email; prompted for when omitted")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password; prompted for when omitted")
	return cmd
}

func registerCmd() *cobra.Command {
	var username, email, password string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a CollabFlow account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			var err error
			if username == "" {
				if username, err = p.input("Username: "); err != nil {
					return err
				}
			}
			if email == "" {
				if email, err = p.input("Email: "); err != nil {
					return err
				}
			}
			if password == "" {
				if password, err = p.password("Password: "); err != nil {
					return err
				}
			}
			if err := validation.ValidateNonEmptyString("username", username); err != nil {
				return validationError(err)
			}
			if err := validation.ValidateEmail(email); err != nil {
				return validationError(err)
			}
			if err := validation.ValidateNonEmptyString("password", password); err != nil {
				return validationError(err)
			}

			user, err := env.client.Register(cmd.Context(), client.RegisterRequest{Username: username, Email: email, Password: password})
			if err != nil {
				return cliError(err, "Registration failed. Please try again.")
			}
			log.Info().Str("user", user.Username).Msg("Account created")
			cmd.Println("Account created successfully! You can now login.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username; prompted for when omitted")
	cmd.Flags().StringVarP(&email, "email", "e", "", "Email address; prompted for when omitted")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password; prompted for when omitted")
	return cmd
}

// logoutCmd revokes the refresh cookie on the server and forgets the local session.
func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := env.client.Logout(cmd.Context()); err != nil {
				log.Warn().Err(err).Msg("Server-side logout failed")
				cmd.PrintErrln("Warning: the server could not be notified; the local session was removed anyway.")
			}
			if err := env.teams.Clear(cmd.Context()); err != nil {
				log.Warn().Err(err).Msg("Failed to clear the team cache")
			}
			cmd.Println("Logged out.")
			return nil
		},
	}
}

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Inspect or refresh the stored session",
	}
	cmd.AddCommand(tokenStatusCmd(), tokenRefreshCmd())
	return cmd
}

// tokenStatusCmd reports whether a session is stored. Token values are never printed.
func tokenStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a session is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session := env.client.Session()
			if session.AccessToken() == "" {
				cmd.Println("Not logged in. Use `collabflow login` to sign in.")
				return nil
			}
			yesNo := map[bool]string{true: "yes", false: "no"}
			cmd.Println("Logged in as:", session.Username())
			cmd.Println("API:", env.client.BaseURL())
			cmd.Println("Refresh credential stored:", yesNo[session.RefreshCredential() != ""])
			return nil
		},
	}
}

func tokenRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh credential for a new access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := env.client.Refresh(cmd.Context()); err != nil {
				return cliError(err, "Failed to refresh the session")
			}
			cmd.Println("Token refreshed successfully.")
			return nil
		},
	}
}
