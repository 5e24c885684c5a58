package cmd

import (
	"net/http"

	"github.com/collabflow/collabflow-cli/client"
	"github.com/collabflow/collabflow-cli/pkg/clierr"
	"github.com/collabflow/collabflow-cli/pkg/validation"
	"github.com/spf13/cobra"
)

const (
	inviteInvalidMessage = "This invite link has expired or is invalid"
	joinFailedMessage    = "Failed to join team"
)

func inviteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invite",
		Short: "Create and accept team invite links",
	}
	cmd.AddCommand(inviteCreateCmd(), inviteAcceptCmd())
	return cmd
}

func inviteCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <teamId>",
		Short: "Generate an invite link for a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamID := args[0]
			if err := validation.ValidateID("team ID", teamID); err != nil {
				return validationError(err)
			}
			link, err := env.client.GenerateInvite(cmd.Context(), teamID)
			if err != nil {
				return cliError(err, "Failed to generate invite link")
			}
			cmd.Println("Invite link:", link.InviteLink)
			cmd.Println("Share it with the people you want to join; they can run `collabflow invite accept <link>`.")
			return nil
		},
	}
}

// inviteAcceptCmd joins a team. It takes the bare token or the whole link.
func inviteAcceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <token|link>",
		Short: "Join a team through an invite link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := client.ParseInviteToken(args[0])
			if err := validation.ValidateNonEmptyString("invite token", token); err != nil {
				return validationError(err)
			}
			ctx := cmd.Context()
			team, err := env.client.AcceptInvite(ctx, token)
			if err != nil {
				return inviteError(err)
			}
			invalidateTeams(ctx)
			cmd.Printf("You joined %q (ID: %s).\n", team.Name, team.ID)
			return nil
		},
	}
}

// inviteError prefers the server's message, then a 400-specific hint, then a generic one.
func inviteError(err error) error {
	mapped := cliError(err, joinFailedMessage)
	if client.ErrorMessage(err, "") != "" || client.StatusCode(err) != http.StatusBadRequest {
		return mapped
	}
	return clierr.New(clierr.Validation, inviteInvalidMessage, err)
}
