package cmd

import (
	"github.com/collabflow/collabflow-cli/client"
	"github.com/collabflow/collabflow-cli/pkg/validation"
	"github.com/spf13/cobra"
)

func membersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "List and manage team members",
	}
	cmd.AddCommand(membersListCmd(), membersRoleCmd(), membersRemoveCmd())
	return cmd
}

func membersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <teamId>",
		Short: "Show the members of a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamID := args[0]
			if err := validation.ValidateID("team ID", teamID); err != nil {
				return validationError(err)
			}
			ctx := cmd.Context()
			members, err := env.client.ListMembers(ctx, teamID)
			if err != nil {
				return cliError(err, "Failed to load team members")
			}
			if err := env.teams.ReplaceMembers(ctx, teamID, memberRecords(members)); err != nil {
				cmd.PrintErrln("Warning: failed to cache members:", err)
			}
			renderMembers(cmd, members)
			return nil
		},
	}
}

func membersRoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "role <teamId> <userId> <owner|admin|member>",
		Short: "Change a member's role",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamID, userID := args[0], args[1]
			if err := validation.ValidateID("team ID", teamID); err != nil {
				return validationError(err)
			}
			if err := validation.ValidateID("user ID", userID); err != nil {
				return validationError(err)
			}
			role, err := client.ParseRole(args[2])
			if err != nil {
				return validationError(err)
			}
			ctx := cmd.Context()
			if err := env.client.UpdateMemberRole(ctx, teamID, userID, role); err != nil {
				return cliError(err, "Failed to update role")
			}
			invalidateTeam(ctx, teamID)
			cmd.Printf("Role changed to %s.\n", role)
			return nil
		},
	}
}

func membersRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <teamId> <userId>",
		Short: "Remove a member from a team",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamID, userID := args[0], args[1]
			if err := validation.ValidateID("team ID", teamID); err != nil {
				return validationError(err)
			}
			if err := validation.ValidateID("user ID", userID); err != nil {
				return validationError(err)
			}
			ctx := cmd.Context()
			if err := env.client.RemoveMember(ctx, teamID, userID); err != nil {
				return cliError(err, "Failed to remove member")
			}
			invalidateTeam(ctx, teamID)
			cmd.Println("Member removed.")
			return nil
		},
	}
}
