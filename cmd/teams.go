package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/collabflow/collabflow-cli/client"
	"github.com/collabflow/collabflow-cli/db"
	"github.com/collabflow/collabflow-cli/pkg/clierr"
	"github.com/collabflow/collabflow-cli/pkg/pool"
	"github.com/collabflow/collabflow-cli/pkg/validation"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func teamsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teams",
		Short: "List and manage your teams",
	}

	cmd.AddCommand(
		teamsListCmd(),
		teamsShowCmd(),
		teamsCreateCmd(),
		teamsUpdateCmd(),
		teamsSyncCmd(),
		teamsTransferCmd(),
		teamsLeaveCmd(),
	)
	return cmd
}

func teamsListCmd() *cobra.Command {
	var cached bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the teams you belong to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var teams []client.Team

			if cached {
				records, err := env.teams.ListTeams(ctx)
				if err != nil {
					return clierr.New(clierr.Internal, "Failed to read the team cache", err)
				}
				if len(records) == 0 {
					cmd.Println("No cached teams. Use `collabflow teams sync` to refresh the cache.")
					return nil
				}
				for _, r := range records {
					teams = append(teams, teamFromRecord(r))
				}
			} else {
				var err error
				if teams, err = env.client.ListTeams(ctx); err != nil {
					return cliError(err, "Failed to load teams")
				}
				cacheTeams(ctx, teams)
			}

			if len(teams) == 0 {
				cmd.Println("You are not a member of any team yet. Create one with `collabflow teams create`.")
				return nil
			}
			rows := make([][]string, 0, len(teams))
			for _, t := range teams {
				rows = append(rows, []string{t.ID, t.Name, oneLine(t.Description), formatTime(t.UpdatedAt)})
			}
			renderTable(cmd.OutOrStdout(), []string{"Team ID", "Name", "Description", "Updated"}, rows)
			log.Info().Msgf("Listed %d teams.", len(teams))
			return nil
		},
	}

	cmd.Flags().BoolVar(&cached, "cached", false, "Read from the local cache instead of the API")
	return cmd
}

func teamsShowCmd() *cobra.Command {
	var cached bool

	cmd := &cobra.Command{
		Use:   "show <teamId>",
		Short: "Show a team and its members",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamID := args[0]
			if err := validation.ValidateID("team ID", teamID); err != nil {
				return validationError(err)
			}
			ctx := cmd.Context()

			var details *client.TeamDetails
			if cached {
				var err error
				if details, err = cachedTeamDetails(ctx, teamID); err != nil {
					return err
				}
			} else {
				var err error
				if details, err = env.client.GetTeamDetails(ctx, teamID); err != nil {
					return cliError(err, "Failed to load team details")
				}
				cacheTeamDetails(ctx, details)
			}

			cmd.Println("Team:", details.Name)
			cmd.Println("ID:", details.ID)
			if details.Description != "" {
				cmd.Println("Description:", oneLine(details.Description))
			}
			cmd.Println("Created:", formatTime(details.CreatedAt))
			cmd.Println("Updated:", formatTime(details.UpdatedAt))
			renderMembers(cmd, details.Members)
			return nil
		},
	}

	cmd.Flags().BoolVar(&cached, "cached", false, "Read from the local cache instead of the API")
	return cmd
}

func cachedTeamDetails(ctx context.Context, teamID string) (*client.TeamDetails, error) {
	record, err := env.teams.GetTeam(ctx, teamID)
	if err != nil {
		return nil, clierr.New(clierr.Internal, "Failed to read the team cache", err)
	}
	if record == nil {
		return nil, clierr.New(clierr.NotFound, "Team is not cached. Use `collabflow teams sync` or drop --cached.", nil)
	}
	members, err := env.teams.ListMembers(ctx, teamID)
	if err != nil {
		return nil, clierr.New(clierr.Internal, "Failed to read the member cache", err)
	}
	return &client.TeamDetails{Team: teamFromRecord(*record), Members: membersFromRecords(members)}, nil
}

func teamsCreateCmd() *cobra.Command {
	var name, description string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new team",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validation.ValidateTeamName(name); err != nil {
				return validationError(err)
			}
			ctx := cmd.Context()
			team, err := env.client.CreateTeam(ctx, client.CreateTeamRequest{Name: name, Description: description})
			if err != nil {
				return cliError(err, "Failed to create team")
			}
			invalidateTeams(ctx)
			cmd.Printf("Team %q created (ID: %s).\n", team.Name, team.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "Name of the team")
	cmd.Flags().StringVarP(&description, "description", "d", "", "Description of the team")
	if err := cmd.MarkFlagRequired("name"); err != nil {
		log.Error().Err(err).Msg("Failed to mark 'name' flag as required")
	}
	return cmd
}

func teamsUpdateCmd() *cobra.Command {
	var name, description string

	cmd := &cobra.Command{
		Use:   "update <teamId>",
		Short: "Change a team's name or description",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamID := args[0]
			if err := validation.ValidateID("team ID", teamID); err != nil {
				return validationError(err)
			}
			if !cmd.Flags().Changed("name") && !cmd.Flags().Changed("description") {
				return clierr.New(clierr.Validation, "Nothing to update: pass --name and/or --description", nil)
			}
			ctx := cmd.Context()

			// The API replaces both fields, so unchanged ones are filled from the current team.
			if !cmd.Flags().Changed("name") || !cmd.Flags().Changed("description") {
				current, err := env.client.GetTeam(ctx, teamID)
				if err != nil {
					return cliError(err, "Failed to load team details")
				}
				if !cmd.Flags().Changed("name") {
					name = current.Name
				}
				if !cmd.Flags().Changed("description") {
					description = current.Description
				}
			}
			if err := validation.ValidateTeamName(name); err != nil {
				return validationError(err)
			}

			team, err := env.client.UpdateTeam(ctx, teamID, client.UpdateTeamRequest{Name: name, Description: description})
			if err != nil {
				return cliError(err, "Failed to update team")
			}
			invalidateTeams(ctx)
			invalidateTeam(ctx, teamID)
			cmd.Printf("Team %q updated.\n", team.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "New name of the team")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description of the team")
	return cmd
}

// teamsSyncCmd refreshes the local cache: the team list, then every team's
// members fetched concurrently.
func teamsSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh the local cache of teams and members",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return syncTeams(cmd)
		},
	}

	cmd.Flags().IntP("workers", "w", 0, "Number of teams to fetch concurrently [1-20]")
	return cmd
}

func syncTeams(cmd *cobra.Command) error {
	ctx := cmd.Context()
	log.Info().Msg("Syncing the team cache...")

	teams, err := env.client.ListTeams(ctx)
	if err != nil {
		return cliError(err, "Failed to load teams")
	}
	if err := env.teams.ReplaceTeams(ctx, teamRecords(teams)); err != nil {
		return clierr.New(clierr.Internal, "Failed to update the team cache", err)
	}
	if len(teams) == 0 {
		cmd.Println("No teams to sync.")
		return nil
	}

	bar := progressbar.NewOptions(len(teams),
		progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		progressbar.OptionSetDescription("Syncing teams..."),
		progressbar.OptionSetWidth(20),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	results := pool.Map(ctx, teams, env.cfg.Workers, func(ctx context.Context, t client.Team) ([]client.TeamMember, error) {
		defer func() { _ = bar.Add(1) }()
		return env.client.ListMembers(ctx, t.ID)
	})
	_ = bar.Finish()

	var failed []error
	for i, res := range results {
		if res.Err != nil {
			log.Warn().Err(res.Err).Str("team", teams[i].ID).Msg("Failed to fetch members")
			failed = append(failed, res.Err)
			continue
		}
		if err := env.teams.ReplaceMembers(ctx, teams[i].ID, memberRecords(res.Value)); err != nil {
			failed = append(failed, err)
		}
	}

	cmd.Printf("Synced %d of %d teams.\n", len(teams)-len(failed), len(teams))
	if len(failed) > 0 {
		return cliError(errors.Join(failed...), fmt.Sprintf("Failed to sync %d teams", len(failed)))
	}
	return nil
}

func teamsTransferCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "transfer <teamId> <newOwnerId>",
		Short: "Hand ownership of a team to another member",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamID, newOwnerID := args[0], args[1]
			if err := validation.ValidateID("team ID", teamID); err != nil {
				return validationError(err)
			}
			if err := validation.ValidateID("new owner ID", newOwnerID); err != nil {
				return validationError(err)
			}
			ctx := cmd.Context()
			if err := env.client.TransferOwnership(ctx, teamID, newOwnerID); err != nil {
				return cliError(err, "Failed to transfer ownership")
			}
			invalidateTeam(ctx, teamID)
			cmd.Println("Ownership transferred.")
			return nil
		},
	}
}

func teamsLeaveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "leave <teamId>",
		Short: "Leave a team",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			teamID := args[0]
			if err := validation.ValidateID("team ID", teamID); err != nil {
				return validationError(err)
			}
			ctx := cmd.Context()
			if err := env.client.LeaveTeam(ctx, teamID); err != nil {
				return cliError(err, "Failed to leave team")
			}
			invalidateTeams(ctx)
			invalidateTeam(ctx, teamID)
			cmd.Println("You left the team.")
			return nil
		},
	}
}

func renderMembers(cmd *cobra.Command, members []client.TeamMember) {
	if len(members) == 0 {
		cmd.Println("No members.")
		return
	}
	rows := make([][]string, 0, len(members))
	for _, m := range members {
		rows = append(rows, []string{m.ID, m.Username, m.Email, string(m.Role)})
	}
	renderTable(cmd.OutOrStdout(), []string{"User ID", "Username", "Email", "Role"}, rows)
}

func teamRecords(teams []client.Team) []db.TeamRecord {
	out := make([]db.TeamRecord, 0, len(teams))
	for _, t := range teams {
		out = append(out, teamRecord(t))
	}
	return out
}

// Cache writes below are best effort; failures are only logged.

func cacheTeams(ctx context.Context, teams []client.Team) {
	if err := env.teams.ReplaceTeams(ctx, teamRecords(teams)); err != nil {
		log.Warn().Err(err).Msg("Failed to cache teams")
	}
}

func cacheTeamDetails(ctx context.Context, details *client.TeamDetails) {
	if err := env.teams.PutTeam(ctx, teamRecord(details.Team)); err != nil {
		log.Warn().Err(err).Str("team", details.ID).Msg("Failed to cache team")
		return
	}
	if err := env.teams.ReplaceMembers(ctx, details.ID, memberRecords(details.Members)); err != nil {
		log.Warn().Err(err).Str("team", details.ID).Msg("Failed to cache members")
	}
}

func invalidateTeams(ctx context.Context) {
	if err := env.teams.InvalidateTeams(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to invalidate the team list cache")
	}
}

func invalidateTeam(ctx context.Context, teamID string) {
	if err := env.teams.InvalidateTeam(ctx, teamID); err != nil {
		log.Warn().Err(err).Str("team", teamID).Msg("Failed to invalidate the team cache")
	}
}
