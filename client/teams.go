package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

func teamPath(teamID string, rest ...string) string {
	parts := append([]string{"/teams", url.PathEscape(teamID)}, rest...)
	return strings.Join(parts, "/")
}

// ListTeams returns the teams of the current user.
func (c *Client) ListTeams(ctx context.Context) ([]Team, error) {
	var teams []Team
	if err := c.Do(ctx, &Request{Method: http.MethodGet, Path: "/teams"}, &teams); err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	return teams, nil
}

// GetTeam fetches one team.
func (c *Client) GetTeam(ctx context.Context, teamID string) (*Team, error) {
	var team Team
	if err := c.Do(ctx, &Request{Method: http.MethodGet, Path: teamPath(teamID)}, &team); err != nil {
		return nil, fmt.Errorf("failed to fetch team %s: %w", teamID, err)
	}
	return &team, nil
}

// ListMembers fetches the members of a team.
func (c *Client) ListMembers(ctx context.Context, teamID string) ([]TeamMember, error) {
	var members []TeamMember
	if err := c.Do(ctx, &Request{Method: http.MethodGet, Path: teamPath(teamID, "members")}, &members); err != nil {
		return nil, fmt.Errorf("failed to list members of team %s: %w", teamID, err)
	}
	return members, nil
}

// GetTeamDetails fetches a team and its members concurrently.
func (c *Client) GetTeamDetails(ctx context.Context, teamID string) (*TeamDetails, error) {
	var (
		wg        sync.WaitGroup
		team      *Team
		members   []TeamMember
		teamErr   error
		memberErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		team, teamErr = c.GetTeam(ctx, teamID)
	}()
	go func() {
		defer wg.Done()
		members, memberErr = c.ListMembers(ctx, teamID)
	}()
	wg.Wait()

	if teamErr != nil {
		return nil, teamErr
	}
	if memberErr != nil {
		return nil, memberErr
	}
	return &TeamDetails{Team: *team, Members: members}, nil
}

// CreateTeam creates a team owned by the current user.
func (c *Client) CreateTeam(ctx context.Context, in CreateTeamRequest) (*Team, error) {
	var team Team
	if err := c.Do(ctx, &Request{Method: http.MethodPost, Path: "/teams", Body: in}, &team); err != nil {
		return nil, fmt.Errorf("failed to create team: %w", err)
	}
	return &team, nil
}

// UpdateTeam changes a team's name and description.
func (c *Client) UpdateTeam(ctx context.Context, teamID string, in UpdateTeamRequest) (*Team, error) {
	var team Team
	if err := c.Do(ctx, &Request{Method: http.MethodPatch, Path: teamPath(teamID), Body: in}, &team); err != nil {
		return nil, fmt.Errorf("failed to update team %s: %w", teamID, err)
	}
	return &team, nil
}

// GenerateInvite creates an invite link for a team.
func (c *Client) GenerateInvite(ctx context.Context, teamID string) (*InviteLink, error) {
	var link InviteLink
	if err := c.Do(ctx, &Request{Method: http.MethodPost, Path: teamPath(teamID, "invite")}, &link); err != nil {
		return nil, fmt.Errorf("failed to generate invite for team %s: %w", teamID, err)
	}
	return &link, nil
}

// AcceptInvite joins the team behind an invite token.
func (c *Client) AcceptInvite(ctx context.Context, token string) (*Team, error) {
	var team Team
	path := "/teams/join/" + url.PathEscape(token)
	if err := c.Do(ctx, &Request{Method: http.MethodPost, Path: path}, &team); err != nil {
		return nil, fmt.Errorf("failed to accept invite: %w", err)
	}
	return &team, nil
}

// UpdateMemberRole changes a member's role. The role travels as the newRole query parameter.
func (c *Client) UpdateMemberRole(ctx context.Context, teamID, userID string, role Role) error {
	err := c.Do(ctx, &Request{
		Method: http.MethodPatch,
		Path:   teamPath(teamID, "members", url.PathEscape(userID), "role"),
		Query:  url.Values{"newRole": {string(role)}},
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to change role of %s in team %s: %w", userID, teamID, err)
	}
	return nil
}

// TransferOwnership hands the team over to another member.
func (c *Client) TransferOwnership(ctx context.Context, teamID, newOwnerID string) error {
	err := c.Do(ctx, &Request{
		Method: http.MethodPatch,
		Path:   teamPath(teamID, "transfer-owner", url.PathEscape(newOwnerID)),
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to transfer ownership of team %s: %w", teamID, err)
	}
	return nil
}

// RemoveMember removes a member from a team.
func (c *Client) RemoveMember(ctx context.Context, teamID, userID string) error {
	err := c.Do(ctx, &Request{
		Method: http.MethodDelete,
		Path:   teamPath(teamID, "members", url.PathEscape(userID)),
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to remove %s from team %s: %w", userID, teamID, err)
	}
	return nil
}

// LeaveTeam removes the current user from a team.
func (c *Client) LeaveTeam(ctx context.Context, teamID string) error {
	if err := c.Do(ctx, &Request{Method: http.MethodDelete, Path: teamPath(teamID, "leave")}, nil); err != nil {
		return fmt.Errorf("failed to leave team %s: %w", teamID, err)
	}
	return nil
}

// ParseInviteToken accepts either a bare token or a full invite link and
// returns the token, which is the last path segment of the link.
func ParseInviteToken(s string) string {
	s = strings.TrimSpace(s)
	if u, err := url.Parse(s); err == nil && u.Scheme != "" && u.Host != "" {
		s = u.Path
	}
	s = strings.TrimRight(s, "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	if unescaped, err := url.PathUnescape(s); err == nil {
		return unescaped
	}
	return s
}
