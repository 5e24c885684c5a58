package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/collabflow/collabflow-cli/auth"
	"github.com/collabflow/collabflow-cli/client"
	"github.com/collabflow/collabflow-cli/db"
	"github.com/collabflow/collabflow-cli/pkg/clierr"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const sessionExpiredMessage = "Your session has expired. Please log in again."

// prompter reads answers from the command's input. One reader is shared by all
// prompts so piped input is not lost between them.
type prompter struct {
	cmd    *cobra.Command
	reader *bufio.Reader
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{cmd: cmd, reader: bufio.NewReader(cmd.InOrStdin())}
}

// input prompts the user for input and returns the trimmed string.
func (p *prompter) input(prompt string) (string, error) {
	p.cmd.Print(prompt)
	line, err := p.reader.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// password reads a password without echo when the input is a terminal.
func (p *prompter) password(prompt string) (string, error) {
	if f, ok := p.cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p.cmd.Print(prompt)
		pw, err := term.ReadPassword(int(f.Fd()))
		p.cmd.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimSpace(string(pw)), nil
	}
	return p.input(prompt)
}

// renderTable writes rows as a left-aligned table.
func renderTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetRowLine(false)
	table.AppendBulk(rows)
	table.Render()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cliError turns an API or client error into a user-facing error. The server's
// message is preferred; fallback is used when it sent none.
func cliError(err error, fallback string) error {
	if err == nil {
		return nil
	}
	var ce *clierr.Error
	if errors.As(err, &ce) {
		return err
	}

	switch {
	case errors.Is(err, context.Canceled):
		return clierr.New(clierr.Internal, "Operation cancelled", err)
	case errors.Is(err, auth.ErrSessionExpired),
		errors.Is(err, client.ErrRefreshRejected),
		errors.Is(err, client.ErrNoRefreshCredential),
		errors.Is(err, auth.ErrNoRefresher):
		return clierr.New(clierr.Auth, sessionExpiredMessage, err)
	case errors.Is(err, client.ErrNetwork), errors.Is(err, context.DeadlineExceeded):
		return clierr.New(clierr.Network, "Could not reach the CollabFlow API"+apiLocation(), err)
	}

	msg := client.ErrorMessage(err, fallback)
	switch client.StatusCode(err) {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return clierr.New(clierr.Validation, msg, err)
	case http.StatusUnauthorized:
		return clierr.New(clierr.Auth, msg, err)
	case http.StatusForbidden:
		return clierr.New(clierr.Forbidden, msg, err)
	case http.StatusNotFound:
		return clierr.New(clierr.NotFound, msg, err)
	case http.StatusConflict:
		return clierr.New(clierr.Conflict, msg, err)
	default:
		return clierr.New(clierr.Internal, msg, err)
	}
}

func apiLocation() string {
	if env == nil || env.client == nil {
		return ""
	}
	return " at " + env.client.BaseURL()
}

func validationError(err error) error {
	return clierr.New(clierr.Validation, err.Error(), err)
}

func teamRecord(t client.Team) db.TeamRecord {
	return db.TeamRecord{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func teamFromRecord(r db.TeamRecord) client.Team {
	return client.Team{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func memberRecords(members []client.TeamMember) []db.MemberRecord {
	out := make([]db.MemberRecord, 0, len(members))
	for _, m := range members {
		out = append(out, db.MemberRecord{
			UserID:   m.ID,
			Username: m.Username,
			Email:    m.Email,
			Avatar:   m.Avatar,
			Role:     string(m.Role),
		})
	}
	return out
}

func membersFromRecords(records []db.MemberRecord) []client.TeamMember {
	out := make([]client.TeamMember, 0, len(records))
	for _, r := range records {
		out = append(out, client.TeamMember{
			ID:       r.UserID,
			Username: r.Username,
			Email:    r.Email,
			Avatar:   r.Avatar,
			Role:     client.Role(r.Role),
		})
	}
	return out
}
