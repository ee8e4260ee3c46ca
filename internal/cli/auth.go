package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	rlerrors "github.com/rootline/rootline/pkg/errors"
	"github.com/rootline/rootline/pkg/session"
)

// sessionTTL is the duration for CLI sessions (30 days).
const sessionTTL = 30 * 24 * time.Hour

// loginCommand creates the login command.
func (c *CLI) loginCommand() *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API token for later commands",
		Long: `Verify an API token with the backend and store it as the current session.

The token is read from --token, or from stdin when --token is omitted.
Sessions are stored in ~/.config/rootline/sessions/.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if token == "" {
				t, err := readToken(cmd.InOrStdin())
				if err != nil {
					return err
				}
				token = t
			}
			return c.runLogin(ctx, token)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "API token (read from stdin when omitted)")
	return cmd
}

func readToken(r io.Reader) (string, error) {
	if f, ok := r.(*os.File); ok {
		if info, err := f.Stat(); err == nil && info.Mode()&os.ModeCharDevice != 0 {
			fmt.Fprint(os.Stderr, "API token: ")
		}
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	token := strings.TrimSpace(line)
	if token == "" {
		return "", rlerrors.New(rlerrors.ErrCodeInvalidInput, "no token given")
	}
	return token, nil
}

func (c *CLI) runLogin(ctx context.Context, token string) error {
	store, err := c.sessionStore()
	if err != nil {
		return err
	}
	client, cc, err := c.newClient(ctx, true)
	if err != nil {
		return err
	}
	defer cc.Close()

	viewer, err := client.Authenticate(ctx, token)
	if err != nil {
		return err
	}
	if err := store.SetCurrent(ctx, session.New(token, viewer, sessionTTL)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	printSuccess("Logged in as %s", StyleHighlight.Render(viewerLabel(viewer)))
	if viewer.Moderator {
		printDetail("Moderator: you can decide suggestions")
	}
	return nil
}

// logoutCommand creates the logout command.
func (c *CLI) logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.sessionStore()
			if err != nil {
				return err
			}
			if err := store.ClearCurrent(cmd.Context()); err != nil {
				return fmt.Errorf("delete session: %w", err)
			}
			printSuccess("Logged out")
			return nil
		},
	}
}

// whoamiCommand creates the whoami command.
func (c *CLI) whoamiCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.sessionStore()
			if err != nil {
				return err
			}
			sess, err := store.Current(cmd.Context())
			if err != nil {
				return err
			}
			if sess == nil {
				printInfo("Not logged in")
				printDetail("Run 'rootline login' to authenticate")
				return nil
			}
			printKeyValue("User", viewerLabel(sess.Viewer))
			printKeyValue("Moderator", fmt.Sprintf("%t", sess.Viewer.Moderator))
			printKeyValue("Expires", sess.ExpiresAt.Local().Format(time.DateTime))
			return nil
		},
	}
}

func viewerLabel(v session.Viewer) string {
	if v.Name != "" {
		return fmt.Sprintf("%s (%s)", v.Name, v.ID)
	}
	return v.ID
}
