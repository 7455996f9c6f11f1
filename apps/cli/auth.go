package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const tokenEnv = "ADMISSIONS_TOKEN"

// tokenStore keeps the bearer token in a file only the user can read. ADMISSIONS_TOKEN wins over it.
type tokenStore struct {
	path string
}

func newTokenStore(path string) (*tokenStore, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, errors.Wrap(err, "locating config dir")
		}
		path = filepath.Join(dir, "admissions", "token")
	}
	return &tokenStore{path: path}, nil
}

func (ts *tokenStore) Load() (string, error) {
	if tok := strings.TrimSpace(os.Getenv(tokenEnv)); tok != "" {
		return tok, nil
	}
	b, err := os.ReadFile(ts.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "reading token")
	}
	return strings.TrimSpace(string(b)), nil
}

func (ts *tokenStore) Save(token string) error {
	if err := os.MkdirAll(filepath.Dir(ts.path), 0o700); err != nil {
		return errors.Wrap(err, "creating token dir")
	}
	return errors.Wrap(os.WriteFile(ts.path, []byte(token+"\n"), 0o600), "writing token")
}

func (ts *tokenStore) Clear() error {
	if err := os.Remove(ts.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing token")
	}
	return nil
}

func newLoginCmd(cli *commandLine) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with an access token",
		Long: `Checks the token against the API and keeps it for the next commands.
The token is prompted for when --token is not given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Access token: ")
				b, err := readPasswordFunc(cli.stdin)
				fmt.Fprintln(cmd.OutOrStdout())
				if err != nil {
					return errors.Wrap(err, "reading token")
				}
				token = string(b)
			}
			token = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(token), "Bearer "))
			if token == "" {
				return errors.New("token is required")
			}

			s, err := cli.signIn(cmd.Context(), token)
			if err != nil {
				return err
			}
			if err := cli.tokens.Save(token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", s.profile.DisplayName(), s.profile.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "access token")
	return cmd
}

func newLogoutCmd(cli *commandLine) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.tokens.Clear()
		},
	}
}

func newWhoamiCmd(cli *commandLine) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and their permissions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := cli.session(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s <%s>\nrole: %s\n", s.profile.DisplayName(), s.profile.Email, s.profile.Role)
			if s.access.IsAdmin() {
				fmt.Fprintln(out, "permissions: all (admin)")
				return nil
			}
			caps := s.access.List()
			names := make([]string, len(caps))
			for i, c := range caps {
				names[i] = string(c)
			}
			fmt.Fprintf(out, "permissions: %s\n", strings.Join(names, ", "))
			return nil
		},
	}
}
