package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/eshaffer321/pluginhub-go/pkg/pluginhub"
	"github.com/spf13/cobra"
)

// prompt reads one trimmed line from r after writing label to w
func prompt(r *bufio.Reader, w io.Writer, label string) (string, error) {
	fmt.Fprint(w, label)
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(line), nil
}

func newLoginCmd() *cobra.Command {
	var (
		email    string
		password string
		provider string
		code     string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the marketplace",
		Long:  "Sign in with email and password, or exchange an OAuth authorization code with --provider and --code.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			in := bufio.NewReader(cmd.InOrStdin())

			var (
				user *pluginhub.User
				err  error
			)

			if provider != "" {
				user, err = client.Auth.ExchangeOAuthCode(ctx, provider, code)
			} else {
				if email == "" {
					if email, err = prompt(in, out, "Email: "); err != nil {
						return err
					}
				}
				if password == "" {
					if password, err = prompt(in, out, "Password: "); err != nil {
						return err
					}
				}
				user, err = client.Auth.Login(ctx, email, password)
			}
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}

			if user != nil {
				fmt.Fprintf(out, "Signed in as %s (%s)\n", user.Email, user.Role)
			} else {
				fmt.Fprintln(out, "Signed in")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email (prompted if omitted)")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted if omitted)")
	cmd.Flags().StringVar(&provider, "provider", "", "OAuth provider (google, github)")
	cmd.Flags().StringVar(&code, "code", "", "OAuth authorization code")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and erase the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Auth.Logout(cmd.Context()); err != nil {
				// The local token is gone either way
				logger.Warn("Server-side logout failed", "error", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newRegisterCmd() *cobra.Command {
	var params pluginhub.RegisterParams

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a marketplace account",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			var err error
			if params.Password == "" {
				if params.Password, err = prompt(bufio.NewReader(cmd.InOrStdin()), out, "Password: "); err != nil {
					return err
				}
			}

			if _, err := client.Auth.Register(cmd.Context(), &params); err != nil {
				return fmt.Errorf("register: %w", err)
			}

			if client.IsAuthenticated() {
				fmt.Fprintf(out, "Account created, signed in as %s\n", params.Email)
			} else {
				fmt.Fprintf(out, "Account created. Check %s for a verification link.\n", params.Email)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&params.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&params.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&params.Password, "password", "", "Password (prompted if omitted)")
	cmd.Flags().StringVar(&params.Referral, "referral", "", "Affiliate referral code")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if !client.IsAuthenticated() {
				fmt.Fprintln(out, "Not signed in.")
				return nil
			}

			user, err := client.Auth.Me(cmd.Context())
			if err != nil {
				return fmt.Errorf("whoami: %w", err)
			}

			if flagJSON {
				return printJSON(out, user)
			}

			fmt.Fprintf(out, "User:     %s <%s>\n", user.Name, user.Email)
			fmt.Fprintf(out, "  ID:     %s\n", user.ID)
			fmt.Fprintf(out, "  Role:   %s\n", user.Role)
			if user.Provider != "" {
				fmt.Fprintf(out, "  Login:  %s\n", user.Provider)
			}

			// Claims are informational; an expired token is renewed on use
			if claims, err := client.TokenClaims(); err == nil && !claims.ExpiresAt.IsZero() {
				state := "valid"
				if claims.Expired(time.Now()) {
					state = "expired"
				}
				fmt.Fprintf(out, "  Token:  %s until %s\n", state, claims.ExpiresAt.Local().Format(time.RFC822))
			}
			return nil
		},
	}
}

func newPasswordCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "password",
		Short: "Reset a forgotten password",
	}

	forgot := &cobra.Command{
		Use:   "forgot <email>",
		Short: "Mail a password reset link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.Auth.ForgotPassword(cmd.Context(), args[0]); err != nil {
				return fmt.Errorf("forgot password: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reset link sent to %s\n", args[0])
			return nil
		},
	}

	var password string
	reset := &cobra.Command{
		Use:   "reset <token>",
		Short: "Set a new password with the token from the reset link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if password == "" {
				if password, err = prompt(bufio.NewReader(cmd.InOrStdin()), cmd.OutOrStdout(), "New password: "); err != nil {
					return err
				}
			}
			if err := client.Auth.ResetPassword(cmd.Context(), args[0], password); err != nil {
				return fmt.Errorf("reset password: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password updated. Sign in with the new password.")
			return nil
		},
	}
	reset.Flags().StringVar(&password, "password", "", "New password (prompted if omitted)")

	cmd.AddCommand(forgot, reset)
	return cmd
}
