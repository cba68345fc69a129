package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"equity-screener/internal/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Log in to the broker and manage the access token",
}

var authLoginURLCmd = &cobra.Command{
	Use:   "login-url",
	Short: "Print the consent page URL",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.RequireApp(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), newAuthService(newClient("", nil), nil).LoginURL())
		return nil
	},
}

var authExchangeCmd = &cobra.Command{
	Use:   "exchange CODE|REDIRECT_URL",
	Short: "Trade the authorization code for an access token",
	Long: `Exchanges the code from the login redirect for an access token. The
token is saved to Redis when REDIS_ADDR is set, else printed so it can be
put in UPSTOX_ACCESS_TOKEN.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireApp(); err != nil {
			return err
		}
		st := openTokenStore()
		if st != nil {
			defer st.Close()
		}
		tok, err := newAuthService(newClient("", nil), st).Exchange(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if st != nil {
			fmt.Fprintf(out, "logged in as %s; token saved, expires %s\n", tok.UserID, tok.ExpiresAt.Format(time.RFC3339))
			return nil
		}
		fmt.Fprintf(out, "UPSTOX_ACCESS_TOKEN=%s\n# expires %s\n", tok.AccessToken, tok.ExpiresAt.Format(time.RFC3339))
		return nil
	},
}

var authTOTPCmd = &cobra.Command{
	Use:   "totp",
	Short: "Print the current login TOTP from UPSTOX_TOTP_SECRET",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if cfg.UpstoxTOTPSecret == "" {
			return errors.New("UPSTOX_TOTP_SECRET is not set")
		}
		code, err := auth.TOTPCode(cfg.UpstoxTOTPSecret, time.Now())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), code)
		return nil
	},
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a usable access token is available",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st := openTokenStore()
		if st != nil {
			defer st.Close()
			if tok, err := st.Load(cmd.Context()); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "redis token for %s, expires %s\n", tok.UserID, tok.ExpiresAt.Format(time.RFC3339))
				return nil
			}
		}
		if cfg.UpstoxAccessToken != "" {
			fmt.Fprintln(cmd.OutOrStdout(), "static token from UPSTOX_ACCESS_TOKEN")
			return nil
		}
		return auth.ErrNotLoggedIn
	},
}

func init() {
	authCmd.AddCommand(authLoginURLCmd, authExchangeCmd, authTOTPCmd, authStatusCmd)
	rootCmd.AddCommand(authCmd)
}
