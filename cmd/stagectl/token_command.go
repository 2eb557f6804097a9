package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/listenupapp/stagehand/internal/auth"
)

func newTokenCommand(ctx *commandContext) *cobra.Command {
	var userID, sessionID string
	var admin bool
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token signed with the server key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID == "" || sessionID == "" {
				return errors.New("--user and --session are required")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			key, err := auth.LoadOrGenerateKey(cfg.Metadata.BasePath)
			if err != nil {
				return err
			}
			if ttl <= 0 {
				ttl = cfg.Auth.AccessTokenDuration
			}
			tokens, err := auth.NewTokenService(key, ttl)
			if err != nil {
				return err
			}
			token, expires, err := tokens.GenerateAccessToken(auth.Principal{
				UserID:    userID,
				SessionID: sessionID,
				Admin:     admin,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", expires.Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().StringVar(&userID, "user", "", "User ID")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session ID")
	cmd.Flags().BoolVar(&admin, "admin", false, "Grant admin routes")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default: configured access token duration)")
	return cmd
}
