package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"audionote-backend/config"
	"audionote-backend/middleware"
)

func token(config *config.Config) *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "mint a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			signed, err := middleware.GenerateToken([]byte(config.Auth.JWTSecret), config.Auth.Issuer, userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id placed in the token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
