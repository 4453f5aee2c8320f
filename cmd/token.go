package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"reelforge/internal/pkg/jwt"
)

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue an API token",
	Long:  `Issue a bearer token for the task API. Requires auth.jwt_secret.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if cfg.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is not configured")
		}
		j := jwt.NewJWT(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenExpiry)
		token, err := j.GenerateToken(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(tokenCmd)
}
