package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dripsheet/dripsheet/internal/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize access to Sheets and Gmail and save the token file",
	Args:  cobra.NoArgs,
	RunE:  runAuth,
}

func init() {
	rootCmd.AddCommand(authCmd)
}

func runAuth(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}

	oauthCfg, err := auth.OAuthConfig(cfg.Google)
	if err != nil {
		return err
	}

	tok, err := auth.Authorize(cmd.Context(), oauthCfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	if err := auth.SaveToken(cfg.Google.TokenFile, tok); err != nil {
		return err
	}

	log.Info().Str("token_file", cfg.Google.TokenFile).Msg("authorization saved")
	fmt.Fprintln(cmd.OutOrStdout(), "Authorized. You can now run `dripsheet run`.")
	return nil
}
