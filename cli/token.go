package cli

import (
	"errors"
	"fmt"
	"time"

	"atpkiosk/config"
	"atpkiosk/utils"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a renderer token for the local kiosk API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		secret := config.AppConfig.KioskAPISecret
		if secret == "" {
			return errors.New("KIOSK_API_SECRET is not set; the kiosk API accepts requests without a token")
		}
		ttl, _ := cmd.Flags().GetDuration("ttl")
		token, err := utils.GenerateToken(secret, utils.RendererSubject, ttl)
		if err != nil {
			return fmt.Errorf("failed to generate token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
