// Package cli holds the atpkiosk commands.
package cli

import (
	"fmt"

	"atpkiosk/config"
	"atpkiosk/utils"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "atpkiosk",
	Short: "Self-service print kiosk agent",
	Long: `atpkiosk walks a customer through a print visit: scan a session QR code,
upload a document, pay for it and follow the print job until it is done.
"serve" exposes the workflow to the kiosk renderer; the other commands run it
from a terminal.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is ./config.yaml or ./config/config.yaml)")
	rootCmd.PersistentFlags().String("api", "", "print backend base URL (overrides API_BASE_URL)")
	_ = viper.BindPFlag("API_BASE_URL", rootCmd.PersistentFlags().Lookup("api"))
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	v := viper.GetViper()
	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
	}
	cfg, err := config.Load(v, ".", "./config")
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	config.AppConfig = cfg
	utils.InitializeLogger()
	return nil
}
