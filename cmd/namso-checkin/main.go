package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/phongvanairdrop/NamsoCheckIn-Automation-GPM/internal/telemetry"
)

var (
	configPath string
	rootCmd    = &cobra.Command{
		Use:   "namso-checkin",
		Short: "Namso check-in automation over GPM-Login profiles",
		Long: `namso-checkin drives GPM-Login browser profiles through the daily
Namso flow: login (with Gmail OTP), check-in, SHARE conversion, and
result tracking in an Excel sheet.`,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path")
}

func main() {
	telemetry.SetupLogger()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
