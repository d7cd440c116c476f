package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/tsumugi-bot/tsumugi/internal/cli.version=1.2.3"
	version = "1.0.0"
	logo    = "\n" +
		"  _                                  _\n" +
		" | |_ ___ _   _ _ __ ___  _   _  __ _(_)\n" +
		" | __/ __| | | | '_ ` _ \\| | | |/ _` | |\n" +
		" | |_\\__ \\ |_| | | | | | | |_| | (_| | |\n" +
		"  \\__|___/\\__,_|_| |_| |_|\\__,_|\\__, |_|\n" +
		"                                |___/\n"
)

var rootCmd = &cobra.Command{
	Use:   "tsumugi",
	Short: "tsumugi - Slack digest and report bot",
	Long:  color.CyanString(logo) + "\nCollects labeled Slack messages into Notion digests and mines incident reports into log databases.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(exportCmd)
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}
