package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tsumugi-bot/tsumugi/internal/config"
	"github.com/tsumugi-bot/tsumugi/internal/journal"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ tsumugi Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 tsumugi Status")
		fmt.Printf("Version: %s\n", version)

		configPath, _ := config.ConfigPath()
		if _, err := os.Stat(configPath); err == nil {
			fmt.Println("Config:  ✓ Found (" + configPath + ")")
		} else {
			fmt.Println("Config:  ✗ Not found (env-only)")
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Println("Load:    ✗ " + err.Error())
			return
		}
		check := func(label, value string) {
			if value != "" {
				fmt.Println(label + " ✓ Set")
			} else {
				fmt.Println(label + " ✗ Missing")
			}
		}
		check("Slack:  ", cfg.Slack.BotToken)
		check("OpenAI: ", cfg.OpenAI.APIKey)
		check("Notion: ", cfg.Notion.Token)
		check("Digest: ", cfg.Notion.DatabaseID)

		rules, err := config.LoadRules(cfg.Paths.Rules)
		if err != nil {
			fmt.Println("Rules:   ✗ " + err.Error())
			return
		}
		fmt.Printf("Rules:   ✓ %d reactions, trigger :%s:\n", len(rules.Reactions), rules.TriggerReaction)
		if len(rules.WatchChannels) > 0 {
			fmt.Printf("Watch:   ✓ %d channels\n", len(rules.WatchChannels))
		} else {
			fmt.Println("Watch:   ✗ No report channels configured")
		}

		if cfg.Paths.Journal != "" {
			printRecentFlushes(cfg.Paths.Journal)
		}
	},
}

func printRecentFlushes(path string) {
	if _, err := os.Stat(path); err != nil {
		fmt.Println("Journal: ✗ Not found (" + path + ")")
		return
	}
	svc, err := journal.NewService(path)
	if err != nil {
		fmt.Println("Journal: ✗ " + err.Error())
		return
	}
	defer svc.Close()

	records, err := svc.RecentFlushes(5)
	if err != nil {
		fmt.Println("Journal: ✗ " + err.Error())
		return
	}
	if len(records) == 0 {
		fmt.Println("Journal: ✓ No flushes recorded yet")
		return
	}
	fmt.Printf("Journal: ✓ %d recent flushes\n", len(records))
	for _, line := range flushLines(records) {
		fmt.Println(line)
	}
}

// flushLines renders journal rows for the status output, newest first.
func flushLines(records []journal.FlushRecord) []string {
	lines := make([]string, 0, len(records))
	for _, r := range records {
		line := fmt.Sprintf("  %s  %-14s %2d fragments  %s",
			r.CreatedAt.Format("2006-01-02 15:04"), r.Key, r.Fragments, r.Status)
		if r.ArtifactURL != "" {
			line += "  " + r.ArtifactURL
		}
		lines = append(lines, line)
	}
	return lines
}
