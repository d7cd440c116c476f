package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	return path
}

func TestLoadRulesFromYAML(t *testing.T) {
	path := writeRules(t, `
reactions:
  bookmark: 主題
  memo: 要件
trigger_reaction: notion
channel_trigger_reaction: notion_all
thread_collect_reaction: thread
watch_channels: [C001, C002]
report_log_databases:
  tools:
    report_detect: db-tool
  channels:
    C001: db-chan
  default: db-default
`)
	rules, err := LoadRules(path)
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	if rules.Reactions["bookmark"] != "主題" {
		t.Fatalf("reactions not loaded: %v", rules.Reactions)
	}
	if rules.ChannelTriggerReaction != "notion_all" {
		t.Fatalf("channel trigger not loaded: %q", rules.ChannelTriggerReaction)
	}
	if !rules.Watched("C002") || rules.Watched("C999") {
		t.Fatalf("watch channels wrong: %v", rules.WatchChannels)
	}
	if rules.ReportLogDatabases.Tools["report_detect"] != "db-tool" {
		t.Fatalf("routing table not loaded: %+v", rules.ReportLogDatabases)
	}
	if rules.NotionTitlePrefix != "Slackまとめ" {
		t.Fatalf("default title prefix missing: %q", rules.NotionTitlePrefix)
	}
}

func TestLoadRulesMissingFileGivesDefaults(t *testing.T) {
	rules, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing rules file should not fail: %v", err)
	}
	if rules.TriggerReaction != "notion" {
		t.Fatalf("default trigger missing: %q", rules.TriggerReaction)
	}
	if rules.MarkReaction != "white_check_mark" {
		t.Fatalf("default mark reaction missing: %q", rules.MarkReaction)
	}
}

func TestRulesEnvOverrides(t *testing.T) {
	rules := &Rules{
		Reactions:       map[string]string{"old": "旧"},
		TriggerReaction: "old_trigger",
	}
	getenv := func(key string) string {
		switch key {
		case "REACTIONS":
			return "bookmark:主題, thinking_face:検討 ,broken"
		case "TRIGGER_REACTION":
			return "notion"
		case "NOTION_TITLE_PREFIX":
			return "週次まとめ"
		}
		return ""
	}
	rules.applyEnvOverrides(getenv)

	if len(rules.Reactions) != 2 {
		t.Fatalf("REACTIONS should replace the map, got %v", rules.Reactions)
	}
	if rules.Reactions["thinking_face"] != "検討" {
		t.Fatalf("pairs should be trimmed: %v", rules.Reactions)
	}
	if rules.TriggerReaction != "notion" || rules.NotionTitlePrefix != "週次まとめ" {
		t.Fatalf("scalar overrides not applied: %+v", rules)
	}
}

func TestLabelGuideDedupsAndSorts(t *testing.T) {
	rules := &Rules{Reactions: map[string]string{
		"bookmark": "主題",
		"star":     "主題",
		"memo":     "要件",
	}}
	guide := rules.LabelGuide()
	if len(guide) != 2 {
		t.Fatalf("expected deduped labels, got %v", guide)
	}
	if guide[0] != "主題" || guide[1] != "要件" {
		t.Fatalf("expected sorted labels, got %v", guide)
	}
}
