package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tsumugi-bot/tsumugi/internal/report"
)

// Rules drives the reaction handling and report routing. Loaded from a
// YAML file so operators can retune labels without a redeploy.
type Rules struct {
	Reactions              map[string]string   `yaml:"reactions"`
	TriggerReaction        string              `yaml:"trigger_reaction"`
	ChannelTriggerReaction string              `yaml:"channel_trigger_reaction"`
	ThreadCollectReaction  string              `yaml:"thread_collect_reaction"`
	ThreadCollectLabel     string              `yaml:"thread_collect_label"`
	MarkReaction           string              `yaml:"mark_reaction"`
	NotionTitlePrefix      string              `yaml:"notion_title_prefix"`
	WatchChannels          []string            `yaml:"watch_channels"`
	ReportLogDatabases     report.RoutingTable `yaml:"report_log_databases"`
}

// LoadRules reads the rules file and applies environment overrides.
// A missing file yields defaults so a digest-only deployment needs no
// rules at all.
func LoadRules(path string) (*Rules, error) {
	rules := &Rules{Reactions: map[string]string{}}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, rules); err != nil {
			return nil, fmt.Errorf("parse rules %s: %w", path, err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read rules %s: %w", path, err)
	}

	rules.applyEnvOverrides(os.Getenv)
	rules.applyDefaults()
	return rules, nil
}

// applyEnvOverrides mirrors the env knobs of the rules file.
// REACTIONS uses the compact form "bookmark:主題,memo:要件".
func (r *Rules) applyEnvOverrides(getenv func(string) string) {
	if raw := strings.TrimSpace(getenv("REACTIONS")); raw != "" {
		reactions := map[string]string{}
		for _, pair := range strings.Split(raw, ",") {
			if sep := strings.Index(pair, ":"); sep > 0 {
				emoji := strings.TrimSpace(pair[:sep])
				label := strings.TrimSpace(pair[sep+1:])
				if emoji != "" && label != "" {
					reactions[emoji] = label
				}
			}
		}
		r.Reactions = reactions
	}
	if v := strings.TrimSpace(getenv("TRIGGER_REACTION")); v != "" {
		r.TriggerReaction = v
	}
	if v := strings.TrimSpace(getenv("CHANNEL_TRIGGER_REACTION")); v != "" {
		r.ChannelTriggerReaction = v
	}
	if v := strings.TrimSpace(getenv("THREAD_COLLECT_REACTION")); v != "" {
		r.ThreadCollectReaction = v
	}
	if v := strings.TrimSpace(getenv("THREAD_COLLECT_LABEL")); v != "" {
		r.ThreadCollectLabel = v
	}
	if v := strings.TrimSpace(getenv("NOTION_TITLE_PREFIX")); v != "" {
		r.NotionTitlePrefix = v
	}
}

func (r *Rules) applyDefaults() {
	if r.Reactions == nil {
		r.Reactions = map[string]string{}
	}
	if r.TriggerReaction == "" {
		r.TriggerReaction = "notion"
	}
	if r.ThreadCollectLabel == "" {
		r.ThreadCollectLabel = "スレッド"
	}
	if r.MarkReaction == "" {
		r.MarkReaction = "white_check_mark"
	}
	if r.NotionTitlePrefix == "" {
		r.NotionTitlePrefix = "Slackまとめ"
	}
}

// LabelGuide renders the configured labels as prompt guide lines, sorted
// for stable prompts.
func (r *Rules) LabelGuide() []string {
	labels := make([]string, 0, len(r.Reactions))
	seen := map[string]bool{}
	for _, label := range r.Reactions {
		if !seen[label] {
			seen[label] = true
			labels = append(labels, label)
		}
	}
	sort.Strings(labels)
	return labels
}

// Watched reports whether the report scanner covers a channel. An empty
// watch list watches nothing.
func (r *Rules) Watched(channelID string) bool {
	for _, ch := range r.WatchChannels {
		if ch == channelID {
			return true
		}
	}
	return false
}
