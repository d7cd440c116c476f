package report

import "errors"

// ErrRouteUnconfigured is returned when no precedence level yields a target.
// Fatal for the write in question; never retried.
var ErrRouteUnconfigured = errors.New("report log routing unconfigured")

// EnvLogTarget is the environment-level routing fallback.
const EnvLogTarget = "NOTION_REPORT_LOG_DB_ID"

// RoutingTable maps tools and source channels to log database identifiers.
type RoutingTable struct {
	Tools    map[string]string `yaml:"tools" json:"tools"`
	Channels map[string]string `yaml:"channels" json:"channels"`
	Default  string            `yaml:"default" json:"default"`
}

// ResolveLogTarget picks the log database for a (tool, channel) pair.
// Precedence: per-tool override, per-channel override, configured default,
// then the NOTION_REPORT_LOG_DB_ID environment fallback. First non-empty
// match wins.
func ResolveLogTarget(toolKey, channelID string, routes RoutingTable, getenv func(string) string) (string, error) {
	if toolKey != "" {
		if target := routes.Tools[toolKey]; target != "" {
			return target, nil
		}
	}
	if channelID != "" {
		if target := routes.Channels[channelID]; target != "" {
			return target, nil
		}
	}
	if routes.Default != "" {
		return routes.Default, nil
	}
	if getenv != nil {
		if target := getenv(EnvLogTarget); target != "" {
			return target, nil
		}
	}
	return "", ErrRouteUnconfigured
}
