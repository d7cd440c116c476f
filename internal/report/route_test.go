package report

import (
	"errors"
	"testing"
)

func TestResolveLogTargetPrecedence(t *testing.T) {
	routes := RoutingTable{
		Tools:    map[string]string{"report_detect": "db-tool"},
		Channels: map[string]string{"C001": "db-channel"},
		Default:  "db-default",
	}
	env := func(key string) string {
		if key == EnvLogTarget {
			return "db-env"
		}
		return ""
	}

	got, err := ResolveLogTarget("report_detect", "C001", routes, env)
	if err != nil || got != "db-tool" {
		t.Fatalf("tool override should win, got %q err=%v", got, err)
	}

	routes.Tools = nil
	got, err = ResolveLogTarget("report_detect", "C001", routes, env)
	if err != nil || got != "db-channel" {
		t.Fatalf("channel override should win next, got %q err=%v", got, err)
	}

	routes.Channels = nil
	got, err = ResolveLogTarget("report_detect", "C001", routes, env)
	if err != nil || got != "db-default" {
		t.Fatalf("default should win next, got %q err=%v", got, err)
	}

	routes.Default = ""
	got, err = ResolveLogTarget("report_detect", "C001", routes, env)
	if err != nil || got != "db-env" {
		t.Fatalf("env fallback should win last, got %q err=%v", got, err)
	}

	_, err = ResolveLogTarget("report_detect", "C001", routes, func(string) string { return "" })
	if !errors.Is(err, ErrRouteUnconfigured) {
		t.Fatalf("expected ErrRouteUnconfigured, got %v", err)
	}
}

func TestResolveLogTargetIgnoresEmptyOverrides(t *testing.T) {
	routes := RoutingTable{
		Tools:    map[string]string{"report_detect": ""},
		Channels: map[string]string{"C001": ""},
		Default:  "db-default",
	}
	got, err := ResolveLogTarget("report_detect", "C001", routes, nil)
	if err != nil || got != "db-default" {
		t.Fatalf("empty overrides must not match, got %q err=%v", got, err)
	}
}
