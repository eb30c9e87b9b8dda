package main

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonwraymond/opguard/internal/config"
	"github.com/jonwraymond/opguard/internal/server"
)

func TestBuildProbe(t *testing.T) {
	store := server.NewMemoryStore(nil)

	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{"http", config.Config{ProbeKind: config.ProbeHTTP, ProbeTarget: "http://db"}, "*connguard.HTTPProbe"},
		{"dial", config.Config{ProbeKind: config.ProbeDial, ProbeTarget: "db:5432"}, "*connguard.DialProbe"},
		{"session", config.Config{ProbeKind: config.ProbeSession, SessionToken: "t", SessionKey: "k"}, "*connguard.SessionProbe"},
		{"always", config.Config{ProbeKind: config.ProbeAlways}, "connguard.ProbeFuncs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fmt.Sprintf("%T", buildProbe(tt.cfg, store)); got != tt.want {
				t.Errorf("buildProbe() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestBuildProbe_AlwaysFollowsStore(t *testing.T) {
	store := server.NewMemoryStore(nil)
	probe := buildProbe(config.Default(), store)

	if !probe.IsReachable(context.Background()) {
		t.Error("IsReachable() = false for an online store")
	}
	store.SetOffline(true)
	if probe.IsReachable(context.Background()) {
		t.Error("IsReachable() = true for an offline store")
	}
}

func TestLoadConfig_FlagsWinOverEnv(t *testing.T) {
	t.Setenv("OPGUARD_WORKERS", "8")
	t.Setenv("OPGUARD_DEFAULT_DEADLINE", "7s")

	cmd := newRootCmd()
	if err := cmd.Flags().Parse([]string{"--workers", "3"}); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	cfg := config.Default()
	cfg.Workers = 3
	if err := loadConfig(cmd, &cfg, "/nonexistent/config.toml"); err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want the flag value 3", cfg.Workers)
	}
	if cfg.DefaultDeadline != 7*time.Second {
		t.Errorf("DefaultDeadline = %v, want the env value 7s", cfg.DefaultDeadline)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("OPGUARD_PROBE_KIND", "http")

	cmd := newRootCmd()
	cfg := config.Default()
	if err := loadConfig(cmd, &cfg, "/nonexistent/config.toml"); err == nil {
		t.Error("loadConfig() accepted an http probe without a target")
	}
}
