package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/codelanx/plugintemplate/internal/config"
	"github.com/codelanx/plugintemplate/internal/journal"
)

func withFlags(t *testing.T, data, cfg string) {
	t.Helper()
	oldData, oldCfg, oldForce := dataDir, cfgFile, force
	dataDir, cfgFile, force = data, cfg, false
	t.Cleanup(func() { dataDir, cfgFile, force = oldData, oldCfg, oldForce })
}

func TestConfigPath(t *testing.T) {
	withFlags(t, "data", "")
	if got := configPath(); got != filepath.Join("data", "config.yml") {
		t.Fatalf("configPath = %q", got)
	}
	cfgFile = "/etc/pt.yml"
	if got := configPath(); got != "/etc/pt.yml" {
		t.Fatalf("configPath = %q", got)
	}
}

func TestInitConfig(t *testing.T) {
	dir := t.TempDir()
	withFlags(t, dir, "")

	if err := initConfig(); err != nil {
		t.Fatalf("initConfig: %v", err)
	}
	if _, err := config.Load(config.Path(dir)); err != nil {
		t.Fatalf("written config does not load: %v", err)
	}
	if err := initConfig(); err == nil {
		t.Fatal("expected error when the file exists")
	}
	force = true
	if err := initConfig(); err != nil {
		t.Fatalf("initConfig --force: %v", err)
	}
}

func TestShowStatus(t *testing.T) {
	dir := t.TempDir()
	withFlags(t, dir, "")

	if err := showStatus(); err != nil {
		t.Fatalf("showStatus without config: %v", err)
	}
	if err := initConfig(); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "update"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "update", pluginFile), []byte("jar"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := showStatus(); err != nil {
		t.Fatalf("showStatus: %v", err)
	}
}

func TestMetricsState(t *testing.T) {
	if metricsState(config.MetricsConfig{OptOut: true}) != "opted out" {
		t.Fatal("opt out")
	}
	if metricsState(config.MetricsConfig{GUID: "abc"}) != "enabled, guid abc" {
		t.Fatal("guid")
	}
}

func TestVerifyJournal(t *testing.T) {
	dir := t.TempDir()
	withFlags(t, dir, "")

	if err := verifyJournal(); err == nil {
		t.Fatal("expected error for a missing journal")
	}

	j, err := journal.Open(dir, config.Default().Journal)
	if err != nil {
		t.Fatal(err)
	}
	j.Record(journal.EventEnabled, "", nil)
	j.Close()

	if err := verifyJournal(); err != nil {
		t.Fatalf("verifyJournal: %v", err)
	}
}

func TestRunServerDisablesOnStop(t *testing.T) {
	dir := t.TempDir()
	withFlags(t, dir, "")

	cfg := config.Default()
	cfg.Update.Check = false
	cfg.Metrics.OptOut = true
	if err := config.SaveTo(cfg, config.Path(dir)); err != nil {
		t.Fatal(err)
	}

	if err := runServer(context.Background(), strings.NewReader("list\nstop\n")); err != nil {
		t.Fatalf("runServer: %v", err)
	}

	path := filepath.Join(dir, journal.FileName)
	if err := journal.Verify(path); err != nil {
		t.Fatalf("journal: %v", err)
	}
	entries, err := journal.Read(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 || entries[len(entries)-1].Event != journal.EventDisabled {
		t.Fatalf("last journal entry should be %s, got %+v", journal.EventDisabled, entries)
	}
}
