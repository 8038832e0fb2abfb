package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDefaultConfig(t *testing.T) {
	cfg, err := parse(DefaultConfigYAML)
	if err != nil {
		t.Fatalf("failed to parse default config: %v", err)
	}

	if cfg.Feeds.Comments == "" || cfg.Feeds.Free == "" || cfg.Feeds.Paid == "" {
		t.Error("expected all three feed URLs to be populated")
	}
	if cfg.Host != "Mistmint Haven" {
		t.Errorf("expected target host 'Mistmint Haven', got %q", cfg.Host)
	}
	if _, ok := cfg.Hosts[cfg.Host]; !ok {
		t.Errorf("hosts table has no block for target host %q", cfg.Host)
	}
	if cfg.Publish {
		t.Error("publishing must be off by default")
	}
}

func TestParseMinimalConfig(t *testing.T) {
	data := []byte(`
feeds:
  comments: https://example.com/comments.xml
hosts:
  Mistmint Haven:
    novels:
      "Tiny Dragon's Lucky Break!":
        short_code: TDLB
        coin_price: "5"
        nsfw: true
`)
	cfg, err := parse(data)
	if err != nil {
		t.Fatalf("failed to parse minimal config: %v", err)
	}

	// Defaults should still be set for unspecified fields.
	if cfg.Host != "Mistmint Haven" {
		t.Errorf("expected default target host, got %q", cfg.Host)
	}

	novel, ok := cfg.FindNovel("Mistmint Haven", "Tiny Dragon's Lucky Break!")
	if !ok {
		t.Fatal("configured novel not found")
	}
	if novel.ShortCode != "TDLB" || novel.CoinPrice != "5" || !novel.NSFW {
		t.Errorf("novel = %+v", novel)
	}

	if _, ok := cfg.FindNovel("Mistmint Haven", "Unknown"); ok {
		t.Error("unknown novel should not resolve")
	}
	if _, ok := cfg.FindNovel("Unknown Host", "Tiny Dragon's Lucky Break!"); ok {
		t.Error("unknown host should not resolve")
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, DefaultConfigYAML, 0o644); err != nil {
		t.Fatalf("failed to write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Feeds.Comments == "" {
		t.Error("expected feeds to be populated from file")
	}
}

func TestResolveConfigPathExplicitMissing(t *testing.T) {
	if _, err := ResolveConfigPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit path")
	}
}

func TestGetStateDir(t *testing.T) {
	cfg := &Config{}
	if cfg.GetStateDir() == "" {
		t.Error("expected non-empty default state dir")
	}

	cfg.StateDir = "/custom/path"
	if cfg.GetStateDir() != "/custom/path" {
		t.Errorf("expected configured state dir, got %q", cfg.GetStateDir())
	}
}

func TestEnvThreadIDs(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "token")
	t.Setenv("DISCORD_CHANNEL_ID", "chan")
	t.Setenv("USE_UNARCHIVE", "1")
	t.Setenv("TDLB_THREAD_ID", " 12345 ")
	t.Setenv("EMPTY_THREAD_ID", "")

	env := FromEnv()
	if env.BotToken != "token" || env.ChannelID != "chan" {
		t.Errorf("env = %+v", env)
	}
	if !env.Unarchive || env.Autocreate {
		t.Errorf("toggles = %v/%v", env.Unarchive, env.Autocreate)
	}
	if env.ThreadID("TDLB") != "12345" {
		t.Errorf("thread id = %q", env.ThreadID("TDLB"))
	}
	if env.ThreadID("EMPTY") != "" {
		t.Error("blank thread id should be dropped")
	}
	if env.ThreadID("UNSET") != "" {
		t.Error("unset thread id should be empty")
	}
}
