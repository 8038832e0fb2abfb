package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// Config is the static novel-to-metadata mapping table plus run settings.
// It is loaded once at process start and passed into every component;
// nothing outside this package reads configuration or environment state.
type Config struct {
	Feeds    Feeds           `yaml:"feeds"`
	Host     string          `yaml:"target_host"`
	StateDir string          `yaml:"state_dir"`
	Roles    Roles           `yaml:"roles"`
	PingUser string          `yaml:"ping_user_id"`
	Publish  bool            `yaml:"publish_state"`
	Hosts    map[string]Host `yaml:"hosts"`
}

// Feeds holds the aggregated feed URLs shared by all novels.
type Feeds struct {
	Comments string `yaml:"comments"`
	Free     string `yaml:"free"`
	Paid     string `yaml:"paid"`
}

// Roles are the server-wide role mention strings used by announcements.
type Roles struct {
	Completed string `yaml:"completed"`
	NewNovels string `yaml:"new_novels"`
	NSFW      string `yaml:"nsfw"`
}

// Host is one hosting site's block in the mapping table.
type Host struct {
	Translator string           `yaml:"translator"`
	HostLogo   string           `yaml:"host_logo"`
	CoinEmoji  string           `yaml:"coin_emoji"`
	Novels     map[string]Novel `yaml:"novels"`
}

// Novel is the per-novel routing and display metadata.
type Novel struct {
	ShortCode      string `yaml:"short_code"`
	NovelURL       string `yaml:"novel_url"`
	FeaturedImage  string `yaml:"featured_image"`
	CoinPrice      string `yaml:"coin_price"`
	CoinEmoji      string `yaml:"coin_emoji"`
	LastChapter    string `yaml:"last_chapter"`
	ChapterCount   string `yaml:"chapter_count"`
	StartDate      string `yaml:"start_date"` // DD/MM/YYYY
	FreeFeed       string `yaml:"free_feed"`
	PaidFeed       string `yaml:"paid_feed"`
	HistoryFile    string `yaml:"history_file"`
	RoleMention    string `yaml:"discord_role_id"`
	RoleURL        string `yaml:"discord_role_url"`
	ExtraPingRoles string `yaml:"extra_ping_roles"`
	CustomEmoji    string `yaml:"custom_emoji"`
	NSFW           bool   `yaml:"nsfw"`
}

// ConfigDir returns the XDG config directory for mistmint.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "mistmint")
}

// DataDir returns the XDG data directory for mistmint.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "mistmint")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/mistmint/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'mistmint init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Host: "Mistmint Haven",
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// GetStateDir returns the effective state directory from config or XDG default.
func (c *Config) GetStateDir() string {
	if c.StateDir != "" {
		return c.StateDir
	}
	return DataDir()
}

// TargetNovels returns the novels of the configured target host.
func (c *Config) TargetNovels() map[string]Novel {
	return c.Hosts[c.Host].Novels
}

// FindNovel looks up a novel block by host and title.
func (c *Config) FindNovel(host, title string) (Novel, bool) {
	n, ok := c.Hosts[host].Novels[title]
	return n, ok
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

const threadIDSuffix = "_THREAD_ID"

// Env is the one-time snapshot of everything this system reads from the
// process environment. Components receive it by reference instead of
// calling os.Getenv, so tests can inject fixtures.
type Env struct {
	BotToken   string
	ChannelID  string            // fallback announcement channel
	Unarchive  bool              // patch archived threads before posting
	Autocreate bool              // create missing per-novel threads on demand
	ThreadIDs  map[string]string // "<SHORTCODE>_THREAD_ID" -> destination id
}

// FromEnv captures the environment. This is the single place in the
// program that reads environment variables.
func FromEnv() *Env {
	e := &Env{
		BotToken:   os.Getenv("DISCORD_BOT_TOKEN"),
		ChannelID:  os.Getenv("DISCORD_CHANNEL_ID"),
		Unarchive:  os.Getenv("USE_UNARCHIVE") == "1",
		Autocreate: os.Getenv("AUTOCREATE_THREADS") == "1",
		ThreadIDs:  make(map[string]string),
	}
	for _, kv := range os.Environ() {
		key, val, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasSuffix(key, threadIDSuffix) {
			continue
		}
		if val = strings.TrimSpace(val); val != "" {
			e.ThreadIDs[key] = val
		}
	}
	return e
}

// ThreadID returns the destination id configured for a short-code, or "".
func (e *Env) ThreadID(shortCode string) string {
	return e.ThreadIDs[shortCode+threadIDSuffix]
}
