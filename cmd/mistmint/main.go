package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cannibal-turtle/mistmint-bot/internal/config"
	"github.com/cannibal-turtle/mistmint-bot/internal/discord"
	"github.com/cannibal-turtle/mistmint-bot/internal/pipeline"
	"github.com/cannibal-turtle/mistmint-bot/internal/state"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	feedType   string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "mistmint",
	Short:   "Feed-to-Discord relay bots for translated novels",
	Long:    "Mistmint watches comment and chapter feeds and relays new activity into per-novel Discord threads, plus arc, extras, completion, and launch announcements.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	chaptersCmd.Flags().StringVar(&feedType, "feed", "", "Which chapter feed to process: free or paid")
	chaptersCmd.MarkFlagRequired("feed")
	completedCmd.Flags().StringVar(&feedType, "feed", "", "Which feed to watch for the final chapter: free or paid")
	completedCmd.MarkFlagRequired("feed")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(commentsCmd)
	rootCmd.AddCommand(chaptersCmd)
	rootCmd.AddCommand(arcsCmd)
	rootCmd.AddCommand(extrasCmd)
	rootCmd.AddCommand(completedCmd)
	rootCmd.AddCommand(launchesCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("mistmint", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/mistmint/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure feeds, the novel mapping table, and roles.")
		return nil
	},
}

var commentsCmd = &cobra.Command{
	Use:   "comments",
	Short: "Relay new comments into each novel's thread",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(p *pipeline.Pipeline) (pipeline.Result, error) {
			return p.Comments()
		})
	},
}

var chaptersCmd = &cobra.Command{
	Use:   "chapters",
	Short: "Relay new chapter releases into each novel's thread",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(p *pipeline.Pipeline) (pipeline.Result, error) {
			return p.Chapters(feedType)
		})
	},
}

var arcsCmd = &cobra.Command{
	Use:   "arcs",
	Short: "Announce newly started arcs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(p *pipeline.Pipeline) (pipeline.Result, error) {
			return p.Arcs()
		})
	},
}

var extrasCmd = &cobra.Command{
	Use:   "extras",
	Short: "Announce extras and side stories entering advance access",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(p *pipeline.Pipeline) (pipeline.Result, error) {
			return p.Extras()
		})
	},
}

var completedCmd = &cobra.Command{
	Use:   "completed",
	Short: "Announce novels whose final chapter has been released",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(p *pipeline.Pipeline) (pipeline.Result, error) {
			return p.Completed(feedType)
		})
	},
}

var launchesCmd = &cobra.Command{
	Use:   "launches",
	Short: "Announce newly launched series",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(func(p *pipeline.Pipeline) (pipeline.Result, error) {
			return p.Launches()
		})
	},
}

// run wires the shared dependencies and executes one bot.
func run(bot func(*pipeline.Pipeline) (pipeline.Result, error)) error {
	env := config.FromEnv()
	if env.BotToken == "" {
		return fmt.Errorf("missing DISCORD_BOT_TOKEN")
	}

	client, err := discord.New(env.BotToken, env.Unarchive)
	if err != nil {
		return fmt.Errorf("creating discord client: %w", err)
	}

	store, err := state.NewStore(cfg.GetStateDir())
	if err != nil {
		return err
	}

	var pub state.Publisher = state.NopPublisher{}
	if cfg.Publish {
		pub = state.GitPublisher{Dir: cfg.GetStateDir()}
	}

	res, err := bot(pipeline.New(cfg, env, store, client, pub))
	if err != nil {
		return err
	}
	log.Println(res)
	return nil
}
