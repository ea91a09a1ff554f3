package commands

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/medforce/boardstate/internal/admin"
	"github.com/medforce/boardstate/internal/config"
	"github.com/medforce/boardstate/internal/fallback"
	"github.com/medforce/boardstate/internal/store"
	"github.com/medforce/boardstate/internal/zones"
	"github.com/medforce/boardstate/pkg/board"
)

var (
	version string
	commit  string
	date    string

	configPath string
	redisAddr  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "boardctl",
	Short: "Boardctl - operational CLI for the board state cache",
	Long: `Boardctl inspects and administers the patient board state cache:
list and fetch board items, watch live mutation events, clear patient
keyspaces and force reloads from the fallback sources.`,
	Version: version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", v, c, d)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "board.yml", "Path to board configuration file")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "", "Redis address (overrides configuration)")
}

// loadConfig reads board.yml and applies the --redis override.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if redisAddr != "" {
		cfg.Redis.Addr = redisAddr
	}
	return cfg, nil
}

// newBoardClient connects to the cache tier for read-only inspection.
func newBoardClient() (*board.Client, *config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	client, err := board.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, cfg.Retention())
	if err != nil {
		return nil, nil, err
	}
	return client, cfg, nil
}

// newAdmin assembles the full store stack for administrative commands.
func newAdmin() (*admin.Admin, *board.Client, error) {
	client, cfg, err := newBoardClient()
	if err != nil {
		return nil, nil, err
	}

	log := logrus.New()
	var sources []fallback.Source
	if cfg.Source.APIBaseURL != "" {
		sources = append(sources, fallback.NewAPISource(cfg.Source.APIBaseURL, cfg.APITimeout()))
	}
	if cfg.Source.StaticDir != "" {
		sources = append(sources, fallback.NewFileSource(cfg.Source.StaticDir))
	}

	boardStore := store.New(client, fallback.NewResolver(log, sources...), zones.New(client), cfg.Freshness(), log)
	return admin.New(boardStore, log), client, nil
}
