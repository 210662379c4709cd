package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lazypower/waypoint/internal/client"
	"github.com/lazypower/waypoint/internal/config"
	"github.com/lazypower/waypoint/internal/store"
)

var (
	configPath string
	serverURL  string
)

var rootCmd = &cobra.Command{
	Use:           "waypoint",
	Short:         "Spatial memories anchored in the world",
	Long:          "Waypoint pins short text and photo memories at points in a tracked 3D space and brings them back when you return.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $WAYPOINT_CONFIG or ~/.waypoint/config.toml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "url", "", "server URL for remote commands (default $WAYPOINT_URL or "+client.DefaultServerURL+")")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(placeCmd)
	rootCmd.AddCommand(tapCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(memoriesCmd)
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func resolveDBPath(cfg config.Config) (string, error) {
	if cfg.Database.Path != "" {
		return cfg.Database.Path, nil
	}
	p, err := store.DefaultDBPath()
	if err != nil {
		return "", fmt.Errorf("resolve db path: %w", err)
	}
	return p, nil
}

// openDB is a helper that opens the database for CLI commands.
func openDB() (*store.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	path, err := resolveDBPath(cfg)
	if err != nil {
		return nil, err
	}
	return store.Open(path)
}

func newClient() *client.Client {
	return client.New(serverURL)
}
