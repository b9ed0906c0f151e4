package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datallboy/gothumb/internal/app"
	"github.com/datallboy/gothumb/internal/infra/config"
	"github.com/datallboy/gothumb/internal/infra/logger"
)

var (
	Version = "dev"
	Commit  = "none"

	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "gothumb",
	Short: "Thumbnail fetch-and-cache service",
	Long: `gothumb fetches remote images on a single background worker, keeps the
decoded results in a size-bounded LRU cache and delivers each one to the
display slot that asked for it last.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./config.yaml or /config/config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(versionCmd)
}

func Execute() error {
	return rootCmd.Execute()
}

// bootstrap loads config and logging and returns an unbuilt app context.
func bootstrap() (*app.Context, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return nil, fmt.Errorf("logger error: %w", err)
	}

	return app.NewContext(cfg, log), nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "gothumb %s (commit %s)\n", Version, Commit)
	},
}
