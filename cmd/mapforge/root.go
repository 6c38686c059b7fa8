package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lawnchairsociety/mapforge/internal/config"
	"github.com/lawnchairsociety/mapforge/internal/forge"
	"github.com/lawnchairsociety/mapforge/internal/logger"
)

// app carries the global flags and the loaded configuration to every
// subcommand.
type app struct {
	configPath string
	envFiles   []string
	logLevel   string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "mapforge",
		Short:         "Wang-tile map generation and assembly",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "mapforge.yaml", "Path to config YAML file")
	flags.StringSliceVar(&a.envFiles, "env-file", []string{".env"}, "Files to load environment variables from")
	flags.StringVar(&a.logLevel, "log-level", "", "Override the configured log level")

	root.AddCommand(
		newTilesetCmd(a),
		newMapCmd(a),
		newRegionCmd(a),
		newObjectCmd(a),
	)
	return root
}

func (a *app) load() error {
	if err := config.LoadDotEnv(a.envFiles...); err != nil {
		return err
	}
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if err := logger.Initialize(cfg.Logging); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	a.cfg = cfg
	logger.Debug("Configuration loaded", "path", a.configPath)
	return nil
}

func (a *app) openForge(ctx context.Context) (*forge.Forge, error) {
	return forge.Open(ctx, a.cfg)
}

// saveTilesetsTo redirects tileset persistence to dir. An empty dir keeps
// the configured tilesets directory.
func (a *app) saveTilesetsTo(dir string) {
	if dir != "" {
		a.cfg.Assets.TilesetsDir = dir
	}
}
