package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/eliseohh/anydownbot/internal/config"
	"github.com/eliseohh/anydownbot/internal/logger"
	"github.com/eliseohh/anydownbot/internal/preflight"
)

func Execute() {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

type globalFlags struct {
	configPath string
	envFile    string
	debug      bool
}

// loadConfig reads .env, the config file, then the environment, and sets up
// the process logger from the result.
func (g *globalFlags) loadConfig() (config.Config, error) {
	if err := config.LoadDotEnv(g.envFile); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if g.debug {
		cfg.Log.Debug = true
	}
	logger.Setup(logger.Config{Format: cfg.Log.Format, Debug: cfg.Log.Debug})
	return cfg, nil
}

func NewRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:          "anydown",
		Short:        "Telegram bot that downloads videos from YouTube, Facebook, Instagram and X",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), g)
		},
	}

	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to a YAML or JSONC config file")
	cmd.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newServeCmd(g),
		newProbeCmd(g),
		newImageCmd(g),
		newPreflightCmd(g, preflight.DefaultEnv()),
	)
	return cmd
}
