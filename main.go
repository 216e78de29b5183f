package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"promptmaster/internal/config"
	"promptmaster/internal/observability"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "promptmaster",
	Short: "Mode and style aware chat backend for generative AI",
	RunE:  runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config.json (default $PROMPTMASTER_CONFIG or ./config.json)")
	rootCmd.AddCommand(serveCmd, askCmd, stylesCmd)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		observability.Logger().Error("command failed", "error", err)
		os.Exit(1)
	}
}
