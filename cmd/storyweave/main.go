package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"storyweave/internal/config"
)

var (
	configPath = config.DefaultPath
	logLevel   string
)

func main() {
	root := &cobra.Command{
		Use:   "storyweave",
		Short: "Rehearse, diagnose and play interactive storyworlds",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(logLevel)
		},
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Project config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	root.AddCommand(initCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(metricsCmd())
	root.AddCommand(rehearseCmd())
	root.AddCommand(playCmd())
	root.AddCommand(historyCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// setupLogging installs a text handler on stderr. An empty level falls back
// to the project config and then to warn.
func setupLogging(level string) error {
	if level == "" {
		if cfg, err := config.LoadOrDefault(configPath); err == nil {
			level = cfg.LogLevel
		}
	}
	var l slog.Level
	switch strings.ToLower(level) {
	case "debug":
		l = slog.LevelDebug
	case "info":
		l = slog.LevelInfo
	case "", "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return fmt.Errorf("unsupported log level: %s", level)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
	return nil
}

func loadConfig() (*config.ProjectConfig, error) {
	return config.LoadOrDefault(configPath)
}

// storyworldPath picks the document named on the command line, falling back
// to the project config.
func storyworldPath(cfg *config.ProjectConfig, args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if cfg.Storyworld != "" {
		return cfg.Storyworld, nil
	}
	return "", fmt.Errorf("no storyworld given and none configured in %s", configPath)
}
