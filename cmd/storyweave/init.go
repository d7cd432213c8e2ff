package main

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"storyweave/internal/config"
)

//go:embed templates/starter.json
var starterStoryworld []byte

const starterPath = "storyworld.json"

func initCmd() *cobra.Command {
	var projectName string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Scaffold a new storyweave project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(projectName) == "" {
				return fmt.Errorf("--name is required")
			}
			return runInit(cmd, projectName)
		},
	}
	cmd.Flags().StringVar(&projectName, "name", "", "Project name")
	return cmd
}

func runInit(cmd *cobra.Command, projectName string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}
	if _, err := os.Stat(starterPath); err == nil {
		return fmt.Errorf("%s already exists", starterPath)
	}

	cfg := config.Default(projectName)
	cfg.Storyworld = starterPath
	cfg.Database.DSN = "sqlite://./storyweave.db"
	configContents, err := config.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, configContents, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}
	if err := os.WriteFile(starterPath, starterStoryworld, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", starterPath, err)
	}

	cmd.Printf("Created %s and %s.\n", configPath, starterPath)
	return nil
}
