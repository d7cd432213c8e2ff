package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"storyweave/internal/mcp"
	"storyweave/internal/store"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [storyworld.json]",
		Short: "Start the MCP server over stdio",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runServe,
	}
	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	path, err := storyworldPath(cfg, args)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading storyworld: %w", err)
	}

	var db store.Store
	if cfg.Database.DSN != "" {
		db, err = openDB(ctx, cfg)
		if err != nil {
			return err
		}
		defer db.Close(ctx)
	} else {
		slog.Warn("no database configured, report tools are disabled")
	}

	server, err := mcp.NewServer(path, data, cfg, db, version)
	if err != nil {
		return err
	}
	return server.Run(ctx, &sdk.StdioTransport{})
}
