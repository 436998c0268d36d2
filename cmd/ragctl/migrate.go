package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jharjadi/pro-rag/chat-api-go/internal/app"
	"github.com/jharjadi/pro-rag/chat-api-go/internal/config"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the primary and secondary collections",
	Long: `Migrate creates whatever the configured backend needs for the primary and
secondary collections. For pgvector it installs the vector extension and
creates one table per collection. For Qdrant it creates missing collections
sized by EMBED_DIMENSIONS.

Examples:
  ragctl migrate
  VECTOR_BACKEND=qdrant EMBED_DIMENSIONS=3072 ragctl migrate`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := app.Migrate(ctx, cfg); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: collections %q and %q ready\n",
		cfg.VectorBackend, cfg.PrimaryCollection, cfg.SecondaryCollection)
	return nil
}
