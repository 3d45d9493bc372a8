package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/db-inlee/paper-digest-agent/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "paper-digest",
	Short: "Deep analysis pipeline for research papers",
	Long:  "Parses arXiv papers, extracts structured claims via LLM stages, verifies them against the source text, and writes scored markdown digests.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
