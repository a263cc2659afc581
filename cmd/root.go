package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terramap-labs/tilescout/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tilescout",
	Short: "Satellite imagery download and detection pipeline",
	Long:  "Downloads satellite tiles covering vector areas of interest, stitches them into larger images, runs hosted object detection over them, and serves the results for preview.",
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
