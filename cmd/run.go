package main

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run <areas-file>",
	Short: "Download tiles and run detection in one pass",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		downloadSummary, projectDir, err := runDownload(cmd.Context(), cmd, args[0])
		if err != nil {
			return err
		}
		printDownloadSummary(downloadSummary)

		detectSummary, err := runDetect(cmd.Context(), cmd, projectDir)
		if err != nil {
			return err
		}
		printDetectSummary(detectSummary)
		return nil
	},
}

func init() {
	runCmd.Flags().String("name", "", "project name (defaults to the areas file name)")
	runCmd.Flags().Int("zoom", 0, "tile zoom level (default from config)")
	runCmd.Flags().String("output", "", "output root directory (default from config)")
	runCmd.Flags().Int("workers", 0, "concurrent tile workers (default from config)")
	runCmd.Flags().Bool("skip-empty", false, "skip tiles whose four subtile fetches all failed")
	runCmd.Flags().String("model", "", "hosted model identifier as name/version (default from config)")
	runCmd.Flags().Float64("confidence", 0, "minimum prediction confidence (default from config)")

	rootCmd.AddCommand(runCmd)
}
