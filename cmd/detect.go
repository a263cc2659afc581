package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/terramap-labs/tilescout/internal/detect"
	"github.com/terramap-labs/tilescout/internal/store"
	"github.com/terramap-labs/tilescout/pkg/roboflow"
)

var detectCmd = &cobra.Command{
	Use:   "detect <project-dir>",
	Short: "Run object detection over a project's stitched tiles",
	Long:  "Sends every stitched tile to the configured hosted detection model and writes annotated copies to the project's detections directory.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := runDetect(cmd.Context(), cmd, args[0])
		if err != nil {
			return err
		}
		printDetectSummary(summary)
		return nil
	},
}

// runDetect executes a detection pass over one project directory. Shared by
// the detect and run commands.
func runDetect(ctx context.Context, cmd *cobra.Command, projectDir string) (*detect.Summary, error) {
	apiKey := cfg.Detect.APIKey
	model := cfg.Detect.Model
	if v, _ := cmd.Flags().GetString("model"); v != "" {
		model = v
	}
	confidence := cfg.Detect.Confidence
	if cmd.Flags().Changed("confidence") {
		confidence, _ = cmd.Flags().GetFloat64("confidence")
	}

	client, err := roboflow.NewClient(apiKey, model)
	if err != nil {
		return nil, eris.Wrap(err, "detect")
	}

	st := openStore(ctx)
	var runID string
	if st != nil {
		defer st.Close() //nolint:errcheck
		if run, err := st.CreateRun(ctx, filepath.Base(projectDir), store.KindDetect, 0); err != nil {
			zap.L().Warn("record detect run", zap.Error(err))
		} else {
			runID = run.ID
		}
	}

	summary, err := detect.Run(ctx, client, detect.Options{
		TilesDir:      filepath.Join(projectDir, "tiles"),
		DetectionsDir: filepath.Join(projectDir, "detections"),
		Confidence:    confidence,
	})
	if err != nil {
		if st != nil && runID != "" {
			if ferr := st.FinishRun(ctx, runID, store.StatusFailed, 0, 0, 0, projectDir); ferr != nil {
				zap.L().Warn("record failed run", zap.Error(ferr))
			}
		}
		return nil, eris.Wrap(err, "detect")
	}

	if st != nil && runID != "" {
		if err := st.FinishRun(ctx, runID, store.StatusComplete, summary.Processed, summary.Failed, summary.TotalDetections, projectDir); err != nil {
			zap.L().Warn("record run completion", zap.Error(err))
		}
	}

	return summary, nil
}

func printDetectSummary(s *detect.Summary) {
	fmt.Fprintf(os.Stdout, "Processed %d tiles, %d detections\n", s.Processed, s.TotalDetections)
	if s.Failed > 0 {
		fmt.Fprintf(os.Stdout, "%d tiles failed inference\n", s.Failed)
	}
}

func init() {
	detectCmd.Flags().String("model", "", "hosted model identifier as name/version (default from config)")
	detectCmd.Flags().Float64("confidence", 0, "minimum prediction confidence (default from config)")

	rootCmd.AddCommand(detectCmd)
}
