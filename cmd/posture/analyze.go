package main

import (
	"context"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/camera"
	"github.com/teslashibe/go-posture/pkg/pipeline"
	"github.com/teslashibe/go-posture/pkg/session"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze VIDEO",
	Short: "Score posture over a recorded video",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := runAnalyze(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		out := struct {
			Status string `json:"status"`
			session.Summary
		}{"stopped", summary}

		enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(ctx context.Context, path string) (session.Summary, error) {
	p, det, err := newPipeline(settings, false)
	if err != nil {
		return session.Summary{}, err
	}
	defer det.Close()

	cfg := cameraConfig(settings)
	cfg.Device = path
	src, err := camera.Open(cfg)
	if err != nil {
		return session.Summary{}, err
	}
	defer src.Close()

	total := src.FrameCount()
	if total <= 0 {
		// Unknown length: progressbar shows a spinner
		total = -1
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Analyzing"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	acc := session.New()
	id, _ := acc.Start()

	runner := pipeline.Runner{
		Pipeline: p,
		MaxFPS:   settings.MaxFPS,
		OnFrame: func(pipeline.Result) {
			bar.Add(1)
		},
	}

	reason, err := runner.Run(ctx, src, acc.Bind(id))
	summary := acc.Stop()
	bar.Finish()
	fmt.Fprintln(os.Stderr)

	log.Info("analysis finished", "video", path, "reason", reason.String(), "frames", summary.Total())
	if err != nil {
		return summary, fmt.Errorf("analyze %s: %w", path, err)
	}
	if reason == pipeline.StoppedCancelled {
		return summary, ctx.Err()
	}
	return summary, nil
}
