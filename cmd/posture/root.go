package main

import (
	"github.com/spf13/cobra"

	"github.com/teslashibe/go-posture/internal/config"
	"github.com/teslashibe/go-posture/internal/log"
)

// Version is the application version.
const Version = "0.1.0"

// settings is resolved once in PersistentPreRunE and shared by subcommands.
var settings config.Settings

var rootFlags struct {
	backend        string
	model          string
	logLevel       string
	neckAngleMin   float64
	shoulderDiff   float64
	maxFPS         float64
	skipUndetected bool
	minVisibility  float64
}

var rootCmd = &cobra.Command{
	Use:           "posture",
	Short:         "Webcam posture monitor",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := config.Load()
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("backend") {
			s.PoseBackend = rootFlags.backend
		}
		if flags.Changed("model") {
			s.PoseModel = rootFlags.model
		}
		if flags.Changed("log-level") {
			s.LogLevel = rootFlags.logLevel
		}
		if flags.Changed("neck-angle-min") {
			s.NeckAngleMin = rootFlags.neckAngleMin
		}
		if flags.Changed("shoulder-diff-max") {
			s.ShoulderDiffMax = rootFlags.shoulderDiff
		}
		if flags.Changed("max-fps") {
			s.MaxFPS = rootFlags.maxFPS
		}
		if flags.Changed("min-visibility") {
			s.MinVisibility = rootFlags.minVisibility
		}
		if flags.Changed("skip-undetected") {
			s.SkipUndetected = rootFlags.skipUndetected
		}
		if err := s.Validate(); err != nil {
			return err
		}

		log.InitWithOptions(log.Options{Level: s.LogLevel, File: s.LogFile})
		settings = s
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.backend, "backend", config.DefaultPoseBackend, "Pose backend: mediapipe or movenet (env POSE_BACKEND)")
	pf.StringVar(&rootFlags.model, "model", config.DefaultMoveNetModel, "MoveNet ONNX model path (env POSE_MODEL)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "info", "Log level: debug, info, warn, error (env LOG_LEVEL)")
	pf.Float64Var(&rootFlags.neckAngleMin, "neck-angle-min", 65, "Neck angle in degrees below which the neck counts as bent forward")
	pf.Float64Var(&rootFlags.shoulderDiff, "shoulder-diff-max", 20, "Shoulder height difference in pixels above which shoulders count as uneven")
	pf.Float64Var(&rootFlags.maxFPS, "max-fps", 0, "Cap on processed frames per second, 0 for no cap")
	pf.Float64Var(&rootFlags.minVisibility, "min-visibility", 0, "MediaPipe landmark visibility below which a point counts as missing (env POSE_MIN_VISIBILITY)")
	pf.BoolVar(&rootFlags.skipUndetected, "skip-undetected", false, "Do not count frames where no full pose is found")
}
