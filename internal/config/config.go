// Package config provides configuration helpers for go-posture commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Default service configuration.
const (
	DefaultPort         = "5000"
	DefaultCamera       = "0"
	DefaultPoseBackend  = BackendMediaPipe
	DefaultMoveNetModel = "models/movenet_singlepose_lightning.onnx"
	DefaultWorkerScript = "python/pose_worker.py"
	DefaultPython       = "python3"
)

// Pose backends.
const (
	BackendMediaPipe = "mediapipe"
	BackendMoveNet   = "movenet"
)

// Settings is the resolved runtime configuration.
type Settings struct {
	Port string

	// Capture
	Camera       string // Device index ("0") or a video file path
	CameraWidth  int
	CameraHeight int
	JPEGQuality  int
	WebRTCHost   string // Remote camera host, overrides Camera when set

	// Pose model
	PoseBackend   string
	PoseModel     string  // ONNX model for movenet
	WorkerScript  string  // MediaPipe worker script
	PythonBin     string
	MinVisibility float64 // MediaPipe landmarks below this visibility count as missing

	// Classification
	NeckAngleMin    float64 // Degrees
	ShoulderDiffMax float64 // Pixels

	// Pipeline
	MaxFPS         float64 // 0 = as fast as the detector allows
	SkipUndetected bool    // Do not count frames without a detection

	// Logging
	LogLevel string
	LogFile  string
}

// Default returns settings for a laptop webcam on a desk.
func Default() Settings {
	return Settings{
		Port:            DefaultPort,
		Camera:          DefaultCamera,
		CameraWidth:     640,
		CameraHeight:    480,
		JPEGQuality:     80,
		PoseBackend:     DefaultPoseBackend,
		PoseModel:       DefaultMoveNetModel,
		WorkerScript:    DefaultWorkerScript,
		PythonBin:       DefaultPython,
		NeckAngleMin:    65,
		ShoulderDiffMax: 20,
		MaxFPS:          0,
		LogLevel:        "info",
	}
}

// Load reads an optional .env file and then applies environment overrides
// on top of Default().
func Load() (Settings, error) {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Settings{}, fmt.Errorf("config: load .env: %w", err)
	}

	s := Default()
	if err := s.applyEnv(); err != nil {
		return Settings{}, err
	}
	return s, s.Validate()
}

func (s *Settings) applyEnv() error {
	s.Port = String("POSTURE_PORT", s.Port)
	s.Camera = String("CAMERA_DEVICE", s.Camera)
	s.WebRTCHost = String("WEBRTC_HOST", s.WebRTCHost)
	s.PoseBackend = String("POSE_BACKEND", s.PoseBackend)
	s.PoseModel = String("POSE_MODEL", s.PoseModel)
	s.WorkerScript = String("POSE_WORKER_SCRIPT", s.WorkerScript)
	s.PythonBin = String("PYTHON_BIN", s.PythonBin)
	s.LogLevel = String("LOG_LEVEL", s.LogLevel)
	s.LogFile = String("LOG_FILE", s.LogFile)

	var err error
	if s.CameraWidth, err = Int("CAMERA_WIDTH", s.CameraWidth); err != nil {
		return err
	}
	if s.CameraHeight, err = Int("CAMERA_HEIGHT", s.CameraHeight); err != nil {
		return err
	}
	if s.JPEGQuality, err = Int("CAMERA_QUALITY", s.JPEGQuality); err != nil {
		return err
	}
	if s.NeckAngleMin, err = Float("NECK_ANGLE_MIN", s.NeckAngleMin); err != nil {
		return err
	}
	if s.ShoulderDiffMax, err = Float("SHOULDER_DIFF_MAX", s.ShoulderDiffMax); err != nil {
		return err
	}
	if s.MinVisibility, err = Float("POSE_MIN_VISIBILITY", s.MinVisibility); err != nil {
		return err
	}
	if s.MaxFPS, err = Float("MAX_FPS", s.MaxFPS); err != nil {
		return err
	}
	if s.SkipUndetected, err = Bool("SKIP_UNDETECTED", s.SkipUndetected); err != nil {
		return err
	}
	return nil
}

// Validate checks the settings for values that cannot work.
func (s Settings) Validate() error {
	if s.Port == "" {
		return errors.New("config: port required")
	}
	switch s.PoseBackend {
	case BackendMediaPipe, BackendMoveNet:
	default:
		return fmt.Errorf("config: unknown pose backend %q", s.PoseBackend)
	}
	if s.JPEGQuality < 1 || s.JPEGQuality > 100 {
		return errors.New("config: jpeg quality must be between 1 and 100")
	}
	if s.MinVisibility < 0 || s.MinVisibility > 1 {
		return errors.New("config: min visibility must be between 0 and 1")
	}
	if s.MaxFPS < 0 {
		return errors.New("config: max fps must not be negative")
	}
	return nil
}

// String returns the env var value or def if unset.
func String(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Int returns the env var parsed as int, or def if unset.
func Int(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

// Float returns the env var parsed as float64, or def if unset.
func Float(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

// Bool returns the env var parsed as bool, or def if unset.
func Bool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}
