package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-posture/internal/config"
	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/camera"
	"github.com/teslashibe/go-posture/pkg/frame"
	"github.com/teslashibe/go-posture/pkg/hub"
	"github.com/teslashibe/go-posture/pkg/monitor"
	"github.com/teslashibe/go-posture/pkg/video"
	"github.com/teslashibe/go-posture/pkg/web"
)

var serveFlags struct {
	port       string
	camera     string
	webrtcHost string
	static     string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the live posture dashboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		s := settings
		flags := cmd.Flags()
		if flags.Changed("port") {
			s.Port = serveFlags.port
		}
		if flags.Changed("camera") {
			s.Camera = serveFlags.camera
		}
		if flags.Changed("webrtc-host") {
			s.WebRTCHost = serveFlags.webrtcHost
		}
		return runServe(cmd.Context(), s)
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVarP(&serveFlags.port, "port", "p", "5000", "HTTP port (env POSTURE_PORT)")
	f.StringVarP(&serveFlags.camera, "camera", "c", "0", "Camera index or video file (env CAMERA_DEVICE)")
	f.StringVar(&serveFlags.webrtcHost, "webrtc-host", "", "Remote WebRTC camera host, replaces the local camera (env WEBRTC_HOST)")
	f.StringVar(&serveFlags.static, "static", "./web", "Dashboard asset directory")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context, s config.Settings) error {
	p, det, err := newPipeline(s, true)
	if err != nil {
		return err
	}
	defer det.Close()

	cams := camera.NewManager(cameraConfig(s))
	cams.OnConfigChange = func(cfg camera.Config) error {
		log.Info("camera config changed", "device", cfg.Device, "width", cfg.Width, "height", cfg.Height)
		return nil
	}

	open := func(ctx context.Context) (frame.Source, error) {
		if s.WebRTCHost != "" {
			c, err := video.Dial(ctx, video.DefaultConfig(s.WebRTCHost))
			if err != nil {
				return nil, err
			}
			return c, nil
		}
		c, err := camera.Open(cams.GetConfig())
		if err != nil {
			return nil, err
		}
		return c, nil
	}

	frames, stats := hub.New("frames"), hub.New("stats")
	mon := monitor.New(monitor.Config{
		Pipeline: p,
		Open:     open,
		MaxFPS:   s.MaxFPS,
		Frames:   frames,
		Stats:    stats,
	})
	defer func() {
		if err := mon.Shutdown(5 * time.Second); err != nil {
			log.Warn("shutdown", "error", err)
		}
	}()

	srv := web.NewServer(web.Options{
		Port:      s.Port,
		StaticDir: serveFlags.static,
		Monitor:   mon,
		Camera:    cams,
		Frames:    frames,
		Stats:     stats,
	})

	log.Info("posture monitor ready",
		"backend", s.PoseBackend,
		"neck_angle_min", s.NeckAngleMin,
		"shoulder_diff_max", s.ShoulderDiffMax)
	return srv.Start(ctx)
}
