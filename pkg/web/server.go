// Package web serves the posture dashboard, the MJPEG feed and the session
// API over fiber.
package web

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"

	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/camera"
	"github.com/teslashibe/go-posture/pkg/hub"
	"github.com/teslashibe/go-posture/pkg/monitor"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Options configures the server.
type Options struct {
	Port      string
	StaticDir string // Dashboard assets served at "/"

	Monitor *monitor.Monitor
	Camera  *camera.Manager // Optional; enables /api/camera

	Frames *hub.Hub // Annotated JPEG frames
	Stats  *hub.Hub // Per-frame JSON events
}

// Server is the posture web server.
type Server struct {
	app  *fiber.App
	port string

	mon    *monitor.Monitor
	camera *camera.Manager
	frames *hub.Hub
	stats  *hub.Hub
}

// NewServer creates the server and registers its routes.
func NewServer(o Options) *Server {
	s := &Server{
		port:   o.Port,
		mon:    o.Monitor,
		camera: o.Camera,
		frames: o.Frames,
		stats:  o.Stats,
	}

	app := fiber.New(fiber.Config{
		AppName:               "go-posture",
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	// CORS for local development
	app.Use(cors.New())

	if o.StaticDir != "" {
		app.Static("/", o.StaticDir)
	}

	app.Get("/video_feed", s.handleVideoFeed)
	app.Post("/start", s.handleStart)
	app.Post("/stop", s.handleStop)

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/thresholds", s.handleGetThresholds)
	api.Put("/thresholds", s.handleSetThresholds)
	if s.camera != nil {
		api.Get("/camera", s.handleGetCamera)
		api.Put("/camera", s.handleSetCamera)
		api.Get("/camera/presets", s.handleCameraPresets)
	}

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/frames", websocket.New(s.handleFramesWS))
	app.Get("/ws/stats", websocket.New(s.handleStatsWS))

	s.app = app
	return s
}

// Start runs the hubs and serves until ctx is cancelled or Listen fails.
func (s *Server) Start(ctx context.Context) error {
	go s.frames.Run(ctx)
	go s.stats.Run(ctx)

	errc := make(chan error, 1)
	go func() {
		log.Info("web server listening", "url", "http://localhost:"+s.port)
		errc <- s.app.Listen(":" + s.port)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return s.app.Shutdown()
	}
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}
