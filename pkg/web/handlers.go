package web

import (
	"bufio"
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-posture/internal/log"
	"github.com/teslashibe/go-posture/pkg/camera"
	"github.com/teslashibe/go-posture/pkg/hub"
	"github.com/teslashibe/go-posture/pkg/posture"
	"github.com/teslashibe/go-posture/pkg/session"
)

// startTimeout bounds opening the camera for a new session.
const startTimeout = 10 * time.Second

// StopResponse is returned by POST /stop.
type StopResponse struct {
	Status string `json:"status"`
	session.Summary
}

// StatusResponse is returned by GET /api/status.
type StatusResponse struct {
	session.Status
	Thresholds posture.Thresholds `json:"thresholds"`
	Viewers    int                `json:"viewers"`
}

func errorJSON(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

// handleVideoFeed streams annotated frames as multipart MJPEG until the
// session's worker exits or the client goes away.
func (s *Server) handleVideoFeed(c *fiber.Ctx) error {
	if !s.mon.Running() {
		return c.Status(fiber.StatusNotFound).SendString("Camera not started")
	}

	sub := s.frames.Subscribe(2, true)
	if sub == nil {
		return c.Status(fiber.StatusServiceUnavailable).SendString("Server shutting down")
	}
	done := s.mon.Done()
	first, hasFirst := s.mon.Latest()

	c.Set(fiber.HeaderContentType, "multipart/x-mixed-replace; boundary=frame")
	c.Set(fiber.HeaderCacheControl, "no-cache")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer sub.Unsubscribe()

		if hasFirst {
			if err := writePart(w, first.JPEG); err != nil {
				return
			}
		}

		for {
			select {
			case <-done:
				return
			case msg, ok := <-sub.Messages():
				if !ok {
					return
				}
				if err := writePart(w, msg.Data); err != nil {
					log.Debug("video feed client gone", "error", err)
					return
				}
			}
		}
	})
	return nil
}

func writePart(w *bufio.Writer, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\n\r\n"); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	if _, err := w.WriteString("\r\n"); err != nil {
		return err
	}
	return w.Flush()
}

func (s *Server) handleStart(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), startTimeout)
	defer cancel()

	id, started, err := s.mon.Start(ctx)
	if err != nil {
		log.Error("start session failed", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}

	resp := fiber.Map{"status": "started", "session_id": id}
	if !started {
		resp["already_running"] = true
	}
	return c.JSON(resp)
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	return c.JSON(StopResponse{Status: "stopped", Summary: s.mon.Stop()})
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(StatusResponse{
		Status:     s.mon.Status(),
		Thresholds: s.mon.Classifier().Thresholds(),
		Viewers:    s.frames.ClientCount(),
	})
}

func (s *Server) handleGetThresholds(c *fiber.Ctx) error {
	return c.JSON(s.mon.Classifier().Thresholds())
}

// handleSetThresholds applies a partial update; omitted fields keep their
// current value.
func (s *Server) handleSetThresholds(c *fiber.Ctx) error {
	cls := s.mon.Classifier()
	t := cls.Thresholds()
	if err := c.BodyParser(&t); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	if err := cls.SetThresholds(t); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}

	log.Info("thresholds updated", "neck_angle_min", t.NeckAngleMin, "shoulder_diff_max", t.ShoulderDiffMax)
	return c.JSON(t)
}

func (s *Server) handleGetCamera(c *fiber.Ctx) error {
	return c.JSON(s.camera.GetConfig())
}

func (s *Server) handleSetCamera(c *fiber.Ctx) error {
	var u camera.Update
	if err := c.BodyParser(&u); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	if err := s.camera.UpdateConfig(u); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	return c.JSON(s.camera.GetConfig())
}

func (s *Server) handleCameraPresets(c *fiber.Ctx) error {
	return c.JSON(camera.Presets())
}

func (s *Server) handleFramesWS(c *websocket.Conn) {
	client := hub.NewClient(s.frames, c, true)
	if client == nil {
		c.Close()
		return
	}
	client.Run()
}

func (s *Server) handleStatsWS(c *websocket.Conn) {
	client := hub.NewClient(s.stats, c, false)
	if client == nil {
		c.Close()
		return
	}

	// Current status first, then live events from the hub
	status, err := hub.NewJSON(s.mon.Status())
	if err != nil {
		log.Warn("encode status", "error", err)
		client.Run()
		return
	}
	client.Run(status)
}
