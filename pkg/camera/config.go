// Package camera captures JPEG frames from a local webcam or a video file
// and holds the runtime-tunable capture settings.
package camera

import (
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"
)

// Config holds the capture parameters.
// These can be modified via the camera API between sessions.
type Config struct {
	// Device is a camera index ("0") or a path to a video file.
	Device string `json:"device" validate:"required"`

	Width     int  `json:"width" validate:"gte=160,lte=3840"`  // Frame width in pixels
	Height    int  `json:"height" validate:"gte=120,lte=2160"` // Frame height in pixels
	Framerate int  `json:"framerate" validate:"gte=1,lte=120"` // Requested FPS, devices only
	Quality   int  `json:"quality" validate:"gte=1,lte=100"`   // JPEG quality 1-100
	Mirror    bool `json:"mirror"`                             // Flip horizontally, selfie view
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultConfig returns the 640x480 webcam configuration.
func DefaultConfig() Config {
	return Config{
		Device:    "0",
		Width:     640,
		Height:    480,
		Framerate: 30,
		Quality:   80,
	}
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []string{err.Error()}
	}

	var errors []string
	for _, fe := range verrs {
		errors = append(errors, describe(fe))
	}
	return errors
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
}

// DeviceIndex reports whether Device names a camera index rather than a file.
func (c Config) DeviceIndex() (int, bool) {
	n, err := strconv.Atoi(c.Device)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
