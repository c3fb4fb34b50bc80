package camera

// Preset names for common configurations
const (
	PresetDefault = "default"
	PresetLow     = "low"
	Preset720p    = "720p"
	Preset1080p   = "1080p"
)

// resolution overrides applied on top of DefaultConfig.
type resolution struct {
	width, height, fps, quality int
}

var presetTable = map[string]resolution{
	PresetDefault: {},
	// Trades resolution for detector throughput on slow machines.
	PresetLow:  {width: 320, height: 240, fps: 15, quality: 70},
	Preset720p: {width: 1280, height: 720},
	// Shoulder difference is measured in pixels, so expect larger values here.
	Preset1080p: {width: 1920, height: 1080, quality: 85},
}

func (r resolution) config() Config {
	cfg := DefaultConfig()
	if r.width > 0 {
		cfg.Width, cfg.Height = r.width, r.height
	}
	if r.fps > 0 {
		cfg.Framerate = r.fps
	}
	if r.quality > 0 {
		cfg.Quality = r.quality
	}
	return cfg
}

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	out := make(map[string]Config, len(presetTable))
	for name, r := range presetTable {
		out[name] = r.config()
	}
	return out
}

// PresetNames returns the preset names, smallest first.
func PresetNames() []string {
	return []string{PresetDefault, PresetLow, Preset720p, Preset1080p}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	r, ok := presetTable[name]
	if !ok {
		return nil
	}
	cfg := r.config()
	return &cfg
}

// LowConfig returns the 320x240 preset.
func LowConfig() Config { return presetTable[PresetLow].config() }
