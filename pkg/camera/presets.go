package camera

import "sort"

// Preset names accepted by --camera-preset and /api/camera/preset.
const (
	PresetDefault = "default"
	PresetVGA     = "vga"
	Preset720p    = "720p"
	PresetFast    = "fast"
)

var presets = map[string]func(*Config){
	PresetDefault: func(*Config) {},
	// 15 fps leaves the driver room for longer exposures in dim rooms.
	PresetVGA: func(c *Config) { c.Framerate = 15 },
	// Larger iris rings when the user sits far from the camera.
	Preset720p: func(c *Config) { c.Width, c.Height = 1280, 720 },
	PresetFast: func(c *Config) {
		c.Width, c.Height = 320, 240
		c.Framerate = 60
		c.Quality = 75
	},
}

// Preset returns the named configuration on top of DefaultConfig.
func Preset(name string) (Config, bool) {
	apply, ok := presets[name]
	if !ok {
		return Config{}, false
	}
	cfg := DefaultConfig()
	apply(&cfg)
	return cfg, true
}

// PresetNames returns the preset names, sorted.
func PresetNames() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
