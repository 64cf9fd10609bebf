package capture

// Quality is a named capture preset controlling frame size, rate, and
// JPEG compression.
type Quality string

const (
	QualityLow    Quality = "low"
	QualityMedium Quality = "medium"
	QualityHigh   Quality = "high"
	QualityUltra  Quality = "ultra"
)

// Preset holds the concrete knobs a Quality maps to.
type Preset struct {
	ResolutionFactor float64
	FPS              int
	JPEGQuality      int
}

var presets = map[Quality]Preset{
	QualityLow:    {ResolutionFactor: 0.60, FPS: 45, JPEGQuality: 50},
	QualityMedium: {ResolutionFactor: 0.80, FPS: 60, JPEGQuality: 65},
	QualityHigh:   {ResolutionFactor: 1.00, FPS: 75, JPEGQuality: 80},
	QualityUltra:  {ResolutionFactor: 1.20, FPS: 90, JPEGQuality: 95},
}

// PresetFor returns the Preset for q, defaulting to QualityMedium for an
// unrecognized value.
func PresetFor(q Quality) Preset {
	if p, ok := presets[q]; ok {
		return p
	}
	return presets[QualityMedium]
}

// Valid reports whether q names a known preset.
func Valid(q Quality) bool {
	_, ok := presets[q]
	return ok
}
