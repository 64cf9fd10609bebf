package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresetForKnownQualities(t *testing.T) {
	cases := []struct {
		q    Quality
		fps  int
		jpeg int
	}{
		{QualityLow, 45, 50},
		{QualityMedium, 60, 65},
		{QualityHigh, 75, 80},
		{QualityUltra, 90, 95},
	}
	for _, c := range cases {
		p := PresetFor(c.q)
		assert.Equal(t, c.fps, p.FPS, "quality=%s", c.q)
		assert.Equal(t, c.jpeg, p.JPEGQuality, "quality=%s", c.q)
	}
}

func TestPresetForUnknownDefaultsToMedium(t *testing.T) {
	assert.Equal(t, PresetFor(QualityMedium), PresetFor(Quality("bogus")))
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(QualityLow))
	assert.True(t, Valid(QualityUltra))
	assert.False(t, Valid(Quality("bogus")))
}
