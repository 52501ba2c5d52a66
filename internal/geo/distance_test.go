package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineMiles(t *testing.T) {
	t.Run("zero distance for identical points", func(t *testing.T) {
		assert.InDelta(t, 0, HaversineMiles(40.7549, -73.984, 40.7549, -73.984), 1e-9)
	})

	t.Run("times square to empire state building", func(t *testing.T) {
		// ~0.7 miles apart.
		d := HaversineMiles(40.758, -73.9855, 40.7484, -73.9857)
		assert.InDelta(t, 0.66, d, 0.05)
	})

	t.Run("new york to los angeles", func(t *testing.T) {
		d := HaversineMiles(40.7128, -74.006, 34.0522, -118.2437)
		assert.InDelta(t, 2445, d, 20)
	})

	t.Run("symmetric", func(t *testing.T) {
		a := HaversineMiles(40.7, -74.0, 40.8, -73.9)
		b := HaversineMiles(40.8, -73.9, 40.7, -74.0)
		assert.InDelta(t, a, b, 1e-12)
	})
}
