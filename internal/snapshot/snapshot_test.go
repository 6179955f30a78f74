package snapshot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestName(t *testing.T) {
	taken := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	assert.Equal(t, "quantum-container-snapshot:20240309-140507", Name("quantum-container", taken))
	assert.Equal(t, "lab_1-snapshot:20240309-140507", Name("Lab_1", taken))
}

func TestNameUsesUTC(t *testing.T) {
	zone := time.FixedZone("UTC+2", 2*60*60)
	taken := time.Date(2024, 3, 9, 16, 5, 7, 0, zone)

	assert.Equal(t, "box-snapshot:20240309-140507", Name("box", taken))
}

func TestParse(t *testing.T) {
	taken := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)

	name, got, ok := Parse(Name("box", taken))
	assert.True(t, ok)
	assert.Equal(t, "box", name)
	assert.True(t, taken.Equal(got))

	for _, ref := range []string{
		"box:latest",
		"box-snapshot:latest",
		"box-snapshot",
		"-snapshot:20240309-140507",
		"quantum/security:2024",
	} {
		_, _, ok := Parse(ref)
		assert.False(t, ok, ref)
	}
}
