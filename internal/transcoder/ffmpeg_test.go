package transcoder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wapuda/virex/internal/filterplan"
)

func samplePlan() filterplan.Plan {
	return filterplan.Plan{
		VideoFilter:  "crop=1015:1804:32:58,scale=1080:1920:flags=lanczos,fps=30,format=yuv420p",
		AudioFilter:  "atempo=1.0123,volume=0.9876",
		CRF:          16,
		Preset:       "slow",
		Profile:      "high",
		Level:        "4.1",
		MaxRateKbit:  45000,
		GOP:          24,
		FPS:          30,
		AudioBitrate: "320k",
		SampleRate:   44100,
		CreationTime: "2026-02-20T08:15:30.000000Z",
	}
}

func TestArgs(t *testing.T) {
	args := Args("in.mp4", "out.mp4", samplePlan())
	joined := strings.Join(args, " ")

	require.Equal(t, "-y", args[0])
	require.Equal(t, "out.mp4", args[len(args)-1])

	assert.Contains(t, joined, "-c:v libx264")
	assert.Contains(t, joined, "-crf 16")
	assert.Contains(t, joined, "-maxrate 45000k")
	assert.Contains(t, joined, "-bufsize 90000k", "bufsize is double maxrate")
	assert.Contains(t, joined, "-g 24")
	assert.Contains(t, joined, "-keyint_min 12")
	assert.Contains(t, joined, "-sc_threshold 0")
	assert.Contains(t, joined, "-ar 44100")
	assert.Contains(t, joined, "-map_metadata -1")
	assert.Contains(t, joined, "creation_time=2026-02-20T08:15:30.000000Z")
	assert.Contains(t, joined, "-fflags +bitexact+genpts")
	assert.Contains(t, joined, "-movflags +faststart")
}

func TestParseFrameRate(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"30/1", 30},
		{"60000/1001", 59.94005994005994},
		{"25", 25},
		{"", 30},
		{"0/0", 30},
		{"garbage", 30},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, parseFrameRate(tt.in), 1e-9, tt.in)
	}
}
