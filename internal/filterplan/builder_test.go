package filterplan

import (
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wapuda/virex/internal/domain"
)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func testReq(mode domain.Mode) Request {
	return Request{
		Mode:        mode,
		Quality:     domain.QualityMax,
		TextOverlay: true,
		Width:       1080,
		Height:      1920,
		Duration:    30,
		SourceFPS:   30,
	}
}

func TestPlanHasMandatoryStages(t *testing.T) {
	p := Build(testReq(domain.ModeTikTok), rand.New(rand.NewSource(1)), testNow)
	for _, stage := range []string{"crop=", "setpts=", "noise=alls=", "eq=", "fps=30", "format=yuv420p"} {
		assert.Contains(t, p.VideoFilter, stage)
	}
	assert.Regexp(t, `scale=1080:1920:flags=(lanczos|spline)`, p.VideoFilter)
	assert.Contains(t, p.VideoFilter, "drawtext=", "hook text is forced on")
	assert.Contains(t, p.AudioFilter, "atempo=")
	assert.Contains(t, p.AudioFilter, "volume=")
}

func TestHookTextFadesBothWays(t *testing.T) {
	p := Build(testReq(domain.ModeTikTok), rand.New(rand.NewSource(1)), testNow)
	re := regexp.MustCompile(`alpha='if\(lt\(t,([\d.]+)\),t/([\d.]+),if\(lt\(t,([\d.]+)\),1,\(([\d.]+)-t\)/([\d.]+)\)\)':enable='lt\(t,([\d.]+)\)'`)
	m := re.FindStringSubmatch(p.VideoFilter)
	require.NotNil(t, m, p.VideoFilter)
	assert.Equal(t, m[1], m[2], "fade-in ramp")
	assert.Equal(t, m[1], m[5], "fade-out uses the same ramp")
	assert.Equal(t, m[4], m[6], "fade-out ends exactly at the cutoff")
}

func TestTextOverlayOff(t *testing.T) {
	req := testReq(domain.ModeTikTok)
	req.TextOverlay = false
	p := Build(req, rand.New(rand.NewSource(1)), testNow)
	assert.NotContains(t, p.VideoFilter, "drawtext=")
}

func TestYouTubeAudioChain(t *testing.T) {
	p := Build(testReq(domain.ModeYouTube), rand.New(rand.NewSource(1)), testNow)
	assert.True(t, strings.HasPrefix(p.AudioFilter, "aresample=48000,"), p.AudioFilter)
	assert.Contains(t, p.AudioFilter, "highpass=f=25")
	assert.Contains(t, p.AudioFilter, "lowpass=f=17000")
	assert.Equal(t, 48000, p.SampleRate)

	p = Build(testReq(domain.ModeTikTok), rand.New(rand.NewSource(1)), testNow)
	assert.NotContains(t, p.AudioFilter, "aresample")
	assert.Equal(t, 44100, p.SampleRate)
}

func TestSpeedDrivesBothStreams(t *testing.T) {
	p := Build(testReq(domain.ModeTikTok), rand.New(rand.NewSource(7)), testNow)
	re := regexp.MustCompile(`atempo=(\d\.\d{4})`)
	m := re.FindStringSubmatch(p.AudioFilter)
	require.Len(t, m, 2)
	assert.Contains(t, p.VideoFilter, "setpts=", "video speed must be adjusted too")
	// atempo within the allowed speed band
	assert.GreaterOrEqual(t, m[1], "0.9650")
	assert.LessOrEqual(t, m[1], "1.0350")
}

func TestFourDecimalFormatting(t *testing.T) {
	p := Build(testReq(domain.ModeTikTok), rand.New(rand.NewSource(3)), testNow)
	// every graded brightness value carries exactly four decimals
	re := regexp.MustCompile(`brightness=(-?\d+\.\d+):`)
	for _, m := range re.FindAllStringSubmatch(p.VideoFilter, -1) {
		parts := strings.Split(m[1], ".")
		require.Len(t, parts, 2)
		assert.Len(t, parts[1], 4, "value %q", m[1])
	}
}

func TestCRFRangeByModeAndQuality(t *testing.T) {
	tests := []struct {
		mode     domain.Mode
		quality  domain.Quality
		min, max int
	}{
		{domain.ModeTikTok, domain.QualityMax, 14, 18},
		{domain.ModeTikTok, domain.QualityMedium, 17, 21},
		{domain.ModeTikTok, domain.QualityLow, 20, 24},
		{domain.ModeYouTube, domain.QualityMax, 12, 16},
		{domain.ModeYouTube, domain.QualityLow, 18, 22},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_%s", tt.mode, tt.quality), func(t *testing.T) {
			for seed := int64(0); seed < 20; seed++ {
				req := testReq(tt.mode)
				req.Quality = tt.quality
				p := Build(req, rand.New(rand.NewSource(seed)), testNow)
				assert.GreaterOrEqual(t, p.CRF, tt.min)
				assert.LessOrEqual(t, p.CRF, tt.max)
			}
		})
	}
}

func TestQualityPresetOverridesEncoderPreset(t *testing.T) {
	req := testReq(domain.ModeTikTok)
	req.Quality = domain.QualityLow
	p := Build(req, rand.New(rand.NewSource(1)), testNow)
	assert.Equal(t, "fast", p.Preset)

	req.Quality = domain.QualityMax
	p = Build(req, rand.New(rand.NewSource(1)), testNow)
	assert.Contains(t, []string{"slow", "slower"}, p.Preset)
}

func TestLevelScalesWithResolution(t *testing.T) {
	req := testReq(domain.ModeTikTok)
	p := Build(req, rand.New(rand.NewSource(1)), testNow)
	assert.Contains(t, []string{"4.0", "4.1", "4.2"}, p.Level)

	req.Width, req.Height = 2160, 3840
	p = Build(req, rand.New(rand.NewSource(1)), testNow)
	assert.Equal(t, "5.2", p.Level)

	req.Width, req.Height = 4320, 7680
	p = Build(req, rand.New(rand.NewSource(1)), testNow)
	assert.Equal(t, "6.2", p.Level)
}

func TestFPSLock(t *testing.T) {
	req := testReq(domain.ModeTikTok)
	req.SourceFPS = 144
	p := Build(req, rand.New(rand.NewSource(1)), testNow)
	assert.Equal(t, 120, p.FPS, "fps is capped at 120")

	req.SourceFPS = 0
	p = Build(req, rand.New(rand.NewSource(1)), testNow)
	assert.Equal(t, 30, p.FPS, "unknown fps falls back to 30")
}

func TestCreationTimeWithinLastMonth(t *testing.T) {
	for seed := int64(0); seed < 10; seed++ {
		p := Build(testReq(domain.ModeTikTok), rand.New(rand.NewSource(seed)), testNow)
		ts, err := time.Parse("2006-01-02T15:04:05.000000Z", p.CreationTime)
		require.NoError(t, err)
		assert.True(t, ts.Before(testNow))
		assert.True(t, ts.After(testNow.AddDate(0, 0, -32)), "timestamp %s too old", ts)
	}
}

func TestPlansDiffer(t *testing.T) {
	a := Build(testReq(domain.ModeTikTok), rand.New(rand.NewSource(1)), testNow)
	b := Build(testReq(domain.ModeTikTok), rand.New(rand.NewSource(2)), testNow)
	assert.NotEqual(t, a.VideoFilter, b.VideoFilter)
	assert.NotEqual(t, a.CreationTime, b.CreationTime)
}

func TestSegmentGradingCoversTimeline(t *testing.T) {
	p := Build(testReq(domain.ModeTikTok), rand.New(rand.NewSource(5)), testNow)
	segs := regexp.MustCompile(`enable='between\(t,([\d.]+),([\d.]+)\)'`).FindAllStringSubmatch(p.VideoFilter, -1)
	require.GreaterOrEqual(t, len(segs), 3)
	require.LessOrEqual(t, len(segs), 5)
	assert.Equal(t, "0.0000", segs[0][1], "first segment starts at zero")
	assert.Equal(t, "30.0000", segs[len(segs)-1][2], "last segment ends at the clip end")
}

func TestEscapeText(t *testing.T) {
	tests := []struct{ in, want string }{
		{"Wait for it...", `Wait\ for\ it...`},
		{"it's time", `it\'s\ time`},
		{"a:b", `a\:b`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeText(tt.in))
	}
}
