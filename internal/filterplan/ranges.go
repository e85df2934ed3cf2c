package filterplan

import "github.com/wapuda/virex/internal/domain"

// profile holds the per-platform randomization ranges. The two platforms
// differ mostly in how aggressive the crop and grain may be.
type profile struct {
	CropMin, CropMax   float64
	SpeedMin, SpeedMax float64
	ZoomMin, ZoomMax   float64

	BrightnessRange float64 // +- around 0
	ContrastRange   float64 // +- around 1
	SaturationRange float64 // +- around 1
	GammaRange      float64 // +- around 1

	GrainMin, GrainMax int
	VignetteChance     float64
	CreativeChance     float64

	HookFontFrac     float64 // of min(w,h)
	CreativeFontFrac float64

	CRFMin, CRFMax         int
	GOPMin, GOPMax         int
	BitrateMin, BitrateMax int // kbit/s
	Presets                []string

	VolumeMin, VolumeMax float64
	AudioBitrate         string
	SampleRate           int
	AudioTail            string // extra audio chain after volume
}

var tiktokProfile = profile{
	CropMin: 0.94, CropMax: 0.965,
	SpeedMin: 0.965, SpeedMax: 1.035,
	ZoomMin: 1.02, ZoomMax: 1.05,

	BrightnessRange: 0.06,
	ContrastRange:   0.06,
	SaturationRange: 0.06,
	GammaRange:      0.04,

	GrainMin: 5, GrainMax: 12,
	VignetteChance: 0.7,
	CreativeChance: 0.6,

	HookFontFrac:     0.055,
	CreativeFontFrac: 0.05,

	CRFMin: 14, CRFMax: 18,
	GOPMin: 12, GOPMax: 45,
	BitrateMin: 20000, BitrateMax: 100000,
	Presets: []string{"slow", "slower"},

	VolumeMin: 0.96, VolumeMax: 1.04,
	AudioBitrate: "320k",
	SampleRate:   44100,
}

var youtubeProfile = profile{
	CropMin: 0.95, CropMax: 0.975,
	SpeedMin: 0.965, SpeedMax: 1.035,
	ZoomMin: 1.02, ZoomMax: 1.04,

	BrightnessRange: 0.05,
	ContrastRange:   0.05,
	SaturationRange: 0.05,
	GammaRange:      0.03,

	GrainMin: 4, GrainMax: 8,
	VignetteChance: 0.6,
	CreativeChance: 0.5,

	HookFontFrac:     0.05,
	CreativeFontFrac: 0.045,

	CRFMin: 12, CRFMax: 16,
	GOPMin: 15, GOPMax: 40,
	BitrateMin: 30000, BitrateMax: 150000,
	Presets: []string{"slow", "slower"},

	VolumeMin: 0.96, VolumeMax: 1.04,
	AudioBitrate: "320k",
	SampleRate:   48000,
	AudioTail:    "highpass=f=25,lowpass=f=17000,lowshelf=g=1.5:f=180",
}

func profileFor(mode domain.Mode) profile {
	if mode == domain.ModeYouTube {
		return youtubeProfile
	}
	return tiktokProfile
}

// qualityPreset trades output quality for speed and size.
type qualityPreset struct {
	CRFOffset   int
	BitrateMult float64
	Preset      string // empty = pick randomly from the platform presets
}

var qualityPresets = map[domain.Quality]qualityPreset{
	domain.QualityLow:    {CRFOffset: 6, BitrateMult: 0.5, Preset: "fast"},
	domain.QualityMedium: {CRFOffset: 3, BitrateMult: 0.75, Preset: "medium"},
	domain.QualityMax:    {CRFOffset: 0, BitrateMult: 1.0},
}

// hookTexts open the video in the first two seconds. creativeTexts may
// fade in afterwards at the top or bottom edge.
var hookTexts = []string{
	"Wait for it...",
	"You need to see this",
	"Watch till the end",
	"POV",
	"This is crazy",
	"No way...",
	"Trust me on this",
	"Story time",
	"Here is the thing",
	"Let me show you",
	"Check this out",
	"You will not believe",
	"Real talk",
	"Plot twist",
	"Warning",
	"Unpopular opinion",
	"Facts only",
	"Listen up",
	"Game changer",
	"Life hack",
}

var creativeTexts = []string{
	"Moments like this",
	"On the road",
	"Late night drive",
	"No rush",
	"Just vibes",
	"Living it",
	"That feeling",
	"Main character energy",
	"Everyday magic",
	"Just because",
	"Mood",
	"This is it",
	"Right here",
	"Good times only",
	"Golden hour",
	"Core memory",
	"Real ones know",
	"Trust the process",
	"Different breed",
	"Built different",
}
