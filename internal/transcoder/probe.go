package transcoder

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Info is what ffprobe reports about the source video.
type Info struct {
	Width    int
	Height   int
	Duration float64
	FPS      float64
}

type probeOutput struct {
	Streams []struct {
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		RFrameRate string `json:"r_frame_rate"`
		Duration   string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe inspects the first video stream of the file at path.
func (t *Transcoder) Probe(ctx context.Context, path string) (Info, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate,duration",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return Info{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	var po probeOutput
	if err := json.Unmarshal(out, &po); err != nil {
		return Info{}, fmt.Errorf("ffprobe output: %w", err)
	}
	if len(po.Streams) == 0 {
		return Info{}, fmt.Errorf("no video stream in %s", path)
	}

	s := po.Streams[0]
	info := Info{
		Width:  s.Width,
		Height: s.Height,
		FPS:    parseFrameRate(s.RFrameRate),
	}
	if info.Width <= 0 || info.Height <= 0 {
		return Info{}, fmt.Errorf("bad dimensions %dx%d in %s", info.Width, info.Height, path)
	}

	// Stream duration is missing in some containers; fall back to format.
	if d, err := strconv.ParseFloat(s.Duration, 64); err == nil && d > 0 {
		info.Duration = d
	} else if d, err := strconv.ParseFloat(po.Format.Duration, 64); err == nil {
		info.Duration = d
	}
	return info, nil
}

// parseFrameRate handles the "30/1" and "60000/1001" rational forms.
func parseFrameRate(r string) float64 {
	if r == "" {
		return 30
	}
	if num, den, ok := strings.Cut(r, "/"); ok {
		n, err1 := strconv.ParseFloat(num, 64)
		d, err2 := strconv.ParseFloat(den, 64)
		if err1 != nil || err2 != nil || d == 0 {
			return 30
		}
		return n / d
	}
	if f, err := strconv.ParseFloat(r, 64); err == nil && f > 0 {
		return f
	}
	return 30
}
