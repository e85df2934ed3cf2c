// Package transcoder drives ffmpeg to re-encode one video according to a
// filter plan. Success means the output file exists and is non-empty; a
// non-zero exit with no output is treated as worth retrying.
package transcoder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/wapuda/virex/internal/filterplan"
	"github.com/wapuda/virex/internal/logx"
	"github.com/wapuda/virex/internal/queue"
)

type Transcoder struct {
	ffmpegPath  string
	ffprobePath string
	log         zerolog.Logger
}

func New(ffmpegPath, ffprobePath string, log zerolog.Logger) *Transcoder {
	return &Transcoder{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, log: log}
}

// Args builds the full ffmpeg argument list for one run. Split out so tests
// can check the command line without spawning anything.
func Args(in, out string, plan filterplan.Plan) []string {
	return []string{
		"-y",
		"-i", in,
		"-vf", plan.VideoFilter,
		"-af", plan.AudioFilter,
		"-c:v", "libx264",
		"-profile:v", plan.Profile,
		"-level:v", plan.Level,
		"-preset", plan.Preset,
		"-crf", strconv.Itoa(plan.CRF),
		"-maxrate", fmt.Sprintf("%dk", plan.MaxRateKbit),
		"-bufsize", fmt.Sprintf("%dk", plan.MaxRateKbit*2),
		"-g", strconv.Itoa(plan.GOP),
		"-keyint_min", strconv.Itoa(plan.GOP / 2),
		"-sc_threshold", "0",
		"-c:a", "aac",
		"-b:a", plan.AudioBitrate,
		"-ar", strconv.Itoa(plan.SampleRate),
		"-map_metadata", "-1",
		"-metadata", "creation_time=" + plan.CreationTime,
		"-fflags", "+bitexact+genpts",
		"-flags:v", "+bitexact",
		"-flags:a", "+bitexact",
		"-movflags", "+faststart",
		out,
	}
}

// Process runs ffmpeg. Cancelling ctx kills the process; the attempt
// timeout comes from the caller's context.
func (t *Transcoder) Process(ctx context.Context, in, out string, plan filterplan.Plan) error {
	cmd := exec.CommandContext(ctx, t.ffmpegPath, Args(in, out, plan)...)
	cmd.Stderr = logx.NewLineWriter(t.log.With().Str("proc", "ffmpeg").Logger(), zerolog.DebugLevel)

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		_ = os.Remove(out)
		return ctxErr
	}
	if err != nil {
		// No output produced usually means a transient encoder failure;
		// a partial file means the input itself is the problem.
		if _, statErr := os.Stat(out); os.IsNotExist(statErr) {
			return &queue.RetryableError{Err: fmt.Errorf("ffmpeg: %w", err)}
		}
		_ = os.Remove(out)
		return fmt.Errorf("ffmpeg: %w", err)
	}

	st, statErr := os.Stat(out)
	if statErr != nil || st.Size() == 0 {
		_ = os.Remove(out)
		return &queue.RetryableError{Err: fmt.Errorf("ffmpeg produced no output for %s", in)}
	}
	return nil
}
