package logx

import (
	"bytes"

	"github.com/rs/zerolog"
)

// LineWriter turns stream output (ffmpeg/yt-dlp stderr) into per-line
// zerolog events at a fixed level. Suitable as an exec.Cmd stderr sink.
type LineWriter struct {
	logger zerolog.Logger
	level  zerolog.Level
	buf    bytes.Buffer
}

func NewLineWriter(logger zerolog.Logger, level zerolog.Level) *LineWriter {
	return &LineWriter{logger: logger, level: level}
}

func (lw *LineWriter) Write(p []byte) (int, error) {
	lw.buf.Write(p)
	for {
		line, err := lw.buf.ReadString('\n')
		if err != nil {
			// keep the partial line for the next Write
			lw.buf.WriteString(line)
			break
		}
		if msg := trimLine(line); msg != "" {
			lw.logger.WithLevel(lw.level).Msg(msg)
		}
	}
	return len(p), nil
}

func trimLine(line string) string {
	return string(bytes.TrimRight([]byte(line), "\r\n"))
}
