// Package fetcher downloads source videos from whitelisted platforms via
// yt-dlp and keeps the yt-dlp binary itself up to date.
package fetcher

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/wapuda/virex/internal/domain"
	"github.com/wapuda/virex/internal/logx"
)

// allowedHosts are the platforms downloads are accepted from. Subdomains
// of a listed host are allowed too (vm.tiktok.com under tiktok.com).
var allowedHosts = []string{
	"tiktok.com",
	"vm.tiktok.com",
	"vt.tiktok.com",
	"youtube.com",
	"youtu.be",
	"instagram.com",
	"vk.com",
	"twitter.com",
	"x.com",
	"douyin.com",
	"bilibili.com",
	"b23.tv",
	"weibo.com",
	"youku.com",
	"iqiyi.com",
	"kuaishou.com",
	"gifshow.com",
	"xiaohongshu.com",
	"xhslink.com",
	"qq.com",
}

type Fetcher struct {
	ytdlpPath       string
	downloadTimeout time.Duration
	socketTimeout   time.Duration
	maxFileSizeMB   int64
	log             zerolog.Logger
}

func New(ytdlpPath string, downloadTimeout, socketTimeout time.Duration, maxFileSizeMB int64, log zerolog.Logger) *Fetcher {
	return &Fetcher{
		ytdlpPath:       ytdlpPath,
		downloadTimeout: downloadTimeout,
		socketTimeout:   socketTimeout,
		maxFileSizeMB:   maxFileSizeMB,
		log:             log,
	}
}

// Allowed validates the URL scheme and host against the whitelist.
func Allowed(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q", domain.ErrInvalidInput, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range allowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", domain.ErrHostNotListed, host)
}

// Download fetches the video behind rawURL into outPath. The URL must
// already have passed Allowed.
func (f *Fetcher) Download(ctx context.Context, rawURL, outPath string) error {
	if err := Allowed(rawURL); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, f.downloadTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, f.ytdlpPath,
		"--no-playlist",
		"--socket-timeout", fmt.Sprintf("%.0f", f.socketTimeout.Seconds()),
		"--max-filesize", fmt.Sprintf("%dM", f.maxFileSizeMB),
		"-f", "mp4/bestvideo*+bestaudio/best",
		"--merge-output-format", "mp4",
		"-o", outPath,
		rawURL,
	)
	cmd.Stderr = logx.NewLineWriter(f.log.With().Str("proc", "yt-dlp").Logger(), zerolog.DebugLevel)
	cmd.Stdout = cmd.Stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("download timed out: %w", ctxErr)
		}
		return fmt.Errorf("yt-dlp: %w", err)
	}

	st, err := os.Stat(outPath)
	if err != nil || st.Size() == 0 {
		return fmt.Errorf("yt-dlp produced no output for %s", rawURL)
	}
	return nil
}

// SelfUpdate runs yt-dlp -U, for the /update_ytdlp admin command.
func (f *Fetcher) SelfUpdate(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	out, err := exec.CommandContext(ctx, f.ytdlpPath, "-U").CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("yt-dlp -U: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
