package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is read once at startup. Everything tunable from the environment
// lives here; static tables (plan limits, filter ranges) are code.
type Config struct {
	BotToken       string   `env:"BOT_TOKEN,required"`
	AdminIDs       []int64  `env:"ADMIN_IDS" envSeparator:","`
	AdminUsernames []string `env:"ADMIN_USERNAMES" envSeparator:","`

	DataDir string `env:"DATA_DIR" envDefault:"./data"`
	TempDir string `env:"TEMP_DIR" envDefault:""` // empty = os.TempDir()/virex

	FFmpegPath  string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
	FFprobePath string `env:"FFPROBE_PATH" envDefault:"ffprobe"`
	YtdlpPath   string `env:"YTDLP_PATH" envDefault:"yt-dlp"`

	QueueCap    int `env:"MAX_QUEUE_SIZE" envDefault:"8"`
	Concurrency int `env:"MAX_CONCURRENT_TASKS" envDefault:"2"`

	MaxFileSizeMB      int64 `env:"MAX_FILE_SIZE_MB" envDefault:"100"`
	MaxDurationSeconds int   `env:"MAX_VIDEO_DURATION" envDefault:"120"`

	FFmpegTimeout   time.Duration `env:"FFMPEG_TIMEOUT" envDefault:"600s"`
	DownloadTimeout time.Duration `env:"DOWNLOAD_TIMEOUT" envDefault:"300s"`
	FetchTimeout    time.Duration `env:"URL_FETCH_TIMEOUT" envDefault:"30s"`

	MetricsAddr string `env:"METRICS_ADDR" envDefault:":8080"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.BotToken = strings.TrimSpace(cfg.BotToken)
	return cfg, nil
}

func (c *Config) IsAdminID(id int64) bool {
	for _, a := range c.AdminIDs {
		if a == id {
			return true
		}
	}
	return false
}

func (c *Config) IsAdminUsername(username string) bool {
	if username == "" {
		return false
	}
	for _, a := range c.AdminUsernames {
		if strings.EqualFold(a, username) {
			return true
		}
	}
	return false
}
