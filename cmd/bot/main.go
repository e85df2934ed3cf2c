package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/wapuda/virex/internal/admission"
	"github.com/wapuda/virex/internal/bot"
	"github.com/wapuda/virex/internal/config"
	"github.com/wapuda/virex/internal/fetcher"
	"github.com/wapuda/virex/internal/janitor"
	"github.com/wapuda/virex/internal/logx"
	"github.com/wapuda/virex/internal/metrics"
	"github.com/wapuda/virex/internal/pending"
	"github.com/wapuda/virex/internal/queue"
	"github.com/wapuda/virex/internal/store"
	"github.com/wapuda/virex/internal/transcoder"
)

func main() {
	_ = godotenv.Load()

	logx.Setup(logx.FromEnv("virex"))
	log.Info().Msg("virex starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}

	tempDir := cfg.TempDir
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "virex")
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", tempDir).Msg("temp dir")
	}

	st := store.New(cfg.DataDir, nil, log.Logger)
	if err := st.Load(); err != nil {
		log.Fatal().Err(err).Msg("store load")
	}

	met := metrics.New()
	met.Serve(cfg.MetricsAddr, log.Logger)

	q := queue.New(cfg.QueueCap, cfg.Concurrency, cfg.FFmpegTimeout, met, log.Logger)
	gate := admission.NewGate(st, q.Len, cfg.QueueCap, nil)
	tbl := pending.NewTable(nil)
	fet := fetcher.New(cfg.YtdlpPath, cfg.DownloadTimeout, cfg.FetchTimeout, cfg.MaxFileSizeMB, log.Logger)
	trans := transcoder.New(cfg.FFmpegPath, cfg.FFprobePath, log.Logger)

	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Fatal().Err(err).Msg("telegram auth")
	}
	log.Info().Str("username", api.Self.UserName).Msg("bot authorized")

	b := bot.New(bot.Deps{
		API:     api,
		Config:  cfg,
		Store:   st,
		Gate:    gate,
		Queue:   q,
		Pending: tbl,
		Fetcher: fet,
		Trans:   trans,
		Metrics: met,
		Log:     log.Logger,
		TempDir: tempDir,
	})

	jan := janitor.New(st, tbl, tempDir, log.Logger)
	jan.NotifyExpired = b.NotifyExpired
	jan.NotifyExpiring = b.NotifyExpiring
	if err := jan.Start(); err != nil {
		log.Fatal().Err(err).Msg("janitor")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b.Run(ctx)

	log.Info().Msg("shutting down")
	q.Close()
	jan.Stop()
	if err := st.Save(); err != nil {
		log.Error().Err(err).Msg("final save")
	}
}
