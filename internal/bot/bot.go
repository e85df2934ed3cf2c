// Package bot is the Telegram front end: update loop, command handling,
// admission messaging and the glue between the queue and the transcoder.
package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/wapuda/virex/internal/admission"
	"github.com/wapuda/virex/internal/config"
	"github.com/wapuda/virex/internal/domain"
	"github.com/wapuda/virex/internal/fetcher"
	"github.com/wapuda/virex/internal/filterplan"
	"github.com/wapuda/virex/internal/logx"
	"github.com/wapuda/virex/internal/metrics"
	"github.com/wapuda/virex/internal/pending"
	"github.com/wapuda/virex/internal/queue"
	"github.com/wapuda/virex/internal/store"
	"github.com/wapuda/virex/internal/transcoder"
)

var (
	errTooLong = errors.New("video too long")
	errTooBig  = errors.New("video exceeds size limit")
)

type Bot struct {
	api     *tgbotapi.BotAPI
	cfg     *config.Config
	store   *store.Store
	gate    *admission.Gate
	queue   *queue.Queue
	pending *pending.Table
	fetch   *fetcher.Fetcher
	trans   *transcoder.Transcoder
	met     *metrics.Metrics
	log     zerolog.Logger
	tempDir string
	now     func() time.Time

	rngMu sync.Mutex
	rng   *rand.Rand
}

type Deps struct {
	API     *tgbotapi.BotAPI
	Config  *config.Config
	Store   *store.Store
	Gate    *admission.Gate
	Queue   *queue.Queue
	Pending *pending.Table
	Fetcher *fetcher.Fetcher
	Trans   *transcoder.Transcoder
	Metrics *metrics.Metrics
	Log     zerolog.Logger
	TempDir string
}

func New(d Deps) *Bot {
	return &Bot{
		api:     d.API,
		cfg:     d.Config,
		store:   d.Store,
		gate:    d.Gate,
		queue:   d.Queue,
		pending: d.Pending,
		fetch:   d.Fetcher,
		trans:   d.Trans,
		met:     d.Metrics,
		log:     d.Log,
		tempDir: d.TempDir,
		now:     time.Now,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run consumes the long-poll update channel until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			switch {
			case upd.Message != nil:
				b.onMessage(upd.Message)
			case upd.CallbackQuery != nil:
				b.onCallback(upd.CallbackQuery)
			}
		}
	}
}

// --- messaging helpers ---

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}

func (b *Bot) sendKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = kb
	if _, err := b.api.Send(msg); err != nil {
		b.log.Error().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}

func (b *Bot) answerCB(cq *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, text)); err != nil {
		b.log.Debug().Err(err).Msg("answer callback failed")
	}
}

func (b *Bot) lang(userID int64) string {
	return b.store.Snapshot(userID).Language
}

func (b *Bot) isAdmin(userID int64, username string) bool {
	return b.cfg.IsAdminID(userID) || b.cfg.IsAdminUsername(username)
}

// NotifyExpired and NotifyExpiring are wired into the janitor.
func (b *Bot) NotifyExpired(userID int64) {
	b.send(userID, tr(b.lang(userID), "plan_expired"))
}

// NotifyExpiring skips users who enabled night mode during night hours;
// returning false leaves them unlatched for the next daily scan.
func (b *Bot) NotifyExpiring(u domain.UserRecord) bool {
	if u.NightMode && isNight(b.now()) {
		return false
	}
	b.send(u.UserID, tr(u.Language, "plan_expiring", u.Plan, u.PlanExpires.Format(domain.DateFormat)))
	return true
}

func isNight(t time.Time) bool {
	h := t.Hour()
	return h >= 23 || h < 8
}

// --- processing pipeline ---

// startProcessing runs the admission gate and, if admitted, submits the
// job to the queue. All user-visible denial messaging happens here, once.
func (b *Bot) startProcessing(chatID, userID int64, username, shortID string) {
	u := b.store.Snapshot(userID)
	lang := u.Language

	if b.queue.Busy(userID) {
		b.send(chatID, tr(lang, "already_processing"))
		return
	}

	item, ok := b.pending.Get(shortID)
	if !ok {
		b.send(chatID, tr(lang, "expired_button"))
		return
	}

	dedupeKey := item.FileUniqueID
	if item.Kind == pending.KindURL {
		dedupeKey = item.URL
	}
	d := b.gate.Check(userID, b.isAdmin(userID, username), dedupeKey)
	if b.met != nil {
		b.met.Admissions.WithLabelValues(string(d.Reason)).Inc()
	}
	if !d.OK {
		b.sendDenial(chatID, lang, d)
		return
	}

	item, ok = b.pending.Consume(shortID)
	if !ok {
		b.send(chatID, tr(lang, "expired_button"))
		return
	}

	limits := config.LimitsFor(u.Plan)
	task := &queue.Task{
		UserID:   userID,
		ChatID:   chatID,
		Priority: limits.Priority,
	}
	task.Run = b.jobRunner(task, item, u)
	task.OnFinish = b.jobFinisher(task, item, u, d.BonusUsed)

	// The processing flag must be up before the task can reach a worker,
	// or a fast finish would clear it only to have us set it again.
	currentID := item.FileID
	if item.Kind == pending.KindURL {
		currentID = item.URL
	}
	b.store.Update(userID, func(rec *domain.UserRecord) {
		rec.Processing = true
		rec.CurrentFileID = currentID
	})

	if err := b.queue.Submit(task); err != nil {
		b.store.Update(userID, func(rec *domain.UserRecord) {
			rec.Processing = false
			rec.CurrentFileID = ""
		})
		switch {
		case errors.Is(err, domain.ErrQueueFull):
			b.send(chatID, tr(lang, "deny_queue_full"))
		case errors.Is(err, domain.ErrAlreadyQueued):
			b.send(chatID, tr(lang, "already_processing"))
		default:
			b.log.Error().Err(err).Msg("submit failed")
			b.send(chatID, tr(lang, "failed"))
		}
		return
	}

	if pos := b.queue.Position(userID); pos > 1 {
		b.send(chatID, tr(lang, "queued", pos))
	} else {
		b.send(chatID, tr(lang, "processing_started"))
	}
}

func (b *Bot) sendDenial(chatID int64, lang string, d admission.Decision) {
	if d.Silent {
		return
	}
	switch d.Reason {
	case admission.ReasonMaintenance:
		b.send(chatID, tr(lang, "deny_maintenance"))
	case admission.ReasonBanned:
		b.send(chatID, tr(lang, "deny_banned"))
	case admission.ReasonSoftBlock:
		b.send(chatID, tr(lang, "deny_soft_block", int(d.RetryAfter.Minutes())+1))
	case admission.ReasonMonthlyLimit:
		b.send(chatID, tr(lang, "deny_monthly_limit"))
	case admission.ReasonCooldown:
		b.send(chatID, tr(lang, "deny_cooldown", int(d.RetryAfter.Seconds())+1))
	case admission.ReasonDuplicate:
		b.send(chatID, tr(lang, "deny_duplicate"))
	case admission.ReasonQueueFull:
		b.send(chatID, tr(lang, "deny_queue_full"))
	}
	if d.SoftBlocked {
		b.send(chatID, tr(lang, "soft_block_applied"))
	}
}

// jobRunner builds the Run closure: fetch, probe, plan, transcode, upload.
func (b *Bot) jobRunner(task *queue.Task, item pending.Item, u domain.UserRecord) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		ctx = logx.WithTask(logx.WithUser(ctx, task.UserID), task.ID)
		jlog := logx.FromCtx(ctx)
		jlog.Info().Str("kind", string(item.Kind)).Msg("job started")

		src := filepath.Join(b.tempDir, fmt.Sprintf("virex_%s_src.mp4", task.ID))
		dst := filepath.Join(b.tempDir, fmt.Sprintf("virex_%s_out.mp4", task.ID))
		defer os.Remove(src)
		defer os.Remove(dst)

		if item.Kind == pending.KindURL {
			if err := b.fetch.Download(ctx, item.URL, src); err != nil {
				return err
			}
			// yt-dlp only honors the instance-wide cap; the per-plan cap
			// is checked once the file has landed.
			if st, err := os.Stat(src); err == nil {
				if capMB := b.sizeCapMB(u.Plan); st.Size() > capMB<<20 {
					return fmt.Errorf("%w: %dMB", errTooBig, st.Size()>>20)
				}
			}
		} else {
			if err := b.downloadTelegramFile(ctx, item.FileID, src); err != nil {
				return err
			}
		}

		info, err := b.trans.Probe(ctx, src)
		if err != nil {
			return err
		}
		if info.Duration > float64(b.cfg.MaxDurationSeconds) {
			return fmt.Errorf("%w: %.0fs", errTooLong, info.Duration)
		}

		limits := config.LimitsFor(u.Plan)
		quality := u.Quality
		if !limits.AllowsQuality(quality) {
			quality = domain.QualityMedium
		}
		plan := filterplan.Build(filterplan.Request{
			Mode:        u.Mode,
			Quality:     quality,
			TextOverlay: u.TextOverlay || !limits.CanDisableText,
			Width:       info.Width,
			Height:      info.Height,
			Duration:    info.Duration,
			SourceFPS:   info.FPS,
		}, b.newRand(), b.now())

		if err := b.trans.Process(ctx, src, dst, plan); err != nil {
			return err
		}

		video := tgbotapi.NewVideo(task.ChatID, tgbotapi.FilePath(dst))
		video.Caption = tr(u.Language, "done")
		if _, err := b.api.Send(video); err != nil {
			return fmt.Errorf("upload result: %w", err)
		}
		jlog.Info().Msg("job finished")
		return nil
	}
}

// jobFinisher clears the processing flag and reports the outcome. Success
// is the only path that charges quota.
func (b *Bot) jobFinisher(task *queue.Task, item pending.Item, u domain.UserRecord, bonusUsed bool) func(queue.Outcome, error) {
	source := "file"
	if item.Kind == pending.KindURL {
		source = "url"
	}
	return func(outcome queue.Outcome, err error) {
		b.store.Update(task.UserID, func(rec *domain.UserRecord) {
			rec.Processing = false
			rec.CurrentFileID = ""
			// A bonus video that never materialized goes back to the pool.
			if bonusUsed && outcome != queue.OutcomeDone {
				rec.ReferralBonus++
			}
		})
		switch outcome {
		case queue.OutcomeDone:
			b.store.RecordVideo(task.UserID, u.Mode, source, bonusUsed)
			b.store.AddOpLog(task.UserID, "process", fmt.Sprintf("%s %s %s", u.Mode, u.Quality, source))
		case queue.OutcomeCancelled:
			b.send(task.ChatID, tr(u.Language, "cancelled"))
		case queue.OutcomeFailed:
			b.log.Error().Err(err).Int64("user_id", task.UserID).Str("task_id", task.ID).Msg("task failed")
			if errors.Is(err, errTooLong) {
				b.send(task.ChatID, tr(u.Language, "too_long", b.cfg.MaxDurationSeconds))
			} else if errors.Is(err, errTooBig) {
				b.send(task.ChatID, tr(u.Language, "file_too_big", b.sizeCapMB(u.Plan)))
			} else {
				b.send(task.ChatID, tr(u.Language, "failed"))
				b.notifyAdmins(fmt.Sprintf("⚠️ task %s failed for user %d: %v", task.ID, task.UserID, err))
			}
		}
	}
}

// downloadTelegramFile streams the Telegram-hosted file to dst.
func (b *Bot) downloadTelegramFile(ctx context.Context, fileID, dst string) error {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return fmt.Errorf("resolve file: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download file: status %s", resp.Status)
	}
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(dst)
		return fmt.Errorf("download file: %w", err)
	}
	return nil
}

// sizeCapMB is the effective upload cap: the per-plan limit, clamped by
// the instance-wide maximum.
func (b *Bot) sizeCapMB(plan domain.Plan) int64 {
	capMB := config.LimitsFor(plan).MaxFileSizeMB
	if b.cfg.MaxFileSizeMB < capMB {
		capMB = b.cfg.MaxFileSizeMB
	}
	return capMB
}

// newRand hands each job its own seeded source; the global rng only seeds.
func (b *Bot) newRand() *rand.Rand {
	b.rngMu.Lock()
	seed := b.rng.Int63()
	b.rngMu.Unlock()
	return rand.New(rand.NewSource(seed))
}
