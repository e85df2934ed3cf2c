package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wapuda/virex/internal/config"
	"github.com/wapuda/virex/internal/domain"
	"github.com/wapuda/virex/internal/fetcher"
	"github.com/wapuda/virex/internal/pending"
)

func (b *Bot) onMessage(m *tgbotapi.Message) {
	if m.From == nil {
		return
	}
	userID := m.From.ID
	b.store.EnsureUser(userID, m.From.UserName)

	if m.IsCommand() {
		b.onCommand(m)
		return
	}

	// Admin backup restore arrives as a JSON document with a caption.
	if m.Document != nil && strings.TrimSpace(m.Caption) == "/restore" && b.isAdmin(userID, m.From.UserName) {
		b.restoreBackup(m.Chat.ID, m.Document.FileID)
		return
	}

	// Video intake: native video or a video sent as a document.
	if item, ok := extractVideo(m); ok {
		b.handleVideo(m.Chat.ID, userID, item)
		return
	}

	// URL intake.
	if text := strings.TrimSpace(m.Text); strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") {
		b.handleURL(m.Chat.ID, userID, text)
		return
	}

	if m.Text != "" {
		b.send(m.Chat.ID, tr(b.lang(userID), "unknown"))
	}
}

func (b *Bot) onCommand(m *tgbotapi.Message) {
	userID := m.From.ID
	chatID := m.Chat.ID
	lang := b.lang(userID)
	args := strings.TrimSpace(m.CommandArguments())

	switch m.Command() {
	case "start":
		if ref, ok := parseReferral(args); ok {
			if b.store.SetReferrer(userID, ref) {
				b.log.Info().Int64("user_id", userID).Int64("referrer", ref).Msg("referral linked")
			}
		}
		u := b.store.Snapshot(userID)
		if b.store.FirstContact(userID) {
			b.notifyAdmins(fmt.Sprintf("👋 new user: %d @%s", userID, u.Username))
		}
		b.send(chatID, tr(u.Language, "start", modeTitle(u.Mode == domain.ModeYouTube)))
	case "help":
		b.send(chatID, tr(lang, "help"))
	case "profile", "stats":
		b.sendProfile(chatID, userID)
	case "mode":
		b.sendKeyboard(chatID, tr(lang, "start", modeTitle(b.store.Snapshot(userID).Mode == domain.ModeYouTube)), modeKeyboard(b.store.Snapshot(userID).Mode))
	case "quality":
		u := b.store.Snapshot(userID)
		b.sendKeyboard(chatID, tr(lang, "quality_changed", u.Quality), qualityKeyboard(u.Quality, config.LimitsFor(u.Plan)))
	case "text":
		b.toggleTextOverlay(chatID, userID)
	case "lang":
		b.sendKeyboard(chatID, "🌍", languageKeyboard())
	case "cancel":
		if !b.queue.Cancel(userID) {
			b.send(chatID, tr(lang, "nothing_to_cancel"))
		}
	case "trial":
		if b.store.UseTrial(userID) {
			b.send(chatID, tr(lang, "trial_ok"))
		} else {
			b.send(chatID, tr(lang, "trial_used"))
		}
	case "promo":
		b.handlePromo(chatID, userID, args)
	case "referral":
		u := b.store.Snapshot(userID)
		b.send(chatID, tr(lang, "referral", u.ReferralCount, config.ReferralBonusVideos, b.api.Self.UserName, userID))
	case "favorites":
		b.sendFavorites(chatID, userID)
	case "fav_save":
		b.saveFavorite(chatID, userID, args)
	case "fav_del":
		b.store.DeleteFavorite(userID, strings.TrimSpace(args))
		b.sendFavorites(chatID, userID)
	case "history":
		b.sendHistory(chatID, userID)
	case "night":
		next := !b.store.Snapshot(userID).NightMode
		b.store.Update(userID, func(u *domain.UserRecord) { u.NightMode = next })
		if next {
			b.send(chatID, tr(lang, "night_on"))
		} else {
			b.send(chatID, tr(lang, "night_off"))
		}
	default:
		if b.isAdmin(userID, m.From.UserName) && b.onAdminCommand(m) {
			return
		}
		b.send(chatID, tr(lang, "unknown"))
	}
}

func (b *Bot) onCallback(cq *tgbotapi.CallbackQuery) {
	if cq.From == nil || cq.Message == nil {
		return
	}
	userID := cq.From.ID
	chatID := cq.Message.Chat.ID
	b.store.EnsureUser(userID, cq.From.UserName)
	lang := b.lang(userID)

	data := cq.Data
	switch {
	case strings.HasPrefix(data, "prc:"):
		b.answerCB(cq, "")
		b.startProcessing(chatID, userID, cq.From.UserName, strings.TrimPrefix(data, "prc:"))
	case strings.HasPrefix(data, "dsm:"):
		b.pending.Consume(strings.TrimPrefix(data, "dsm:"))
		b.answerCB(cq, "")
		edit := tgbotapi.NewEditMessageText(chatID, cq.Message.MessageID, tr(lang, "cancelled"))
		_, _ = b.api.Send(edit)
	case strings.HasPrefix(data, "mode:"):
		mode := domain.Mode(strings.TrimPrefix(data, "mode:"))
		if mode != domain.ModeTikTok && mode != domain.ModeYouTube {
			b.answerCB(cq, "")
			return
		}
		b.store.Update(userID, func(u *domain.UserRecord) { u.Mode = mode })
		b.answerCB(cq, "")
		b.send(chatID, tr(lang, "mode_changed", modeTitle(mode == domain.ModeYouTube)))
	case strings.HasPrefix(data, "qual:"):
		b.setQuality(cq, chatID, userID, domain.Quality(strings.TrimPrefix(data, "qual:")))
	case strings.HasPrefix(data, "lang:"):
		l := strings.TrimPrefix(data, "lang:")
		if l != "ru" && l != "en" {
			b.answerCB(cq, "")
			return
		}
		b.store.Update(userID, func(u *domain.UserRecord) { u.Language = l })
		b.answerCB(cq, "")
		b.send(chatID, tr(l, "lang_changed"))
	case strings.HasPrefix(data, "fav:"):
		b.applyFavorite(cq, chatID, userID, strings.TrimPrefix(data, "fav:"))
	default:
		b.answerCB(cq, "")
	}
}

// --- intake ---

func extractVideo(m *tgbotapi.Message) (pending.Item, bool) {
	if m.Video != nil {
		return pending.Item{
			Kind:         pending.KindFile,
			FileID:       m.Video.FileID,
			FileUniqueID: m.Video.FileUniqueID,
			SizeBytes:    int64(m.Video.FileSize),
			Duration:     float64(m.Video.Duration),
		}, true
	}
	if m.Document != nil && strings.HasPrefix(strings.ToLower(m.Document.MimeType), "video/") {
		return pending.Item{
			Kind:         pending.KindFile,
			FileID:       m.Document.FileID,
			FileUniqueID: m.Document.FileUniqueID,
			SizeBytes:    int64(m.Document.FileSize),
		}, true
	}
	return pending.Item{}, false
}

func (b *Bot) handleVideo(chatID, userID int64, item pending.Item) {
	u := b.store.Snapshot(userID)
	maxMB := b.sizeCapMB(u.Plan)
	if item.SizeBytes > maxMB<<20 {
		b.send(chatID, tr(u.Language, "file_too_big", maxMB))
		return
	}
	if item.Duration > float64(b.cfg.MaxDurationSeconds) {
		b.send(chatID, tr(u.Language, "too_long", b.cfg.MaxDurationSeconds))
		return
	}
	id := b.pending.Put(item)
	b.sendKeyboard(chatID, tr(u.Language, "confirm_process"), confirmKeyboard(u.Language, id))
}

func (b *Bot) handleURL(chatID, userID int64, raw string) {
	lang := b.lang(userID)
	if err := fetcher.Allowed(raw); err != nil {
		b.send(chatID, tr(lang, "bad_url"))
		return
	}
	id := b.pending.Put(pending.Item{Kind: pending.KindURL, URL: raw})
	b.sendKeyboard(chatID, tr(lang, "confirm_process"), confirmKeyboard(lang, id))
}

// --- settings ---

func (b *Bot) setQuality(cq *tgbotapi.CallbackQuery, chatID, userID int64, q domain.Quality) {
	u := b.store.Snapshot(userID)
	limits := config.LimitsFor(u.Plan)
	if q != domain.QualityLow && q != domain.QualityMedium && q != domain.QualityMax {
		b.answerCB(cq, "")
		return
	}
	if !limits.AllowsQuality(q) {
		b.answerCB(cq, tr(u.Language, "quality_not_allowed"))
		return
	}
	b.store.Update(userID, func(rec *domain.UserRecord) { rec.Quality = q })
	b.answerCB(cq, "")
	b.send(chatID, tr(u.Language, "quality_changed", q))
}

func (b *Bot) toggleTextOverlay(chatID, userID int64) {
	u := b.store.Snapshot(userID)
	if !config.LimitsFor(u.Plan).CanDisableText {
		b.send(chatID, tr(u.Language, "text_overlay_locked"))
		return
	}
	next := !u.TextOverlay
	b.store.Update(userID, func(rec *domain.UserRecord) { rec.TextOverlay = next })
	if next {
		b.send(chatID, tr(u.Language, "text_overlay_on"))
	} else {
		b.send(chatID, tr(u.Language, "text_overlay_off"))
	}
}

// --- profile / promo / favorites / history ---

func (b *Bot) sendProfile(chatID, userID int64) {
	u := b.store.Snapshot(userID)
	limits := config.LimitsFor(u.Plan)

	monthlyCap := "∞"
	if limits.VideosPerMonth < config.Unlimited {
		monthlyCap = fmt.Sprintf("%d", limits.VideosPerMonth)
	}
	expires := ""
	if !u.PlanExpires.IsZero() {
		expires = tr(u.Language, "profile_expires", u.PlanExpires.Format(domain.DateFormat))
	}
	b.send(chatID, tr(u.Language, "profile",
		u.Plan, expires, u.MonthlyVideos, monthlyCap, u.ReferralBonus, u.StreakCount, u.TotalVideos))
}

func (b *Bot) handlePromo(chatID, userID int64, code string) {
	lang := b.lang(userID)
	if code == "" {
		b.send(chatID, tr(lang, "promo_usage"))
		return
	}
	p, err := b.store.ActivatePromo(userID, code)
	if err != nil {
		b.send(chatID, tr(lang, "promo_bad", err.Error()))
		return
	}
	switch p.Bonus {
	case domain.PromoBonusVideos:
		b.send(chatID, tr(lang, "promo_ok_videos", p.Amount))
	case domain.PromoBonusVIPDays:
		b.send(chatID, tr(lang, "promo_ok_days", "VIP", p.Amount))
	case domain.PromoBonusPremiumDays:
		b.send(chatID, tr(lang, "promo_ok_days", "Premium", p.Amount))
	}
}

func (b *Bot) sendFavorites(chatID, userID int64) {
	u := b.store.Snapshot(userID)
	if len(u.Favorites) == 0 {
		b.send(chatID, tr(u.Language, "favorites_empty"))
		return
	}
	b.sendKeyboard(chatID, "⭐", favoritesKeyboard(u.Favorites))
}

func (b *Bot) saveFavorite(chatID, userID int64, name string) {
	u := b.store.Snapshot(userID)
	if strings.TrimSpace(name) == "" {
		b.send(chatID, tr(u.Language, "favorites_empty"))
		return
	}
	fav := domain.Favorite{Mode: u.Mode, Quality: u.Quality, TextOverlay: u.TextOverlay}
	if err := b.store.AddFavorite(userID, name, fav); err != nil {
		b.send(chatID, tr(u.Language, "favorites_full", config.MaxFavorites))
		return
	}
	b.send(chatID, tr(u.Language, "favorite_saved", name))
}

func (b *Bot) applyFavorite(cq *tgbotapi.CallbackQuery, chatID, userID int64, name string) {
	u := b.store.Snapshot(userID)
	fav, ok := u.Favorites[name]
	if !ok {
		b.answerCB(cq, "")
		return
	}
	limits := config.LimitsFor(u.Plan)
	b.store.Update(userID, func(rec *domain.UserRecord) {
		rec.Mode = fav.Mode
		if limits.AllowsQuality(fav.Quality) {
			rec.Quality = fav.Quality
		}
		if limits.CanDisableText {
			rec.TextOverlay = fav.TextOverlay
		}
	})
	b.answerCB(cq, "")
	b.send(chatID, tr(u.Language, "favorite_applied", name))
}

func (b *Bot) sendHistory(chatID, userID int64) {
	u := b.store.Snapshot(userID)
	if len(u.History) == 0 {
		b.send(chatID, tr(u.Language, "history_empty"))
		return
	}
	var sb strings.Builder
	sb.WriteString("📜\n")
	for i := len(u.History) - 1; i >= 0; i-- {
		h := u.History[i]
		fmt.Fprintf(&sb, "%s — %s (%s)\n", h.Time.Format("02.01 15:04"), h.Mode, h.Source)
	}
	b.send(chatID, sb.String())
}

func parseReferral(payload string) (int64, bool) {
	if !strings.HasPrefix(payload, "ref") {
		return 0, false
	}
	var id int64
	if _, err := fmt.Sscanf(payload, "ref%d", &id); err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
