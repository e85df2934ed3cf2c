package bot

import (
	"sort"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wapuda/virex/internal/domain"
)

// confirmKeyboard is attached to the "video received" message. The short
// ID keeps the callback data inside Telegram's 64-byte limit.
func confirmKeyboard(lang, shortID string) tgbotapi.InlineKeyboardMarkup {
	process, cancel := "🚀 Обработать", "🚫 Отмена"
	if lang == "en" {
		process, cancel = "🚀 Process", "🚫 Cancel"
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(process, "prc:"+shortID),
			tgbotapi.NewInlineKeyboardButtonData(cancel, "dsm:"+shortID),
		),
	)
}

func modeKeyboard(current domain.Mode) tgbotapi.InlineKeyboardMarkup {
	tt, yt := "TikTok MAX", "YouTube Shorts MAX"
	if current == domain.ModeTikTok {
		tt = "✅ " + tt
	} else {
		yt = "✅ " + yt
	}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(tt, "mode:tiktok"),
			tgbotapi.NewInlineKeyboardButtonData(yt, "mode:youtube"),
		),
	)
}

func qualityKeyboard(current domain.Quality, limits domain.PlanLimits) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, 3)
	for _, q := range []domain.Quality{domain.QualityLow, domain.QualityMedium, domain.QualityMax} {
		label := string(q)
		switch {
		case q == current:
			label = "✅ " + label
		case !limits.AllowsQuality(q):
			label = "🔒 " + label
		}
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, "qual:"+string(q)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(row...))
}

func languageKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🇷🇺 Русский", "lang:ru"),
			tgbotapi.NewInlineKeyboardButtonData("🇬🇧 English", "lang:en"),
		),
	)
}

func favoritesKeyboard(favs map[string]domain.Favorite) tgbotapi.InlineKeyboardMarkup {
	names := make([]string, 0, len(favs))
	for name := range favs {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(names))
	for _, name := range names {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⭐ "+name, "fav:"+name),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
