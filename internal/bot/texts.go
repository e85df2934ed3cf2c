package bot

import "fmt"

// Texts are keyed by message id then language. Russian is the default;
// a missing translation falls back to it.
var texts = map[string]map[string]string{
	"start": {
		"ru": "🎬 <b>Virex — Уникализация видео</b>\n\n📥 Отправь <b>видео</b> или <b>ссылку</b>:\n• TikTok, YouTube Shorts\n• Instagram Reels\n• VK клипы, Twitter/X\n\n🔥 Режим: <b>%s</b>",
		"en": "🎬 <b>Virex — Video uniqueization</b>\n\n📥 Send a <b>video</b> or a <b>link</b>:\n• TikTok, YouTube Shorts\n• Instagram Reels\n• VK clips, Twitter/X\n\n🔥 Mode: <b>%s</b>",
	},
	"help": {
		"ru": "❓ <b>Как это работает</b>\n\n📥 Скачивание без водяного знака:\nTikTok, YouTube, Instagram, VK, Twitter/X, Douyin, Bilibili и др.\n\n🎬 Уникализация:\nБот меняет метаданные, цвета, кадрирование и добавляет шум\n\n✅ Результат:\nВидео не определяется как повтор!",
		"en": "❓ <b>How it works</b>\n\n📥 Watermark-free download:\nTikTok, YouTube, Instagram, VK, Twitter/X, Douyin, Bilibili and more\n\n🎬 Uniqueization:\nThe bot rewrites metadata, colors, framing and adds grain\n\n✅ Result:\nThe video is not flagged as a duplicate!",
	},
	"confirm_process": {
		"ru": "🎬 Видео получено. Запустить обработку?",
		"en": "🎬 Video received. Start processing?",
	},
	"queued": {
		"ru": "⏳ В очереди: позиция %d",
		"en": "⏳ Queued: position %d",
	},
	"processing_started": {
		"ru": "⚙️ Обработка началась...",
		"en": "⚙️ Processing started...",
	},
	"done": {
		"ru": "✅ Готово! Видео уникализировано.",
		"en": "✅ Done! Your video is uniqueized.",
	},
	"failed": {
		"ru": "❌ Обработка не удалась. Попробуй другое видео.",
		"en": "❌ Processing failed. Try another video.",
	},
	"cancelled": {
		"ru": "🚫 Обработка отменена.",
		"en": "🚫 Processing cancelled.",
	},
	"nothing_to_cancel": {
		"ru": "Нечего отменять.",
		"en": "Nothing to cancel.",
	},
	"deny_maintenance": {
		"ru": "🔧 Бот на техобслуживании. Попробуй позже.",
		"en": "🔧 The bot is under maintenance. Try again later.",
	},
	"deny_banned": {
		"ru": "⛔ Ты заблокирован.",
		"en": "⛔ You are banned.",
	},
	"deny_soft_block": {
		"ru": "🧊 Слишком много запросов. Подожди %d мин.",
		"en": "🧊 Too many requests. Wait %d min.",
	},
	"deny_monthly_limit": {
		"ru": "📉 Лимит видео на месяц исчерпан. Оформи VIP или Premium: /trial",
		"en": "📉 Monthly video limit reached. Get VIP or Premium: /trial",
	},
	"deny_cooldown": {
		"ru": "⏱ Подожди %d сек перед следующим видео.",
		"en": "⏱ Wait %d s before the next video.",
	},
	"deny_duplicate": {
		"ru": "♻️ Это видео уже обрабатывалось только что.",
		"en": "♻️ This exact video was just processed.",
	},
	"deny_queue_full": {
		"ru": "🚦 Очередь переполнена. Попробуй через минуту.",
		"en": "🚦 The queue is full. Try again in a minute.",
	},
	"soft_block_applied": {
		"ru": "🧊 Слишком много отклонённых запросов — пауза 30 минут.",
		"en": "🧊 Too many rejected requests — 30 minute pause.",
	},
	"already_processing": {
		"ru": "⚙️ У тебя уже есть видео в работе. Дождись результата или /cancel.",
		"en": "⚙️ You already have a video in flight. Wait for it or /cancel.",
	},
	"file_too_big": {
		"ru": "📦 Файл больше %d МБ — лимит твоего тарифа.",
		"en": "📦 File exceeds %d MB — your plan's limit.",
	},
	"too_long": {
		"ru": "⏳ Видео длиннее %d секунд.",
		"en": "⏳ Video is longer than %d seconds.",
	},
	"bad_url": {
		"ru": "🔗 Эта ссылка не поддерживается.",
		"en": "🔗 This link is not supported.",
	},
	"expired_button": {
		"ru": "⌛ Кнопка устарела. Отправь видео заново.",
		"en": "⌛ This button has expired. Send the video again.",
	},
	"mode_changed": {
		"ru": "Режим изменён на <b>%s</b>",
		"en": "Mode changed to <b>%s</b>",
	},
	"quality_changed": {
		"ru": "Качество: <b>%s</b>",
		"en": "Quality: <b>%s</b>",
	},
	"quality_not_allowed": {
		"ru": "🔒 Это качество доступно на VIP/Premium.",
		"en": "🔒 This quality needs VIP/Premium.",
	},
	"text_overlay_locked": {
		"ru": "🔒 Отключение текста доступно на VIP/Premium.",
		"en": "🔒 Disabling text needs VIP/Premium.",
	},
	"text_overlay_on": {
		"ru": "✍️ Текст на видео: <b>включён</b>",
		"en": "✍️ Text overlay: <b>on</b>",
	},
	"text_overlay_off": {
		"ru": "✍️ Текст на видео: <b>выключен</b>",
		"en": "✍️ Text overlay: <b>off</b>",
	},
	"lang_changed": {
		"ru": "🌍 Язык: русский",
		"en": "🌍 Language: English",
	},
	"profile": {
		"ru": "👤 <b>Профиль</b>\n\nТариф: <b>%s</b>%s\nВидео в этом месяце: %d/%s\nБонусные видео: %d\nСерия дней: %d 🔥\nВсего обработано: %d",
		"en": "👤 <b>Profile</b>\n\nPlan: <b>%s</b>%s\nVideos this month: %d/%s\nBonus videos: %d\nDay streak: %d 🔥\nTotal processed: %d",
	},
	"profile_expires": {
		"ru": " (до %s)",
		"en": " (until %s)",
	},
	"trial_ok": {
		"ru": "🎁 VIP-триал на 1 день активирован!",
		"en": "🎁 1-day VIP trial activated!",
	},
	"trial_used": {
		"ru": "Триал уже использован или у тебя платный тариф.",
		"en": "Trial already used, or you are on a paid plan.",
	},
	"promo_usage": {
		"ru": "Использование: /promo КОД",
		"en": "Usage: /promo CODE",
	},
	"promo_ok_videos": {
		"ru": "🎉 Промокод принят: +%d бонусных видео!",
		"en": "🎉 Promo accepted: +%d bonus videos!",
	},
	"promo_ok_days": {
		"ru": "🎉 Промокод принят: %s на %d дн.!",
		"en": "🎉 Promo accepted: %s for %d days!",
	},
	"promo_bad": {
		"ru": "❌ Промокод не подошёл: %s",
		"en": "❌ Promo rejected: %s",
	},
	"referral": {
		"ru": "🤝 <b>Реферальная программа</b>\n\nПриглашено: %d\nБонусных видео за рефералов: +%d за каждого\n\nТвоя ссылка:\nhttps://t.me/%s?start=ref%d",
		"en": "🤝 <b>Referral program</b>\n\nInvited: %d\nBonus videos per referral: +%d\n\nYour link:\nhttps://t.me/%s?start=ref%d",
	},
	"favorites_empty": {
		"ru": "⭐ Избранных пресетов нет. Сохрани текущие настройки: /fav_save имя",
		"en": "⭐ No favorite presets. Save current settings: /fav_save name",
	},
	"favorites_full": {
		"ru": "⭐ Лимит пресетов (%d). Удали один или сохрани под существующим именем.",
		"en": "⭐ Preset limit reached (%d). Delete one or reuse an existing name.",
	},
	"favorite_saved": {
		"ru": "⭐ Пресет «%s» сохранён.",
		"en": "⭐ Preset “%s” saved.",
	},
	"favorite_applied": {
		"ru": "⭐ Пресет «%s» применён.",
		"en": "⭐ Preset “%s” applied.",
	},
	"history_empty": {
		"ru": "📜 История пуста.",
		"en": "📜 History is empty.",
	},
	"plan_expired": {
		"ru": "⌛ Твой платный тариф закончился. Тариф: free.",
		"en": "⌛ Your paid plan has ended. Plan: free.",
	},
	"plan_expiring": {
		"ru": "⏳ Твой тариф <b>%s</b> закончится %s.",
		"en": "⏳ Your <b>%s</b> plan ends on %s.",
	},
	"night_on": {
		"ru": "🌙 Ночной режим: <b>включён</b>. Уведомления придут утром.",
		"en": "🌙 Night mode: <b>on</b>. Notifications arrive in the morning.",
	},
	"night_off": {
		"ru": "🌙 Ночной режим: <b>выключен</b>.",
		"en": "🌙 Night mode: <b>off</b>.",
	},
	"unknown": {
		"ru": "Отправь видео, ссылку или /help.",
		"en": "Send a video, a link, or /help.",
	},
}

// tr renders a localized message. Unknown keys come back as the key itself
// so a missing text is visible instead of silent.
func tr(lang, key string, args ...any) string {
	m, ok := texts[key]
	if !ok {
		return key
	}
	s, ok := m[lang]
	if !ok {
		s = m["ru"]
	}
	if len(args) == 0 {
		return s
	}
	return fmt.Sprintf(s, args...)
}

func modeTitle(youtube bool) string {
	if youtube {
		return "YouTube Shorts MAX"
	}
	return "TikTok MAX"
}
