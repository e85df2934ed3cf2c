package bot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/wapuda/virex/internal/domain"
)

// onAdminCommand handles the admin-only surface. Returns false for
// commands it does not know so the caller can fall through.
func (b *Bot) onAdminCommand(m *tgbotapi.Message) bool {
	chatID := m.Chat.ID
	args := strings.Fields(m.CommandArguments())

	switch m.Command() {
	case "vip":
		b.grantPlan(chatID, args, domain.PlanVIP)
	case "premium":
		b.grantPlan(chatID, args, domain.PlanPremium)
	case "unvip":
		b.revokePlan(chatID, args)
	case "ban":
		b.adminBan(chatID, args)
	case "unban":
		if id, ok := b.resolveTarget(chatID, args); ok {
			b.store.Unban(id)
			b.send(chatID, fmt.Sprintf("✅ unbanned %d", id))
		}
	case "broadcast":
		b.broadcast(chatID, strings.TrimSpace(m.CommandArguments()))
	case "stats_global":
		b.sendGlobalStats(chatID)
	case "top":
		b.sendTopUsers(chatID)
	case "banned":
		b.sendBanned(chatID)
	case "expiring":
		b.sendExpiring(chatID)
	case "maintenance":
		if len(args) == 0 {
			b.send(chatID, fmt.Sprintf("🔧 maintenance: %v", b.gate.Maintenance()))
			break
		}
		on := args[0] == "on" || args[0] == "1"
		b.gate.SetMaintenance(on)
		b.send(chatID, fmt.Sprintf("🔧 maintenance: %v", on))
	case "promo_create":
		b.promoCreate(chatID, args)
	case "promo_delete":
		if len(args) == 1 {
			if err := b.store.DeletePromo(args[0]); err != nil {
				b.send(chatID, "❌ "+err.Error())
			} else {
				b.send(chatID, "✅ deleted")
			}
		}
	case "promo_list":
		b.promoList(chatID)
	case "backup":
		b.sendBackup(chatID)
	case "update_ytdlp":
		b.updateYtdlp(chatID)
	default:
		return false
	}
	return true
}

// notifyAdmins is the best-effort side channel for critical failures.
func (b *Bot) notifyAdmins(text string) {
	for _, id := range b.cfg.AdminIDs {
		msg := tgbotapi.NewMessage(id, text)
		_, _ = b.api.Send(msg)
	}
}

// resolveTarget accepts a numeric user ID or an @username.
func (b *Bot) resolveTarget(chatID int64, args []string) (int64, bool) {
	if len(args) == 0 {
		b.send(chatID, "usage: <user_id|@username> [...]")
		return 0, false
	}
	if id, err := strconv.ParseInt(args[0], 10, 64); err == nil {
		return id, true
	}
	if id, ok := b.store.FindByUsername(args[0]); ok {
		return id, true
	}
	b.send(chatID, "❌ user not found: "+args[0])
	return 0, false
}

func (b *Bot) grantPlan(chatID int64, args []string, plan domain.Plan) {
	id, ok := b.resolveTarget(chatID, args)
	if !ok {
		return
	}
	days := 30
	if len(args) > 1 {
		if d, err := strconv.Atoi(args[1]); err == nil && d > 0 {
			days = d
		}
	}
	if err := b.store.SetPlan(id, plan, time.Duration(days)*24*time.Hour); err != nil {
		b.send(chatID, "❌ "+err.Error())
		return
	}
	b.send(chatID, fmt.Sprintf("✅ %d → %s for %d days", id, plan, days))
	b.send(id, tr(b.lang(id), "promo_ok_days", strings.ToUpper(string(plan)), days))
}

func (b *Bot) revokePlan(chatID int64, args []string) {
	id, ok := b.resolveTarget(chatID, args)
	if !ok {
		return
	}
	if err := b.store.SetPlan(id, domain.PlanFree, 0); err != nil {
		b.send(chatID, "❌ "+err.Error())
		return
	}
	b.send(chatID, fmt.Sprintf("✅ %d → free", id))
}

func (b *Bot) adminBan(chatID int64, args []string) {
	id, ok := b.resolveTarget(chatID, args)
	if !ok {
		return
	}
	reason := "banned by admin"
	if len(args) > 1 {
		reason = strings.Join(args[1:], " ")
	}
	b.store.Ban(id, reason)
	b.queue.Cancel(id)
	b.send(chatID, fmt.Sprintf("✅ banned %d: %s", id, reason))
}

func (b *Bot) broadcast(chatID int64, text string) {
	if text == "" {
		b.send(chatID, "usage: /broadcast <text>")
		return
	}
	ids := b.store.AllIDs()
	sent := 0
	for _, id := range ids {
		msg := tgbotapi.NewMessage(id, text)
		msg.ParseMode = tgbotapi.ModeHTML
		if _, err := b.api.Send(msg); err == nil {
			sent++
		}
		// Telegram allows ~30 msg/s for bots; stay well under.
		time.Sleep(50 * time.Millisecond)
	}
	b.send(chatID, fmt.Sprintf("📣 broadcast sent to %d/%d users", sent, len(ids)))
}

func (b *Bot) sendGlobalStats(chatID int64) {
	g := b.store.Globals()
	b.send(chatID, fmt.Sprintf(
		"📊 <b>Global stats</b>\n\nUsers: %d\nActive today: %d\nFree/VIP/Premium: %d/%d/%d\nBanned: %d\nVideos processed: %d\nQueue: %d",
		g.Users, g.ActiveToday, g.Free, g.VIP, g.Premium, g.Banned, g.TotalVideos, b.queue.Len()))
}

func (b *Bot) sendTopUsers(chatID int64) {
	users := b.store.TopUsers(10)
	var sb strings.Builder
	sb.WriteString("🏆 <b>Top users</b>\n\n")
	for i, u := range users {
		fmt.Fprintf(&sb, "%d. %d @%s — %d videos (%s)\n", i+1, u.UserID, u.Username, u.TotalVideos, u.Plan)
	}
	b.send(chatID, sb.String())
}

func (b *Bot) sendBanned(chatID int64) {
	users := b.store.BannedUsers()
	if len(users) == 0 {
		b.send(chatID, "No banned users.")
		return
	}
	var sb strings.Builder
	sb.WriteString("🚫 <b>Banned users</b>\n\n")
	for _, u := range users {
		fmt.Fprintf(&sb, "%d @%s: %s\n", u.UserID, u.Username, u.BanReason)
	}
	b.send(chatID, sb.String())
}

func (b *Bot) sendExpiring(chatID int64) {
	users := b.store.ExpiringSoon(7)
	if len(users) == 0 {
		b.send(chatID, "No plans expiring within 7 days.")
		return
	}
	var sb strings.Builder
	sb.WriteString("⏳ <b>Expiring plans</b>\n\n")
	for _, u := range users {
		fmt.Fprintf(&sb, "%d @%s — %s until %s\n", u.UserID, u.Username, u.Plan, u.PlanExpires.Format(domain.DateFormat))
	}
	b.send(chatID, sb.String())
}

// promoCreate: /promo_create CODE videos|vip_days|premium_days AMOUNT [MAX_USES] [TTL_DAYS]
func (b *Bot) promoCreate(chatID int64, args []string) {
	if len(args) < 3 {
		b.send(chatID, "usage: /promo_create CODE videos|vip_days|premium_days AMOUNT [MAX_USES] [TTL_DAYS]")
		return
	}
	bonus := domain.PromoBonus(args[1])
	switch bonus {
	case domain.PromoBonusVideos, domain.PromoBonusVIPDays, domain.PromoBonusPremiumDays:
	default:
		b.send(chatID, "❌ bad bonus type: "+args[1])
		return
	}
	amount, err := strconv.Atoi(args[2])
	if err != nil || amount <= 0 {
		b.send(chatID, "❌ bad amount: "+args[2])
		return
	}
	maxUses := 0
	if len(args) > 3 {
		maxUses, _ = strconv.Atoi(args[3])
	}
	var ttl time.Duration
	if len(args) > 4 {
		if days, err := strconv.Atoi(args[4]); err == nil && days > 0 {
			ttl = time.Duration(days) * 24 * time.Hour
		}
	}
	if err := b.store.CreatePromo(args[0], bonus, amount, maxUses, ttl); err != nil {
		b.send(chatID, "❌ "+err.Error())
		return
	}
	b.send(chatID, "✅ promo created: "+strings.ToUpper(args[0]))
}

func (b *Bot) promoList(chatID int64) {
	promos := b.store.ListPromos()
	if len(promos) == 0 {
		b.send(chatID, "No promo codes.")
		return
	}
	var sb strings.Builder
	sb.WriteString("🎟 <b>Promo codes</b>\n\n")
	for _, p := range promos {
		uses := fmt.Sprintf("%d", len(p.UsedBy))
		if p.MaxUses > 0 {
			uses += fmt.Sprintf("/%d", p.MaxUses)
		}
		fmt.Fprintf(&sb, "%s — %s x%d, used %s\n", p.Code, p.Bonus, p.Amount, uses)
	}
	b.send(chatID, sb.String())
}

func (b *Bot) sendBackup(chatID int64) {
	data, err := b.store.Export()
	if err != nil {
		b.send(chatID, "❌ "+err.Error())
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("users-%s.json", b.now().Format("20060102-150405")),
		Bytes: data,
	})
	doc.Caption = "User store backup"
	if _, err := b.api.Send(doc); err != nil {
		b.send(chatID, "❌ "+err.Error())
	}
}

// restoreBackup replaces the user table from an exported /backup document.
func (b *Bot) restoreBackup(chatID int64, fileID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tmp := filepath.Join(b.tempDir, "virex_restore.json")
	defer os.Remove(tmp)
	if err := b.downloadTelegramFile(ctx, fileID, tmp); err != nil {
		b.send(chatID, "❌ "+err.Error())
		return
	}
	raw, err := os.ReadFile(tmp)
	if err != nil {
		b.send(chatID, "❌ "+err.Error())
		return
	}
	if err := b.store.Import(raw); err != nil {
		b.send(chatID, "❌ "+err.Error())
		return
	}
	b.send(chatID, "✅ user store restored")
}

func (b *Bot) updateYtdlp(chatID int64) {
	b.send(chatID, "⏳ updating yt-dlp...")
	out, err := b.fetch.SelfUpdate(context.Background())
	if err != nil {
		b.send(chatID, "❌ "+err.Error())
		return
	}
	if out == "" {
		out = "done"
	}
	b.send(chatID, "✅ "+out)
}
