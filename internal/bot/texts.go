package bot

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/oggyb/pulse/internal/db"
)

// Deep-link payload prefixes of /start.
const (
	StartInvite = "invite_"
	StartPromo  = "promo_"
)

// StartKind tells what a /start payload asks for.
type StartKind int

const (
	StartPlain StartKind = iota
	StartJoin
	StartApplyPromo
)

// ParseStart splits a /start argument into its kind and value.
// Unknown or empty payloads are a plain start.
func ParseStart(arg string) (StartKind, string) {
	arg = strings.TrimSpace(arg)
	switch {
	case strings.HasPrefix(arg, StartInvite) && len(arg) > len(StartInvite):
		return StartJoin, strings.TrimPrefix(arg, StartInvite)
	case strings.HasPrefix(arg, StartPromo) && len(arg) > len(StartPromo):
		return StartApplyPromo, strings.TrimPrefix(arg, StartPromo)
	default:
		return StartPlain, ""
	}
}

// InviteLink is the t.me deep link that joins the pair with code.
func InviteLink(botUsername, code string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s%s", botUsername, StartInvite, code)
}

// ShareLink wraps an invite link into Telegram's share dialog.
func ShareLink(inviteLink string) string {
	return "https://t.me/share/url?url=" + url.QueryEscape(inviteLink) +
		"&text=" + url.QueryEscape("Присоединяйся ко мне в Pulse! 💕")
}

var monthsRU = [...]string{
	"января", "февраля", "марта", "апреля", "мая", "июня",
	"июля", "августа", "сентября", "октября", "ноября", "декабря",
}

// FormatDateRU renders YYYY-MM-DD as "11 марта 2026 г."; other input is returned as is.
func FormatDateRU(day string) string {
	t, err := time.Parse(time.DateOnly, day)
	if err != nil {
		return day
	}
	return fmt.Sprintf("%d %s %d г.", t.Day(), monthsRU[t.Month()-1], t.Year())
}

func esc(s string) string { return tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, s) }

var categoryEmoji = map[string]string{
	db.DateAnniversary: "💍",
	db.DateBirthday:    "🎂",
	db.DateFirstDate:   "💕",
	db.DateCustom:      "📅",
}

func loveText(senderName string, message *string) string {
	if message != nil && *message != "" {
		return fmt.Sprintf("💕 %s отправил вам любовь:\n\n\"%s\"", senderName, *message)
	}
	return fmt.Sprintf("💕 %s думает о вас и отправляет любовь!", senderName)
}

func dateCreatedText(creatorName, title, eventDate, category string) string {
	emoji, ok := categoryEmoji[category]
	if !ok {
		emoji = "📅"
	}
	return fmt.Sprintf("%s %s добавил\\(а\\) важную дату:\n\n*%s*\n📅 %s",
		emoji, esc(creatorName), esc(title), esc(FormatDateRU(eventDate)))
}

func reminderText(title, eventDate, description string) string {
	var b strings.Builder
	b.WriteString("🔔 *Напоминание о важном событии:*\n\n")
	fmt.Fprintf(&b, "✨ *%s*\n📅 Дата: %s\n", esc(title), esc(FormatDateRU(eventDate)))
	if description != "" {
		fmt.Fprintf(&b, "\n📝 _%s_\n", esc(description))
	}
	b.WriteString("\nНе забудьте подготовиться\\! 💕")
	return b.String()
}

func partnerJoinedText(partnerName string) string {
	if partnerName == "" {
		partnerName = "Ваш партнёр"
	}
	return fmt.Sprintf("💕 %s присоединился к вам в Pulse!\n\nОткройте приложение, чтобы начать.", partnerName)
}

func premiumText(until time.Time) string {
	return fmt.Sprintf("🎉 Поздравляем! Подписка Pulse Plus активирована до %s.", FormatDateRU(until.Format(time.DateOnly)))
}

const (
	textJoined = "💕 *Поздравляем\\!*\n\nВы успешно связаны с партнёром\\!\n\n" +
		"Теперь вы можете:\n• Отправлять друг другу любовь ❤️\n• Отмечать важные даты 📅\n" +
		"• Находить общие желания ✨\n• Выращивать дерево любви 🌳\n\nНажмите кнопку ниже, чтобы начать\\!"

	textWelcome = "💕 *Добро пожаловать в Pulse\\!*\n\nPulse — приложение для пар:\n\n" +
		"❤️ *Отправляйте любовь* одним нажатием\n📅 *Помните важные даты*\n" +
		"✨ *Находите общие желания* через свайпы\n🌳 *Выращивайте дерево любви* вместе"

	textHowItWorks = "❓ *Как работает Pulse?*\n\n" +
		"*1\\. Создайте пару*\nОдин из партнёров создаёт код и отправляет его второму\\.\n\n" +
		"*2\\. Отправляйте любовь*\nНажмите кнопку\\-сердце, и партнёр получит уведомление\\.\n\n" +
		"*3\\. Отмечайте даты*\nДобавляйте важные даты и получайте напоминания\\.\n\n" +
		"*4\\. Находите общие желания*\nПри совпадении вы узнаете, чего хотите оба\\.\n\n" +
		"*5\\. Выращивайте дерево*\nЧем дольше вы активны вместе, тем больше растёт дерево\\!"

	textThanks        = "✨ Спасибо за покупку Pulse Plus! Ваша подписка активирована."
	textFailed        = "Произошла ошибка. Попробуйте позже."
	textNotPaired     = "Вы не связаны с партнером."
	textUnlinkConfirm = "⚠️ Вы уверены, что хотите разорвать связь?\n\nЭто действие нельзя отменить."
	textUnlinked      = "Связь разорвана. Используйте /link для создания новой пары."
	textUnlinkKept    = "💕 Отлично! Ваша связь сохранена."
	textAlreadyPaired = "💕 Вы уже связаны с партнером!"
	textPayExpired    = "Счёт устарел. Создайте новый в приложении."
)

var treeEmoji = [...]string{"🌱", "🌿", "🌳", "🌲", "🌸"}

func pairedText(name, partner string, s *db.TreeStreak) string {
	level, streak := 1, 0
	if s != nil {
		level, streak = max(s.TreeLevel, 1), s.CurrentStreak
	}
	return fmt.Sprintf("💕 *Привет, %s\\!*\n\nВы связаны с *%s*\n\n%s *Ваше дерево*: уровень %d\n🔥 *Streak*: %d дней подряд\n\nОтправьте любовь прямо сейчас\\!",
		esc(name), esc(partner), treeEmoji[min(level, len(treeEmoji))-1], level, streak)
}

func inviteText(code, link string) string {
	return fmt.Sprintf("📎 Отправьте эту ссылку вашему партнеру:\n\n%s\n\nИли код: %s", link, code)
}

func promoText(kind string, days, discount int) string {
	if kind == db.PromoPremium {
		return fmt.Sprintf("✨ *Pulse Plus активирован\\!*\n\nВы получили %d дней премиум\\-доступа через промокод\\!", days)
	}
	return fmt.Sprintf("✨ *Промокод на скидку %d%% применен\\!*\n\nИспользуйте его при оформлении Pulse Plus в приложении\\.", discount)
}
