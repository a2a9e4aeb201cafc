package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"tg-booking-app/internal/domain"
	"tg-booking-app/internal/infra/metrics"
	"tg-booking-app/internal/usecase/projector"
	"tg-booking-app/internal/usecase/session"
)

// Messenger отправляет сообщения в чат.
type Messenger interface {
	Send(ctx context.Context, chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error
}

// Sessions выдаёт сессию пользователя по его Telegram ID.
type Sessions interface {
	Get(ctx context.Context, identity domain.Identity) (*session.Session, error)
}

// Handler обслуживает вебхук бота.
type Handler struct {
	out       Messenger
	sessions  Sessions
	webAppURL string
	log       zerolog.Logger
}

// NewHandler создаёт обработчик.
func NewHandler(out Messenger, sessions Sessions, webAppURL string, log zerolog.Logger) *Handler {
	return &Handler{out: out, sessions: sessions, webAppURL: webAppURL, log: log}
}

// HandleUpdate обрабатывает входящий апдейт.
func (h *Handler) HandleUpdate(ctx context.Context, upd tgbotapi.Update) {
	if upd.Message == nil {
		return
	}
	msg := upd.Message
	text := strings.TrimSpace(msg.Text)
	switch {
	case strings.HasPrefix(text, "/start"):
		metrics.ObserveCommand("bot_start", "ok")
		h.reply(ctx, msg.Chat.ID, buildStartMessage(), h.webAppKeyboard())
	case strings.HasPrefix(text, "/my"):
		h.handleMy(ctx, msg)
	default:
		h.reply(ctx, msg.Chat.ID, buildHelpMessage(), h.webAppKeyboard())
	}
}

func (h *Handler) handleMy(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		h.reply(ctx, msg.Chat.ID, "Не удалось определить пользователя", nil)
		return
	}
	identity := domain.Identity{
		TelegramID:  msg.From.ID,
		DisplayName: strings.TrimSpace(msg.From.FirstName + " " + msg.From.LastName),
	}
	sess, err := h.sessions.Get(ctx, identity)
	if err != nil {
		metrics.ObserveCommand("bot_my", "error")
		h.log.Warn().Err(err).Int64("tg_id", identity.TelegramID).Msg("bot: сессия не открыта")
		h.reply(ctx, msg.Chat.ID, userFacingError(err), nil)
		return
	}
	// Бот не получает изменения из мини-приложения, поэтому перечитываем записи.
	if err := sess.Store.Load(ctx, domain.CollectionBookings); err != nil {
		h.log.Warn().Err(err).Msg("bot: записи не обновлены, показываем кэш")
	}
	bookings, err := sess.Projector.MyBookings()
	if err != nil {
		metrics.ObserveCommand("bot_my", "error")
		h.reply(ctx, msg.Chat.ID, userFacingError(err), nil)
		return
	}
	metrics.ObserveCommand("bot_my", "ok")
	h.reply(ctx, msg.Chat.ID, FormatBookings(bookings), h.webAppKeyboard())
}

func (h *Handler) reply(ctx context.Context, chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) {
	if err := h.out.Send(ctx, chatID, text, keyboard); err != nil {
		h.log.Error().Err(err).Int64("chat_id", chatID).Msg("не удалось отправить сообщение")
	}
}

// webAppKeyboard строит кнопку открытия мини-приложения. Без адреса клавиатуры нет.
func (h *Handler) webAppKeyboard() *tgbotapi.InlineKeyboardMarkup {
	if h.webAppURL == "" {
		return nil
	}
	buttons := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL("📅 Открыть запись", h.webAppURL),
		),
	)
	return &buttons
}

// FormatBookings выводит список записей. Если слот или услуга пропали из кэша, строка всё равно выводится.
func FormatBookings(bookings []projector.BookingView) string {
	if len(bookings) == 0 {
		return "У вас пока нет записей. Выберите свободный слот в мини-приложении."
	}
	lines := []string{"🗓 Ваши записи:", ""}
	for _, b := range bookings {
		lines = append(lines, "• "+FormatBooking(b))
	}
	return strings.Join(lines, "\n")
}

// FormatBooking выводит время записи и название услуги.
func FormatBooking(b projector.BookingView) string {
	when := fmt.Sprintf("слот #%d", b.Booking.SlotID)
	switch {
	case b.When != nil:
		when = b.When.Format("02.01.2006 15:04")
	case b.Slot != nil:
		when = b.Slot.DateTime
	}
	service := fmt.Sprintf("услуга #%d", b.Booking.ServiceID)
	if b.Service != nil {
		service = b.Service.Name
	}
	return when + ", " + service
}

func userFacingError(err error) string {
	var rejection *domain.RemoteRejectionError
	switch {
	case errors.As(err, &rejection) && rejection.Status == 404:
		return "Вы ещё не зарегистрированы в сервисе записи. Откройте мини-приложение."
	case errors.Is(err, domain.ErrTransport):
		return "Сервис записи сейчас недоступен, попробуйте позже."
	default:
		return "Не удалось получить записи, попробуйте позже."
	}
}

func buildStartMessage() string {
	lines := []string{
		"👋 Добро пожаловать!",
		"",
		"Здесь можно записаться на услугу в удобное время:",
		"1. 📅 Откройте мини-приложение кнопкой ниже.",
		"2. Выберите свободный слот и подтвердите запись.",
		"3. 🗓 Команда /my покажет ваши записи.",
	}
	return strings.Join(lines, "\n")
}

func buildHelpMessage() string {
	sections := []string{
		"📖 Команды:",
		"• /start — открыть мини-приложение.",
		"• /my — показать ваши записи.",
	}
	return strings.Join(sections, "\n")
}
