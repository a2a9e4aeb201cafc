package telegram

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestSplitRespectsLimit(t *testing.T) {
	var builder strings.Builder
	builder.WriteString(strings.Repeat("а", 3000))
	builder.WriteString("\n\n")
	builder.WriteString(strings.Repeat("б", 2000))
	builder.WriteString("\n")
	builder.WriteString(strings.Repeat("в", 500))

	parts := Split(builder.String(), MessageLimit)
	if len(parts) != 2 {
		t.Fatalf("ожидали 2 части, получили %d", len(parts))
	}
	for i, part := range parts {
		if n := len([]rune(part)); n > MessageLimit {
			t.Fatalf("часть %d длиннее лимита: %d", i, n)
		}
	}
	if parts[0] != strings.Repeat("а", 3000) {
		t.Fatal("неожиданное содержимое первой части")
	}
	if !strings.HasPrefix(parts[1], "б") || !strings.HasSuffix(parts[1], strings.Repeat("в", 500)) {
		t.Fatal("неожиданное содержимое второй части")
	}
}

func TestSplitWithoutNewlines(t *testing.T) {
	parts := Split(strings.Repeat("x", 25), 10)
	if len(parts) != 3 || parts[2] != "xxxxx" {
		t.Fatalf("неожиданное разбиение: %q", parts)
	}
	if Split("  \n ", 10) != nil {
		t.Fatal("пустой текст не должен давать частей")
	}
}

type fakeBot struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, f.err
}

func TestSenderAttachesKeyboardToFirstPart(t *testing.T) {
	bot := &fakeBot{}
	keyboard := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonURL("Открыть", "https://example.org"),
	))
	text := strings.Repeat("а", MessageLimit) + "\n" + "хвост"
	if err := NewSender(bot, "").Send(context.Background(), 42, text, &keyboard); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(bot.sent) != 2 {
		t.Fatalf("ожидали 2 сообщения, получили %d", len(bot.sent))
	}
	if bot.sent[0].ReplyMarkup == nil || bot.sent[1].ReplyMarkup != nil {
		t.Fatal("клавиатура должна быть только у первой части")
	}
	if bot.sent[0].ChatID != 42 {
		t.Fatalf("неожиданный чат: %d", bot.sent[0].ChatID)
	}
}

func TestSenderStopsOnError(t *testing.T) {
	bot := &fakeBot{err: errors.New("Forbidden: bot was blocked by the user")}
	err := NewSender(bot, "notifier").Send(context.Background(), 1, "привет", nil)
	if err == nil || !strings.Contains(err.Error(), "blocked") {
		t.Fatalf("ожидали ошибку отправки, получили %v", err)
	}
}
