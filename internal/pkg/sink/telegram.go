package sink

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Vodeneev/sofascore-scraper/internal/pkg/config"
	"github.com/Vodeneev/sofascore-scraper/internal/pkg/models"
)

// Telegram sends a short run summary to one chat. Telegram caps messages, so
// only the first few matches are listed.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

const telegramListed = 10

var _ Sink = (*Telegram)(nil)

func NewTelegram(cfg config.TelegramConfig) (*Telegram, error) {
	return newTelegram(cfg, tgbotapi.APIEndpoint)
}

func newTelegram(cfg config.TelegramConfig, endpoint string) (*Telegram, error) {
	if cfg.BotToken == "" || cfg.ChatID == 0 {
		return nil, fmt.Errorf("telegram bot token and chat id are required")
	}
	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.BotToken, endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = false
	slog.Info("Telegram: notifier initialized", "chat_id", cfg.ChatID)
	return &Telegram{bot: bot, chatID: cfg.ChatID}, nil
}

func (t *Telegram) Name() string { return "telegram" }

func (t *Telegram) Write(_ context.Context, run RunInfo, matches []models.Match) error {
	msg := tgbotapi.NewMessage(t.chatID, summary(run, matches))
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// summary renders the plain-text message for a run.
func summary(run RunInfo, matches []models.Match) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚽ SofaScore run %s\n", run.At.Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "Method: %s, matches: %d, took: %s\n", run.Method, len(matches), run.Took.Round(100*time.Millisecond))
	if run.Err != nil {
		fmt.Fprintf(&b, "Error: %v\n", run.Err)
	}
	for i, m := range matches {
		if i == telegramListed {
			fmt.Fprintf(&b, "…and %d more\n", len(matches)-telegramListed)
			break
		}
		fmt.Fprintf(&b, "\n%d. %s\n   %s | %s | %s\n", i+1, m.Title(), m.Tournament, m.StartTime, m.Status)
	}
	return b.String()
}
