// Package ops provides operational alerting for the execution engine:
// a Telegram notifier the Reconciliation Engine pushes CRITICAL discrepancies
// to under the Alert policy. NotifyCircuitTrip formats a circuit-breaker trip
// alert; the mass-cancel safety net does not call it.
package ops

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// TelegramNotifier implements reconcile.Notifier over a Telegram bot.
type TelegramNotifier struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	log.Info().Str("username", api.Self.UserName).Msg("🤖 ops notifier connected")
	return &TelegramNotifier{api: api, chatID: chatID}, nil
}

// Notify satisfies reconcile.Notifier. It ignores ctx cancellation: a
// critical-discrepancy alert must still attempt delivery since the caller
// is usually already in a halted, best-effort code path.
func (n *TelegramNotifier) Notify(ctx context.Context, message string) error {
	msg := tgbotapi.NewMessage(n.chatID, "🚨 "+message)
	msg.DisableWebPagePreview = true
	if _, err := n.api.Send(msg); err != nil {
		log.Error().Err(err).Msg("📵 failed to deliver ops alert")
		return fmt.Errorf("send telegram alert: %w", err)
	}
	return nil
}

// NotifyCircuitTrip formats a mass-cancel / circuit-breaker trip alert.
func (n *TelegramNotifier) NotifyCircuitTrip(ctx context.Context, reason string, cancelled int) error {
	return n.Notify(ctx, fmt.Sprintf("circuit breaker tripped: %s (%d orders cancelled)", reason, cancelled))
}
