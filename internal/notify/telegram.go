package notify

import (
	"context"
	"fmt"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"

	"ecocycle/internal/domain"
)

// TelegramNotifier posts dump reports to a moderators' chat.
type TelegramNotifier struct {
	bot  *tb.Bot
	chat *tb.Chat
}

// NewTelegramNotifier connects the bot. It only sends, so the poller is
// never started.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tb.NewBot(tb.Settings{
		Token:  token,
		Poller: &tb.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chat: &tb.Chat{ID: chatID}}, nil
}

// DumpReported sends the alert. telebot has no context support, so ctx is
// only checked before sending.
func (n *TelegramNotifier) DumpReported(ctx context.Context, r domain.DumpReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := n.bot.Send(n.chat, FormatDumpMessage(r))
	return err
}
