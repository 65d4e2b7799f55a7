package notifier

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/cenkalti/backoff/v4"
	tele "gopkg.in/telebot.v3"
)

type TelegramSender struct {
	bot *tele.Bot
}

func NewTelegramSender(token string) (*TelegramSender, error) {
	b, err := tele.NewBot(tele.Settings{
		Token:   token,
		Offline: true,
	})
	if err != nil {
		return nil, err
	}
	return &TelegramSender{bot: b}, nil
}

// Send treats recipient as a Telegram chat ID. Errors that retrying cannot
// fix are marked permanent for the worker.
func (s *TelegramSender) Send(_ context.Context, recipient, text string) error {
	chatID, err := strconv.ParseInt(recipient, 10, 64)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("invalid telegram chat id %q: %w", recipient, err))
	}

	_, err = s.bot.Send(tele.ChatID(chatID), text, &tele.SendOptions{ParseMode: tele.ModeHTML})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, tele.ErrBlockedByUser),
		errors.Is(err, tele.ErrChatNotFound),
		errors.Is(err, tele.ErrUserIsDeactivated):
		return backoff.Permanent(err)
	default:
		return err
	}
}
