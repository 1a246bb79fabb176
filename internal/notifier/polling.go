package notifier

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// CommandHandler is called when a user command is received.
type CommandHandler func(command string) string

// StartPolling begins long-polling for Telegram commands. Blocks until ctx is cancelled.
// Only messages from the configured chat are handled.
func (t *TelegramNotifier) StartPolling(ctx context.Context, handler CommandHandler) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.bot.GetUpdatesChan(u)

	logrus.Info("telegram command polling started")
	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			logrus.Info("telegram polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			text, ok := t.commandText(update)
			if !ok {
				continue
			}
			logrus.WithField("command", strings.Fields(text)[0]).Info("received telegram command")
			if reply := handler(text); reply != "" {
				if err := t.SendWithRetry(ctx, reply, 2); err != nil {
					logrus.Errorf("send reply: %v", err)
				}
			}
		}
	}
}

// commandText normalizes "/cmd@bot args" to "/cmd args".
func (t *TelegramNotifier) commandText(update tgbotapi.Update) (string, bool) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || msg.Chat.ID != t.ChatID {
		return "", false
	}
	if !msg.IsCommand() {
		return "", false
	}
	text := "/" + msg.Command()
	if args := strings.TrimSpace(msg.CommandArguments()); args != "" {
		text += " " + args
	}
	return text, true
}
