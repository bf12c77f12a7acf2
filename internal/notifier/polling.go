package notifier

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// CommandHandler answers one chat command. command has no leading slash;
// an empty reply sends nothing.
type CommandHandler func(ctx context.Context, command, args string) string

// StartPolling long-polls for chat commands. Blocks until ctx is cancelled.
func (t *Telegram) StartPolling(ctx context.Context, handler CommandHandler) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := t.bot.GetUpdatesChan(u)
	log.Info().Str("component", "notifier").Msg("telegram polling started")

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			log.Info().Str("component", "notifier").Msg("telegram polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			reply, handled := t.dispatch(ctx, update, handler)
			if !handled || reply == "" {
				continue
			}
			if err := t.SendWithRetry(ctx, reply, 2); err != nil {
				log.Error().Str("component", "notifier").Err(err).Msg("send reply failed")
			}
		}
	}
}

// dispatch routes a command update from the configured chat to handler.
func (t *Telegram) dispatch(ctx context.Context, update tgbotapi.Update, handler CommandHandler) (string, bool) {
	msg := update.Message
	if msg == nil || !msg.IsCommand() {
		return "", false
	}
	if msg.Chat == nil || msg.Chat.ID != t.chatID {
		log.Warn().Str("component", "notifier").Str("command", msg.Command()).Msg("ignoring command from foreign chat")
		return "", false
	}
	cmd := strings.ToLower(msg.Command())
	args := strings.TrimSpace(msg.CommandArguments())
	log.Info().Str("component", "notifier").Str("command", cmd).Str("args", args).Msg("received command")
	return handler(ctx, cmd, args), true
}
