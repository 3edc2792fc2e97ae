// Package bot provides middleware for the Telegram bot.
package bot

import (
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"badminton-expense-bot/internal/config"
)

// WhitelistMiddleware drops updates from chats outside the configured
// whitelist. An empty whitelist allows every chat.
func WhitelistMiddleware(cfg *config.Config) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chat := c.Chat()
			if chat == nil {
				return nil
			}
			if !cfg.IsChatAllowed(chat.ID) {
				log.Debug().Int64("chat_id", chat.ID).Msg("Update from non-whitelisted chat ignored")
				return nil
			}
			return next(c)
		}
	}
}

// LoggingMiddleware logs every handled update with its latency.
func LoggingMiddleware() tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			err := next(c)

			event := log.Info()
			if err != nil {
				event = log.Error().Err(err)
			}
			sender := int64(0)
			if c.Sender() != nil {
				sender = c.Sender().ID
			}
			event.
				Str("text", c.Text()).
				Int64("sender", sender).
				Dur("latency", time.Since(start)).
				Msg("Update handled")
			return err
		}
	}
}
