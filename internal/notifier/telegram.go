package notifier

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog/log"
)

const (
	// maxMessageLen is Telegram's limit for one text message.
	maxMessageLen = 4096
	maxCaptionLen = 1024
)

// Sender delivers one chat message.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// PhotoSender delivers one PNG image with an HTML caption.
type PhotoSender interface {
	SendPhoto(ctx context.Context, png []byte, caption string) error
}

// Telegram sends HTML messages to one chat via the Bot API.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64

	// RetryMin and RetryMax bound the backoff between send attempts.
	RetryMin time.Duration
	RetryMax time.Duration
}

// NewTelegram connects to the Bot API. endpoint may be empty for the public
// API; hc carries the proxy and timeout settings.
func NewTelegram(token string, chatID int64, endpoint string, hc *http.Client) (*Telegram, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, hc)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}
	log.Info().Str("component", "notifier").Str("bot", bot.Self.UserName).Msg("telegram connected")
	return &Telegram{bot: bot, chatID: chatID, RetryMin: time.Second, RetryMax: 30 * time.Second}, nil
}

// Send sends a message to the configured chat.
func (t *Telegram) Send(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(t.chatID, truncate(text, maxMessageLen))
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

// SendPhoto uploads a PNG to the configured chat.
func (t *Telegram) SendPhoto(ctx context.Context, png []byte, caption string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	photo := tgbotapi.NewPhoto(t.chatID, tgbotapi.FileBytes{Name: "chart.png", Bytes: png})
	photo.Caption = truncate(caption, maxCaptionLen)
	photo.ParseMode = tgbotapi.ModeHTML
	if _, err := t.bot.Send(photo); err != nil {
		return fmt.Errorf("send photo: %w", err)
	}
	return nil
}

// SendWithRetry sends a message with exponential backoff retry.
func (t *Telegram) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	b := &backoff.Backoff{Min: t.RetryMin, Max: t.RetryMax, Factor: 2, Jitter: true}
	return SendWithRetry(ctx, t, text, maxRetries, b)
}

// SendWithRetry retries s.Send up to maxRetries extra times, sleeping b between attempts.
func SendWithRetry(ctx context.Context, s Sender, text string, maxRetries int, b *backoff.Backoff) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		err := s.Send(ctx, text)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == maxRetries {
			break
		}
		wait := b.Duration()
		log.Warn().Str("component", "notifier").Err(err).
			Int("attempt", i+1).Int("of", maxRetries+1).Dur("retry_in", wait).Msg("telegram send failed")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", maxRetries+1, lastErr)
}

// truncate shortens s to at most n runes. The cut never lands inside a tag
// or an entity, and tags left open by it are closed after the ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	for keep := n - 1; keep > 0; {
		head := cutMarkup(string(r[:keep]))
		out := head + "…" + closeTags(head)
		over := utf8.RuneCountInString(out) - n
		if over <= 0 {
			return out
		}
		keep = utf8.RuneCountInString(head) - over
	}
	return "…"
}

var tagRe = regexp.MustCompile(`<(/?)([a-zA-Z][a-zA-Z0-9-]*)[^>]*>`)

// cutMarkup drops a trailing partial tag or entity.
func cutMarkup(s string) string {
	if i := strings.LastIndexByte(s, '<'); i > strings.LastIndexByte(s, '>') {
		s = s[:i]
	}
	if i := strings.LastIndexByte(s, '&'); i >= 0 && strings.IndexByte(s[i:], ';') < 0 {
		s = s[:i]
	}
	return s
}

// closeTags returns the closing tags for every element still open in s.
func closeTags(s string) string {
	var open []string
	for _, m := range tagRe.FindAllStringSubmatch(s, -1) {
		name := strings.ToLower(m[2])
		if m[1] == "" {
			open = append(open, name)
			continue
		}
		for i := len(open) - 1; i >= 0; i-- {
			if open[i] == name {
				open = open[:i]
				break
			}
		}
	}
	var b strings.Builder
	for i := len(open) - 1; i >= 0; i-- {
		b.WriteString("</" + open[i] + ">")
	}
	return b.String()
}
