package notifier

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	// MaxMessageLength is Telegram's per-message limit in bytes.
	MaxMessageLength = 4096

	// Telegram allows about one message per second to a single chat.
	sendInterval = time.Second
	sendBurst    = 3
)

// TelegramNotifier sends messages to one chat via the Telegram Bot API.
type TelegramNotifier struct {
	bot       *tgbotapi.BotAPI
	ChatID    int64
	RetryBase time.Duration // first backoff step of SendWithRetry
	limiter   *rate.Limiter
}

// NewTelegramNotifier creates a notifier with optional proxy support.
// endpoint may be empty for the public Bot API.
func NewTelegramNotifier(botToken, chatID, proxyURL, endpoint string) (*TelegramNotifier, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(chatID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse telegram chat id: %w", err)
	}

	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	// long polling holds requests for up to 60s
	client := &http.Client{Timeout: 75 * time.Second, Transport: transport}

	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	bot, err := tgbotapi.NewBotAPIWithClient(botToken, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	bot.Debug = false

	logrus.Infof("telegram bot authorized as @%s", bot.Self.UserName)
	return &TelegramNotifier{
		bot:       bot,
		ChatID:    id,
		RetryBase: time.Second,
		limiter:   rate.NewLimiter(rate.Every(sendInterval), sendBurst),
	}, nil
}

// Send delivers text to the configured chat, split into several messages when too long.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	for i, part := range SplitMessage(text, MaxMessageLength) {
		if err := t.limiter.Wait(ctx); err != nil {
			return err
		}
		msg := tgbotapi.NewMessage(t.ChatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
		if _, err := t.bot.Send(msg); err != nil {
			return fmt.Errorf("send message part %d: %w", i+1, err)
		}
	}
	return nil
}

// SendWithRetry sends a message with exponential backoff retry.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	base := t.RetryBase
	if base <= 0 {
		base = time.Second
	}
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if err := t.Send(ctx, text); err != nil {
			lastErr = err
			if i == maxRetries {
				break
			}
			backoff := base * time.Duration(1<<uint(i))
			logrus.Warnf("telegram send failed (attempt %d/%d): %v, retrying in %v", i+1, maxRetries+1, err, backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}
		return nil
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries+1, lastErr)
}

// SplitMessage breaks text on line boundaries so each part fits in maxLen bytes.
// Lines longer than maxLen are cut without splitting a UTF-8 sequence.
func SplitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	current := ""
	for _, line := range strings.Split(text, "\n") {
		for len(line) > maxLen {
			if current != "" {
				parts = append(parts, current)
				current = ""
			}
			cut := maxLen
			for cut > 0 && !isRuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				cut = maxLen
			}
			parts = append(parts, line[:cut])
			line = line[cut:]
		}

		candidate := line
		if current != "" {
			candidate = current + "\n" + line
		}
		if len(candidate) > maxLen {
			parts = append(parts, current)
			current = line
		} else {
			current = candidate
		}
	}
	if current != "" {
		parts = append(parts, current)
	}
	return parts
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
