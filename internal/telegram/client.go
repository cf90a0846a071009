// Package telegram provides a client for sending notifications via Telegram Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/iamkanga/asxtracker-sub003/internal/models"
)

// Client handles Telegram notifications.
type Client struct {
	bot            *tgbotapi.BotAPI
	chatID         int64
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a new Telegram client.
func NewClient(botToken, chatID string, maxRetries int, retryDelayBase time.Duration) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelayBase <= 0 {
		retryDelayBase = time.Second
	}

	return &Client{
		bot:            bot,
		chatID:         chatIDInt,
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}, nil
}

// ListenForCommands starts a goroutine that polls for Telegram updates and handles bot commands.
// It returns immediately; the goroutine stops when ctx is cancelled.
func (c *Client) ListenForCommands(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message != nil && update.Message.IsCommand() {
					c.handleCommand(update.Message)
				}
			}
		}
	}()
}

func (c *Client) handleCommand(msg *tgbotapi.Message) {
	switch msg.Command() {
	case "ping":
		reply := tgbotapi.NewMessage(msg.Chat.ID, "Pong")
		c.bot.Send(reply) //nolint:errcheck
	}
}

// sendMarkdownV2 sends a MarkdownV2 message with linear-backoff retry.
func (c *Client) sendMarkdownV2(text string) error {
	msg := tgbotapi.NewMessage(c.chatID, text)
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		if _, err := c.bot.Send(msg); err == nil {
			return nil
		} else {
			lastErr = err
		}
		time.Sleep(c.retryDelayBase * time.Duration(i+1))
	}
	return fmt.Errorf("failed after %d retries: %w", c.maxRetries, lastErr)
}

// SendError sends a poll-loop error notification.
// Call this only on the first occurrence of a consecutive error sequence.
func (c *Client) SendError(cycleErr error) error {
	text := fmt.Sprintf("⚠️ *Quote polling error*\n`%s`", escapeMarkdownV2(cycleErr.Error()))
	return c.sendMarkdownV2(text)
}

// SendRecovery sends a recovery notification after consecutive failures.
func (c *Client) SendRecovery(failureCount int) error {
	text := fmt.Sprintf("✅ *Quote polling recovered* after %d consecutive failure\\(s\\)", failureCount)
	return c.sendMarkdownV2(text)
}

// SendDigest sends a notification listing newly surfaced portfolio alerts.
func (c *Client) SendDigest(hits []models.Hit) error {
	return c.sendMarkdownV2(formatDigest(hits))
}

// formatDigest formats alert hits into a Telegram MarkdownV2 message.
func formatDigest(hits []models.Hit) string {
	message := "🔔 *Portfolio Alerts*\n\n"

	if len(hits) > 0 && !hits[0].Timestamp.IsZero() {
		dateStr := escapeMarkdownV2(hits[0].Timestamp.Format("2006-01-02 15:04:05"))
		message += fmt.Sprintf("📅 Detected: %s\n\n", dateStr)
	}

	for i, hit := range hits {
		title := hit.Code
		if hit.Name != "" {
			title = fmt.Sprintf("%s \\(%s\\)", escapeMarkdownV2(hit.Name), hit.Code)
		}
		message += fmt.Sprintf("%d\\. %s\n", i+1, title)

		directionEmoji := "📈"
		if hit.Direction == models.DirectionDown {
			directionEmoji = "📉"
		}

		priceStr := escapeMarkdownV2(fmt.Sprintf("$%.2f", hit.Price))
		pctStr := escapeMarkdownV2(fmt.Sprintf("%+.2f%%", hit.PctChange))
		message += fmt.Sprintf("   %s *%s* at %s · %s\n", directionEmoji, pctStr, priceStr, intentLabel(hit))

		message += "\n"
	}

	return message
}

// intentLabel renders the matched intents for one hit.
func intentLabel(hit models.Hit) string {
	intents := hit.Matches
	if len(intents) == 0 {
		intents = []models.Intent{hit.Intent}
	}
	labels := make([]string, 0, len(intents))
	for _, intent := range intents {
		switch intent {
		case models.IntentTarget:
			labels = append(labels, "🎯 target")
		case models.IntentMover:
			labels = append(labels, "🚀 mover")
		case models.IntentHiLo:
			if hit.Extreme == models.ExtremeLow {
				labels = append(labels, "📉 52w low")
			} else {
				labels = append(labels, "📈 52w high")
			}
		}
	}
	return escapeMarkdownV2(strings.Join(labels, ", "))
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2.
func escapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text) + len(text)/4) // pre-allocate with room for escapes
	for _, char := range text {
		switch char {
		case '_', '*', '[', ']', '(', ')', '~', '`', '>', '#', '+', '-', '=', '|', '{', '}', '.', '!':
			b.WriteByte('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
