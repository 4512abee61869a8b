package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// TelegramChannel pushes alerts through the Telegram Bot API.
type TelegramChannel struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramChannel constructs a Telegram notification channel.
func NewTelegramChannel(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramChannel{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Name identifies the channel in diagnostics.
func (c *TelegramChannel) Name() string {
	return "telegram"
}

// Notify calls the sendMessage API with a rendered alert text.
func (c *TelegramChannel) Notify(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(map[string]string{
		"chat_id": c.chatID,
		"text":    renderTelegramMessage(payload),
	})
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", c.baseURL, c.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	c.logger.Info().
		Str("product", payload.ProductName).
		Str("store", payload.StoreName).
		Msg("alert delivered via telegram")
	return nil
}

func renderTelegramMessage(payload Payload) string {
	builder := strings.Builder{}
	builder.WriteString("[Price Alert]\n")
	builder.WriteString(fmt.Sprintf("Product: %s\n", payload.ProductName))
	builder.WriteString(fmt.Sprintf("Store: %s\n", payload.StoreName))
	builder.WriteString(fmt.Sprintf("Current: %s (target %s)\n", payload.CurrentPrice.StringFixed(2), payload.TargetPrice.StringFixed(2)))
	builder.WriteString(payload.URL)
	return builder.String()
}

var _ Channel = (*TelegramChannel)(nil)
