package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"
)

const (
	telegramAPI = "https://api.telegram.org"
	// telegramMaxText is the Bot API limit on message text, in characters.
	telegramMaxText = 4096
)

// TelegramNotifier posts scan summaries to a chat through the Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
	log      *slog.Logger
}

// NewTelegramNotifier creates a notifier for chatID using a @BotFather token.
func NewTelegramNotifier(botToken, chatID string, log *slog.Logger) *TelegramNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  telegramAPI,
		client:   &http.Client{Timeout: sendTimeout},
		log:      log.With(slog.String("component", "telegram")),
	}
}

// Send renders the alert as MarkdownV2. Message bodies longer than the Bot
// API limit are cut at a line boundary.
func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	header := fmt.Sprintf("%s *%s*\n\n", levelMark(alert.Level), escapeMarkdown(alert.Title))
	text := header + escapeMarkdown(alert.Message)
	if utf8.RuneCountInString(text) > telegramMaxText {
		text = header + truncateLines(escapeMarkdown(alert.Message), telegramMaxText-utf8.RuneCountInString(header)-8) + "\n\\.\\.\\."
	}

	payload := map[string]any{
		"chat_id":                  t.chatID,
		"text":                     text,
		"parse_mode":               "MarkdownV2",
		"disable_web_page_preview": true,
	}
	raw, err := postJSON(ctx, t.client, fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.botToken), payload)
	if err != nil {
		var resp struct {
			Description string `json:"description"`
		}
		if json.Unmarshal(raw, &resp) == nil && resp.Description != "" {
			return fmt.Errorf("telegram: %s: %w", resp.Description, err)
		}
		return fmt.Errorf("telegram: %w", err)
	}

	t.log.Info("summary sent", slog.String("chat", t.chatID), slog.String("title", alert.Title))
	return nil
}

func levelMark(l AlertLevel) string {
	switch l {
	case AlertWarning:
		return "⚠️"
	case AlertCritical:
		return "🚨"
	}
	return "📈"
}

// truncateLines keeps whole lines of s while the result stays within max
// characters.
func truncateLines(s string, max int) string {
	var b strings.Builder
	n := 0
	for _, line := range strings.SplitAfter(s, "\n") {
		l := utf8.RuneCountInString(line)
		if n+l > max {
			break
		}
		b.WriteString(line)
		n += l
	}
	return strings.TrimRight(b.String(), "\n")
}

// escapeMarkdown escapes the MarkdownV2 reserved characters.
func escapeMarkdown(s string) string {
	const specials = "_*[]()~`>#+-=|{}.!"
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if strings.ContainsRune(specials, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}
