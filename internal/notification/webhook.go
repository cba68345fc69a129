package notification

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// WebhookNotifier POSTs each alert as a JSON document:
//
//	{"source":"screener","level":"INFO","title":...,"message":...,"sent_at":...}
type WebhookNotifier struct {
	url    string
	client *http.Client
	log    *slog.Logger
	now    func() time.Time
}

func NewWebhookNotifier(url string, log *slog.Logger) *WebhookNotifier {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookNotifier{
		url:    url,
		client: &http.Client{Timeout: sendTimeout},
		log:    log.With(slog.String("component", "webhook")),
		now:    time.Now,
	}
}

type webhookPayload struct {
	Source  string     `json:"source"`
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
	SentAt  string     `json:"sent_at"`
}

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	_, err := postJSON(ctx, w.client, w.url, webhookPayload{
		Source:  "screener",
		Level:   alert.Level,
		Title:   alert.Title,
		Message: alert.Message,
		SentAt:  w.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("webhook: %w", err)
	}
	w.log.Debug("summary delivered", slog.String("url", w.url))
	return nil
}
