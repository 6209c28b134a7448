// Package obs provides operational notifications for degraded or
// failed snapshot builds: a multi-notifier fan-out with per-key cooldown
// and Slack/webhook channels, adapted from chain-health/reorg-style
// alerting to the Fetch Coordinator's fallback and degradation warnings.
package obs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"govtoken-analytics/internal/domain"
)

// NoticeKind categorizes the kind of operational notice.
type NoticeKind string

const (
	NoticeSourceFallback NoticeKind = "SOURCE_FALLBACK"
	NoticeDegraded       NoticeKind = "DEGRADED_SNAPSHOT"
	NoticeNormalizerDrop NoticeKind = "NORMALIZER_DROP"
	NoticeStoreError     NoticeKind = "STORE_ERROR"
	NoticeRecovered      NoticeKind = "RECOVERED"
)

// Notice is a single operational event worth surfacing to an operator.
type Notice struct {
	Kind     NoticeKind
	Protocol domain.ProtocolID
	Title    string
	Message  string
	Fields   map[string]string
}

// Notifier is the interface a notification channel implements.
type Notifier interface {
	Send(ctx context.Context, notice Notice) error
}

// MultiNotifier fans a notice out to every configured channel,
// suppressing repeats of the same (kind, protocol) pair within
// cooldown.
type MultiNotifier struct {
	notifiers []Notifier
	cooldown  time.Duration
	logger    *slog.Logger

	mu       sync.Mutex
	lastSent map[string]time.Time
}

func NewMultiNotifier(cooldown time.Duration, logger *slog.Logger, notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{
		notifiers: notifiers,
		cooldown:  cooldown,
		logger:    logger.With("component", "obs"),
		lastSent:  make(map[string]time.Time),
	}
}

func cooldownKey(n Notice) string {
	return fmt.Sprintf("%s:%s", n.Kind, n.Protocol)
}

func (m *MultiNotifier) Send(ctx context.Context, notice Notice) error {
	key := cooldownKey(notice)

	m.mu.Lock()
	if last, ok := m.lastSent[key]; ok && time.Since(last) < m.cooldown {
		m.mu.Unlock()
		m.logger.Debug("notice suppressed by cooldown", "key", key)
		return nil
	}
	m.lastSent[key] = time.Now()
	m.mu.Unlock()

	var firstErr error
	for _, n := range m.notifiers {
		if err := n.Send(ctx, notice); err != nil {
			m.logger.Warn("notice send failed", "channel", notifierName(n), "kind", notice.Kind, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func notifierName(n Notifier) string {
	switch n.(type) {
	case *SlackNotifier:
		return "slack"
	case *WebhookNotifier:
		return "webhook"
	case *LogNotifier:
		return "log"
	default:
		return "unknown"
	}
}

// LogNotifier writes notices through slog. It is the default channel
// when no webhook is configured, so degraded snapshots are always
// visible somewhere even without external alerting wired up.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With("component", "obs")}
}

func (l *LogNotifier) Send(_ context.Context, notice Notice) error {
	l.logger.Warn(notice.Title, "kind", notice.Kind, "protocol", notice.Protocol, "message", notice.Message)
	return nil
}

// SlackNotifier posts notices to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	client     *http.Client
}

func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{webhookURL: webhookURL, client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *SlackNotifier) Send(ctx context.Context, notice Notice) error {
	emoji := ":warning:"
	switch notice.Kind {
	case NoticeRecovered:
		emoji = ":white_check_mark:"
	case NoticeDegraded:
		emoji = ":large_orange_diamond:"
	case NoticeStoreError:
		emoji = ":rotating_light:"
	}

	text := fmt.Sprintf("%s *[%s]* %s: %s\n%s", emoji, notice.Kind, notice.Protocol, notice.Title, notice.Message)
	for k, v := range notice.Fields {
		text += fmt.Sprintf("\n- *%s*: %s", k, v)
	}

	payload := map[string]string{"text": text}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack notice: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

// WebhookNotifier posts notices as JSON to a generic HTTP endpoint.
type WebhookNotifier struct {
	url    string
	client *http.Client
}

func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (w *WebhookNotifier) Send(ctx context.Context, notice Notice) error {
	payload := map[string]any{
		"kind":     string(notice.Kind),
		"protocol": string(notice.Protocol),
		"title":    notice.Title,
		"message":  notice.Message,
		"fields":   notice.Fields,
		"time":     time.Now().UTC().Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook notice: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// NoopNotifier discards every notice. Used in tests.
type NoopNotifier struct{}

func (NoopNotifier) Send(_ context.Context, _ Notice) error { return nil }
