package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/atvirokodosprendimai/consolestats/internal/core/domain"
)

const defaultWebhookTimeout = 10 * time.Second

// WebhookPublisher announces cron jobs to the external scheduler over HTTP.
// Bodies are signed with HMAC-SHA256. Non-2xx responses are errors so the
// outbox dispatcher retries them.
type WebhookPublisher struct {
	url    string
	secret []byte
	client *http.Client
	logger *zap.Logger
}

// NewWebhookPublisher returns a publisher posting to url. A zero or negative
// timeout falls back to defaultWebhookTimeout.
func NewWebhookPublisher(url, secret string, timeout time.Duration, logger *zap.Logger) *WebhookPublisher {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookPublisher{
		url:    url,
		secret: []byte(secret),
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Publish POSTs the envelope as JSON with these headers:
//
//	Content-Type:                 application/json
//	X-Consolestats-Topic:         <topic>
//	X-Consolestats-Event-Type:    <event.EventType>
//	X-Consolestats-Aggregate-Id:  <event.AggregateID>
//	X-Hub-Signature-256:          sha256=<hex HMAC-SHA256 of the body>
func (p *WebhookPublisher) Publish(ctx context.Context, topic string, event domain.EventEnvelope) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Consolestats-Topic", topic)
	req.Header.Set("X-Consolestats-Event-Type", event.EventType)
	req.Header.Set("X-Consolestats-Aggregate-Id", event.AggregateID)
	req.Header.Set("X-Hub-Signature-256", "sha256="+p.sign(payload))

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("send webhook: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	p.logger.Debug("webhook delivered",
		zap.String("event_id", event.EventID),
		zap.Int("status", resp.StatusCode),
	)
	return nil
}

func (p *WebhookPublisher) sign(payload []byte) string {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
