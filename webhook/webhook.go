package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/use-agent/namecrawl/crawl"
	"github.com/use-agent/namecrawl/models"
)

// Event types delivered to webhook endpoints.
const (
	TypePartitionCompleted = "partition.completed"
	TypePartitionAbandoned = "partition.abandoned"
	TypeRunCompleted       = "run.completed"
)

// SignatureHeader carries "sha256=<hex>" of the HMAC-SHA256 of the body.
const SignatureHeader = "X-Namecrawl-Signature"

// Event is the payload sent to webhook endpoints.
type Event struct {
	Type      string `json:"type"`
	Dataset   string `json:"dataset"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data"`
}

// retryDelays are the waits before each delivery attempt of an async event.
var retryDelays = []time.Duration{0, 1 * time.Second, 5 * time.Second, 30 * time.Second}

// Deliver sends a webhook event synchronously.
// The request body is signed with HMAC-SHA256 if secret is non-empty.
func Deliver(ctx context.Context, url, secret string, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Namecrawl-Webhook/1.0")

	if secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(secret, body))
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Notifier turns crawl events into webhook deliveries. Partition events are
// delivered in the background with retries; the run event is delivered
// before Observe returns so a CLI run does not exit ahead of it.
type Notifier struct {
	url    string
	secret string
	wg     sync.WaitGroup
}

// NewNotifier returns nil when url is empty, which Observe tolerates.
func NewNotifier(url, secret string) *Notifier {
	if url == "" {
		return nil
	}
	return &Notifier{url: url, secret: secret}
}

func (n *Notifier) Observe(e crawl.Event) {
	if n == nil {
		return
	}

	switch e.Type {
	case crawl.EventPartitionFinished:
		if e.Result == nil {
			return
		}
		typ := TypePartitionCompleted
		if e.Result.State == models.StateAbandoned {
			typ = TypePartitionAbandoned
		}
		n.deliverAsync(&Event{Type: typ, Dataset: e.Dataset, Timestamp: e.Time.Unix(), Data: e.Result})

	case crawl.EventRunFinished:
		ev := &Event{Type: TypeRunCompleted, Dataset: e.Dataset, Timestamp: e.Time.Unix(), Data: e.Summary}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := Deliver(ctx, n.url, n.secret, ev); err != nil {
			slog.Warn("webhook delivery failed", "url", n.url, "event", ev.Type, "dataset", ev.Dataset, "error", err)
			return
		}
		slog.Info("webhook delivered", "url", n.url, "event", ev.Type, "dataset", ev.Dataset)
	}
}

// Wait blocks until background deliveries finish or ctx is done.
func (n *Notifier) Wait(ctx context.Context) error {
	if n == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Notifier) deliverAsync(event *Event) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for attempt, delay := range retryDelays {
			if delay > 0 {
				time.Sleep(delay)
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			err := Deliver(ctx, n.url, n.secret, event)
			cancel()
			if err == nil {
				slog.Info("webhook delivered",
					"url", n.url,
					"event", event.Type,
					"dataset", event.Dataset,
					"attempt", attempt+1,
				)
				return
			}
			slog.Warn("webhook delivery failed",
				"url", n.url,
				"event", event.Type,
				"dataset", event.Dataset,
				"attempt", attempt+1,
				"error", err,
			)
		}
		slog.Error("webhook delivery exhausted all retries",
			"url", n.url,
			"event", event.Type,
			"dataset", event.Dataset,
		)
	}()
}
