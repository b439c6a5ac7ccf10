// Package delivery posts engine events to subscribed outbound webhooks.
// The dispatcher hangs off the event bus and drives deliveries through a
// bounded worker pool, retrying with linear backoff and logging every
// attempt.
package delivery

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/synchub/backend/internal/domain/conflict"
	"github.com/synchub/backend/internal/domain/connection"
	"github.com/synchub/backend/internal/domain/shared"
	syncdomain "github.com/synchub/backend/internal/domain/sync"
	"github.com/synchub/backend/internal/domain/webhook"
	"github.com/synchub/backend/internal/infrastructure/telemetry"
)

// Config holds the dispatcher configuration
type Config struct {
	// Workers is the size of the delivery worker pool
	Workers int
	// QueueSize bounds the pending delivery queue
	QueueSize int
}

// DefaultConfig returns the default dispatcher configuration
func DefaultConfig() Config {
	return Config{Workers: 3, QueueSize: 256}
}

// maxResponseBody bounds how much of a target's response is read back
const maxResponseBody = 64 * 1024

// envelope is the default payload shape when no template is configured
type envelope struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	OccurredAt time.Time          `json:"occurred_at"`
	TenantID   string             `json:"tenant_id"`
	Data       shared.DomainEvent `json:"data"`
}

type task struct {
	webhook *webhook.Webhook
	event   shared.DomainEvent
}

// DeliveryObserver receives the terminal outcome of each delivery.
// EngineMetrics implements it; a nil observer disables the counters.
type DeliveryObserver interface {
	RecordWebhookDelivery(ctx context.Context, tenantID uuid.UUID, eventType string, outcome telemetry.DeliveryOutcome)
}

// Dispatcher fans engine events out to subscribed outbound webhooks
type Dispatcher struct {
	config   Config
	webhooks webhook.Repository
	logs     webhook.DeliveryLogRepository
	secrets  connection.SecretStore
	client   *http.Client
	logger   *zap.Logger
	observer DeliveryObserver

	queue     chan task
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	now func() time.Time
}

// NewDispatcher creates the dispatcher. Subscribe it on the event bus and
// call Start before publishing.
func NewDispatcher(
	config Config,
	webhooks webhook.Repository,
	logs webhook.DeliveryLogRepository,
	secrets connection.SecretStore,
	logger *zap.Logger,
) *Dispatcher {
	if config.Workers <= 0 {
		config.Workers = DefaultConfig().Workers
	}
	if config.QueueSize <= 0 {
		config.QueueSize = DefaultConfig().QueueSize
	}
	return &Dispatcher{
		config:   config,
		webhooks: webhooks,
		logs:     logs,
		secrets:  secrets,
		client:   &http.Client{},
		logger:   logger,
		queue:    make(chan task, config.QueueSize),
		now:      time.Now,
	}
}

// EventTypes lists the engine events outbound webhooks can subscribe to
func (d *Dispatcher) EventTypes() []string {
	return []string{
		syncdomain.EventExecutionCompleted,
		syncdomain.EventExecutionFailed,
		conflict.EventRaised,
		conflict.EventResolved,
		connection.EventStatusChanged,
		webhook.EventReceived,
	}
}

// Handle matches the event against the tenant's subscribed webhooks and
// queues one delivery per match. Never blocks the publisher: a full queue
// drops the delivery with a logged failure.
func (d *Dispatcher) Handle(ctx context.Context, event shared.DomainEvent) error {
	d.mu.Lock()
	running := d.isRunning
	d.mu.Unlock()
	if !running {
		return nil
	}

	hooks, err := d.webhooks.FindSubscribed(ctx, event.TenantID(), event.EventType())
	if err != nil {
		return fmt.Errorf("find subscribed webhooks: %w", err)
	}

	// Enqueue under the lock so Stop cannot close the queue between the
	// running check and the send. The sends never block, so the critical
	// section stays short; outcome writes happen after release.
	var dropped []*webhook.Webhook
	d.mu.Lock()
	if !d.isRunning {
		d.mu.Unlock()
		return nil
	}
	for _, w := range hooks {
		if !w.Deliverable() {
			continue
		}
		select {
		case d.queue <- task{webhook: w, event: event}:
		default:
			dropped = append(dropped, w)
		}
	}
	d.mu.Unlock()

	for _, w := range dropped {
		d.logger.Warn("Webhook delivery dropped: queue full",
			zap.String("webhook_id", w.ID.String()),
			zap.String("event_type", event.EventType()),
		)
		if err := d.webhooks.RecordOutcome(ctx, w.ID, false, "delivery queue full"); err != nil {
			d.logger.Warn("Failed to record dropped delivery",
				zap.String("webhook_id", w.ID.String()), zap.Error(err))
		}
	}
	return nil
}

// Start launches the delivery workers
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.isRunning {
		d.mu.Unlock()
		return nil
	}
	d.isRunning = true
	d.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	for i := 0; i < d.config.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}

	d.logger.Info("Webhook dispatcher started", zap.Int("workers", d.config.Workers))
	return nil
}

// Stop gracefully stops the dispatcher, waiting for in-flight deliveries
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.isRunning {
		d.mu.Unlock()
		return nil
	}
	d.isRunning = false
	if d.cancel != nil {
		d.cancel()
	}
	// Close under the lock; Handle enqueues while holding it.
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("Webhook dispatcher stopped gracefully")
		return nil
	case <-ctx.Done():
		d.logger.Warn("Webhook dispatcher stop timed out")
		return ctx.Err()
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case t, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, t)
		}
	}
}

// deliver posts one event to one webhook, retrying with linear backoff.
// Every attempt is logged; the aggregate counters record the final outcome.
func (d *Dispatcher) deliver(ctx context.Context, t task) {
	w := t.webhook

	body, err := d.renderPayload(w, t.event)
	if err != nil {
		d.logger.Error("Failed to render webhook payload",
			zap.String("webhook_id", w.ID.String()), zap.Error(err))
		d.recordOutcome(ctx, w, t.event.EventType(), false, err.Error())
		return
	}

	var lastErr string
	attempts := w.MaxRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		status, respBody, latency, err := d.post(ctx, w, body)

		success := err == nil && status >= 200 && status < 300
		errMsg := ""
		if err != nil {
			errMsg = err.Error()
		} else if !success {
			errMsg = fmt.Sprintf("target responded %d", status)
		}

		entry := webhook.NewDeliveryLog(w, t.event.EventType(), t.event.EventID().String(),
			attempt, string(body), status, respBody, latency, success, errMsg)
		if logErr := d.logs.Append(ctx, []*webhook.DeliveryLog{entry}); logErr != nil {
			d.logger.Warn("Failed to append delivery log",
				zap.String("webhook_id", w.ID.String()), zap.Error(logErr))
		}

		if success {
			d.recordOutcome(ctx, w, t.event.EventType(), true, "")
			return
		}
		lastErr = errMsg

		if attempt < attempts {
			backoff := time.Duration(w.RetryDelaySeconds*attempt) * time.Second
			select {
			case <-ctx.Done():
				d.recordOutcome(ctx, w, t.event.EventType(), false, lastErr)
				return
			case <-time.After(backoff):
			}
		}
	}

	d.logger.Warn("Webhook delivery exhausted retries",
		zap.String("webhook_id", w.ID.String()),
		zap.String("event_type", t.event.EventType()),
		zap.String("last_error", lastErr),
	)
	d.recordOutcome(ctx, w, t.event.EventType(), false, lastErr)
}

func (d *Dispatcher) recordOutcome(ctx context.Context, w *webhook.Webhook, eventType string, success bool, lastErr string) {
	if d.observer != nil {
		outcome := telemetry.DeliveryFailed
		if success {
			outcome = telemetry.DeliverySuccess
		}
		d.observer.RecordWebhookDelivery(context.WithoutCancel(ctx), w.TenantID, eventType, outcome)
	}
	if err := d.webhooks.RecordOutcome(context.WithoutCancel(ctx), w.ID, success, lastErr); err != nil {
		d.logger.Warn("Failed to record delivery outcome",
			zap.String("webhook_id", w.ID.String()), zap.Error(err))
	}
}

// SetObserver attaches the delivery outcome observer. Call before Start.
func (d *Dispatcher) SetObserver(obs DeliveryObserver) {
	d.observer = obs
}

// post performs one signed delivery attempt
func (d *Dispatcher) post(ctx context.Context, w *webhook.Webhook, body []byte) (status int, respBody string, latencyMs int64, err error) {
	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(w.TimeoutSeconds)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, w.TargetURL, bytes.NewReader(body))
	if err != nil {
		return 0, "", 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	if err := d.authenticate(reqCtx, w, req, body); err != nil {
		return 0, "", 0, err
	}

	start := d.now()
	resp, err := d.client.Do(req)
	latencyMs = d.now().Sub(start).Milliseconds()
	if err != nil {
		return 0, "", latencyMs, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, "", latencyMs, err
	}
	return resp.StatusCode, string(raw), latencyMs, nil
}

// authenticate applies the webhook's auth scheme to the outgoing request.
// Secrets are resolved just-in-time and never logged.
func (d *Dispatcher) authenticate(ctx context.Context, w *webhook.Webhook, req *http.Request, body []byte) error {
	if w.AuthType == webhook.AuthNone {
		return nil
	}

	creds, err := d.secrets.Get(ctx, w.TenantID, w.SecretRef)
	if err != nil {
		return fmt.Errorf("resolve webhook secret: %w", err)
	}

	switch w.AuthType {
	case webhook.AuthHMAC:
		sig := Sign(w.SignatureAlgorithm, creds[webhook.SecretKeySigning], body)
		req.Header.Set(w.SignatureHeader, sig)
	case webhook.AuthBearer:
		req.Header.Set("Authorization", "Bearer "+creds[webhook.SecretKeyToken])
	case webhook.AuthBasic:
		req.SetBasicAuth(creds[webhook.SecretKeyUsername], creds[webhook.SecretKeyPassword])
	}
	return nil
}

// Sign computes the hex HMAC of the body. Inbound verification uses the
// same function on the received raw body.
func Sign(algorithm webhook.SignatureAlgorithm, secret string, body []byte) string {
	var newHash func() hash.Hash
	switch algorithm {
	case webhook.SignatureHMACSHA1:
		newHash = sha1.New
	default:
		newHash = sha256.New
	}
	mac := hmac.New(newHash, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// renderPayload produces the request body: the webhook's template with
// placeholders substituted, or the default JSON envelope
func (d *Dispatcher) renderPayload(w *webhook.Webhook, event shared.DomainEvent) ([]byte, error) {
	if w.PayloadTemplate == "" {
		return json.Marshal(envelope{
			ID:         event.EventID().String(),
			Type:       event.EventType(),
			OccurredAt: event.OccurredAt(),
			TenantID:   event.TenantID().String(),
			Data:       event,
		})
	}

	raw, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	r := strings.NewReplacer(
		"{{id}}", event.EventID().String(),
		"{{type}}", event.EventType(),
		"{{occurred_at}}", event.OccurredAt().Format(time.RFC3339),
		"{{tenant_id}}", event.TenantID().String(),
		"{{event}}", string(raw),
	)
	return []byte(r.Replace(w.PayloadTemplate)), nil
}

var _ shared.EventHandler = (*Dispatcher)(nil)
