// Package delivery implements outbound webhook delivery: signed HTTP
// POSTs to merchant endpoints with bounded exponential-backoff retry.
// Retry scheduling is declarative: each failed attempt persists a
// next-retry timestamp and a poller re-invokes delivery when due, so
// the schedule survives process restarts.
package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"loopgate/internal/domain/webhook"
	"loopgate/internal/signature"
	"loopgate/internal/store/repositories"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const (
	// MaxAttempts is the retry ceiling: the attempt after which a still
	// undelivered event is marked permanently failed.
	MaxAttempts = 5

	baseDelay       = time.Minute
	maxDelay        = 24 * time.Hour
	deliveryTimeout = 30 * time.Second
)

// Outbound signing headers. The signature covers "{timestamp}.{body}".
const (
	HeaderTimestamp = "X-Loop-Timestamp"
	HeaderSignature = "X-Loop-Signature"
	HeaderEventID   = "X-Loop-Event-Id"
)

// Deliverer performs single-shot delivery attempts and persists the
// bookkeeping for each one. It holds no per-event state; callers must
// serialize concurrent attempts for the same event id.
type Deliverer struct {
	events repositories.WebhookEventRepository
	http   *http.Client
	now    func() time.Time
}

// NewDeliverer creates a delivery engine persisting through events.
func NewDeliverer(events repositories.WebhookEventRepository) *Deliverer {
	return &Deliverer{
		events: events,
		http:   &http.Client{Timeout: deliveryTimeout},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Result reports the outcome of one delivery attempt.
type Result struct {
	Delivered   bool
	Attempt     int
	StatusCode  int
	Error       string
	NextRetryAt *time.Time
}

// Enqueue creates and persists a pending event for the poller to pick up.
func (d *Deliverer) Enqueue(ctx context.Context, merchantID, destinationURL, secret string, payload map[string]any) (*webhook.Event, error) {
	evt, err := webhook.NewEvent(merchantID, destinationURL, secret, payload)
	if err != nil {
		return nil, err
	}
	now := d.now()
	evt.NextRetryAt = &now
	if err := d.events.Save(ctx, evt); err != nil {
		return nil, fmt.Errorf("save webhook event: %w", err)
	}
	log.Info().
		Str("event_id", evt.ID).
		Str("merchant_id", merchantID).
		Msg("webhook event enqueued")
	return evt, nil
}

// Deliver makes one delivery attempt for evt and persists the outcome.
// A non-2xx response, timeout, network error, or caller cancellation all
// count identically as a failed attempt; an abandoned attempt still
// advances the counter so retries stay bounded.
func (d *Deliverer) Deliver(ctx context.Context, evt *webhook.Event) (*Result, error) {
	now := d.now()
	if err := evt.BeginAttempt(now); err != nil {
		return nil, err
	}

	statusCode, attemptErr := d.post(ctx, evt, now)

	res := &Result{Attempt: evt.Attempts, StatusCode: statusCode}
	if attemptErr == nil {
		evt.MarkDelivered(now)
		res.Delivered = true
		log.Info().
			Str("event_id", evt.ID).
			Int("attempt", evt.Attempts).
			Int("status_code", statusCode).
			Msg("webhook delivered")
	} else {
		res.Error = attemptErr.Error()
		if evt.Attempts >= MaxAttempts {
			evt.MarkExhausted()
			log.Error().
				Str("event_id", evt.ID).
				Int("attempts", evt.Attempts).
				Str("error", res.Error).
				Msg("webhook delivery exhausted, giving up")
		} else {
			delay := retryDelay(evt.Attempts)
			evt.ScheduleRetry(now, delay)
			res.NextRetryAt = evt.NextRetryAt
			log.Warn().
				Str("event_id", evt.ID).
				Int("attempt", evt.Attempts).
				Dur("retry_in", delay).
				Str("error", res.Error).
				Msg("webhook delivery failed, retry scheduled")
		}
	}

	// Bookkeeping must land even when the caller's context is gone,
	// otherwise an abandoned attempt would not count toward the ceiling.
	if err := d.events.Update(context.WithoutCancel(ctx), evt); err != nil {
		return res, fmt.Errorf("persist delivery outcome for event %s: %w", evt.ID, err)
	}
	return res, nil
}

// post serializes the payload, signs it when a secret is configured, and
// issues the HTTP POST.
func (d *Deliverer) post(ctx context.Context, evt *webhook.Event, now time.Time) (int, error) {
	body, err := json.Marshal(evt.Payload)
	if err != nil {
		return 0, fmt.Errorf("marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, "POST", evt.DestinationURL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEventID, evt.ID)
	if evt.Secret != "" {
		ts := now.UnixMilli()
		req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
		req.Header.Set(HeaderSignature, "v1="+signature.SignOutbound(ts, body, evt.Secret))
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("destination responded %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

// retryDelay computes the backoff before the attempt after attemptsMade:
// one minute doubling per attempt, capped at 24 hours.
func retryDelay(attemptsMade int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseDelay
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = maxDelay
	b.MaxElapsedTime = 0
	b.Reset()

	d := b.NextBackOff()
	for i := 1; i < attemptsMade; i++ {
		d = b.NextBackOff()
	}
	return d
}
