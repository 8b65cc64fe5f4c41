package delivery

import (
	"context"
	"time"

	"loopgate/internal/domain/webhook"
	"loopgate/internal/store/repositories"

	"github.com/rs/zerolog/log"
)

const lockTTL = deliveryTimeout + 15*time.Second

// Worker is the external scheduler around the delivery engine: it polls
// the store for events whose next attempt is due and dispatches them,
// one attempt per event per tick, serialized per event id by the locker.
type Worker struct {
	events    repositories.WebhookEventRepository
	deliverer *Deliverer
	locker    Locker
	pollEvery time.Duration
	batchSize int
}

// NewWorker creates a dispatch worker. A nil locker disables cross-
// instance serialization and is only safe with a single worker.
func NewWorker(events repositories.WebhookEventRepository, deliverer *Deliverer, locker Locker, pollEvery time.Duration, batchSize int) *Worker {
	if pollEvery == 0 {
		pollEvery = 2 * time.Second
	}
	if batchSize == 0 {
		batchSize = 50
	}
	return &Worker{
		events:    events,
		deliverer: deliverer,
		locker:    locker,
		pollEvery: pollEvery,
		batchSize: batchSize,
	}
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	log.Info().
		Dur("poll_every", w.pollEvery).
		Int("batch_size", w.batchSize).
		Msg("webhook dispatch worker started")

	t := time.NewTicker(w.pollEvery)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("webhook dispatch worker stopping")
			return
		case <-t.C:
			if err := w.dispatchDue(ctx); err != nil {
				log.Error().Err(err).Msg("webhook dispatch tick failed")
			}
		}
	}
}

func (w *Worker) dispatchDue(ctx context.Context) error {
	due, err := w.events.FindDue(ctx, time.Now().UTC(), w.batchSize)
	if err != nil {
		return err
	}
	for _, evt := range due {
		w.dispatchOne(ctx, evt)
	}
	return nil
}

func (w *Worker) dispatchOne(ctx context.Context, evt *webhook.Event) {
	if w.locker != nil {
		key := "webhook:deliver:" + evt.ID
		ok, err := w.locker.Acquire(ctx, key, lockTTL)
		if err != nil {
			log.Error().Err(err).Str("event_id", evt.ID).Msg("delivery lock acquire failed")
			return
		}
		if !ok {
			// Another instance owns this event right now.
			return
		}
		defer func() {
			if err := w.locker.Release(ctx, key); err != nil {
				log.Warn().Err(err).Str("event_id", evt.ID).Msg("delivery lock release failed")
			}
		}()
	}

	if _, err := w.deliverer.Deliver(ctx, evt); err != nil {
		log.Error().Err(err).Str("event_id", evt.ID).Msg("delivery attempt errored")
	}
}
