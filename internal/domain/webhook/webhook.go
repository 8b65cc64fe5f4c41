package webhook

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the delivery lifecycle state of an outbound event.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Event is an outbound merchant notification owned by the delivery
// subsystem for the duration of its retry lifecycle. Once the status is
// delivered or failed the record is immutable.
type Event struct {
	ID             string
	MerchantID     string
	Payload        map[string]any
	DestinationURL string
	Secret         string // empty means the destination opted out of signing
	Status         Status
	Attempts       int
	LastAttemptAt  *time.Time
	NextRetryAt    *time.Time
	DeliveredAt    *time.Time
	CreatedAt      time.Time
}

// NewEvent creates a pending event ready for its first delivery attempt.
func NewEvent(merchantID, destinationURL, secret string, payload map[string]any) (*Event, error) {
	if strings.TrimSpace(merchantID) == "" {
		return nil, fmt.Errorf("merchant ID is required")
	}
	u, err := url.Parse(destinationURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid destination URL %q", destinationURL)
	}
	if payload == nil {
		payload = map[string]any{}
	}

	return &Event{
		ID:             uuid.NewString(),
		MerchantID:     merchantID,
		Payload:        payload,
		DestinationURL: destinationURL,
		Secret:         secret,
		Status:         StatusPending,
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// IsTerminal reports whether the event has finished its lifecycle.
func (e *Event) IsTerminal() bool {
	return e.Status == StatusDelivered || e.Status == StatusFailed
}

// BeginAttempt records that a delivery attempt is being made.
func (e *Event) BeginAttempt(now time.Time) error {
	if e.IsTerminal() {
		return fmt.Errorf("event %s is %s, no further attempts allowed", e.ID, e.Status)
	}
	e.Attempts++
	e.LastAttemptAt = &now
	return nil
}

// MarkDelivered finalizes the event after a successful delivery.
func (e *Event) MarkDelivered(now time.Time) {
	e.Status = StatusDelivered
	e.DeliveredAt = &now
	e.NextRetryAt = nil
}

// ScheduleRetry keeps the event pending and records when the next
// attempt becomes due. The wakeup itself is the poller's job.
func (e *Event) ScheduleRetry(now time.Time, delay time.Duration) {
	e.Status = StatusPending
	next := now.Add(delay)
	e.NextRetryAt = &next
}

// MarkExhausted finalizes the event after the attempt ceiling is hit.
func (e *Event) MarkExhausted() {
	e.Status = StatusFailed
	e.NextRetryAt = nil
}
