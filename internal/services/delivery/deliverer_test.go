package delivery

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"loopgate/internal/domain/webhook"
	"loopgate/internal/signature"
)

type memRepo struct {
	saved   map[string]*webhook.Event
	updates int
}

func newMemRepo() *memRepo {
	return &memRepo{saved: map[string]*webhook.Event{}}
}

func (r *memRepo) Save(_ context.Context, evt *webhook.Event) error {
	r.saved[evt.ID] = evt
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id string) (*webhook.Event, error) {
	return r.saved[id], nil
}

func (r *memRepo) FindDue(_ context.Context, now time.Time, limit int) ([]*webhook.Event, error) {
	var due []*webhook.Event
	for _, evt := range r.saved {
		if evt.Status == webhook.StatusPending && evt.NextRetryAt != nil && !evt.NextRetryAt.After(now) {
			due = append(due, evt)
		}
	}
	return due, nil
}

func (r *memRepo) Update(_ context.Context, evt *webhook.Event) error {
	r.updates++
	r.saved[evt.ID] = evt
	return nil
}

func testDeliverer(repo *memRepo, at time.Time) *Deliverer {
	d := NewDeliverer(repo)
	d.now = func() time.Time { return at }
	return d
}

func newEvent(t *testing.T, url, secret string) *webhook.Event {
	t.Helper()
	evt, err := webhook.NewEvent("m_1", url, secret, map[string]any{"event": "payment.captured", "order_id": "order_1"})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}
	return evt
}

func TestRetryDelaySchedule(t *testing.T) {
	want := []time.Duration{
		60 * time.Second,
		120 * time.Second,
		240 * time.Second,
		480 * time.Second,
		960 * time.Second,
	}
	for i, w := range want {
		if got := retryDelay(i + 1); got != w {
			t.Errorf("retryDelay(%d) = %v, want %v", i+1, got, w)
		}
	}
}

func TestRetryDelayCap(t *testing.T) {
	for _, attempts := range []int{11, 20, 100} {
		if got := retryDelay(attempts); got > maxDelay {
			t.Errorf("retryDelay(%d) = %v exceeds the 24h cap", attempts, got)
		}
	}
	if got := retryDelay(60); got != maxDelay {
		t.Errorf("retryDelay(60) = %v, want the cap %v", got, maxDelay)
	}
}

func TestDeliverSuccessSigned(t *testing.T) {
	var gotHeaders http.Header
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	d := testDeliverer(repo, now)
	evt := newEvent(t, srv.URL, "whsec_test")

	res, err := d.Deliver(context.Background(), evt)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if !res.Delivered || res.Attempt != 1 || res.StatusCode != 200 {
		t.Errorf("result = %+v", res)
	}
	if evt.Status != webhook.StatusDelivered || evt.DeliveredAt == nil || evt.NextRetryAt != nil {
		t.Errorf("event after delivery = %+v", evt)
	}
	if repo.updates != 1 {
		t.Errorf("repo updates = %d, want 1", repo.updates)
	}

	if got := gotHeaders.Get(HeaderEventID); got != evt.ID {
		t.Errorf("%s = %q, want %q", HeaderEventID, got, evt.ID)
	}
	tsHeader := gotHeaders.Get(HeaderTimestamp)
	if tsHeader != strconv.FormatInt(now.UnixMilli(), 10) {
		t.Errorf("%s = %q", HeaderTimestamp, tsHeader)
	}
	sigHeader := gotHeaders.Get(HeaderSignature)
	if !strings.HasPrefix(sigHeader, "v1=") {
		t.Fatalf("%s = %q, want v1= prefix", HeaderSignature, sigHeader)
	}
	// The signature must verify against the exact body that was sent.
	ts, _ := strconv.ParseInt(tsHeader, 10, 64)
	if want := signature.SignOutbound(ts, gotBody, "whsec_test"); sigHeader != "v1="+want {
		t.Errorf("signature = %q, want v1=%s", sigHeader, want)
	}

	var payload map[string]any
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("body is not JSON: %v", err)
	}
	if payload["order_id"] != "order_1" {
		t.Errorf("payload = %v", payload)
	}
}

func TestDeliverUnsignedWhenNoSecret(t *testing.T) {
	var gotHeaders http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
	}))
	defer srv.Close()

	repo := newMemRepo()
	d := testDeliverer(repo, time.Now().UTC())
	evt := newEvent(t, srv.URL, "")

	if _, err := d.Deliver(context.Background(), evt); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if gotHeaders.Get(HeaderSignature) != "" || gotHeaders.Get(HeaderTimestamp) != "" {
		t.Error("unsigned delivery must not carry signature headers")
	}
	if gotHeaders.Get(HeaderEventID) == "" {
		t.Error("event id header is always set")
	}
}

func TestDeliverRetrySchedule(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	repo := newMemRepo()
	d := testDeliverer(repo, now)
	evt := newEvent(t, srv.URL, "whsec_test")

	wantDelays := []time.Duration{60 * time.Second, 120 * time.Second, 240 * time.Second, 480 * time.Second}
	for i, delay := range wantDelays {
		res, err := d.Deliver(context.Background(), evt)
		if err != nil {
			t.Fatalf("Deliver attempt %d: %v", i+1, err)
		}
		if res.Delivered {
			t.Fatalf("attempt %d unexpectedly delivered", i+1)
		}
		if evt.Attempts != i+1 {
			t.Fatalf("attempts = %d, want %d", evt.Attempts, i+1)
		}
		if evt.Status != webhook.StatusPending {
			t.Fatalf("status after attempt %d = %s, want pending", i+1, evt.Status)
		}
		if evt.NextRetryAt == nil || !evt.NextRetryAt.Equal(now.Add(delay)) {
			t.Fatalf("nextRetryAt after attempt %d = %v, want %v", i+1, evt.NextRetryAt, now.Add(delay))
		}
	}

	// Fifth consecutive failure exhausts the ceiling.
	res, err := d.Deliver(context.Background(), evt)
	if err != nil {
		t.Fatalf("Deliver attempt 5: %v", err)
	}
	if res.Delivered || res.NextRetryAt != nil {
		t.Errorf("result = %+v", res)
	}
	if evt.Status != webhook.StatusFailed || evt.NextRetryAt != nil {
		t.Errorf("event after exhaustion = status %s nextRetryAt %v", evt.Status, evt.NextRetryAt)
	}
	if evt.Attempts != MaxAttempts {
		t.Errorf("attempts = %d, want %d", evt.Attempts, MaxAttempts)
	}

	// Terminal events accept no further attempts.
	if _, err := d.Deliver(context.Background(), evt); err == nil {
		t.Error("expected error delivering a failed event")
	}
}

func TestDeliverNetworkErrorCountsAsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	now := time.Now().UTC()
	repo := newMemRepo()
	d := testDeliverer(repo, now)
	evt := newEvent(t, srv.URL, "")

	res, err := d.Deliver(context.Background(), evt)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if res.Delivered || res.Error == "" {
		t.Errorf("result = %+v, want failure with error detail", res)
	}
	if evt.Attempts != 1 || evt.Status != webhook.StatusPending {
		t.Errorf("event = attempts %d status %s", evt.Attempts, evt.Status)
	}
}

func TestDeliverCancelledContextStillCounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	repo := newMemRepo()
	d := testDeliverer(repo, time.Now().UTC())
	evt := newEvent(t, srv.URL, "")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res, err := d.Deliver(ctx, evt)
	if err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if res.Delivered {
		t.Error("cancelled delivery must not report success")
	}
	// The abandoned attempt counts and its outcome is persisted despite
	// the dead caller context.
	if evt.Attempts != 1 {
		t.Errorf("attempts = %d, want 1", evt.Attempts)
	}
	if repo.updates != 1 {
		t.Errorf("repo updates = %d, want 1", repo.updates)
	}
}

func TestEnqueue(t *testing.T) {
	repo := newMemRepo()
	now := time.Now().UTC()
	d := testDeliverer(repo, now)

	evt, err := d.Enqueue(context.Background(), "m_1", "https://merchant.example/hook", "whsec", map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if evt.Status != webhook.StatusPending || evt.NextRetryAt == nil {
		t.Errorf("enqueued event = %+v", evt)
	}
	if repo.saved[evt.ID] == nil {
		t.Error("event not persisted")
	}

	due, _ := repo.FindDue(context.Background(), now, 10)
	if len(due) != 1 {
		t.Errorf("due events = %d, want 1 (immediately due)", len(due))
	}
}
