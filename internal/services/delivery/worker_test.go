package delivery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"loopgate/internal/domain/webhook"
)

type memLocker struct {
	held     map[string]bool
	acquires int
}

func newMemLocker() *memLocker {
	return &memLocker{held: map[string]bool{}}
}

func (l *memLocker) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.acquires++
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func (l *memLocker) Release(_ context.Context, key string) error {
	delete(l.held, key)
	return nil
}

func TestWorkerDispatchesDueEvents(t *testing.T) {
	delivered := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered++
	}))
	defer srv.Close()

	repo := newMemRepo()
	d := testDeliverer(repo, time.Now().UTC())
	locker := newMemLocker()
	w := NewWorker(repo, d, locker, time.Second, 10)

	if _, err := d.Enqueue(context.Background(), "m_1", srv.URL, "whsec", map[string]any{"n": 1}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if _, err := d.Enqueue(context.Background(), "m_1", srv.URL, "whsec", map[string]any{"n": 2}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	if err := w.dispatchDue(context.Background()); err != nil {
		t.Fatalf("dispatchDue: %v", err)
	}

	if delivered != 2 {
		t.Errorf("delivered = %d, want 2", delivered)
	}
	if locker.acquires != 2 {
		t.Errorf("lock acquires = %d, want 2", locker.acquires)
	}
	if len(locker.held) != 0 {
		t.Errorf("locks still held after dispatch: %v", locker.held)
	}
	for _, evt := range repo.saved {
		if evt.Status != webhook.StatusDelivered {
			t.Errorf("event %s status = %s, want delivered", evt.ID, evt.Status)
		}
	}
}

func TestWorkerSkipsLockedEvents(t *testing.T) {
	delivered := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered++
	}))
	defer srv.Close()

	repo := newMemRepo()
	d := testDeliverer(repo, time.Now().UTC())
	locker := newMemLocker()
	w := NewWorker(repo, d, locker, time.Second, 10)

	evt, err := d.Enqueue(context.Background(), "m_1", srv.URL, "", nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	// Simulate another instance holding the event's lock.
	locker.held["webhook:deliver:"+evt.ID] = true

	if err := w.dispatchDue(context.Background()); err != nil {
		t.Fatalf("dispatchDue: %v", err)
	}
	if delivered != 0 {
		t.Errorf("delivered = %d, want 0 while lock is held elsewhere", delivered)
	}
	if evt.Attempts != 0 {
		t.Errorf("attempts = %d, want 0", evt.Attempts)
	}
}

func TestWorkerLeavesFutureEvents(t *testing.T) {
	delivered := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		delivered++
	}))
	defer srv.Close()

	repo := newMemRepo()
	d := testDeliverer(repo, time.Now().UTC())
	w := NewWorker(repo, d, nil, time.Second, 10)

	evt, err := d.Enqueue(context.Background(), "m_1", srv.URL, "", nil)
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	future := time.Now().UTC().Add(time.Hour)
	evt.NextRetryAt = &future
	_ = repo.Update(context.Background(), evt)

	if err := w.dispatchDue(context.Background()); err != nil {
		t.Fatalf("dispatchDue: %v", err)
	}
	if delivered != 0 {
		t.Errorf("delivered = %d, want 0 for a not-yet-due event", delivered)
	}
}
