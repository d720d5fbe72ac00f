package workers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"classroom-economy/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	mu      sync.Mutex
	batches []int
	calls   int
	kicks   chan struct{}
	fail    error
}

func (d *fakeDispatcher) DispatchPending(context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls++
	if d.fail != nil {
		return 0, d.fail
	}
	if len(d.batches) == 0 {
		return 0, nil
	}
	n := d.batches[0]
	d.batches = d.batches[1:]
	return n, nil
}

func (d *fakeDispatcher) Kicks() <-chan struct{} { return d.kicks }

func (d *fakeDispatcher) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func TestDrain_StopsWhenBacklogIsEmpty(t *testing.T) {
	d := &fakeDispatcher{batches: []int{100, 100, 3}}
	drain(context.Background(), d)
	assert.Equal(t, 4, d.calls)
}

func TestDrain_StopsOnError(t *testing.T) {
	d := &fakeDispatcher{fail: errors.New("db down")}
	drain(context.Background(), d)
	assert.Equal(t, 1, d.calls)
}

func TestPollOutbox_RunsOnKick(t *testing.T) {
	d := &fakeDispatcher{kicks: make(chan struct{}, 1), batches: []int{1}}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		PollOutbox(ctx, d, time.Hour)
		close(done)
	}()

	d.kicks <- struct{}{}
	assert.Eventually(t, func() bool { return d.callCount() >= 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PollOutbox did not stop")
	}
}

type fakeRoster struct {
	mu      sync.Mutex
	entries []services.RosterEntry
	fail    error
}

func (f *fakeRoster) SyncRoster(_ context.Context, entries []services.RosterEntry) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return 0, f.fail
	}
	f.entries = append(f.entries, entries...)
	return len(entries), nil
}

func TestRosterSync_SyncOnce(t *testing.T) {
	var token, since string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = r.Header.Get("X-Service-Token")
		since = r.URL.Query().Get("since")
		assert.Equal(t, "/internal/roster/changes", r.URL.Path)
		_ = json.NewEncoder(w).Encode(rosterChangesResponse{Users: []services.RosterEntry{
			{ID: "u1", DisplayName: "Eva", Leadership: 4},
		}})
	}))
	defer srv.Close()

	target := &fakeRoster{}
	w := NewRosterSyncWorker(target, srv.URL, "/internal/roster/changes", "svc", time.Minute, srv.Client())

	require.NoError(t, w.SyncOnce(context.Background()))
	assert.Equal(t, "svc", token)
	assert.Equal(t, time.Time{}.Format(time.RFC3339), since)
	require.Len(t, target.entries, 1)
	assert.Equal(t, 4, target.entries[0].Leadership)
	assert.False(t, w.lastSync.IsZero())
}

func TestRosterSync_FailureKeepsWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(rosterChangesResponse{Users: []services.RosterEntry{{ID: "u1"}}})
	}))
	defer srv.Close()

	w := NewRosterSyncWorker(&fakeRoster{fail: errors.New("tx failed")}, srv.URL, "/changes", "svc", 0, nil)
	assert.Error(t, w.SyncOnce(context.Background()))
	assert.True(t, w.lastSync.IsZero())
}

func TestRosterSync_BadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	w := NewRosterSyncWorker(&fakeRoster{}, srv.URL, "/changes", "svc", 0, nil)
	err := w.SyncOnce(context.Background())
	assert.ErrorContains(t, err, "403")
}
