package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"classroom-economy/services"
)

// RosterSyncer is what the worker writes into.
type RosterSyncer interface {
	SyncRoster(ctx context.Context, entries []services.RosterEntry) (int, error)
}

type rosterChangesResponse struct {
	Users []services.RosterEntry `json:"users"`
}

// RosterSyncWorker mirrors display names and the leadership attribute from the school
// roster service.
type RosterSyncWorker struct {
	target       RosterSyncer
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
	lastSync     time.Time
}

func NewRosterSyncWorker(target RosterSyncer, baseURL, endpointPath, serviceToken string, interval time.Duration, client *http.Client) *RosterSyncWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &RosterSyncWorker{
		target:       target,
		interval:     interval,
		baseURL:      baseURL,
		endpointPath: endpointPath,
		serviceToken: serviceToken,
		httpClient:   client,
	}
}

func (w *RosterSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 [SYNC] Starting roster sync worker (roster service → users)…")
	go w.run(ctx)
}

func (w *RosterSyncWorker) run(ctx context.Context) {
	// Initial sync backfills everything
	if err := w.SyncOnce(ctx); err != nil {
		log.Printf("⚠️ [SYNC] Initial sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.SyncOnce(ctx); err != nil {
				log.Printf("❌ [SYNC] Sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ [SYNC] Roster sync worker stopped")
			return
		}
	}
}

// SyncOnce fetches roster changes since the last successful pass and applies them.
func (w *RosterSyncWorker) SyncOnce(ctx context.Context) error {
	started := time.Now().UTC()
	entries, err := w.fetch(ctx, w.lastSync)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		w.lastSync = started
		return nil
	}
	n, err := w.target.SyncRoster(ctx, entries)
	if err != nil {
		// keep lastSync so the same window is retried
		return fmt.Errorf("apply roster: %w", err)
	}
	w.lastSync = started
	log.Printf("✅ [SYNC] Received %d roster entr(ies), %d changed", len(entries), n)
	return nil
}

func (w *RosterSyncWorker) fetch(ctx context.Context, since time.Time) ([]services.RosterEntry, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid roster service URL '%s': %w", w.baseURL, err)
	}
	endpointURL := base.JoinPath(w.endpointPath)
	q := endpointURL.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpointURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpointURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to roster service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("roster service returned status %d: %s", resp.StatusCode, string(body))
	}

	var out rosterChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode roster response: %w", err)
	}
	return out.Users, nil
}
