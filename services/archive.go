package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"classroom-economy/models"
	"classroom-economy/store"
)

// Uploader stores an object under key.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte, contentType string) error
}

// LedgerArchiver exports one calendar day of grants as JSON lines.
type LedgerArchiver struct {
	core     *Core
	uploader Uploader
}

func NewLedgerArchiver(core *Core, uploader Uploader) *LedgerArchiver {
	return &LedgerArchiver{core: core, uploader: uploader}
}

// ArchiveKey is ledger/YYYY/MM/DD.jsonl.
func ArchiveKey(day time.Time) string {
	return fmt.Sprintf("ledger/%04d/%02d/%02d.jsonl", day.Year(), int(day.Month()), day.Day())
}

// ArchiveDay uploads every grant created on day (a calendar date in the core location)
// and returns how many were written.
func (a *LedgerArchiver) ArchiveDay(ctx context.Context, day time.Time) (int, error) {
	loc := a.core.Location
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	to := from.AddDate(0, 0, 1)

	var grants []models.RewardGrant
	err := a.core.read(ctx, func(tx store.Tx) error {
		var err error
		grants, err = tx.GrantsBetween(from, to)
		return err
	})
	if err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range grants {
		if err := enc.Encode(&grants[i]); err != nil {
			return 0, err
		}
	}
	key := ArchiveKey(day)
	if err := a.uploader.Upload(ctx, key, buf.Bytes(), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("upload %s: %w", key, err)
	}
	logf("Archive", "📦 wrote %d grant(s) to %s", len(grants), key)
	return len(grants), nil
}

// ArchiveYesterday is the nightly entry point.
func (a *LedgerArchiver) ArchiveYesterday(ctx context.Context) (int, error) {
	return a.ArchiveDay(ctx, a.core.Today().AddDate(0, 0, -1))
}
