package services

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"classroom-economy/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memUploader struct {
	objects     map[string][]byte
	contentType string
	fail        error
}

func (u *memUploader) Upload(_ context.Context, key string, body []byte, contentType string) error {
	if u.fail != nil {
		return u.fail
	}
	if u.objects == nil {
		u.objects = map[string][]byte{}
	}
	u.objects[key] = append([]byte(nil), body...)
	u.contentType = contentType
	return nil
}

func TestArchiveKey(t *testing.T) {
	assert.Equal(t, "ledger/2026/03/09.jsonl", ArchiveKey(time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)))
}

func TestArchiveYesterday(t *testing.T) {
	f := newFixture(t)
	op, a, b := f.operator(), f.student(), f.student()
	up := &memUploader{}
	archiver := NewLedgerArchiver(f.core, up)

	f.grant(op, a, 10)
	f.grant(op, b, 20)
	f.advanceDays(1)
	f.grant(op, a, 30)

	n, err := archiver.ArchiveYesterday(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "application/x-ndjson", up.contentType)

	body, ok := up.objects["ledger/2026/03/10.jsonl"]
	require.True(t, ok)
	var amounts []int64
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		var g models.RewardGrant
		require.NoError(t, json.Unmarshal(sc.Bytes(), &g))
		amounts = append(amounts, g.TotalAmount)
	}
	assert.Equal(t, []int64{10, 20}, amounts)
}

func TestArchiveDay_EmptyDayStillUploads(t *testing.T) {
	f := newFixture(t)
	up := &memUploader{}

	n, err := NewLedgerArchiver(f.core, up).ArchiveDay(f.ctx, f.core.Today())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Contains(t, up.objects, "ledger/2026/03/10.jsonl")
}

func TestArchiveDay_UploadFailure(t *testing.T) {
	f := newFixture(t)
	up := &memUploader{fail: errors.New("bucket gone")}

	_, err := NewLedgerArchiver(f.core, up).ArchiveDay(f.ctx, f.core.Today())
	assert.ErrorContains(t, err, "bucket gone")
}
