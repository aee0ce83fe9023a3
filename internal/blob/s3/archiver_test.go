package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

type fakeWriter struct {
	path      string
	body      []byte
	multipart bool
	err       error
}

func (w *fakeWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if w.err != nil {
		return w.err
	}
	w.path = path
	w.body, _ = io.ReadAll(data)
	return nil
}

func (w *fakeWriter) PutMultipart(_ context.Context, path string, data io.Reader, _ int64) error {
	w.multipart = true
	return w.Put(context.Background(), path, data, "")
}

type fakeAlerts struct {
	domain.AlertStore
	recs    []domain.AlertRecord
	deleted time.Time
}

func (f *fakeAlerts) ListBefore(_ context.Context, before time.Time, _ int) ([]domain.AlertRecord, error) {
	var out []domain.AlertRecord
	for _, r := range f.recs {
		if r.DetectedAt.Before(before) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeAlerts) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	f.deleted = before
	var n int64
	for _, r := range f.recs {
		if r.DetectedAt.Before(before) {
			n++
		}
	}
	return n, nil
}

func alertAt(id string, at time.Time) domain.AlertRecord {
	return domain.AlertRecord{
		ID: id, Pair: "BTC", ComparisonID: "mexc-kyber", Direction: domain.DirectionBuy,
		Level: domain.LevelHigh, PrevLevel: domain.LevelNone,
		Spread: decimal.RequireFromString("1.25"), DetectedAt: at,
	}
}

func TestArchiveAlerts(t *testing.T) {
	cutoff := time.Date(2026, 9, 19, 0, 0, 0, 0, time.UTC)
	store := &fakeAlerts{recs: []domain.AlertRecord{
		alertAt("a", cutoff.Add(-48*time.Hour)),
		alertAt("b", cutoff.Add(-time.Hour)),
		alertAt("c", cutoff.Add(time.Hour)),
	}}
	w := &fakeWriter{}
	a := NewArchiver(w, store)
	a.now = func() time.Time { return time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC) }

	n, err := a.ArchiveAlerts(context.Background(), cutoff)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.Equal(t, cutoff, store.deleted)
	assert.Equal(t, "archive/alerts/2026-09-19/20261019T030000Z.jsonl", w.path)
	assert.False(t, w.multipart)

	var ids []string
	sc := bufio.NewScanner(bytes.NewReader(w.body))
	for sc.Scan() {
		var rec domain.AlertRecord
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		ids = append(ids, rec.ID)
		assert.Equal(t, domain.LevelHigh, rec.Level)
	}
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestArchiveAlertsNothingOld(t *testing.T) {
	store := &fakeAlerts{}
	w := &fakeWriter{}
	n, err := NewArchiver(w, store).ArchiveAlerts(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, w.path)
	assert.True(t, store.deleted.IsZero())
}

func TestArchiveAlertsUploadFailureKeepsRows(t *testing.T) {
	cutoff := time.Now()
	store := &fakeAlerts{recs: []domain.AlertRecord{alertAt("a", cutoff.Add(-time.Hour))}}
	w := &fakeWriter{err: errors.New("bucket gone")}

	_, err := NewArchiver(w, store).ArchiveAlerts(context.Background(), cutoff)
	require.Error(t, err)
	assert.True(t, store.deleted.IsZero())
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("minio:9000", true))
	assert.Equal(t, "http://localhost:9000", normaliseEndpoint("http://localhost:9000", true))
	assert.Equal(t, "https://s3.amazonaws.com", normaliseEndpoint("s3.amazonaws.com", true))
	assert.Equal(t, "http://10.0.0.5:9000", normaliseEndpoint("10.0.0.5:9000", false))
}

func TestArchivePath(t *testing.T) {
	before := time.Date(2026, 9, 19, 0, 0, 0, 0, time.UTC)
	now := time.Date(2026, 10, 19, 3, 0, 0, 0, time.UTC)
	assert.Equal(t, "archive/alerts/2026-09-19/20261019T030000Z.jsonl", archivePath("alerts", before, now))
}
