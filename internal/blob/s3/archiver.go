package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

const (
	contentTypeJSONL = "application/x-ndjson"

	// multipartThreshold is the payload size above which uploads switch to
	// the multipart path.
	multipartThreshold = 8 * 1024 * 1024
)

// AlertArchiver implements domain.Archiver. It copies alert history older
// than a cutoff into one JSONL object and then deletes those rows.
type AlertArchiver struct {
	writer domain.BlobWriter
	alerts domain.AlertStore
	now    func() time.Time
}

// NewArchiver creates an AlertArchiver.
func NewArchiver(writer domain.BlobWriter, alerts domain.AlertStore) *AlertArchiver {
	return &AlertArchiver{writer: writer, alerts: alerts, now: time.Now}
}

// ArchiveAlerts uploads every alert detected before the cutoff to
// archive/alerts/<cutoff date>/<run time>.jsonl and returns the number of
// rows deleted afterwards. Nothing is deleted if the upload fails.
func (a *AlertArchiver) ArchiveAlerts(ctx context.Context, before time.Time) (int64, error) {
	recs, err := a.alerts.ListBefore(ctx, before, 0)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive alerts query: %w", err)
	}
	if len(recs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(recs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive alerts marshal: %w", err)
	}

	path := archivePath("alerts", before, a.now())
	if len(buf) > multipartThreshold {
		err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	} else {
		err = a.writer.Put(ctx, path, bytes.NewReader(buf), contentTypeJSONL)
	}
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive alerts upload: %w", err)
	}

	n, err := a.alerts.DeleteBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive alerts prune (uploaded %s): %w", path, err)
	}
	return n, nil
}

// archivePath returns the object key for one archive run, e.g.
// archive/alerts/2026-09-19/20261019T030000Z.jsonl.
func archivePath(kind string, before, now time.Time) string {
	return fmt.Sprintf("archive/%s/%s/%s.jsonl",
		kind, before.UTC().Format("2006-01-02"), now.UTC().Format("20060102T150405Z"))
}

// marshalJSONL encodes records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}

var _ domain.Archiver = (*AlertArchiver)(nil)
