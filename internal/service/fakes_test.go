package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type memResults struct {
	mu      sync.Mutex
	results map[string]domain.ComparisonResult
	funding map[string]domain.FundingRate
}

func newMemResults() *memResults {
	return &memResults{results: map[string]domain.ComparisonResult{}, funding: map[string]domain.FundingRate{}}
}

func (m *memResults) SetResult(_ context.Context, r domain.ComparisonResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[r.ComparisonID] = r
	return nil
}

func (m *memResults) GetResult(_ context.Context, id string) (domain.ComparisonResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[id]
	if !ok {
		return r, domain.ErrNotFound
	}
	return r, nil
}

func (m *memResults) SetFunding(_ context.Context, pair string, f domain.FundingRate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.funding[pair] = f
	return nil
}

func (m *memResults) GetFunding(_ context.Context, pair string) (domain.FundingRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.funding[pair]
	if !ok {
		return f, domain.ErrNotFound
	}
	return f, nil
}

type memAlerts struct {
	mu   sync.Mutex
	recs []domain.AlertRecord
}

func (m *memAlerts) Insert(_ context.Context, rec domain.AlertRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recs = append(m.recs, rec)
	return nil
}

func (m *memAlerts) sorted(filter func(domain.AlertRecord) bool, limit int) []domain.AlertRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.AlertRecord
	for _, r := range m.recs {
		if filter(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].DetectedAt.After(out[j].DetectedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (m *memAlerts) ListRecent(_ context.Context, limit int) ([]domain.AlertRecord, error) {
	return m.sorted(func(domain.AlertRecord) bool { return true }, limit), nil
}

func (m *memAlerts) ListByPair(_ context.Context, pair string, limit int) ([]domain.AlertRecord, error) {
	return m.sorted(func(r domain.AlertRecord) bool { return r.Pair == pair }, limit), nil
}

func (m *memAlerts) ListBefore(_ context.Context, before time.Time, limit int) ([]domain.AlertRecord, error) {
	return m.sorted(func(r domain.AlertRecord) bool { return r.DetectedAt.Before(before) }, limit), nil
}

func (m *memAlerts) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.recs[:0]
	var n int64
	for _, r := range m.recs {
		if r.DetectedAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.recs = kept
	return n, nil
}

type memBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streams   map[string][][]byte
}

func newMemBus() *memBus {
	return &memBus{published: map[string][][]byte{}, streams: map[string][][]byte{}}
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return make(chan []byte), nil
}

func (b *memBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams[stream] = append(b.streams[stream], payload)
	return nil
}

// StreamRead numbers entries from 1 so "0" reads from the start.
func (b *memBus) StreamRead(_ context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	after, err := strconv.Atoi(lastID)
	if err != nil {
		return nil, err
	}
	var out []domain.StreamMessage
	for i, p := range b.streams[stream] {
		if i+1 <= after {
			continue
		}
		if count > 0 && len(out) == count {
			break
		}
		out = append(out, domain.StreamMessage{ID: strconv.Itoa(i + 1), Payload: p})
	}
	return out, nil
}

func (b *memBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[channel])
}

type fakeNotifier struct {
	alerts     []domain.AlertRecord
	dataErrors []string
	funding    []string
}

func (f *fakeNotifier) AlertRaised(_ context.Context, rec domain.AlertRecord) error {
	f.alerts = append(f.alerts, rec)
	return nil
}

func (f *fakeNotifier) DataError(_ context.Context, r domain.ComparisonResult) error {
	f.dataErrors = append(f.dataErrors, r.ComparisonID)
	return nil
}

func (f *fakeNotifier) FundingChanged(_ context.Context, pair string, _ domain.FundingRate) error {
	f.funding = append(f.funding, pair)
	return nil
}

type memQuotes struct {
	mu     sync.Mutex
	quotes map[string]map[string]domain.VenueQuote
}

func (m *memQuotes) SetQuote(_ context.Context, pair string, q domain.VenueQuote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.quotes == nil {
		m.quotes = map[string]map[string]domain.VenueQuote{}
	}
	if m.quotes[pair] == nil {
		m.quotes[pair] = map[string]domain.VenueQuote{}
	}
	m.quotes[pair][q.Venue] = q
	return nil
}

func (m *memQuotes) GetQuotes(_ context.Context, pair string) (map[string]domain.VenueQuote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotes[pair]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return q, nil
}
