package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/arbwatch/internal/domain"
)

// Archiver moves alert history older than the retention window to cold
// storage.
type Archiver struct {
	blob          domain.Archiver
	retentionDays int
	logger        *slog.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(blob domain.Archiver, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		blob:          blob,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// Run archives every alert recorded before now minus the retention window.
func (a *Archiver) Run(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -a.retentionDays)
	a.logger.Info("starting archive run",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.retentionDays),
	)

	n, err := a.blob.ArchiveAlerts(ctx, cutoff)
	if err != nil {
		return n, fmt.Errorf("pipeline: archive alerts before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	a.logger.Info("archive run complete", slog.Int64("alerts_archived", n))
	return n, nil
}

// RunCron runs the archiver on a 5-field cron schedule, in UTC, until ctx is
// cancelled. A failed run is logged and the schedule continues.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	spec, err := parseCron(cronExpr)
	if err != nil {
		return fmt.Errorf("pipeline: cron %q: %w", cronExpr, err)
	}
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, ok := spec.next(time.Now().UTC())
		if !ok {
			return fmt.Errorf("pipeline: cron %q never fires", cronExpr)
		}
		a.logger.Debug("archiver waiting", slog.Time("next_run", next))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if _, err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// cronSpec is a parsed 5-field cron expression. Each field is a bitmask of
// the values it accepts.
type cronSpec struct {
	minute, hour, dom, month, dow uint64
}

var cronBounds = [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}

// parseCron accepts "*", "*/n", "a", "a-b", "a-b/n" and comma lists of them
// in each of the fields "minute hour day-of-month month day-of-week".
func parseCron(expr string) (cronSpec, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return cronSpec{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}
	var masks [5]uint64
	for i, f := range fields {
		m, err := parseCronField(f, cronBounds[i][0], cronBounds[i][1])
		if err != nil {
			return cronSpec{}, fmt.Errorf("field %d %q: %w", i+1, f, err)
		}
		masks[i] = m
	}
	return cronSpec{minute: masks[0], hour: masks[1], dom: masks[2], month: masks[3], dow: masks[4]}, nil
}

func parseCronField(field string, lo, hi int) (uint64, error) {
	var mask uint64
	for _, part := range strings.Split(field, ",") {
		rng, step := part, 1
		if base, s, ok := strings.Cut(part, "/"); ok {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 {
				return 0, fmt.Errorf("invalid step %q", s)
			}
			rng, step = base, n
		}

		from, to := lo, hi
		switch {
		case rng == "*":
		case strings.Contains(rng, "-"):
			a, b, _ := strings.Cut(rng, "-")
			var err error
			if from, err = strconv.Atoi(a); err != nil {
				return 0, fmt.Errorf("invalid value %q", a)
			}
			if to, err = strconv.Atoi(b); err != nil {
				return 0, fmt.Errorf("invalid value %q", b)
			}
		default:
			v, err := strconv.Atoi(rng)
			if err != nil {
				return 0, fmt.Errorf("invalid value %q", rng)
			}
			from, to = v, v
		}
		if from < lo || to > hi || from > to {
			return 0, fmt.Errorf("range %d-%d outside %d-%d", from, to, lo, hi)
		}
		for v := from; v <= to; v += step {
			mask |= 1 << uint(v)
		}
	}
	return mask, nil
}

func (c cronSpec) matches(t time.Time) bool {
	return c.minute&(1<<uint(t.Minute())) != 0 &&
		c.hour&(1<<uint(t.Hour())) != 0 &&
		c.dom&(1<<uint(t.Day())) != 0 &&
		c.month&(1<<uint(t.Month())) != 0 &&
		c.dow&(1<<uint(t.Weekday())) != 0
}

// next returns the first minute strictly after 'after' that matches,
// searching at most one year ahead.
func (c cronSpec) next(after time.Time) (time.Time, bool) {
	limit := after.AddDate(1, 0, 1)
	for t := after.Truncate(time.Minute).Add(time.Minute); t.Before(limit); t = t.Add(time.Minute) {
		if c.matches(t) {
			return t, true
		}
	}
	return time.Time{}, false
}

func nextCronTime(cronExpr string, after time.Time) (time.Time, error) {
	spec, err := parseCron(cronExpr)
	if err != nil {
		return time.Time{}, err
	}
	next, ok := spec.next(after)
	if !ok {
		return time.Time{}, fmt.Errorf("no time matches %q within a year", cronExpr)
	}
	return next, nil
}
