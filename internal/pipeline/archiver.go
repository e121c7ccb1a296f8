package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/predictmarket/internal/domain"
	"github.com/alanyoungcy/predictmarket/internal/notify"
)

// Alerter delivers an operator notification for event.
type Alerter interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Archiver exports the daily market and bet snapshot to cold storage on a
// cron schedule.
type Archiver struct {
	archiver domain.Archiver
	alerts   Alerter
	logger   *slog.Logger
	now      func() time.Time
}

// NewArchiver creates a new Archiver. alerts may be nil.
func NewArchiver(archiver domain.Archiver, alerts Alerter, logger *slog.Logger) *Archiver {
	return &Archiver{
		archiver: archiver,
		alerts:   alerts,
		logger:   logger.With(slog.String("component", "archive_job")),
		now:      time.Now,
	}
}

// Run executes a single export for the current UTC day.
func (a *Archiver) Run(ctx context.Context) error {
	day := a.now().UTC()
	res, err := a.archiver.Export(ctx, day)
	if err != nil {
		a.alert(ctx, notify.EventError, "Archive failed", err.Error())
		return fmt.Errorf("archive %s: %w", day.Format(time.DateOnly), err)
	}
	if res.Skipped {
		a.logger.Info("archive already present", slog.String("markets_path", res.MarketsPath))
		return nil
	}

	a.logger.Info("archive run complete",
		slog.Int("markets", res.Markets),
		slog.Int("bets", res.Bets),
		slog.String("markets_path", res.MarketsPath),
		slog.String("bets_path", res.BetsPath),
	)
	a.alert(ctx, notify.EventArchiveCompleted, "Archive completed",
		fmt.Sprintf("%d markets and %d bets exported for %s", res.Markets, res.Bets, day.Format(time.DateOnly)))
	return nil
}

func (a *Archiver) alert(ctx context.Context, event, title, msg string) {
	if a.alerts == nil {
		return
	}
	if err := a.alerts.Notify(ctx, event, title, msg); err != nil {
		a.logger.Warn("archive alert failed", slog.String("error", err.Error()))
	}
}

// RunCron runs the archiver on a cron schedule until the context is cancelled.
// It supports cron expressions in the standard 5-field format:
// "minute hour day-of-month month day-of-week"
//
// Example: "0 3 * * *" runs at 03:00 UTC every day.
func (a *Archiver) RunCron(ctx context.Context, cronExpr string) error {
	cron, err := parseCron(cronExpr)
	if err != nil {
		return fmt.Errorf("parsing cron expression %q: %w", cronExpr, err)
	}
	a.logger.Info("archiver cron started", slog.String("cron", cronExpr))

	for {
		next, err := cron.next(a.now().UTC())
		if err != nil {
			return fmt.Errorf("cron %q: %w", cronExpr, err)
		}

		wait := time.Until(next)
		a.logger.Debug("archiver waiting for next cron trigger",
			slog.Time("next_run", next),
			slog.Duration("wait", wait),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			a.logger.Info("archiver cron stopped")
			return ctx.Err()
		case <-timer.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// cronField represents a parsed cron field that can match against a value.
type cronField struct {
	wildcard bool
	values   map[int]bool
}

// matches returns true if the given value matches this cron field.
func (f cronField) matches(val int) bool {
	return f.wildcard || f.values[val]
}

// parseCronField parses a single cron field. Lists ("1,15"), ranges ("1-5")
// and steps ("*/15", "0-30/10") are accepted.
func parseCronField(field string, lo, hi int) (cronField, error) {
	if field == "*" {
		return cronField{wildcard: true}, nil
	}

	values := make(map[int]bool)
	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)
		step := 1
		base, s, hasStep := strings.Cut(part, "/")
		if hasStep {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				return cronField{}, fmt.Errorf("invalid cron step %q", part)
			}
			step = n
			part = base
		}

		from, to := lo, hi
		switch {
		case part == "*":
		case strings.Contains(part, "-"):
			a, b, _ := strings.Cut(part, "-")
			var err1, err2 error
			from, err1 = strconv.Atoi(a)
			to, err2 = strconv.Atoi(b)
			if err1 != nil || err2 != nil {
				return cronField{}, fmt.Errorf("invalid cron range %q", part)
			}
		default:
			v, err := strconv.Atoi(part)
			if err != nil {
				return cronField{}, fmt.Errorf("invalid cron field value %q: %w", part, err)
			}
			from, to = v, v
			if hasStep {
				// "5/10" means every 10th value starting at 5.
				to = hi
			}
		}
		if from < lo || to > hi || from > to {
			return cronField{}, fmt.Errorf("cron value %q out of range %d-%d", part, lo, hi)
		}
		for v := from; v <= to; v += step {
			values[v] = true
		}
	}
	return cronField{values: values}, nil
}

// parsedCron holds five parsed cron fields.
type parsedCron struct {
	minute     cronField
	hour       cronField
	dayOfMonth cronField
	month      cronField
	dayOfWeek  cronField
}

// matchesTime returns true if the given time matches all five cron fields.
func (c parsedCron) matchesTime(t time.Time) bool {
	return c.minute.matches(t.Minute()) &&
		c.hour.matches(t.Hour()) &&
		c.dayOfMonth.matches(t.Day()) &&
		c.month.matches(int(t.Month())) &&
		c.dayOfWeek.matches(int(t.Weekday()))
}

// parseCron parses a 5-field cron expression into a parsedCron struct.
func parseCron(expr string) (parsedCron, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return parsedCron{}, fmt.Errorf("cron expression must have 5 fields, got %d", len(fields))
	}

	bounds := [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 6}}
	names := [5]string{"minute", "hour", "day-of-month", "month", "day-of-week"}
	var parsed [5]cronField
	for i, f := range fields {
		cf, err := parseCronField(f, bounds[i][0], bounds[i][1])
		if err != nil {
			return parsedCron{}, fmt.Errorf("parsing %s field: %w", names[i], err)
		}
		parsed[i] = cf
	}

	return parsedCron{
		minute:     parsed[0],
		hour:       parsed[1],
		dayOfMonth: parsed[2],
		month:      parsed[3],
		dayOfWeek:  parsed[4],
	}, nil
}

// ValidateCron reports whether expr is a usable 5-field cron expression.
func ValidateCron(expr string) error {
	_, err := parseCron(expr)
	return err
}

// next returns the first minute after 'after' that matches. It searches
// minute-by-minute up to one year ahead.
func (c parsedCron) next(after time.Time) (time.Time, error) {
	// Start from the next minute boundary.
	candidate := after.Truncate(time.Minute).Add(time.Minute)

	// Search up to one year ahead to avoid infinite loops.
	limit := after.Add(366 * 24 * time.Hour)

	for candidate.Before(limit) {
		if c.matchesTime(candidate) {
			return candidate, nil
		}
		candidate = candidate.Add(time.Minute)
	}

	return time.Time{}, fmt.Errorf("no matching time within one year")
}
