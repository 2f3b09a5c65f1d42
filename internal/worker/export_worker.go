package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"activitylog/internal/amqp"
	"activitylog/internal/core"
	"activitylog/internal/log"
	"activitylog/internal/observability"
	"activitylog/internal/records"
	"activitylog/internal/sheets"
)

// Consumer delivers activity change messages until ctx is done.
type Consumer interface {
	ConsumeActivityChanges(ctx context.Context, handler func(context.Context, *amqp.ActivityChangedMessage) error) error
}

// ExportWorker mirrors the record store into a spreadsheet: single rows on
// change messages, everything on a schedule.
type ExportWorker struct {
	store    records.Store
	exporter sheets.Exporter
	logger   *log.Logger
	now      func() time.Time

	// sheetMu keeps row writes and full rewrites from interleaving.
	sheetMu sync.Mutex

	mu       sync.Mutex
	versions map[int64]int64
}

func NewExportWorker(store records.Store, exporter sheets.Exporter, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.Nop()
	}
	return &ExportWorker{
		store:    store,
		exporter: exporter,
		logger:   logger.WithComponent(log.ComponentWorker),
		now:      time.Now,
		versions: make(map[int64]int64),
	}
}

// HandleActivityChanged applies one change message. Messages older than the
// last one applied for the same id are dropped. The row content always comes
// from the store, never from the message.
func (w *ExportWorker) HandleActivityChanged(ctx context.Context, msg *amqp.ActivityChangedMessage) error {
	if w.isStale(msg) {
		observability.RecordExport("skipped")
		w.logger.DebugContext(ctx, "Skipping stale change message",
			log.FieldActivityID, msg.ID, "version", msg.Version)
		return nil
	}

	w.logger.InfoContext(ctx, "Processing change message",
		log.FieldActivityID, msg.ID,
		"action", msg.Action,
		"version", msg.Version)

	if err := w.apply(ctx, msg); err != nil {
		observability.RecordExport("failed")
		return err
	}

	w.markApplied(msg)
	observability.RecordExport("exported")
	return nil
}

func (w *ExportWorker) apply(ctx context.Context, msg *amqp.ActivityChangedMessage) error {
	if msg.Action == amqp.ActionDeleted {
		return w.remove(ctx, msg.ID)
	}

	r, err := w.store.GetActivity(ctx, msg.ID)
	if errors.Is(err, records.ErrNotFound) {
		// Deleted after the message was sent; the delete message follows.
		w.logger.InfoContext(ctx, "Activity no longer exists, clearing row", log.FieldActivityID, msg.ID)
		return w.remove(ctx, msg.ID)
	}
	if err != nil {
		return fmt.Errorf("get activity from store: %w", err)
	}

	w.sheetMu.Lock()
	defer w.sheetMu.Unlock()
	if err := w.exporter.UpsertActivity(ctx, r); err != nil {
		return fmt.Errorf("export activity: %w", err)
	}
	return nil
}

func (w *ExportWorker) remove(ctx context.Context, id int64) error {
	w.sheetMu.Lock()
	defer w.sheetMu.Unlock()
	if err := w.exporter.RemoveActivity(ctx, id); err != nil {
		return fmt.Errorf("remove exported activity: %w", err)
	}
	return nil
}

func (w *ExportWorker) isStale(msg *amqp.ActivityChangedMessage) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	last, ok := w.versions[msg.ID]
	return ok && msg.Version <= last
}

func (w *ExportWorker) markApplied(msg *amqp.ActivityChangedMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if msg.Version > w.versions[msg.ID] {
		w.versions[msg.ID] = msg.Version
	}
}

// ExportAll rewrites the activities sheet and the summary from the current
// store contents.
func (w *ExportWorker) ExportAll(ctx context.Context) error {
	start := w.now()
	rs, err := w.store.ListActivities(ctx, records.Filter{})
	if err != nil {
		return fmt.Errorf("list activities: %w", err)
	}

	w.sheetMu.Lock()
	defer w.sheetMu.Unlock()

	if err := w.exporter.ReplaceActivities(ctx, rs); err != nil {
		return fmt.Errorf("replace activities: %w", err)
	}
	summary := sheets.BuildSummary(rs, start)
	if err := w.exporter.WriteSummary(ctx, summary); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	if found := anomalyCount(rs); found > 0 {
		w.logger.WarnContext(ctx, "Exported records with inconsistencies", log.FieldAnomalies, found)
	}

	observability.RecordFullExport(start)
	w.logger.InfoContext(ctx, "Full export completed",
		log.FieldCount, len(rs),
		log.FieldSkipped, summary.Stats.Skipped,
		log.FieldDuration, w.now().Sub(start).Milliseconds())
	return nil
}

func anomalyCount(rs []core.ActivityRecord) int {
	n := 0
	for _, r := range rs {
		n += len(core.Anomalies(r))
	}
	return n
}

// Run exports everything once, then serves change messages from consumer
// (when not nil) and full exports on schedule until ctx is done.
func (w *ExportWorker) Run(ctx context.Context, consumer Consumer, schedule string) error {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return fmt.Errorf("parse export schedule %q: %w", schedule, err)
	}

	if err := w.ExportAll(ctx); err != nil {
		// Don't exit - the schedule retries later
		w.logger.ErrorContext(ctx, "Startup export failed", log.FieldError, err.Error())
	}

	g, ctx := errgroup.WithContext(ctx)

	if consumer != nil {
		g.Go(func() error {
			err := consumer.ConsumeActivityChanges(ctx, w.HandleActivityChanged)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	} else {
		w.logger.InfoContext(ctx, "No change consumer configured, running scheduled exports only")
	}

	g.Go(func() error {
		c := cron.New()
		c.Schedule(sched, cron.FuncJob(func() {
			if err := w.ExportAll(ctx); err != nil {
				w.logger.ErrorContext(ctx, "Scheduled export failed", log.FieldError, err.Error())
			}
		}))
		c.Start()
		w.logger.InfoContext(ctx, "Export scheduler started", "schedule", schedule)

		<-ctx.Done()
		<-c.Stop().Done()
		w.logger.InfoContext(ctx, "Export scheduler stopped")
		return nil
	})

	return g.Wait()
}
