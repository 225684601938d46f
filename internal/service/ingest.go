package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"returns-reconciliation-service/internal/model"
	"returns-reconciliation-service/internal/source"
)

var ErrSyncInProgress = errors.New("sync already running for this source and day")

// DateLayout is the day format of sync windows.
const DateLayout = "2006-01-02"

// Fetcher returns the raw payloads a source reported for one day.
type Fetcher interface {
	Fetch(ctx context.Context, src model.Source, day time.Time) ([]json.RawMessage, error)
}

// RunLock serialises batches over the same window.
type RunLock interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, ok bool, err error)
}

// RunJournal persists batch reports.
type RunJournal interface {
	SaveRun(ctx context.Context, run model.SyncRun) error
}

// Applier merges one normalized return.
type Applier interface {
	ApplyReturn(ctx context.Context, draft model.ReturnDraft, items []model.ItemDraft) (Outcome, error)
}

// Coordinator runs raw payloads through normalization and the merge engine.
type Coordinator struct {
	registry *source.Registry
	engine   Applier
	lock     RunLock
	journal  RunJournal
	log      *zap.Logger
	now      func() time.Time
}

// NewCoordinator builds a coordinator. lock and journal are optional.
func NewCoordinator(registry *source.Registry, engine Applier, lock RunLock, journal RunJournal, log *zap.Logger) *Coordinator {
	return &Coordinator{
		registry: registry,
		engine:   engine,
		lock:     lock,
		journal:  journal,
		log:      log,
		now:      time.Now,
	}
}

// Sync fetches one day of a source and runs it as a batch.
func (c *Coordinator) Sync(ctx context.Context, fetcher Fetcher, src model.Source, day time.Time) (model.SyncRun, error) {
	payloads, err := fetcher.Fetch(ctx, src, day)
	if err != nil {
		return model.SyncRun{}, fmt.Errorf("fetch %s %s: %w", src, day.Format(DateLayout), err)
	}
	return c.RunBatch(ctx, src, day, payloads)
}

// RunBatch applies every payload independently. Malformed payloads are skipped and store
// failures counted; neither stops the batch.
func (c *Coordinator) RunBatch(ctx context.Context, src model.Source, day time.Time, payloads []json.RawMessage) (model.SyncRun, error) {
	if _, err := c.registry.Lookup(src); err != nil {
		return model.SyncRun{}, err
	}

	date := day.Format(DateLayout)
	if c.lock != nil {
		release, ok, err := c.lock.Acquire(ctx, string(src)+":"+date)
		if err != nil {
			return model.SyncRun{}, err
		}
		if !ok {
			return model.SyncRun{}, ErrSyncInProgress
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				c.log.Warn("release sync lock", zap.Error(err))
			}
		}()
	}

	run := model.SyncRun{
		RunID:     uuid.NewString(),
		Source:    src,
		Date:      date,
		Total:     len(payloads),
		StartedAt: c.now().UTC(),
	}
	log := c.log.With(zap.String("run_id", run.RunID), zap.String("source", string(src)), zap.String("date", date))
	log.Info("sync batch started", zap.Int("payloads", len(payloads)))

	for i, raw := range payloads {
		if err := ctx.Err(); err != nil {
			run.Failed += len(payloads) - i
			run.AddError(fmt.Sprintf("batch cancelled: %v", err))
			break
		}

		out, err := c.apply(ctx, src, raw)
		switch {
		case errors.Is(err, source.ErrMalformedPayload):
			run.Skipped++
			run.AddError(err.Error())
			log.Warn("payload skipped", zap.Int("index", i), zap.Error(err))
		case err != nil:
			run.Failed++
			run.AddError(err.Error())
			log.Error("payload failed", zap.Int("index", i), zap.Error(err))
		default:
			run.Processed++
			if out.LinkedReturnNumber != "" {
				run.Linked++
			}
		}
	}

	run.FinishedAt = c.now().UTC()
	log.Info("sync batch finished",
		zap.Int("processed", run.Processed),
		zap.Int("skipped", run.Skipped),
		zap.Int("failed", run.Failed),
		zap.Int("linked", run.Linked))

	if c.journal != nil {
		if err := c.journal.SaveRun(context.WithoutCancel(ctx), run); err != nil {
			log.Warn("save sync run", zap.Error(err))
		}
	}
	return run, nil
}

// ProcessOne applies a single tagged payload, as delivered by the queue.
func (c *Coordinator) ProcessOne(ctx context.Context, env source.Envelope) (Outcome, error) {
	return c.apply(ctx, env.Source, env.Payload)
}

func (c *Coordinator) apply(ctx context.Context, src model.Source, raw json.RawMessage) (Outcome, error) {
	draft, items, err := c.registry.Normalize(src, raw)
	if err != nil {
		return Outcome{}, err
	}
	return c.engine.ApplyReturn(ctx, draft, items)
}
