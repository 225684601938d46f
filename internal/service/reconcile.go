package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"returns-reconciliation-service/internal/model"
	"returns-reconciliation-service/internal/repository"
	"returns-reconciliation-service/internal/source"
)

// ItemSource tells where the stored item set of a return came from.
type ItemSource string

const (
	ItemsFromPayload ItemSource = "PAYLOAD"
	ItemsFromForm    ItemSource = "FORM"
)

// Outcome summarises one applied return.
type Outcome struct {
	ReturnID           uint64
	Created            bool
	LinkedReturnNumber string
	ItemSource         ItemSource
}

// ReconcileTx is the set of store operations the engine runs inside one transaction.
type ReconcileTx interface {
	FormFinder
	UpsertReturn(ctx context.Context, d model.ReturnDraft, now time.Time) (repository.UpsertResult, error)
	ClaimForm(ctx context.Context, number string, at time.Time) (bool, error)
	FormLines(ctx context.Context, number string) ([]model.FormRequest, error)
	LinkForm(ctx context.Context, returnID uint64, number string, contact model.FormRequest, now time.Time) error
	ReplaceItems(ctx context.Context, returnID uint64, items []model.ItemDraft) error
}

// TxRunner runs fn in a transaction that is rolled back when fn fails.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx ReconcileTx) error) error
}

type storeRunner struct {
	store *repository.Store
	wrap  func(ReconcileTx) ReconcileTx
}

// NewStoreRunner runs reconciliation transactions on the canonical store.
func NewStoreRunner(store *repository.Store) TxRunner {
	return storeRunner{store: store}
}

func (r storeRunner) InTx(ctx context.Context, fn func(tx ReconcileTx) error) error {
	return r.store.InTx(ctx, func(tx *repository.Tx) error {
		var rt ReconcileTx = tx
		if r.wrap != nil {
			rt = r.wrap(rt)
		}
		return fn(rt)
	})
}

// Engine merges normalized returns into the canonical store.
type Engine struct {
	runner TxRunner
	log    *zap.Logger
	now    func() time.Time
}

func NewEngine(runner TxRunner, log *zap.Logger) *Engine {
	return &Engine{runner: runner, log: log, now: time.Now}
}

// ApplyReturn upserts the return, links it to an unprocessed intake submission when one matches,
// and replaces its items. Everything happens in one transaction.
func (e *Engine) ApplyReturn(ctx context.Context, draft model.ReturnDraft, items []model.ItemDraft) (Outcome, error) {
	if !draft.Source.Valid() || draft.ExternalReturnID == "" {
		return Outcome{}, fmt.Errorf("%w: return without source identity", source.ErrMalformedPayload)
	}

	now := e.now()
	var out Outcome

	err := e.runner.InTx(ctx, func(tx ReconcileTx) error {
		out = Outcome{ItemSource: ItemsFromPayload}

		res, err := tx.UpsertReturn(ctx, draft, now)
		if err != nil {
			return err
		}
		out.ReturnID = res.ReturnID
		out.Created = res.Created

		final := items
		switch {
		case res.InternalReturnNumber != nil:
			// already linked: the submission stays authoritative for the items
			out.LinkedReturnNumber = *res.InternalReturnNumber
			lines, err := tx.FormLines(ctx, out.LinkedReturnNumber)
			if err != nil {
				return err
			}
			if consumed := processedLines(lines); len(consumed) > 0 {
				final = formItems(consumed)
				out.ItemSource = ItemsFromForm
			}

		default:
			number, key, ok, err := ResolveFormMatch(ctx, tx, draft)
			if err != nil {
				return err
			}
			if !ok {
				break
			}
			claimed, err := tx.ClaimForm(ctx, number, now)
			if err != nil {
				return err
			}
			if !claimed {
				e.log.Info("form consumed by a concurrent merge",
					zap.String("return_number", number),
					zap.Uint64("return_id", res.ReturnID))
				break
			}
			lines, err := tx.FormLines(ctx, number)
			if err != nil {
				return err
			}
			if err := tx.LinkForm(ctx, res.ReturnID, number, contactOf(lines), now); err != nil {
				return err
			}
			out.LinkedReturnNumber = number
			final = formItems(lines)
			out.ItemSource = ItemsFromForm
			e.log.Info("return linked to form",
				zap.Uint64("return_id", res.ReturnID),
				zap.String("return_number", number),
				zap.Stringer("matched_by", key))
		}

		return tx.ReplaceItems(ctx, res.ReturnID, final)
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// processedLines keeps the lines stamped by the merge that linked the submission.
func processedLines(lines []model.FormRequest) []model.FormRequest {
	out := lines[:0:0]
	for _, l := range lines {
		if l.ProcessedAt != nil {
			out = append(out, l)
		}
	}
	return out
}

func formItems(lines []model.FormRequest) []model.ItemDraft {
	out := make([]model.ItemDraft, 0, len(lines))
	for _, l := range lines {
		qty := l.Quantity
		if qty < 1 {
			qty = 1
		}
		out = append(out, model.ItemDraft{
			ProductName:   l.ProductName,
			EAN:           l.EAN,
			Quantity:      qty,
			ReasonType:    l.ReasonType,
			ReasonComment: l.ReasonComment,
		})
	}
	return out
}

// contactOf picks the first non-empty contact values of a submission.
func contactOf(lines []model.FormRequest) model.FormRequest {
	var c model.FormRequest
	for _, l := range lines {
		if c.CustomerEmail == nil {
			c.CustomerEmail = l.CustomerEmail
		}
		if c.CustomerName == nil {
			c.CustomerName = l.CustomerName
		}
		if c.CustomerPhone == nil {
			c.CustomerPhone = l.CustomerPhone
		}
	}
	return c
}
