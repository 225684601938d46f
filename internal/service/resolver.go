package service

import (
	"context"

	"returns-reconciliation-service/internal/model"
)

// FormFinder looks up the oldest unprocessed intake submission by one key.
type FormFinder interface {
	FindUnprocessedForm(ctx context.Context, key model.MatchKey, value string) (string, bool, error)
}

// MatchCandidate is one key of the hierarchy together with the value the return carries for it.
type MatchCandidate struct {
	Key   model.MatchKey
	Value string
}

// MatchCandidates lists the non-empty keys of a return in priority order:
// reference number, shop order number, order number.
func MatchCandidates(d model.ReturnDraft) []MatchCandidate {
	all := []MatchCandidate{
		{Key: model.MatchByReferenceNumber, Value: model.Deref(d.ExternalReferenceNumber)},
		{Key: model.MatchByShopOrderNumber, Value: model.Deref(d.ShopOrderNumber)},
		{Key: model.MatchByOrderNumber, Value: model.Deref(d.ExternalOrderID)},
	}
	out := all[:0]
	for _, c := range all {
		if c.Value != "" {
			out = append(out, c)
		}
	}
	return out
}

// ResolveFormMatch walks the key hierarchy and stops at the first unprocessed submission.
// Form-sourced returns are never matched. ok=false is a valid outcome.
func ResolveFormMatch(ctx context.Context, finder FormFinder, d model.ReturnDraft) (number string, key model.MatchKey, ok bool, err error) {
	if d.Source == model.SourceForm {
		return "", 0, false, nil
	}
	for _, c := range MatchCandidates(d) {
		number, ok, err = finder.FindUnprocessedForm(ctx, c.Key, c.Value)
		if err != nil {
			return "", 0, false, err
		}
		if ok {
			return number, c.Key, true, nil
		}
	}
	return "", 0, false, nil
}
