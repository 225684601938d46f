// Package source maps each external system's return payload onto the canonical draft shape.
// Normalizers are pure: no I/O, and a payload without its identity field is rejected whole.
package source

import (
	"encoding/json"
	"errors"
	"fmt"

	"returns-reconciliation-service/internal/model"
)

// ErrMalformedPayload marks a payload that cannot identify its return.
var ErrMalformedPayload = errors.New("malformed source payload")

// ErrUnknownSource is returned for a source without a registered normalizer.
var ErrUnknownSource = errors.New("unknown source")

// Normalizer turns one raw payload into a canonical header and its items.
type Normalizer interface {
	Source() model.Source
	Normalize(raw json.RawMessage) (model.ReturnDraft, []model.ItemDraft, error)
}

// Envelope is a raw payload tagged with the source it came from.
type Envelope struct {
	Source  model.Source    `json:"source"`
	Payload json.RawMessage `json:"payload"`
}

// Registry selects the normalizer for a source.
type Registry struct {
	normalizers map[model.Source]Normalizer
}

func NewRegistry(normalizers ...Normalizer) *Registry {
	r := &Registry{normalizers: make(map[model.Source]Normalizer, len(normalizers))}
	for _, n := range normalizers {
		r.normalizers[n.Source()] = n
	}
	return r
}

// DefaultRegistry knows every source that reports returns through a payload.
func DefaultRegistry() *Registry {
	return NewRegistry(MarketplaceNormalizer{}, LogisticsNormalizer{})
}

func (r *Registry) Lookup(src model.Source) (Normalizer, error) {
	n, ok := r.normalizers[src]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, src)
	}
	return n, nil
}

// Normalize dispatches to the normalizer registered for src.
func (r *Registry) Normalize(src model.Source, raw json.RawMessage) (model.ReturnDraft, []model.ItemDraft, error) {
	n, err := r.Lookup(src)
	if err != nil {
		return model.ReturnDraft{}, nil, err
	}
	return n.Normalize(raw)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedPayload, fmt.Sprintf(format, args...))
}
