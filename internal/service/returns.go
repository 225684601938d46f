package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"returns-reconciliation-service/internal/model"
	"returns-reconciliation-service/internal/repository"
)

// Business errors used by the controller.
var (
	ErrNotFound      = errors.New("return not found")
	ErrInvalidStatus = errors.New("invalid status")
	ErrInvalidSource = errors.New("invalid source")
)

// ReturnStore is what the operator service needs from the canonical store.
type ReturnStore interface {
	ListReturns(ctx context.Context, f repository.ReturnFilter) ([]model.Return, error)
	FindReturn(ctx context.Context, id uint64) (*model.Return, error)
	UpdateStatus(ctx context.Context, id uint64, internalStatus, erpStatus string, now time.Time) (*model.Return, error)
}

// StatusJournal keeps the history of operator status changes.
type StatusJournal interface {
	AppendStatus(ctx context.Context, returnID uint64, record model.StatusRecord) error
	History(ctx context.Context, returnID uint64) (*model.ReturnHistory, error)
}

var validInternalStatuses = map[string]bool{
	model.InternalStatusSubmitted: true,
	model.InternalStatusInTransit: true,
	model.InternalStatusInStock:   true,
	model.InternalStatusVerified:  true,
	model.InternalStatusClosed:    true,
}

var validErpStatuses = map[string]bool{
	model.ErpStatusNew:      true,
	model.ErpStatusQueued:   true,
	model.ErpStatusError:    true,
	model.ErpStatusImported: true,
}

// ReturnsService is the operator view over canonical returns.
type ReturnsService struct {
	store   ReturnStore
	journal StatusJournal
	log     *zap.Logger
	now     func() time.Time
}

// NewReturnsService builds the operator service. journal may be nil.
func NewReturnsService(store ReturnStore, journal StatusJournal, log *zap.Logger) *ReturnsService {
	return &ReturnsService{store: store, journal: journal, log: log, now: time.Now}
}

func (s *ReturnsService) List(ctx context.Context, f repository.ReturnFilter) ([]model.Return, error) {
	if f.Source != "" && !f.Source.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSource, f.Source)
	}
	if f.InternalStatus != "" && !validInternalStatuses[f.InternalStatus] {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, f.InternalStatus)
	}
	return s.store.ListReturns(ctx, f)
}

func (s *ReturnsService) Get(ctx context.Context, id uint64) (*model.Return, error) {
	r, err := s.store.FindReturn(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	return r, err
}

// UpdateStatus sets the operator-owned statuses. Only known values are accepted and at least
// one of the two must be given; the history entry is recorded after the store write.
func (s *ReturnsService) UpdateStatus(ctx context.Context, id uint64, internalStatus, erpStatus, actorID string) (*model.Return, error) {
	if internalStatus == "" && erpStatus == "" {
		return nil, fmt.Errorf("%w: internalStatus or erpStatus is required", ErrInvalidStatus)
	}
	if internalStatus != "" && !validInternalStatuses[internalStatus] {
		return nil, fmt.Errorf("%w: internal status %q", ErrInvalidStatus, internalStatus)
	}
	if erpStatus != "" && !validErpStatuses[erpStatus] {
		return nil, fmt.Errorf("%w: erp status %q", ErrInvalidStatus, erpStatus)
	}

	now := s.now()
	r, err := s.store.UpdateStatus(ctx, id, internalStatus, erpStatus, now)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if s.journal != nil {
		record := model.StatusRecord{
			InternalStatus: r.InternalStatus,
			ErpStatus:      r.ErpStatus,
			UserID:         actorID,
			Timestamp:      now.UTC(),
		}
		if err := s.journal.AppendStatus(ctx, id, record); err != nil {
			s.log.Error("append status history", zap.Uint64("return_id", id), zap.Error(err))
		}
	}
	return r, nil
}

// History returns the recorded status changes, oldest first.
func (s *ReturnsService) History(ctx context.Context, id uint64) ([]model.StatusRecord, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	if s.journal == nil {
		return []model.StatusRecord{}, nil
	}
	h, err := s.journal.History(ctx, id)
	if errors.Is(err, repository.ErrHistoryNotFound) {
		return []model.StatusRecord{}, nil
	}
	if err != nil {
		return nil, err
	}
	return h.History, nil
}
