package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"returns-reconciliation-service/internal/model"
	"returns-reconciliation-service/internal/repository"
	"returns-reconciliation-service/internal/repository/repotest"
)

type memoryJournal struct {
	records map[uint64][]model.StatusRecord
	fail    bool
}

func (j *memoryJournal) AppendStatus(_ context.Context, id uint64, r model.StatusRecord) error {
	if j.fail {
		return errors.New("mongo unavailable")
	}
	if j.records == nil {
		j.records = map[uint64][]model.StatusRecord{}
	}
	for i := range j.records[id] {
		j.records[id][i].Current = false
	}
	r.Current = true
	j.records[id] = append(j.records[id], r)
	return nil
}

func (j *memoryJournal) History(_ context.Context, id uint64) (*model.ReturnHistory, error) {
	h, ok := j.records[id]
	if !ok {
		return nil, repository.ErrHistoryNotFound
	}
	return &model.ReturnHistory{ReturnID: id, History: h}, nil
}

func seedReturn(t *testing.T, store *repository.Store, externalID string) uint64 {
	t.Helper()
	out, err := newTestEngine(t, store).ApplyReturn(context.Background(),
		model.ReturnDraft{Source: model.SourceMarketplace, ExternalReturnID: externalID}, nil)
	require.NoError(t, err)
	return out.ReturnID
}

func TestReturnsService_UpdateStatus(t *testing.T) {
	store := repotest.NewStore(t)
	journal := &memoryJournal{}
	svc := NewReturnsService(store, journal, zaptest.NewLogger(t))
	ctx := context.Background()
	id := seedReturn(t, store, "R1")

	r, err := svc.UpdateStatus(ctx, id, model.InternalStatusInStock, "", "op-1")
	require.NoError(t, err)
	assert.Equal(t, model.InternalStatusInStock, r.InternalStatus)
	assert.Equal(t, model.ErpStatusNew, r.ErpStatus)
	assert.Nil(t, r.ErpStatusUpdatedAt)

	r, err = svc.UpdateStatus(ctx, id, "", model.ErpStatusQueued, "op-2")
	require.NoError(t, err)
	assert.Equal(t, model.InternalStatusInStock, r.InternalStatus)
	assert.Equal(t, model.ErpStatusQueued, r.ErpStatus)
	assert.NotNil(t, r.ErpStatusUpdatedAt)

	history, err := svc.History(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "op-1", history[0].UserID)
	assert.False(t, history[0].Current)
	assert.True(t, history[1].Current)
	assert.Equal(t, model.ErpStatusQueued, history[1].ErpStatus)
}

func TestReturnsService_UpdateStatusValidation(t *testing.T) {
	store := repotest.NewStore(t)
	svc := NewReturnsService(store, nil, zaptest.NewLogger(t))
	ctx := context.Background()
	id := seedReturn(t, store, "R2")

	tests := []struct {
		name     string
		internal string
		erp      string
		want     error
	}{
		{name: "nothing given", want: ErrInvalidStatus},
		{name: "unknown internal", internal: "LOST", want: ErrInvalidStatus},
		{name: "unknown erp", erp: "SENT", want: ErrInvalidStatus},
		{name: "lowercase is not accepted", internal: "w_drodze", want: ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UpdateStatus(ctx, id, tt.internal, tt.erp, "op")
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := svc.UpdateStatus(ctx, 424242, model.InternalStatusClosed, "", "op")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReturnsService_JournalFailureDoesNotFailUpdate(t *testing.T) {
	store := repotest.NewStore(t)
	svc := NewReturnsService(store, &memoryJournal{fail: true}, zaptest.NewLogger(t))
	id := seedReturn(t, store, "R3")

	r, err := svc.UpdateStatus(context.Background(), id, model.InternalStatusVerified, "", "op")
	require.NoError(t, err)
	assert.Equal(t, model.InternalStatusVerified, r.InternalStatus)
}

func TestReturnsService_GetAndList(t *testing.T) {
	store := repotest.NewStore(t)
	svc := NewReturnsService(store, &memoryJournal{}, zaptest.NewLogger(t))
	ctx := context.Background()
	id := seedReturn(t, store, "R4")
	seedReturn(t, store, "R5")

	r, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "R4", r.ExternalReturnID)

	_, err = svc.Get(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := svc.List(ctx, repository.ReturnFilter{Source: model.SourceMarketplace})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.List(ctx, repository.ReturnFilter{Source: "SHOP"})
	assert.ErrorIs(t, err, ErrInvalidSource)
	_, err = svc.List(ctx, repository.ReturnFilter{InternalStatus: "LOST"})
	assert.ErrorIs(t, err, ErrInvalidStatus)

	history, err := svc.History(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = svc.History(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReturnsService_EngineNeverTouchesOperatorStatus(t *testing.T) {
	store := repotest.NewStore(t)
	svc := NewReturnsService(store, nil, zaptest.NewLogger(t))
	ctx := context.Background()
	engine := newTestEngine(t, store)
	engine.now = func() time.Time { return time.Now().Add(time.Hour) }

	id := seedReturn(t, store, "R6")
	_, err := svc.UpdateStatus(ctx, id, model.InternalStatusClosed, model.ErpStatusImported, "op")
	require.NoError(t, err)

	_, err = engine.ApplyReturn(ctx, model.ReturnDraft{Source: model.SourceMarketplace, ExternalReturnID: "R6"}, nil)
	require.NoError(t, err)

	r, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.InternalStatusClosed, r.InternalStatus)
	assert.Equal(t, model.ErpStatusImported, r.ErpStatus)
}
