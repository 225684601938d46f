package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"returns-reconciliation-service/internal/model"
	"returns-reconciliation-service/internal/repository"
	"returns-reconciliation-service/internal/repository/repotest"
)

func str(s string) *string { return &s }

func upsert(t *testing.T, store *repository.Store, d model.ReturnDraft, now time.Time) repository.UpsertResult {
	t.Helper()
	var res repository.UpsertResult
	err := store.InTx(context.Background(), func(tx *repository.Tx) error {
		var err error
		res, err = tx.UpsertReturn(context.Background(), d, now)
		return err
	})
	require.NoError(t, err)
	return res
}

func TestStore_UpsertReturn_InsertThenUpdate(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()
	t0 := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)

	first := upsert(t, store, model.ReturnDraft{
		Source:           model.SourceLogistics,
		ExternalReturnID: "ZW00001-2025",
		Waybill:          str("WB1"),
		CustomerPhone:    str("600100200"),
		ExternalStatus:   str(model.ExternalStatusCreated),
	}, t0)
	assert.True(t, first.Created)
	assert.Nil(t, first.InternalReturnNumber)

	second := upsert(t, store, model.ReturnDraft{
		Source:           model.SourceLogistics,
		ExternalReturnID: "ZW00001-2025",
		Waybill:          str("WB2"),
		CustomerName:     str("Anna Nowak"),
		ExternalStatus:   str(model.ExternalStatusSent),
	}, t0.Add(time.Hour))
	assert.False(t, second.Created)
	assert.Equal(t, first.ReturnID, second.ReturnID)

	got, err := store.FindReturn(ctx, first.ReturnID)
	require.NoError(t, err)
	assert.Equal(t, "WB2", model.Deref(got.Waybill))
	assert.Equal(t, model.ExternalStatusSent, model.Deref(got.ExternalStatus))
	assert.Equal(t, "600100200", model.Deref(got.CustomerPhone), "null must not overwrite a stored phone")
	assert.Equal(t, "Anna Nowak", model.Deref(got.CustomerName), "empty contact is filled")
	assert.Equal(t, model.InternalStatusSubmitted, got.InternalStatus)
	assert.Equal(t, model.ErpStatusNew, got.ErpStatus)

	var count int64
	require.NoError(t, store.DB().Model(&model.Return{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestStore_UpsertReturn_KeepsOperatorStatus(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()
	now := time.Now()

	res := upsert(t, store, model.ReturnDraft{Source: model.SourceMarketplace, ExternalReturnID: "R1"}, now)
	_, err := store.UpdateStatus(ctx, res.ReturnID, model.InternalStatusInStock, model.ErpStatusQueued, now)
	require.NoError(t, err)

	upsert(t, store, model.ReturnDraft{Source: model.SourceMarketplace, ExternalReturnID: "R1"}, now.Add(time.Minute))

	got, err := store.FindReturn(ctx, res.ReturnID)
	require.NoError(t, err)
	assert.Equal(t, model.InternalStatusInStock, got.InternalStatus)
	assert.Equal(t, model.ErpStatusQueued, got.ErpStatus)
}

func TestStore_FindUnprocessedForm(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()
	processed := time.Now()

	require.NoError(t, store.SaveSubmission(ctx, []model.FormRequest{
		{InternalReturnNumber: "ZW00001-2025", OrderNumber: "PL0111", ShopOrderNumber: "111", RequestType: model.RequestTypeReturn, ProductName: "Shirt", Quantity: 1, ProcessedAt: &processed},
	}, nil))
	require.NoError(t, store.SaveSubmission(ctx, []model.FormRequest{
		{InternalReturnNumber: "ZW00002-2025", OrderNumber: "PL0222", ShopOrderNumber: "222", RequestType: model.RequestTypeReturn, ProductName: "Cap", Quantity: 1},
	}, nil))

	err := store.InTx(ctx, func(tx *repository.Tx) error {
		_, ok, err := tx.FindUnprocessedForm(ctx, model.MatchByReferenceNumber, "ZW00001-2025")
		require.NoError(t, err)
		assert.False(t, ok, "processed submissions are never matched")

		number, ok, err := tx.FindUnprocessedForm(ctx, model.MatchByShopOrderNumber, "222")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "ZW00002-2025", number)

		number, ok, err = tx.FindUnprocessedForm(ctx, model.MatchByOrderNumber, "PL0222")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "ZW00002-2025", number)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_SaveSubmission_RejectsReusedNumber(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()
	line := model.FormRequest{InternalReturnNumber: "ZW00004-2025", OrderNumber: "PL0444", RequestType: model.RequestTypeReturn, ProductName: "Shirt", Quantity: 1}

	require.NoError(t, store.SaveSubmission(ctx, []model.FormRequest{line}, nil))

	line.ProductName = "Jacket"
	err := store.SaveSubmission(ctx, []model.FormRequest{line}, []model.Attachment{
		{InternalReturnNumber: "ZW00004-2025", MimeType: "image/png", Data: []byte("png")},
	})
	assert.ErrorIs(t, err, repository.ErrDuplicateSubmission)

	lines, err := store.FormLines(ctx, "ZW00004-2025")
	require.NoError(t, err)
	assert.Len(t, lines, 1)
	photos, err := store.ListAttachments(ctx, "ZW00004-2025")
	require.NoError(t, err)
	assert.Empty(t, photos, "rejected submission leaves no photos behind")
}

func TestStore_FindUnprocessedForm_SkipsLinkedNumber(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()
	now := time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)

	res := upsert(t, store, model.ReturnDraft{Source: model.SourceLogistics, ExternalReturnID: "ZW00005-2025"}, now)
	require.NoError(t, store.InTx(ctx, func(tx *repository.Tx) error {
		return tx.LinkForm(ctx, res.ReturnID, "ZW00005-2025", model.FormRequest{}, now)
	}))
	// a stray unstamped line under a number some return already holds
	require.NoError(t, store.DB().Create(&model.FormRequest{
		InternalReturnNumber: "ZW00005-2025", OrderNumber: "PL0555", RequestType: model.RequestTypeReturn, ProductName: "Jacket", Quantity: 1,
	}).Error)

	err := store.InTx(ctx, func(tx *repository.Tx) error {
		_, ok, err := tx.FindUnprocessedForm(ctx, model.MatchByReferenceNumber, "ZW00005-2025")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, err)
}

func TestStore_ClaimForm_OnlyOnce(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSubmission(ctx, []model.FormRequest{
		{InternalReturnNumber: "ZW00003-2025", OrderNumber: "PL0333", RequestType: model.RequestTypeReturn, ProductName: "A", Quantity: 1},
		{InternalReturnNumber: "ZW00003-2025", OrderNumber: "PL0333", RequestType: model.RequestTypeReturn, ProductName: "B", Quantity: 2},
	}, nil))

	claim := func() bool {
		var ok bool
		require.NoError(t, store.InTx(ctx, func(tx *repository.Tx) error {
			var err error
			ok, err = tx.ClaimForm(ctx, "ZW00003-2025", time.Now())
			return err
		}))
		return ok
	}

	assert.True(t, claim())
	assert.False(t, claim())

	lines, err := store.FormLines(ctx, "ZW00003-2025")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	for _, l := range lines {
		assert.NotNil(t, l.ProcessedAt)
	}
}

func TestStore_ReplaceItems(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()
	res := upsert(t, store, model.ReturnDraft{Source: model.SourceMarketplace, ExternalReturnID: "R9"}, time.Now())

	replace := func(items ...model.ItemDraft) {
		require.NoError(t, store.InTx(ctx, func(tx *repository.Tx) error {
			return tx.ReplaceItems(ctx, res.ReturnID, items)
		}))
	}

	replace(
		model.ItemDraft{ProductName: "Shirt", Quantity: 2, PriceAmount: decimal.NewNullDecimal(decimal.RequireFromString("59.90"))},
		model.ItemDraft{ProductName: "Cap", Quantity: 1},
	)
	replace(model.ItemDraft{ProductName: "Jacket", Quantity: 1})

	got, err := store.FindReturn(ctx, res.ReturnID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Jacket", got.Items[0].ProductName)
}

func TestStore_UpdateStatus(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()
	res := upsert(t, store, model.ReturnDraft{Source: model.SourceMarketplace, ExternalReturnID: "R10"}, time.Now())

	got, err := store.UpdateStatus(ctx, res.ReturnID, model.InternalStatusInTransit, "", time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.InternalStatusInTransit, got.InternalStatus)
	assert.Equal(t, model.ErpStatusNew, got.ErpStatus)
	assert.Nil(t, got.ErpStatusUpdatedAt)

	got, err = store.UpdateStatus(ctx, res.ReturnID, "", model.ErpStatusError, time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.InternalStatusInTransit, got.InternalStatus)
	assert.Equal(t, model.ErpStatusError, got.ErpStatus)
	assert.NotNil(t, got.ErpStatusUpdatedAt)

	_, err = store.UpdateStatus(ctx, 9999, model.InternalStatusClosed, "", time.Now())
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_ListReturns_Filters(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()
	now := time.Now()

	upsert(t, store, model.ReturnDraft{Source: model.SourceMarketplace, ExternalReturnID: "R1"}, now)
	upsert(t, store, model.ReturnDraft{Source: model.SourceLogistics, ExternalReturnID: "H1"}, now)

	all, err := store.ListReturns(ctx, repository.ReturnFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	onlyLogistics, err := store.ListReturns(ctx, repository.ReturnFilter{Source: model.SourceLogistics})
	require.NoError(t, err)
	require.Len(t, onlyLogistics, 1)
	assert.Equal(t, "H1", onlyLogistics[0].ExternalReturnID)
}

func TestStore_NextReturnNumber(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()
	in2025 := time.Date(2025, 12, 30, 12, 0, 0, 0, time.UTC)

	first, err := store.NextReturnNumber(ctx, in2025)
	require.NoError(t, err)
	second, err := store.NextReturnNumber(ctx, in2025)
	require.NoError(t, err)
	nextYear, err := store.NextReturnNumber(ctx, in2025.AddDate(0, 0, 5))
	require.NoError(t, err)

	assert.Equal(t, "ZW00001-2025", first)
	assert.Equal(t, "ZW00002-2025", second)
	assert.Equal(t, "ZW00001-2026", nextYear)
}

func TestStore_Attachments(t *testing.T) {
	store := repotest.NewStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveSubmission(ctx,
		[]model.FormRequest{{InternalReturnNumber: "ZW00004-2025", OrderNumber: "PL04", RequestType: model.RequestTypeComplaint, ProductName: "Boots", Quantity: 1}},
		[]model.Attachment{{InternalReturnNumber: "ZW00004-2025", ProductEAN: str("5901234123457"), MimeType: "image/png", Data: []byte{0x89, 0x50}}},
	))

	list, err := store.ListAttachments(ctx, "ZW00004-2025")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Data)
	assert.Equal(t, "image/png", list[0].MimeType)

	full, err := store.FindAttachment(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x89, 0x50}, full.Data)

	_, err = store.FindAttachment(ctx, 4242)
	assert.ErrorIs(t, err, repository.ErrAttachmentNotFound)
}
