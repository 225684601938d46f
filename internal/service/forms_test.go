package service

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"returns-reconciliation-service/internal/dto"
	"returns-reconciliation-service/internal/model"
	"returns-reconciliation-service/internal/repository/repotest"
)

func TestFormsService_SubmitReturn(t *testing.T) {
	store := repotest.NewStore(t)
	svc := NewFormsService(store, zaptest.NewLogger(t))
	ctx := context.Background()

	res, err := svc.Submit(ctx, dto.FormSubmissionRequest{
		InternalReturnNumber: "ZW00066-2025",
		OrderNumber:          "PL0177777",
		RequestType:          model.RequestTypeReturn,
		Email:                "jan@example.com",
		ContactName:          "Jan Kowalski",
		ReturnReason:         "ZA_MALY",
		Comment:              "wrong size",
		Products: []dto.FormProductDTO{
			{Name: "Shirt", EAN: "5901234123457", Quantity: 2},
			{Name: "", Quantity: 0},
		},
		Photos: []dto.FormPhotoDTO{{Data: "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png"))}},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Lines)
	assert.Equal(t, 0, res.Photos, "photos are kept for complaints only")

	lines, err := store.FormLines(ctx, "ZW00066-2025")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "177777", lines[0].ShopOrderNumber)
	assert.Equal(t, "PL0177777", lines[0].OrderNumber)
	assert.Equal(t, "ZA_MALY", model.Deref(lines[0].ReasonType))
	assert.Equal(t, "wrong size", model.Deref(lines[0].ReasonComment))
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "UNKNOWN", lines[1].ProductName)
	assert.Equal(t, 1, lines[1].Quantity)
	assert.Nil(t, lines[0].ProcessedAt)
	assert.Nil(t, lines[0].CustomerPhone)
}

func TestFormsService_SubmitComplaint(t *testing.T) {
	store := repotest.NewStore(t)
	svc := NewFormsService(store, zaptest.NewLogger(t))
	ctx := context.Background()

	png := []byte{0x89, 'P', 'N', 'G'}
	res, err := svc.Submit(ctx, dto.FormSubmissionRequest{
		InternalReturnNumber: "ZW00067-2025",
		OrderNumber:          "PL0188888",
		RequestType:          model.RequestTypeComplaint,
		ReturnReason:         "ignored",
		DefectDescription:    "torn seam",
		Products:             []dto.FormProductDTO{{Name: "Jacket", Quantity: 1}},
		Photos: []dto.FormPhotoDTO{
			{Data: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), EAN: "590"},
			{Data: base64.StdEncoding.EncodeToString([]byte("jpeg"))},
			{Data: ""},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Photos)

	lines, err := store.FormLines(ctx, "ZW00067-2025")
	require.NoError(t, err)
	assert.Equal(t, "REKLAMACJA", model.Deref(lines[0].ReasonType))
	assert.Equal(t, "torn seam", model.Deref(lines[0].ReasonComment))

	photos, err := svc.Attachments(ctx, "ZW00067-2025")
	require.NoError(t, err)
	require.Len(t, photos, 2)
	assert.Equal(t, "image/png", photos[0].MimeType)
	assert.Equal(t, "image/jpeg", photos[1].MimeType)

	full, err := svc.Attachment(ctx, photos[0].ID)
	require.NoError(t, err)
	assert.Equal(t, png, full.Data)
}

func TestFormsService_SubmitRejectsBadInput(t *testing.T) {
	svc := NewFormsService(repotest.NewStore(t), zaptest.NewLogger(t))
	ctx := context.Background()

	_, err := svc.Submit(ctx, dto.FormSubmissionRequest{InternalReturnNumber: "ZW1", OrderNumber: "PL01"})
	assert.ErrorIs(t, err, ErrInvalidSubmission)

	_, err = svc.Submit(ctx, dto.FormSubmissionRequest{
		InternalReturnNumber: "ZW2",
		OrderNumber:          "PL02",
		RequestType:          model.RequestTypeComplaint,
		Products:             []dto.FormProductDTO{{Name: "A", Quantity: 1}},
		Photos:               []dto.FormPhotoDTO{{Data: "data:image/png;base64,%%%"}},
	})
	assert.ErrorIs(t, err, ErrInvalidSubmission)
}

func TestFormsService_SubmitRejectsReusedReturnNumber(t *testing.T) {
	store := repotest.NewStore(t)
	svc := NewFormsService(store, zaptest.NewLogger(t))
	ctx := context.Background()

	req := dto.FormSubmissionRequest{
		InternalReturnNumber: "ZW00090-2025",
		OrderNumber:          "PL0190000",
		Products:             []dto.FormProductDTO{{Name: "Shirt", Quantity: 1}},
	}
	_, err := svc.Submit(ctx, req)
	require.NoError(t, err)

	req.Products = []dto.FormProductDTO{{Name: "Jacket", Quantity: 1}}
	_, err = svc.Submit(ctx, req)
	assert.ErrorIs(t, err, ErrInvalidSubmission)

	lines, err := store.FormLines(ctx, "ZW00090-2025")
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Shirt", lines[0].ProductName)
}

func TestFormsService_NextReturnNumber(t *testing.T) {
	svc := NewFormsService(repotest.NewStore(t), zaptest.NewLogger(t))
	svc.now = newClock().Now

	first, err := svc.NextReturnNumber(context.Background())
	require.NoError(t, err)
	second, err := svc.NextReturnNumber(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "ZW00001-2025", first)
	assert.Equal(t, "ZW00002-2025", second)
}

func TestDecodeDataURL(t *testing.T) {
	mime, data, err := DecodeDataURL("data:;base64," + base64.StdEncoding.EncodeToString([]byte("x")))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
	assert.Equal(t, []byte("x"), data)

	_, _, err = DecodeDataURL("data:image/png,plain")
	assert.Error(t, err)
}

func TestShopOrderNumber(t *testing.T) {
	assert.Equal(t, "177777", ShopOrderNumber("PL0177777"))
	assert.Equal(t, "DE177777", ShopOrderNumber("DE177777"))
}
