package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"returns-reconciliation-service/internal/dto"
	"returns-reconciliation-service/internal/model"
	"returns-reconciliation-service/internal/repository"
)

var ErrInvalidSubmission = errors.New("invalid form submission")

const (
	complaintReason = "REKLAMACJA"
	defaultMimeType = "image/jpeg"
	shopOrderPrefix = "PL0"
)

// FormStore persists intake submissions.
type FormStore interface {
	SaveSubmission(ctx context.Context, lines []model.FormRequest, photos []model.Attachment) error
	NextReturnNumber(ctx context.Context, now time.Time) (string, error)
	ListAttachments(ctx context.Context, number string) ([]model.Attachment, error)
	FindAttachment(ctx context.Context, id uint64) (*model.Attachment, error)
}

// FormsService is the intake boundary: it stores submissions for the engine to match later.
type FormsService struct {
	store FormStore
	log   *zap.Logger
	now   func() time.Time
}

func NewFormsService(store FormStore, log *zap.Logger) *FormsService {
	return &FormsService{store: store, log: log, now: time.Now}
}

// NextReturnNumber hands out the next human-facing return number, e.g. ZW00012-2025.
func (s *FormsService) NextReturnNumber(ctx context.Context) (string, error) {
	return s.store.NextReturnNumber(ctx, s.now())
}

// Submit stores one row per product and, for complaints, the decoded photos.
func (s *FormsService) Submit(ctx context.Context, req dto.FormSubmissionRequest) (dto.FormSubmissionResponse, error) {
	number := strings.TrimSpace(req.InternalReturnNumber)
	orderNumber := strings.TrimSpace(req.OrderNumber)
	if number == "" || orderNumber == "" {
		return dto.FormSubmissionResponse{}, fmt.Errorf("%w: return number and order number are required", ErrInvalidSubmission)
	}
	if len(req.Products) == 0 {
		return dto.FormSubmissionResponse{}, fmt.Errorf("%w: no products selected", ErrInvalidSubmission)
	}

	requestType := model.RequestTypeReturn
	reasonType := model.NullString(req.ReturnReason)
	reasonComment := model.NullString(req.Comment)
	if req.RequestType == model.RequestTypeComplaint {
		requestType = model.RequestTypeComplaint
		reasonType = model.NullString(complaintReason)
		if d := model.NullString(req.DefectDescription); d != nil {
			reasonComment = d
		}
	}

	lines := make([]model.FormRequest, 0, len(req.Products))
	for _, p := range req.Products {
		name := strings.TrimSpace(p.Name)
		if name == "" {
			name = "UNKNOWN"
		}
		qty := p.Quantity
		if qty < 1 {
			qty = 1
		}
		lines = append(lines, model.FormRequest{
			InternalReturnNumber: number,
			OrderNumber:          orderNumber,
			ShopOrderNumber:      ShopOrderNumber(orderNumber),
			RequestType:          requestType,
			CustomerEmail:        model.NullString(req.Email),
			CustomerName:         model.NullString(req.ContactName),
			CustomerPhone:        model.NullString(req.ContactPhone),
			ProductName:          name,
			EAN:                  model.NullString(p.EAN),
			Quantity:             qty,
			ReasonType:           reasonType,
			ReasonComment:        reasonComment,
		})
	}

	var photos []model.Attachment
	if requestType == model.RequestTypeComplaint {
		for i, p := range req.Photos {
			if strings.TrimSpace(p.Data) == "" {
				continue
			}
			mime, data, err := DecodeDataURL(p.Data)
			if err != nil {
				return dto.FormSubmissionResponse{}, fmt.Errorf("%w: photo %d: %v", ErrInvalidSubmission, i, err)
			}
			photos = append(photos, model.Attachment{
				InternalReturnNumber: number,
				ProductEAN:           model.NullString(p.EAN),
				MimeType:             mime,
				Data:                 data,
			})
		}
	}

	if err := s.store.SaveSubmission(ctx, lines, photos); err != nil {
		if errors.Is(err, repository.ErrDuplicateSubmission) {
			return dto.FormSubmissionResponse{}, fmt.Errorf("%w: return number %s already submitted", ErrInvalidSubmission, number)
		}
		return dto.FormSubmissionResponse{}, err
	}

	s.log.Info("form submission stored",
		zap.String("return_number", number),
		zap.String("order_number", orderNumber),
		zap.String("request_type", requestType),
		zap.Int("products", len(lines)),
		zap.Int("photos", len(photos)))

	return dto.FormSubmissionResponse{
		InternalReturnNumber: number,
		Lines:                len(lines),
		Photos:               len(photos),
	}, nil
}

func (s *FormsService) Attachments(ctx context.Context, number string) ([]model.Attachment, error) {
	return s.store.ListAttachments(ctx, number)
}

func (s *FormsService) Attachment(ctx context.Context, id uint64) (*model.Attachment, error) {
	return s.store.FindAttachment(ctx, id)
}

// ShopOrderNumber strips the storefront prefix from a customer-facing order number.
func ShopOrderNumber(orderNumber string) string {
	return strings.TrimPrefix(orderNumber, shopOrderPrefix)
}

// DecodeDataURL accepts "data:<mime>;base64,<payload>" or bare base64.
func DecodeDataURL(v string) (mime string, data []byte, err error) {
	mime = defaultMimeType
	payload := strings.TrimSpace(v)
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		header, body, found := strings.Cut(rest, ";base64,")
		if !found {
			return "", nil, errors.New("data url is not base64 encoded")
		}
		if header != "" {
			mime = header
		}
		payload = body
	}
	data, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("decode base64: %w", err)
	}
	return mime, data, nil
}
