// dto.go
package dto

import (
	"encoding/json"
	"time"
)

// UpdateStatusRequest carries the operator-owned statuses. At least one must be set.
type UpdateStatusRequest struct {
	InternalStatus string `json:"internalStatus"`
	ErpStatus      string `json:"erpStatus"`
}

// SyncBatchRequest is one batch of raw payloads for a source and a day (YYYY-MM-DD).
type SyncBatchRequest struct {
	Date     string            `json:"date" binding:"required"`
	Payloads []json.RawMessage `json:"payloads"`
}

// FormSubmissionRequest is the customer intake submission.
type FormSubmissionRequest struct {
	InternalReturnNumber string           `json:"internalReturnNumber" binding:"required"`
	OrderNumber          string           `json:"orderNumber" binding:"required"`
	RequestType          string           `json:"requestType" binding:"required,oneof=RETURN COMPLAINT"`
	Email                string           `json:"email"`
	ContactName          string           `json:"contactName"`
	ContactPhone         string           `json:"contactPhone"`
	ReturnReason         string           `json:"returnReason"`
	DefectDescription    string           `json:"defectDescription"`
	Comment              string           `json:"comment"`
	Products             []FormProductDTO `json:"products" binding:"required,min=1,dive"`
	Photos               []FormPhotoDTO   `json:"photos"`
}

type FormProductDTO struct {
	Name     string `json:"name"`
	EAN      string `json:"ean"`
	Quantity int    `json:"quantity"`
}

// FormPhotoDTO holds a data URL ("data:image/png;base64,...") or bare base64.
type FormPhotoDTO struct {
	Data string `json:"data"`
	EAN  string `json:"ean"`
}

type FormSubmissionResponse struct {
	InternalReturnNumber string `json:"internalReturnNumber"`
	Lines                int    `json:"lines"`
	Photos               int    `json:"photos"`
}

type ReturnNumberResponse struct {
	ReturnNumber string `json:"returnNumber"`
}

type ApplyOutcomeResponse struct {
	ReturnID           uint64 `json:"returnId"`
	Created            bool   `json:"created"`
	LinkedReturnNumber string `json:"linkedReturnNumber,omitempty"`
	ItemSource         string `json:"itemSource"`
}

type AttachmentResponse struct {
	ID         uint64    `json:"id"`
	ProductEAN *string   `json:"productEan"`
	MimeType   string    `json:"mimeType"`
	CreatedAt  time.Time `json:"createdAt"`
}
