// models.go
package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Source string

const (
	SourceMarketplace Source = "MARKETPLACE"
	SourceLogistics   Source = "LOGISTICS"
	SourceForm        Source = "FORM"
)

func (s Source) Valid() bool {
	switch s {
	case SourceMarketplace, SourceLogistics, SourceForm:
		return true
	}
	return false
}

// Shipment states reported by the logistics source.
const (
	ExternalStatusCreated   = "CREATED"
	ExternalStatusSent      = "SENT"
	ExternalStatusDelivered = "DELIVERED"
)

// Operator workflow states, in lifecycle order.
const (
	InternalStatusSubmitted = "ZGLOSZONY"
	InternalStatusInTransit = "W_DRODZE"
	InternalStatusInStock   = "NA_MAGAZYNIE"
	InternalStatusVerified  = "ZWERYFIKOWANY"
	InternalStatusClosed    = "ZAKONCZONY"
)

// Downstream ERP export states.
const (
	ErpStatusNew      = "NOWY"
	ErpStatusQueued   = "DO_IMPORTU"
	ErpStatusError    = "BLAD"
	ErpStatusImported = "ZAIMPORTOWANY"
)

const (
	RequestTypeReturn    = "RETURN"
	RequestTypeComplaint = "COMPLAINT"
)

// Return is the canonical record of one physical return.
type Return struct {
	ID                      uint64     `gorm:"primaryKey" json:"id"`
	Source                  Source     `gorm:"size:32;not null;uniqueIndex:ux_returns_source_external,priority:1" json:"source"`
	ExternalReturnID        string     `gorm:"size:128;not null;uniqueIndex:ux_returns_source_external,priority:2" json:"externalReturnId"`
	ExternalReferenceNumber *string    `gorm:"size:128;index" json:"externalReferenceNumber"`
	ExternalOrderID         *string    `gorm:"size:128" json:"externalOrderId"`
	ShopOrderNumber         *string    `gorm:"size:128" json:"shopOrderNumber"`
	InternalReturnNumber    *string    `gorm:"size:64;uniqueIndex" json:"internalReturnNumber"`
	BuyerEmail              *string    `gorm:"size:255" json:"buyerEmail"`
	BuyerLogin              *string    `gorm:"size:255" json:"buyerLogin"`
	CustomerName            *string    `gorm:"size:255" json:"customerName"`
	CustomerPhone           *string    `gorm:"size:64" json:"customerPhone"`
	Waybill                 *string    `gorm:"size:128" json:"waybill"`
	Carrier                 *string    `gorm:"size:128" json:"carrier"`
	ExternalStatus          *string    `gorm:"size:64" json:"externalStatus"`
	InternalStatus          string     `gorm:"size:32;not null;default:ZGLOSZONY" json:"internalStatus"`
	ErpStatus               string     `gorm:"size:32;not null;default:NOWY" json:"erpStatus"`
	ErpStatusUpdatedAt      *time.Time `json:"erpStatusUpdatedAt"`
	CreatedAtExternal       *time.Time `json:"createdAtExternal"`
	CreatedAt               time.Time  `json:"createdAt"`
	UpdatedAt               time.Time  `json:"updatedAt"`

	Items []ReturnItem `gorm:"foreignKey:ReturnID" json:"items"`
}

// ReturnItem is owned by exactly one Return; the set is always replaced as a whole.
type ReturnItem struct {
	ID            uint64              `gorm:"primaryKey" json:"id"`
	ReturnID      uint64              `gorm:"not null;index" json:"returnId"`
	OfferID       *string             `gorm:"size:128" json:"offerId"`
	ProductName   string              `gorm:"size:512;not null" json:"productName"`
	EAN           *string             `gorm:"column:ean;size:64" json:"ean"`
	Quantity      int                 `gorm:"not null" json:"quantity"`
	PriceAmount   decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"priceAmount"`
	PriceCurrency *string             `gorm:"size:8" json:"priceCurrency"`
	ReasonType    *string             `gorm:"size:64" json:"reasonType"`
	ReasonComment *string             `gorm:"type:text" json:"reasonComment"`
	CreatedAt     time.Time           `json:"createdAt"`
}

// FormRequest is one product line of a customer intake submission.
type FormRequest struct {
	ID                   uint64     `gorm:"primaryKey" json:"id"`
	InternalReturnNumber string     `gorm:"size:64;not null;index" json:"internalReturnNumber"`
	OrderNumber          string     `gorm:"size:128;not null;index" json:"orderNumber"`
	ShopOrderNumber      string     `gorm:"size:128;index" json:"shopOrderNumber"`
	RequestType          string     `gorm:"size:16;not null" json:"requestType"`
	CustomerEmail        *string    `gorm:"size:255" json:"customerEmail"`
	CustomerName         *string    `gorm:"size:255" json:"customerName"`
	CustomerPhone        *string    `gorm:"size:64" json:"customerPhone"`
	ProductName          string     `gorm:"size:512;not null" json:"productName"`
	EAN                  *string    `gorm:"column:ean;size:64" json:"ean"`
	Quantity             int        `gorm:"not null" json:"quantity"`
	ReasonType           *string    `gorm:"size:64" json:"reasonType"`
	ReasonComment        *string    `gorm:"type:text" json:"reasonComment"`
	ProcessedAt          *time.Time `gorm:"index" json:"processedAt"`
	CreatedAt            time.Time  `json:"createdAt"`
}

func (FormRequest) TableName() string { return "return_requests" }

// Attachment is binary evidence attached to a submission.
type Attachment struct {
	ID                   uint64    `gorm:"primaryKey" json:"id"`
	InternalReturnNumber string    `gorm:"size:64;not null;index" json:"internalReturnNumber"`
	ProductEAN           *string   `gorm:"column:product_ean;size:64" json:"productEan"`
	MimeType             string    `gorm:"size:128;not null" json:"mimeType"`
	Data                 []byte    `gorm:"not null" json:"-"`
	CreatedAt            time.Time `json:"createdAt"`
}

func (Attachment) TableName() string { return "return_photos" }

// ReturnCounter backs the human-facing return number sequence, one row per year.
type ReturnCounter struct {
	Year  int   `gorm:"primaryKey;autoIncrement:false"`
	Value int64 `gorm:"not null"`
}

// ReturnDraft is the canonical header shape produced by a source normalizer.
type ReturnDraft struct {
	Source                  Source
	ExternalReturnID        string
	ExternalReferenceNumber *string
	ExternalOrderID         *string
	ShopOrderNumber         *string
	BuyerEmail              *string
	BuyerLogin              *string
	CustomerName            *string
	CustomerPhone           *string
	Waybill                 *string
	Carrier                 *string
	ExternalStatus          *string
	CreatedAtExternal       *time.Time
}

// ItemDraft is the canonical line item shape produced by a source normalizer.
type ItemDraft struct {
	OfferID       *string
	ProductName   string
	EAN           *string
	Quantity      int
	PriceAmount   decimal.NullDecimal
	PriceCurrency *string
	ReasonType    *string
	ReasonComment *string
}

// MatchKey names one level of the form matching hierarchy.
type MatchKey int

const (
	MatchByReferenceNumber MatchKey = iota + 1
	MatchByShopOrderNumber
	MatchByOrderNumber
)

func (k MatchKey) String() string {
	switch k {
	case MatchByReferenceNumber:
		return "reference_number"
	case MatchByShopOrderNumber:
		return "shop_order_number"
	case MatchByOrderNumber:
		return "order_number"
	}
	return "unknown"
}

// NullString trims s and returns nil for blank values.
func NullString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the pointed-to string or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
