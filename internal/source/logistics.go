package source

import (
	"encoding/json"
	"strings"
	"time"
	_ "time/tzdata"

	"returns-reconciliation-service/internal/model"
)

// Names of the free-form fields the logistics form carries the shop references in.
const (
	logisticsOrderNumberField  = "orderNumber"
	logisticsReturnNumberField = "Input"
)

const logisticsTimeLayout = "2006-01-02 15:04:05"

// logisticsZone is the wall clock the logistics API writes its zone-less timestamps in.
var logisticsZone = mustLoadLocation("Europe/Warsaw")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// LogisticsShipment is a reverse-shipping order as reported by the logistics API.
type LogisticsShipment struct {
	HID              string            `json:"hid"`
	CreatedAt        string            `json:"created_at"`
	SentAt           string            `json:"sent_at"`
	DeliveredAt      string            `json:"delivered_at"`
	SenderEmail      string            `json:"sender_email"`
	SenderName       string            `json:"sender_name"`
	SenderPhone      string            `json:"sender_phone"`
	TrackingNumber   string            `json:"tracking_number"`
	CarrierName      string            `json:"carrier_name"`
	AdditionalFields []AdditionalField `json:"additional_fields"`
}

type AdditionalField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

func (s LogisticsShipment) field(name string) *string {
	for _, f := range s.AdditionalFields {
		if f.Name == name {
			return model.NullString(f.Value)
		}
	}
	return nil
}

// ShipmentStatus derives the shipment state from the most advanced timestamp present.
func (s LogisticsShipment) ShipmentStatus() string {
	switch {
	case strings.TrimSpace(s.DeliveredAt) != "":
		return model.ExternalStatusDelivered
	case strings.TrimSpace(s.SentAt) != "":
		return model.ExternalStatusSent
	default:
		return model.ExternalStatusCreated
	}
}

type LogisticsNormalizer struct{}

func (LogisticsNormalizer) Source() model.Source { return model.SourceLogistics }

// Normalize keys the return by the customer's return number when the shipment carries one,
// otherwise by the shipment hid. Logistics shipments never carry items.
func (LogisticsNormalizer) Normalize(raw json.RawMessage) (model.ReturnDraft, []model.ItemDraft, error) {
	var s LogisticsShipment
	if err := json.Unmarshal(raw, &s); err != nil {
		return model.ReturnDraft{}, nil, malformed("logistics: %v", err)
	}

	orderNumber := s.field(logisticsOrderNumberField)
	returnNumber := s.field(logisticsReturnNumberField)

	externalID := returnNumber
	if externalID == nil {
		externalID = model.NullString(s.HID)
	}
	if externalID == nil {
		return model.ReturnDraft{}, nil, malformed("logistics: missing hid and return number")
	}

	status := s.ShipmentStatus()
	draft := model.ReturnDraft{
		Source:                  model.SourceLogistics,
		ExternalReturnID:        *externalID,
		ExternalReferenceNumber: returnNumber,
		ExternalOrderID:         orderNumber,
		ShopOrderNumber:         orderNumber,
		BuyerEmail:              model.NullString(s.SenderEmail),
		CustomerName:            model.NullString(s.SenderName),
		CustomerPhone:           model.NullString(s.SenderPhone),
		Waybill:                 model.NullString(s.TrackingNumber),
		Carrier:                 model.NullString(s.CarrierName),
		ExternalStatus:          &status,
		CreatedAtExternal:       parseLogisticsTime(s.CreatedAt),
	}
	return draft, nil, nil
}

func parseLogisticsTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.ParseInLocation(logisticsTimeLayout, s, logisticsZone)
	if err != nil {
		t, err = time.Parse(time.RFC3339, s)
		if err != nil {
			return nil
		}
	}
	t = t.UTC()
	return &t
}
