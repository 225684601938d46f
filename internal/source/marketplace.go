package source

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"returns-reconciliation-service/internal/model"
)

// MarketplaceReturn is a customer return as reported by the marketplace returns API.
type MarketplaceReturn struct {
	ID              string `json:"id"`
	ReferenceNumber string `json:"referenceNumber"`
	OrderID         string `json:"orderId"`
	Status          string `json:"status"`
	CreatedAt       string `json:"createdAt"`
	Buyer           *struct {
		Email string `json:"email"`
		Login string `json:"login"`
	} `json:"buyer"`
	Parcels []struct {
		Waybill   string `json:"waybill"`
		CarrierID string `json:"carrierId"`
		Sender    *struct {
			PhoneNumber string `json:"phoneNumber"`
		} `json:"sender"`
	} `json:"parcels"`
	Items []MarketplaceItem `json:"items"`
}

type MarketplaceItem struct {
	OfferID  string `json:"offerId"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    *struct {
		Amount   json.RawMessage `json:"amount"`
		Currency string          `json:"currency"`
	} `json:"price"`
	Reason *struct {
		Type        string `json:"type"`
		UserComment string `json:"userComment"`
	} `json:"reason"`
}

type MarketplaceNormalizer struct{}

func (MarketplaceNormalizer) Source() model.Source { return model.SourceMarketplace }

func (MarketplaceNormalizer) Normalize(raw json.RawMessage) (model.ReturnDraft, []model.ItemDraft, error) {
	var r MarketplaceReturn
	if err := json.Unmarshal(raw, &r); err != nil {
		return model.ReturnDraft{}, nil, malformed("marketplace: %v", err)
	}
	if strings.TrimSpace(r.ID) == "" {
		return model.ReturnDraft{}, nil, malformed("marketplace: missing id")
	}

	draft := model.ReturnDraft{
		Source:                  model.SourceMarketplace,
		ExternalReturnID:        strings.TrimSpace(r.ID),
		ExternalReferenceNumber: model.NullString(r.ReferenceNumber),
		ExternalOrderID:         model.NullString(r.OrderID),
		ExternalStatus:          model.NullString(r.Status),
		CreatedAtExternal:       parseRFC3339(r.CreatedAt),
	}
	if r.Buyer != nil {
		draft.BuyerEmail = model.NullString(r.Buyer.Email)
		draft.BuyerLogin = model.NullString(r.Buyer.Login)
	}
	if len(r.Parcels) > 0 {
		p := r.Parcels[0]
		draft.Waybill = model.NullString(p.Waybill)
		draft.Carrier = model.NullString(p.CarrierID)
		if p.Sender != nil {
			draft.CustomerPhone = model.NullString(p.Sender.PhoneNumber)
		}
	}

	items := make([]model.ItemDraft, 0, len(r.Items))
	for _, it := range r.Items {
		item := model.ItemDraft{
			OfferID:     model.NullString(it.OfferID),
			ProductName: strings.TrimSpace(it.Name),
			Quantity:    it.Quantity,
		}
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		if it.Price != nil {
			item.PriceAmount = parseAmount(it.Price.Amount)
			item.PriceCurrency = model.NullString(it.Price.Currency)
		}
		if it.Reason != nil {
			item.ReasonType = model.NullString(it.Reason.Type)
			item.ReasonComment = model.NullString(it.Reason.UserComment)
		}
		items = append(items, item)
	}

	return draft, items, nil
}

func parseRFC3339(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// parseAmount accepts the amount as a JSON string or number; anything else is treated as absent.
func parseAmount(raw json.RawMessage) decimal.NullDecimal {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return decimal.NullDecimal{}
	}
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(amount)
}
