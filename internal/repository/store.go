package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"returns-reconciliation-service/internal/model"
)

var ErrNotFound = errors.New("return not found")

// Columns a later sighting of the same source record overwrites.
var overwriteColumns = []string{
	"external_reference_number",
	"external_order_id",
	"shop_order_number",
	"waybill",
	"carrier",
	"external_status",
	"updated_at",
}

// Contact columns are only written while still empty.
var fillIfAbsentColumns = []string{
	"buyer_email",
	"buyer_login",
	"customer_name",
	"customer_phone",
}

var matchColumns = map[model.MatchKey]string{
	model.MatchByReferenceNumber: "internal_return_number",
	model.MatchByShopOrderNumber: "shop_order_number",
	model.MatchByOrderNumber:     "order_number",
}

// Store is the canonical store of returns, their items and intake submissions.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the connection for health checks.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// InTx runs fn in one transaction; any error returned by fn rolls everything back.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&Tx{db: db})
	})
}

// Tx exposes the reconciliation steps that must share one transaction.
type Tx struct {
	db *gorm.DB
}

// UpsertResult describes the return row after an upsert.
type UpsertResult struct {
	ReturnID             uint64
	Created              bool
	InternalReturnNumber *string
}

// UpsertReturn inserts the draft or, when (source, external_return_id) already exists, updates
// it in the same statement. Statuses and the form link are only ever set on insert.
func (t *Tx) UpsertReturn(ctx context.Context, d model.ReturnDraft, now time.Time) (UpsertResult, error) {
	now = now.UTC().Truncate(time.Microsecond)
	row := model.Return{
		Source:                  d.Source,
		ExternalReturnID:        d.ExternalReturnID,
		ExternalReferenceNumber: d.ExternalReferenceNumber,
		ExternalOrderID:         d.ExternalOrderID,
		ShopOrderNumber:         d.ShopOrderNumber,
		BuyerEmail:              d.BuyerEmail,
		BuyerLogin:              d.BuyerLogin,
		CustomerName:            d.CustomerName,
		CustomerPhone:           d.CustomerPhone,
		Waybill:                 d.Waybill,
		Carrier:                 d.Carrier,
		ExternalStatus:          d.ExternalStatus,
		InternalStatus:          model.InternalStatusSubmitted,
		ErpStatus:               model.ErpStatusNew,
		CreatedAtExternal:       d.CreatedAtExternal,
		CreatedAt:               now,
		UpdatedAt:               now,
	}

	updates := clause.AssignmentColumns(overwriteColumns)
	for _, col := range fillIfAbsentColumns {
		updates = append(updates, clause.Assignment{
			Column: clause.Column{Name: col},
			Value:  gorm.Expr(fmt.Sprintf("COALESCE(returns.%s, excluded.%s)", col, col)),
		})
	}
	updates = append(updates, clause.Assignment{
		Column: clause.Column{Name: "created_at_external"},
		Value:  gorm.Expr("COALESCE(excluded.created_at_external, returns.created_at_external)"),
	})

	err := t.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source"}, {Name: "external_return_id"}},
			DoUpdates: updates,
		}).
		Create(&row).Error
	if err != nil {
		return UpsertResult{}, fmt.Errorf("upsert return %s/%s: %w", d.Source, d.ExternalReturnID, err)
	}

	var current model.Return
	err = t.db.WithContext(ctx).
		Select("id", "internal_return_number", "created_at").
		Where("source = ? AND external_return_id = ?", d.Source, d.ExternalReturnID).
		Take(&current).Error
	if err != nil {
		return UpsertResult{}, fmt.Errorf("resolve return id %s/%s: %w", d.Source, d.ExternalReturnID, err)
	}

	return UpsertResult{
		ReturnID:             current.ID,
		Created:              current.CreatedAt.Equal(now),
		InternalReturnNumber: current.InternalReturnNumber,
	}, nil
}

// FindUnprocessedForm returns the return number of the oldest unprocessed submission whose
// key column equals value.
func (t *Tx) FindUnprocessedForm(ctx context.Context, key model.MatchKey, value string) (string, bool, error) {
	column, ok := matchColumns[key]
	if !ok {
		return "", false, fmt.Errorf("unsupported match key %v", key)
	}

	var fr model.FormRequest
	err := t.db.WithContext(ctx).
		Select("internal_return_number").
		Where(column+" = ? AND processed_at IS NULL", value).
		Where("NOT EXISTS (SELECT 1 FROM returns r WHERE r.internal_return_number = return_requests.internal_return_number)").
		Order("id").
		Take(&fr).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("match form by %s: %w", key, err)
	}
	return fr.InternalReturnNumber, true, nil
}

// ClaimForm stamps processed_at on every still-unprocessed line of the submission.
// False means another transaction consumed it first.
func (t *Tx) ClaimForm(ctx context.Context, number string, at time.Time) (bool, error) {
	res := t.db.WithContext(ctx).
		Model(&model.FormRequest{}).
		Where("internal_return_number = ? AND processed_at IS NULL", number).
		Update("processed_at", at.UTC())
	if res.Error != nil {
		return false, fmt.Errorf("claim form %s: %w", number, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// FormLines returns every product line of a submission, in submission order.
func (t *Tx) FormLines(ctx context.Context, number string) ([]model.FormRequest, error) {
	var lines []model.FormRequest
	err := t.db.WithContext(ctx).
		Where("internal_return_number = ?", number).
		Order("id").
		Find(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("load form %s: %w", number, err)
	}
	return lines, nil
}

// LinkForm stamps the submission number on the return and fills contact fields still empty.
func (t *Tx) LinkForm(ctx context.Context, returnID uint64, number string, contact model.FormRequest, now time.Time) error {
	err := t.db.WithContext(ctx).
		Model(&model.Return{}).
		Where("id = ?", returnID).
		Updates(map[string]any{
			"internal_return_number": number,
			"buyer_email":            gorm.Expr("COALESCE(buyer_email, ?)", contact.CustomerEmail),
			"customer_name":          gorm.Expr("COALESCE(customer_name, ?)", contact.CustomerName),
			"customer_phone":         gorm.Expr("COALESCE(customer_phone, ?)", contact.CustomerPhone),
			"updated_at":             now.UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("link return %d to form %s: %w", returnID, number, err)
	}
	return nil
}

// ReplaceItems swaps the whole item set of a return.
func (t *Tx) ReplaceItems(ctx context.Context, returnID uint64, items []model.ItemDraft) error {
	if err := t.db.WithContext(ctx).Where("return_id = ?", returnID).Delete(&model.ReturnItem{}).Error; err != nil {
		return fmt.Errorf("delete items of return %d: %w", returnID, err)
	}
	if len(items) == 0 {
		return nil
	}

	rows := make([]model.ReturnItem, 0, len(items))
	for _, it := range items {
		rows = append(rows, model.ReturnItem{
			ReturnID:      returnID,
			OfferID:       it.OfferID,
			ProductName:   it.ProductName,
			EAN:           it.EAN,
			Quantity:      it.Quantity,
			PriceAmount:   it.PriceAmount,
			PriceCurrency: it.PriceCurrency,
			ReasonType:    it.ReasonType,
			ReasonComment: it.ReasonComment,
		})
	}
	if err := t.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert items of return %d: %w", returnID, err)
	}
	return nil
}

// ReturnFilter narrows the operator listing.
type ReturnFilter struct {
	Source         model.Source
	InternalStatus string
	Limit          int
	Offset         int
}

// ListReturns returns returns with their items, newest first.
func (s *Store) ListReturns(ctx context.Context, f ReturnFilter) ([]model.Return, error) {
	q := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order("created_at_external DESC").
		Order("created_at DESC")
	if f.Source != "" {
		q = q.Where("source = ?", f.Source)
	}
	if f.InternalStatus != "" {
		q = q.Where("internal_status = ?", f.InternalStatus)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	var out []model.Return
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// FindReturn returns one return with its items.
func (s *Store) FindReturn(ctx context.Context, id uint64) (*model.Return, error) {
	var r model.Return
	err := s.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("id = ?", id).
		Take(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// UpdateStatus writes only the operator-owned status columns. Empty values are left as they are;
// the erp change time is stamped only when erpStatus is given.
func (s *Store) UpdateStatus(ctx context.Context, id uint64, internalStatus, erpStatus string, now time.Time) (*model.Return, error) {
	now = now.UTC()
	updates := map[string]any{"updated_at": now}
	if internalStatus != "" {
		updates["internal_status"] = internalStatus
	}
	if erpStatus != "" {
		updates["erp_status"] = erpStatus
		updates["erp_status_updated_at"] = now
	}

	res := s.db.WithContext(ctx).Model(&model.Return{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return s.FindReturn(ctx, id)
}
