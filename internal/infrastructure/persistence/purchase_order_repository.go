package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/corpelima/backend/internal/domain/procurement"
	"github.com/corpelima/backend/internal/domain/shared"
)

// GormPurchaseOrderRepository persists purchase orders. It is constructed
// over whichever handle the caller is working with: a unit of work's
// transaction for writes, or the plain connection for reads.
type GormPurchaseOrderRepository struct {
	db *gorm.DB
}

// NewPurchaseOrderRepository creates a new GormPurchaseOrderRepository
func NewPurchaseOrderRepository(db *gorm.DB) *GormPurchaseOrderRepository {
	return &GormPurchaseOrderRepository{db: db}
}

// NextCorrelative returns the next correlative sequence number by reading
// the current maximum inside the caller's transaction. There is no explicit
// locking; two concurrent batches can observe the same maximum, which the
// unique index on correlative then rejects at commit.
func (r *GormPurchaseOrderRepository) NextCorrelative(ctx context.Context) (int, error) {
	var current int
	err := r.db.WithContext(ctx).
		Model(&procurement.PurchaseOrder{}).
		Select("COALESCE(MAX(correlative_number), 0)").
		Scan(&current).Error
	if err != nil {
		return 0, err
	}
	return current + 1, nil
}

// CreateBatch inserts the orders with their lines. Inside a transaction the
// generated rows are visible to subsequent statements but nothing is
// durable until the unit of work commits.
func (r *GormPurchaseOrderRepository) CreateBatch(ctx context.Context, orders []*procurement.PurchaseOrder) error {
	for _, o := range orders {
		if err := r.db.WithContext(ctx).Create(o).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindByID finds a purchase order with its lines
func (r *GormPurchaseOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*procurement.PurchaseOrder, error) {
	var order procurement.PurchaseOrder
	if err := r.db.WithContext(ctx).
		Preload("Lines").
		First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("purchase order %s not found", id)
		}
		return nil, err
	}
	return &order, nil
}

// FindActiveByQuotationVersion returns all active orders of a quotation
// version, lines included, oldest first.
func (r *GormPurchaseOrderRepository) FindActiveByQuotationVersion(ctx context.Context, quotationID, versionID uuid.UUID) ([]*procurement.PurchaseOrder, error) {
	var orders []*procurement.PurchaseOrder
	err := r.db.WithContext(ctx).
		Preload("Lines").
		Where("quotation_id = ? AND quotation_version_id = ? AND active = ?", quotationID, versionID, true).
		Order("created_at ASC").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// SetArtifactKey records the storage key of the order's generated document.
func (r *GormPurchaseOrderRepository) SetArtifactKey(ctx context.Context, orderID uuid.UUID, key string) error {
	res := r.db.WithContext(ctx).
		Model(&procurement.PurchaseOrder{}).
		Where("id = ?", orderID).
		Updates(map[string]any{"artifact_key": key, "updated_at": time.Now()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.NewNotFoundError("purchase order %s not found", orderID)
	}
	return nil
}

// Save updates an order header. Lines are managed through the line methods
// below so updates can be audited as precise deltas.
func (r *GormPurchaseOrderRepository) Save(ctx context.Context, order *procurement.PurchaseOrder) error {
	return r.db.WithContext(ctx).
		Omit("Lines").
		Save(order).Error
}

// CreateLine inserts one order line
func (r *GormPurchaseOrderRepository) CreateLine(ctx context.Context, line *procurement.PurchaseOrderLine) error {
	return r.db.WithContext(ctx).Create(line).Error
}

// SaveLine updates one order line
func (r *GormPurchaseOrderRepository) SaveLine(ctx context.Context, line *procurement.PurchaseOrderLine) error {
	return r.db.WithContext(ctx).Save(line).Error
}

// DeleteLine removes one order line
func (r *GormPurchaseOrderRepository) DeleteLine(ctx context.Context, lineID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&procurement.PurchaseOrderLine{}, "id = ?", lineID).Error
}

// Delete removes the order and its lines
func (r *GormPurchaseOrderRepository) Delete(ctx context.Context, orderID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Delete(&procurement.PurchaseOrderLine{}, "order_id = ?", orderID).Error; err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Delete(&procurement.PurchaseOrder{}, "id = ?", orderID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.NewNotFoundError("purchase order %s not found", orderID)
	}
	return nil
}
