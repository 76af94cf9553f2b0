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

// GormConsolidatedRecordRepository persists consolidated records and their
// order links.
type GormConsolidatedRecordRepository struct {
	db *gorm.DB
}

// NewConsolidatedRecordRepository creates a new GormConsolidatedRecordRepository
func NewConsolidatedRecordRepository(db *gorm.DB) *GormConsolidatedRecordRepository {
	return &GormConsolidatedRecordRepository{db: db}
}

// FindByID finds a record with its links
func (r *GormConsolidatedRecordRepository) FindByID(ctx context.Context, id uuid.UUID) (*procurement.ConsolidatedRecord, error) {
	var record procurement.ConsolidatedRecord
	if err := r.db.WithContext(ctx).
		Preload("Links").
		First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("consolidated record %s not found", id)
		}
		return nil, err
	}
	return &record, nil
}

// FindActiveByQuotationVersion resolves the active record of a quotation
// version by walking links to the linked orders. A record that lost all its
// links is invisible to this lookup; that gap is what FindOrphan closes.
func (r *GormConsolidatedRecordRepository) FindActiveByQuotationVersion(ctx context.Context, quotationID, versionID uuid.UUID) (*procurement.ConsolidatedRecord, error) {
	var record procurement.ConsolidatedRecord
	err := r.db.WithContext(ctx).
		Joins("JOIN consolidated_links ON consolidated_links.record_id = consolidated_records.id").
		Joins("JOIN purchase_orders ON purchase_orders.id = consolidated_links.order_id").
		Where("purchase_orders.quotation_id = ? AND purchase_orders.quotation_version_id = ?", quotationID, versionID).
		Where("consolidated_records.status = ?", procurement.RecordActive).
		Preload("Links").
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// Create inserts a new record without links; links follow via ReplaceLinks.
func (r *GormConsolidatedRecordRepository) Create(ctx context.Context, record *procurement.ConsolidatedRecord) error {
	return r.db.WithContext(ctx).Omit("Links").Create(record).Error
}

// Save updates a record without touching links.
func (r *GormConsolidatedRecordRepository) Save(ctx context.Context, record *procurement.ConsolidatedRecord) error {
	return r.db.WithContext(ctx).Omit("Links").Save(record).Error
}

// ReplaceLinks swaps the record's link set: delete then reinsert. Running
// inside the caller's transaction keeps the record from ever being visible
// with a partial set.
func (r *GormConsolidatedRecordRepository) ReplaceLinks(ctx context.Context, recordID uuid.UUID, links []procurement.ConsolidatedLink) error {
	if err := r.db.WithContext(ctx).
		Delete(&procurement.ConsolidatedLink{}, "record_id = ?", recordID).Error; err != nil {
		return err
	}
	for i := range links {
		if err := r.db.WithContext(ctx).Create(&links[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// CountLinks returns the record's current link count.
func (r *GormConsolidatedRecordRepository) CountLinks(ctx context.Context, recordID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&procurement.ConsolidatedLink{}).
		Where("record_id = ?", recordID).
		Count(&count).Error
	return count, err
}

// FindLinkByOrder returns the link an order currently participates in, or
// nil when the order is not consolidated yet.
func (r *GormConsolidatedRecordRepository) FindLinkByOrder(ctx context.Context, orderID uuid.UUID) (*procurement.ConsolidatedLink, error) {
	var link procurement.ConsolidatedLink
	err := r.db.WithContext(ctx).
		First(&link, "order_id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

// DeleteLinkByOrder removes the link owned by one order, if any.
func (r *GormConsolidatedRecordRepository) DeleteLinkByOrder(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Delete(&procurement.ConsolidatedLink{}, "order_id = ?", orderID).Error
}

// Delete removes the record and its links.
func (r *GormConsolidatedRecordRepository) Delete(ctx context.Context, recordID uuid.UUID) error {
	if err := r.db.WithContext(ctx).
		Delete(&procurement.ConsolidatedLink{}, "record_id = ?", recordID).Error; err != nil {
		return err
	}
	res := r.db.WithContext(ctx).
		Delete(&procurement.ConsolidatedRecord{}, "id = ?", recordID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return shared.NewNotFoundError("consolidated record %s not found", recordID)
	}
	return nil
}

// MarkViewed clears the changed-since-last-view flag.
func (r *GormConsolidatedRecordRepository) MarkViewed(ctx context.Context, recordID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&procurement.ConsolidatedRecord{}).
		Where("id = ?", recordID).
		Updates(map[string]any{"changed": false, "updated_at": time.Now()}).Error
}
