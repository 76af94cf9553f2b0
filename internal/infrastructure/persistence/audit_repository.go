package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/corpelima/backend/internal/domain/procurement"
)

// AuditFilter narrows audit trail listings. Zero values mean "no filter".
type AuditFilter struct {
	OrderID     *uuid.UUID
	OrderNumber string
	Operation   procurement.AuditOperation
	EntityKind  procurement.AuditEntityKind
	From        *time.Time
	To          *time.Time
	Page        int
	PageSize    int
}

// GormAuditRepository persists the append-only audit trail. There are no
// update or delete methods on purpose.
type GormAuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new GormAuditRepository
func NewAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

// Create appends one audit entry. Must run inside the same transaction as
// the change it describes.
func (r *GormAuditRepository) Create(ctx context.Context, entry *procurement.AuditEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// List returns audit entries matching the filter, newest first, with the
// total count before pagination.
func (r *GormAuditRepository) List(ctx context.Context, filter AuditFilter) ([]procurement.AuditEntry, int64, error) {
	query := r.db.WithContext(ctx).Model(&procurement.AuditEntry{})

	if filter.OrderID != nil {
		query = query.Where("order_id = ?", *filter.OrderID)
	}
	if filter.OrderNumber != "" {
		query = query.Where("order_number LIKE ?", "%"+filter.OrderNumber+"%")
	}
	if filter.Operation != "" {
		query = query.Where("operation = ?", filter.Operation)
	}
	if filter.EntityKind != "" {
		query = query.Where("entity_kind = ?", filter.EntityKind)
	}
	if filter.From != nil {
		query = query.Where("occurred_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("occurred_at <= ?", *filter.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	var entries []procurement.AuditEntry
	err := query.
		Order("occurred_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error
	if err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// LatestRecordID derives the consolidated record most recently associated
// with a quotation version from order audit history. This is the first step
// of orphan detection: the record itself may already be unreachable through
// live links.
func (r *GormAuditRepository) LatestRecordID(ctx context.Context, quotationID, versionID uuid.UUID) (*uuid.UUID, error) {
	var entry procurement.AuditEntry
	err := r.db.WithContext(ctx).
		Where("quotation_id = ? AND quotation_version_id = ?", quotationID, versionID).
		Where("entity_kind = ?", procurement.AuditKindOrder).
		Where("record_id IS NOT NULL").
		Order("occurred_at DESC").
		First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return entry.RecordID, nil
}
