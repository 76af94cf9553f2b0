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

// GormExchangeRateRepository reads published exchange rates.
type GormExchangeRateRepository struct {
	db *gorm.DB
}

// NewExchangeRateRepository creates a new GormExchangeRateRepository
func NewExchangeRateRepository(db *gorm.DB) *GormExchangeRateRepository {
	return &GormExchangeRateRepository{db: db}
}

// Latest returns the most recently published rate.
func (r *GormExchangeRateRepository) Latest(ctx context.Context) (*procurement.ExchangeRate, error) {
	var rate procurement.ExchangeRate
	err := r.db.WithContext(ctx).
		Order("date DESC").
		First(&rate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewConsistencyError("no exchange rate available")
		}
		return nil, err
	}
	return &rate, nil
}

// ByDate returns the rate published for a specific day.
func (r *GormExchangeRateRepository) ByDate(ctx context.Context, day time.Time) (*procurement.ExchangeRate, error) {
	var rate procurement.ExchangeRate
	err := r.db.WithContext(ctx).
		Where("date = ?", day.Format("2006-01-02")).
		First(&rate).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.NewNotFoundError("no exchange rate for %s", day.Format("2006-01-02"))
		}
		return nil, err
	}
	return &rate, nil
}

// Upsert inserts or replaces the rate for its date.
func (r *GormExchangeRateRepository) Upsert(ctx context.Context, rate *procurement.ExchangeRate) error {
	var existing procurement.ExchangeRate
	err := r.db.WithContext(ctx).
		Where("date = ?", rate.Date.Format("2006-01-02")).
		First(&existing).Error
	switch {
	case err == nil:
		existing.Buy = rate.Buy
		existing.Sell = rate.Sell
		return r.db.WithContext(ctx).Save(&existing).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		return r.db.WithContext(ctx).Create(rate).Error
	default:
		return err
	}
}

// GormQuotationVersionRepository reads the quotation version reference rows
// orders validate against.
type GormQuotationVersionRepository struct {
	db *gorm.DB
}

// NewQuotationVersionRepository creates a new GormQuotationVersionRepository
func NewQuotationVersionRepository(db *gorm.DB) *GormQuotationVersionRepository {
	return &GormQuotationVersionRepository{db: db}
}

// Exists reports whether the quotation version exists and belongs to the
// given quotation.
func (r *GormQuotationVersionRepository) Exists(ctx context.Context, quotationID, versionID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&procurement.QuotationVersion{}).
		Where("id = ? AND quotation_id = ?", versionID, quotationID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
