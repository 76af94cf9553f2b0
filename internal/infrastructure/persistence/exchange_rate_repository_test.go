package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corpelima/backend/internal/domain/procurement"
	"github.com/corpelima/backend/internal/domain/shared"
)

func TestLatestRateRequiresPublishedRate(t *testing.T) {
	db := setupProcurementDB(t)
	repo := NewExchangeRateRepository(db)

	_, err := repo.Latest(context.Background())
	require.Error(t, err)
	assert.True(t, shared.IsCode(err, shared.ErrConsistency.Code))
}

func TestLatestRatePicksMostRecentDate(t *testing.T) {
	db := setupProcurementDB(t)
	repo := NewExchangeRateRepository(db)
	ctx := context.Background()

	older := &procurement.ExchangeRate{
		ID:   uuid.New(),
		Date: time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC),
		Buy:  decimal.NewFromFloat(3.65),
		Sell: decimal.NewFromFloat(3.68),
	}
	newer := &procurement.ExchangeRate{
		ID:   uuid.New(),
		Date: time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		Buy:  decimal.NewFromFloat(3.67),
		Sell: decimal.NewFromFloat(3.70),
	}
	require.NoError(t, db.Create(older).Error)
	require.NoError(t, db.Create(newer).Error)

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.True(t, latest.Sell.Equal(decimal.NewFromFloat(3.70)))
}

func TestQuotationVersionExists(t *testing.T) {
	db := setupProcurementDB(t)
	repo := NewQuotationVersionRepository(db)
	ctx := context.Background()

	quotationID := uuid.New()
	version := &procurement.QuotationVersion{
		ID:          uuid.New(),
		QuotationID: quotationID,
		Version:     1,
	}
	require.NoError(t, db.Create(version).Error)

	ok, err := repo.Exists(ctx, quotationID, version.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	// Right version id under the wrong quotation does not count.
	ok, err = repo.Exists(ctx, uuid.New(), version.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.Exists(ctx, quotationID, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}
