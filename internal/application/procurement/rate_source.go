package procurement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/corpelima/backend/internal/infrastructure/persistence"
)

// DatabaseRateSource reads the latest published sell rate from the
// exchange-rates table.
type DatabaseRateSource struct {
	uowm *persistence.UnitOfWorkManager
}

// NewDatabaseRateSource creates a DatabaseRateSource.
func NewDatabaseRateSource(uowm *persistence.UnitOfWorkManager) *DatabaseRateSource {
	return &DatabaseRateSource{uowm: uowm}
}

// Ensure DatabaseRateSource implements RateSource
var _ RateSource = (*DatabaseRateSource)(nil)

// LatestRate returns the most recent sell rate and its publication date.
// When no rate exists at all the error carries the CONSISTENCY code: a
// first consolidation cannot proceed without one.
func (s *DatabaseRateSource) LatestRate(ctx context.Context) (decimal.Decimal, time.Time, error) {
	rate, err := persistence.NewExchangeRateRepository(s.uowm.DB()).Latest(ctx)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, err
	}
	return rate.Sell, rate.Date, nil
}
