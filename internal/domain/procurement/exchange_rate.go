package procurement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExchangeRate is one day's published PEN-per-USD rate. Consolidation uses
// the sell rate.
type ExchangeRate struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	Date      time.Time       `gorm:"type:date;not null;uniqueIndex" json:"date"`
	Buy       decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"buy"`
	Sell      decimal.Decimal `gorm:"type:decimal(10,4);not null" json:"sell"`
	CreatedAt time.Time       `json:"created_at"`
}

// TableName returns the table name for GORM
func (ExchangeRate) TableName() string {
	return "exchange_rates"
}

// QuotationVersion is the minimal reference row orders validate against.
// The quotation module itself lives in another service; only existence and
// the owning quotation matter here.
type QuotationVersion struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	QuotationID uuid.UUID `gorm:"type:uuid;not null;index" json:"quotation_id"`
	Version     int       `gorm:"not null" json:"version"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the table name for GORM
func (QuotationVersion) TableName() string {
	return "quotation_versions"
}
