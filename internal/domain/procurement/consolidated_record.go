package procurement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corpelima/backend/internal/domain/shared"
)

// RecordStatus is the lifecycle state of a consolidated record.
type RecordStatus string

const (
	RecordActive   RecordStatus = "ACTIVE"
	RecordInactive RecordStatus = "INACTIVE"
)

// CanTransitionTo reports whether the status transition is allowed.
// The only legal transition is ACTIVE -> INACTIVE; a deactivated record is
// never revived, a new one is created instead.
func (s RecordStatus) CanTransitionTo(target RecordStatus) bool {
	return s == RecordActive && target == RecordInactive
}

// ConsolidatedRecord is the financial consolidation of all active purchase
// orders of one quotation version.
type ConsolidatedRecord struct {
	ID                 uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	QuotationID        uuid.UUID          `gorm:"type:uuid;not null;index" json:"quotation_id"`
	QuotationVersionID uuid.UUID          `gorm:"type:uuid;not null;index" json:"quotation_version_id"`
	Currency           Currency           `gorm:"size:8;not null" json:"currency"`
	TotalUSD           decimal.Decimal    `gorm:"type:decimal(14,2);not null" json:"total_usd"`
	TotalPEN           decimal.Decimal    `gorm:"type:decimal(14,2);not null" json:"total_pen"`
	TotalExclTax       decimal.Decimal    `gorm:"type:decimal(14,2);not null" json:"total_excl_tax"`
	ExchangeRate       decimal.Decimal    `gorm:"type:decimal(10,4);not null" json:"exchange_rate"`
	CompanyType        CompanyType        `gorm:"size:16;not null" json:"company_type"`
	Status             RecordStatus       `gorm:"size:16;not null;default:ACTIVE" json:"status"`
	Changed            bool               `gorm:"not null;default:false" json:"changed"`
	RecordedAt         time.Time          `gorm:"not null" json:"recorded_at"`
	Links              []ConsolidatedLink `gorm:"foreignKey:RecordID;constraint:OnDelete:CASCADE" json:"links"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// TableName returns the table name for GORM
func (ConsolidatedRecord) TableName() string {
	return "consolidated_records"
}

// ConsolidatedLink ties one purchase order into a consolidated record,
// snapshotting the contributing currency and amount. An order belongs to at
// most one record at a time.
type ConsolidatedLink struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	RecordID  uuid.UUID       `gorm:"type:uuid;not null;index" json:"record_id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex" json:"order_id"`
	Currency  Currency        `gorm:"size:8;not null" json:"currency"`
	Amount    decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"amount"`
	OrderedAt time.Time       `gorm:"not null" json:"ordered_at"`
	CreatedAt time.Time       `json:"created_at"`
}

// TableName returns the table name for GORM
func (ConsolidatedLink) TableName() string {
	return "consolidated_links"
}

// Deactivate moves the record to INACTIVE.
func (r *ConsolidatedRecord) Deactivate() error {
	if !r.Status.CanTransitionTo(RecordInactive) {
		return shared.ErrInvalidState
	}
	r.Status = RecordInactive
	return nil
}

// ApplyTotals overwrites the record's monetary fields with freshly computed
// totals and reports whether any visible figure moved.
func (r *ConsolidatedRecord) ApplyTotals(t Totals) bool {
	changed := r.Currency != t.Currency ||
		!r.TotalPEN.Equal(t.TotalPEN) ||
		!r.TotalUSD.Equal(t.TotalUSD)

	r.Currency = t.Currency
	r.TotalUSD = t.TotalUSD
	r.TotalPEN = t.TotalPEN
	r.TotalExclTax = t.TotalExclTax
	r.CompanyType = t.CompanyType
	return changed
}
