// Package procurement contains the purchase-order, consolidation and audit
// domain model.
package procurement

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corpelima/backend/internal/domain/shared"
)

// Currency is the normalized currency tag used throughout consolidation.
type Currency string

const (
	CurrencyPEN Currency = "PEN"
	CurrencyUSD Currency = "USD"
	// CurrencyMixed marks a consolidated record whose linked orders span
	// both currencies. It is never stored on an order.
	CurrencyMixed Currency = "MIX"
)

// NormalizeCurrency maps free-form currency labels (including the regional
// synonyms used by upstream systems) onto a canonical tag.
func NormalizeCurrency(raw string) (Currency, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PEN", "SOLES", "SOL", "S/":
		return CurrencyPEN, nil
	case "USD", "DOLARES", "DÓLARES", "US$":
		return CurrencyUSD, nil
	default:
		return "", shared.NewValidationError("unrecognized currency %q", raw)
	}
}

// TaxTreatment indicates whether order amounts include IGV.
type TaxTreatment string

const (
	TaxIncluded TaxTreatment = "WITH_TAX"
	TaxExcluded TaxTreatment = "WITHOUT_TAX"
)

// CompanyType tags a consolidated record with the issuing entity.
type CompanyType string

const (
	CompanyConsortium CompanyType = "CONSORTIUM"
	CompanyCorpelima  CompanyType = "CORPELIMA"
)

// PurchaseOrder is a purchase order issued against one provider contact for
// a specific quotation version.
type PurchaseOrder struct {
	ID                 uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	Correlative        string              `gorm:"size:20;uniqueIndex;not null" json:"correlative"`
	CorrelativeNumber  int                 `gorm:"not null;index" json:"correlative_number"`
	QuotationID        uuid.UUID           `gorm:"type:uuid;not null;index" json:"quotation_id"`
	QuotationVersionID uuid.UUID           `gorm:"type:uuid;not null;index:idx_po_quotation_version" json:"quotation_version_id"`
	ProviderID         uuid.UUID           `gorm:"type:uuid;not null" json:"provider_id"`
	ProviderContactID  uuid.UUID           `gorm:"type:uuid;not null" json:"provider_contact_id"`
	UserID             uuid.UUID           `gorm:"type:uuid;not null" json:"user_id"`
	Currency           string              `gorm:"size:16;not null" json:"currency"`
	Total              decimal.Decimal     `gorm:"type:decimal(14,2);not null" json:"total"`
	TaxTreatment       TaxTreatment        `gorm:"size:16;not null" json:"tax_treatment"`
	PaymentTerms       string              `gorm:"size:120" json:"payment_terms"`
	DeliveryTerms      string              `gorm:"size:120" json:"delivery_terms"`
	ArtifactKey        *string             `gorm:"size:255" json:"artifact_key"`
	Consortium         bool                `gorm:"not null;default:false" json:"consortium"`
	Active             bool                `gorm:"not null;default:true" json:"active"`
	Lines              []PurchaseOrderLine `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"lines"`
	CreatedAt          time.Time           `json:"created_at"`
	UpdatedAt          time.Time           `json:"updated_at"`
}

// TableName returns the table name for GORM
func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}

// PurchaseOrderLine is a single product line of a purchase order. Lines of
// every entry path are normalized to this one shape before persistence.
type PurchaseOrderLine struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID         uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID       uuid.UUID       `gorm:"type:uuid;not null" json:"product_id"`
	QuotationLineID uuid.UUID       `gorm:"type:uuid;not null" json:"quotation_line_id"`
	Quantity        decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"quantity"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(14,4);not null" json:"unit_price"`
	LineTotal       decimal.Decimal `gorm:"type:decimal(14,2);not null" json:"line_total"`
	TaxTreatment    TaxTreatment    `gorm:"size:16;not null" json:"tax_treatment"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName returns the table name for GORM
func (PurchaseOrderLine) TableName() string {
	return "purchase_order_lines"
}

// FormatCorrelative renders the human-readable order number for a sequence
// number and year, e.g. OC-000042-2026.
func FormatCorrelative(seq int, year int) string {
	return fmt.Sprintf("OC-%06d-%d", seq, year)
}

// NormalizedCurrency returns the canonical currency tag of the order.
func (o *PurchaseOrder) NormalizedCurrency() (Currency, error) {
	return NormalizeCurrency(o.Currency)
}

// Validate checks order fields that do not require repository access.
func (o *PurchaseOrder) Validate() error {
	if o.QuotationID == uuid.Nil || o.QuotationVersionID == uuid.Nil {
		return shared.NewValidationError("order requires a quotation and quotation version")
	}
	if o.ProviderID == uuid.Nil || o.ProviderContactID == uuid.Nil {
		return shared.NewValidationError("order requires a provider and provider contact")
	}
	if _, err := o.NormalizedCurrency(); err != nil {
		return err
	}
	if o.TaxTreatment != TaxIncluded && o.TaxTreatment != TaxExcluded {
		return shared.NewValidationError("invalid tax treatment %q", o.TaxTreatment)
	}
	if len(o.Lines) == 0 {
		return shared.NewValidationError("order %s has no lines", o.Correlative)
	}
	for i := range o.Lines {
		if err := o.Lines[i].Validate(); err != nil {
			return err
		}
	}
	if o.Total.IsNegative() {
		return shared.NewValidationError("order total cannot be negative")
	}
	return nil
}

// Validate checks line fields.
func (l *PurchaseOrderLine) Validate() error {
	if l.ProductID == uuid.Nil {
		return shared.NewValidationError("order line requires a product")
	}
	if l.QuotationLineID == uuid.Nil {
		return shared.NewValidationError("order line requires its quotation line")
	}
	if !l.Quantity.IsPositive() {
		return shared.NewValidationError("order line quantity must be positive")
	}
	if l.UnitPrice.IsNegative() {
		return shared.NewValidationError("order line unit price cannot be negative")
	}
	return nil
}

// RecomputeTotal sums line totals into the order total.
func (o *PurchaseOrder) RecomputeTotal() {
	total := decimal.Zero
	for i := range o.Lines {
		total = total.Add(o.Lines[i].LineTotal)
	}
	o.Total = total.Round(2)
}
