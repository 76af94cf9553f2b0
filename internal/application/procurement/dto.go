package procurement

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corpelima/backend/internal/domain/procurement"
)

// OrderLineInput is the single canonical line shape every entry path is
// normalized to before any downstream logic runs.
type OrderLineInput struct {
	ProductID       uuid.UUID       `json:"product_id"`
	QuotationLineID uuid.UUID       `json:"quotation_line_id"`
	Quantity        decimal.Decimal `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	TaxTreatment    string          `json:"tax_treatment"`
}

// OrderInput describes one order of a creation batch.
type OrderInput struct {
	ProviderID        uuid.UUID        `json:"provider_id"`
	ProviderContactID uuid.UUID        `json:"provider_contact_id"`
	Currency          string           `json:"currency"`
	TaxTreatment      string           `json:"tax_treatment"`
	PaymentTerms      string           `json:"payment_terms"`
	DeliveryTerms     string           `json:"delivery_terms"`
	Consortium        bool             `json:"consortium"`
	Lines             []OrderLineInput `json:"lines"`
}

// CreateOrderBatchRequest creates one order per provider contact against a
// quotation version.
type CreateOrderBatchRequest struct {
	QuotationID        uuid.UUID    `json:"quotation_id"`
	QuotationVersionID uuid.UUID    `json:"quotation_version_id"`
	UserID             uuid.UUID    `json:"user_id"`
	Orders             []OrderInput `json:"orders"`
}

// CreatedOrder reports one persisted order of a batch.
type CreatedOrder struct {
	ID          uuid.UUID `json:"id"`
	Correlative string    `json:"correlative"`
	ArtifactKey string    `json:"artifact_key"`
}

// CreateOrderBatchResult is the outcome of a committed batch.
type CreateOrderBatchResult struct {
	Orders []CreatedOrder `json:"orders"`
}

// UpdateOrderRequest mutates one order. Nil/empty fields are left as they
// are; Lines, when present, is the complete new line set.
type UpdateOrderRequest struct {
	OrderID            uuid.UUID        `json:"order_id"`
	UserID             uuid.UUID        `json:"user_id"`
	QuotationID        *uuid.UUID       `json:"quotation_id"`
	QuotationVersionID *uuid.UUID       `json:"quotation_version_id"`
	ProviderID         *uuid.UUID       `json:"provider_id"`
	ProviderContactID  *uuid.UUID       `json:"provider_contact_id"`
	Currency           *string          `json:"currency"`
	PaymentTerms       *string          `json:"payment_terms"`
	DeliveryTerms      *string          `json:"delivery_terms"`
	Lines              []OrderLineInput `json:"lines"`
	Reason             string           `json:"reason"`
}

// DeleteOrderRequest removes one order.
type DeleteOrderRequest struct {
	OrderID uuid.UUID `json:"order_id"`
	UserID  uuid.UUID `json:"user_id"`
	Reason  string    `json:"reason"`
}

// AuditListRequest filters the audit trail read side.
type AuditListRequest struct {
	OrderID     *uuid.UUID `json:"order_id"`
	OrderNumber string     `json:"order_number"`
	Operation   string     `json:"operation"`
	EntityKind  string     `json:"entity_kind"`
	From        *time.Time `json:"from"`
	To          *time.Time `json:"to"`
	Page        int        `json:"page"`
	PageSize    int        `json:"page_size"`
}

// AuditListResult is one page of audit entries plus the total match count.
type AuditListResult struct {
	Entries []procurement.AuditEntry `json:"entries"`
	Total   int64                    `json:"total"`
	Page    int                      `json:"page"`
}

// toLine converts the canonical input into a persisted line.
func (in OrderLineInput) toLine(orderID uuid.UUID) procurement.PurchaseOrderLine {
	return procurement.PurchaseOrderLine{
		ID:              uuid.New(),
		OrderID:         orderID,
		ProductID:       in.ProductID,
		QuotationLineID: in.QuotationLineID,
		Quantity:        in.Quantity,
		UnitPrice:       in.UnitPrice,
		LineTotal:       in.Quantity.Mul(in.UnitPrice).Round(2),
		TaxTreatment:    procurement.TaxTreatment(in.TaxTreatment),
	}
}
