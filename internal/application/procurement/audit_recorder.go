package procurement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corpelima/backend/internal/domain/procurement"
	"github.com/corpelima/backend/internal/infrastructure/persistence"
)

// AuditRecorder appends audit entries inside the caller's unit of work, so
// a row exists exactly when the change it describes is durable.
type AuditRecorder struct{}

// NewAuditRecorder creates an AuditRecorder.
func NewAuditRecorder() *AuditRecorder {
	return &AuditRecorder{}
}

// OrderCreated writes the creation entry for one order: bare reference ids,
// the full line set as additions, and the resulting amount.
func (a *AuditRecorder) OrderCreated(ctx context.Context, uow *persistence.UnitOfWork, order *procurement.PurchaseOrder) error {
	productIDs := make([]uuid.UUID, 0, len(order.Lines))
	for i := range order.Lines {
		productIDs = append(productIDs, order.Lines[i].ProductID)
	}
	amount := order.Total
	userID := order.UserID

	entry := &procurement.AuditEntry{
		ID:                 uuid.New(),
		OccurredAt:         time.Now(),
		Operation:          procurement.AuditCreate,
		EntityKind:         procurement.AuditKindOrder,
		OrderID:            &order.ID,
		OrderNumber:        order.Correlative,
		QuotationID:        order.QuotationID,
		QuotationVersionID: order.QuotationVersionID,
		UserID:             &userID,
		ProviderChange:     procurement.EncodeRefCreate(order.ProviderID),
		ContactChange:      procurement.EncodeRefCreate(order.ProviderContactID),
		ProductsAdded:      procurement.EncodeProductIDs(productIDs),
		AmountAfter:        &amount,
		Summary:            fmt.Sprintf("order %s created", order.Correlative),
	}
	return persistence.NewAuditRepository(uow.DB()).Create(ctx, entry)
}

// OrderUpdated writes the update entry: arrow-encoded reference changes,
// product deltas and the amount movement. recordID, when known, ties the
// entry to the consolidated record the order belonged to before the change.
func (a *AuditRecorder) OrderUpdated(ctx context.Context, uow *persistence.UnitOfWork, before, after *procurement.PurchaseOrder, userID uuid.UUID, recordID *uuid.UUID, reason string) error {
	amountBefore := before.Total
	amountAfter := after.Total

	entry := &procurement.AuditEntry{
		ID:                 uuid.New(),
		OccurredAt:         time.Now(),
		Operation:          procurement.AuditUpdate,
		EntityKind:         procurement.AuditKindOrder,
		OrderID:            &after.ID,
		OrderNumber:        after.Correlative,
		QuotationID:        after.QuotationID,
		QuotationVersionID: after.QuotationVersionID,
		RecordID:           recordID,
		UserID:             &userID,
		ProviderChange:     encodeRef(before.ProviderID, after.ProviderID),
		ContactChange:      encodeRef(before.ProviderContactID, after.ProviderContactID),
		AmountBefore:       &amountBefore,
		AmountAfter:        &amountAfter,
		Summary:            fmt.Sprintf("order %s updated", after.Correlative),
		Reason:             reason,
	}

	added, modified, removed := diffLines(before.Lines, after.Lines)
	entry.ProductsAdded = procurement.EncodeProductIDs(added)
	entry.ProductsModified = procurement.EncodeProductModifications(modified)
	entry.ProductsRemoved = procurement.EncodeProductIDs(removed)

	return persistence.NewAuditRepository(uow.DB()).Create(ctx, entry)
}

// OrderDeleted writes the deletion entry. The order reference is NULL from
// the start — the row outlives the entity it describes — while the
// correlative string is preserved verbatim.
func (a *AuditRecorder) OrderDeleted(ctx context.Context, uow *persistence.UnitOfWork, order *procurement.PurchaseOrder, userID uuid.UUID, recordID *uuid.UUID, reason string) error {
	amountBefore := order.Total

	entry := &procurement.AuditEntry{
		ID:                 uuid.New(),
		OccurredAt:         time.Now(),
		Operation:          procurement.AuditDelete,
		EntityKind:         procurement.AuditKindOrder,
		OrderID:            nil,
		OrderNumber:        order.Correlative,
		QuotationID:        order.QuotationID,
		QuotationVersionID: order.QuotationVersionID,
		RecordID:           recordID,
		UserID:             &userID,
		AmountBefore:       &amountBefore,
		Summary:            fmt.Sprintf("order %s deleted", order.Correlative),
		Reason:             reason,
	}
	return persistence.NewAuditRepository(uow.DB()).Create(ctx, entry)
}

// RecordChanged writes a consolidated-record entry for the given operation.
func (a *AuditRecorder) RecordChanged(ctx context.Context, uow *persistence.UnitOfWork, record *procurement.ConsolidatedRecord, op procurement.AuditOperation, amountBefore *decimal.Decimal, reason string) error {
	amountAfter := record.TotalPEN
	recordID := record.ID

	entry := &procurement.AuditEntry{
		ID:                 uuid.New(),
		OccurredAt:         time.Now(),
		Operation:          op,
		EntityKind:         procurement.AuditKindRecord,
		QuotationID:        record.QuotationID,
		QuotationVersionID: record.QuotationVersionID,
		RecordID:           &recordID,
		AmountBefore:       amountBefore,
		AmountAfter:        &amountAfter,
		Summary:            fmt.Sprintf("consolidated record %s %s", record.ID, op),
		Reason:             reason,
	}
	return persistence.NewAuditRepository(uow.DB()).Create(ctx, entry)
}

// encodeRef picks the bare-id or arrow encoding depending on whether the
// reference moved.
func encodeRef(before, after uuid.UUID) string {
	if before == after {
		return procurement.EncodeRefCreate(after)
	}
	return procurement.EncodeRefChange(before, after)
}

// diffLines computes the product-set delta between two line sets, keyed by
// product.
func diffLines(before, after []procurement.PurchaseOrderLine) (added []uuid.UUID, modified []procurement.ProductModification, removed []uuid.UUID) {
	prev := make(map[uuid.UUID]procurement.PurchaseOrderLine, len(before))
	for i := range before {
		prev[before[i].ProductID] = before[i]
	}
	next := make(map[uuid.UUID]procurement.PurchaseOrderLine, len(after))
	for i := range after {
		next[after[i].ProductID] = after[i]
	}

	for i := range after {
		line := after[i]
		old, ok := prev[line.ProductID]
		if !ok {
			added = append(added, line.ProductID)
			continue
		}
		var fields []string
		if !old.Quantity.Equal(line.Quantity) {
			fields = append(fields, "quantity")
		}
		if !old.UnitPrice.Equal(line.UnitPrice) {
			fields = append(fields, "unit_price")
		}
		if old.TaxTreatment != line.TaxTreatment {
			fields = append(fields, "tax_treatment")
		}
		if len(fields) > 0 {
			modified = append(modified, procurement.ProductModification{
				ProductID:     line.ProductID,
				ChangedFields: fields,
			})
		}
	}
	for i := range before {
		if _, ok := next[before[i].ProductID]; !ok {
			removed = append(removed, before[i].ProductID)
		}
	}
	return added, modified, removed
}
