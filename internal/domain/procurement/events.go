package procurement

import (
	"github.com/google/uuid"

	"github.com/corpelima/backend/internal/domain/shared"
)

// Event type constants for the procurement context
const (
	EventTypeOrderBatchCreated = "procurement.order_batch.created"
	EventTypeOrderChanged      = "procurement.order.changed"
)

// OrderBatchCreatedEvent fires once per persisted batch, after the creating
// transaction commits.
type OrderBatchCreatedEvent struct {
	shared.BaseDomainEvent
	QuotationID        uuid.UUID `json:"quotation_id"`
	QuotationVersionID uuid.UUID `json:"quotation_version_id"`
	OrderCount         int       `json:"order_count"`
	Consortium         bool      `json:"consortium"`
}

// NewOrderBatchCreatedEvent creates an OrderBatchCreatedEvent
func NewOrderBatchCreatedEvent(quotationID, versionID uuid.UUID, orderCount int, consortium bool) *OrderBatchCreatedEvent {
	return &OrderBatchCreatedEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypeOrderBatchCreated, "QuotationVersion", versionID),
		QuotationID:        quotationID,
		QuotationVersionID: versionID,
		OrderCount:         orderCount,
		Consortium:         consortium,
	}
}

// OrderChangedEvent fires after an order update or deletion commits. When an
// update moved the order to another quotation version, QuotationChanged is
// set and the Prev* fields carry the version the order left, so both sides
// can be reconsolidated.
type OrderChangedEvent struct {
	shared.BaseDomainEvent
	OrderID                uuid.UUID `json:"order_id"`
	OrderNumber            string    `json:"order_number"`
	QuotationID            uuid.UUID `json:"quotation_id"`
	QuotationVersionID     uuid.UUID `json:"quotation_version_id"`
	PrevQuotationID        uuid.UUID `json:"prev_quotation_id"`
	PrevQuotationVersionID uuid.UUID `json:"prev_quotation_version_id"`
	QuotationChanged       bool      `json:"quotation_changed"`
	Deleted                bool      `json:"deleted"`
}

// NewOrderChangedEvent creates an OrderChangedEvent for an in-place change.
func NewOrderChangedEvent(order *PurchaseOrder, deleted bool) *OrderChangedEvent {
	return &OrderChangedEvent{
		BaseDomainEvent:    shared.NewBaseDomainEvent(EventTypeOrderChanged, "PurchaseOrder", order.ID),
		OrderID:            order.ID,
		OrderNumber:        order.Correlative,
		QuotationID:        order.QuotationID,
		QuotationVersionID: order.QuotationVersionID,
		Deleted:            deleted,
	}
}

// NewOrderMovedEvent creates an OrderChangedEvent for an order that changed
// quotation version.
func NewOrderMovedEvent(order *PurchaseOrder, prevQuotationID, prevVersionID uuid.UUID) *OrderChangedEvent {
	ev := NewOrderChangedEvent(order, false)
	ev.PrevQuotationID = prevQuotationID
	ev.PrevQuotationVersionID = prevVersionID
	ev.QuotationChanged = true
	return ev
}
