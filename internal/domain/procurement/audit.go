package procurement

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuditOperation classifies an audit entry.
type AuditOperation string

const (
	AuditCreate     AuditOperation = "CREATE"
	AuditUpdate     AuditOperation = "UPDATE"
	AuditDelete     AuditOperation = "DELETE"
	AuditDeactivate AuditOperation = "DEACTIVATE"
)

// AuditEntityKind names the entity family an audit entry refers to.
type AuditEntityKind string

const (
	AuditKindOrder  AuditEntityKind = "ORDER"
	AuditKindRecord AuditEntityKind = "CONSOLIDATED_RECORD"
)

// refChangeSeparator joins the old and new value of a changed reference.
const refChangeSeparator = " ----> "

// AuditEntry is one immutable row of the audit trail. Rows are written in
// the same transaction as the change they describe and are never updated or
// deleted afterwards.
//
// OrderID is a nullable foreign key: when an order is deleted the reference
// is set to NULL while OrderNumber keeps the human-readable identifier, so
// history outlives the entity. Display names of providers, contacts and
// products are never denormalized here; the read side joins them.
type AuditEntry struct {
	ID                 uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	OccurredAt         time.Time        `gorm:"not null;index" json:"occurred_at"`
	Operation          AuditOperation   `gorm:"size:16;not null;index" json:"operation"`
	EntityKind         AuditEntityKind  `gorm:"size:24;not null;index" json:"entity_kind"`
	OrderID            *uuid.UUID       `gorm:"type:uuid;index" json:"order_id"`
	OrderNumber        string           `gorm:"size:20;not null;index" json:"order_number"`
	QuotationID        uuid.UUID        `gorm:"type:uuid;not null;index" json:"quotation_id"`
	QuotationVersionID uuid.UUID        `gorm:"type:uuid;not null;index:idx_audit_quotation_version" json:"quotation_version_id"`
	RecordID           *uuid.UUID       `gorm:"type:uuid;index" json:"record_id"`
	UserID             *uuid.UUID       `gorm:"type:uuid" json:"user_id"`
	ProviderChange     string           `gorm:"size:100" json:"provider_change"`
	ContactChange      string           `gorm:"size:100" json:"contact_change"`
	ProductsAdded      string           `gorm:"type:text" json:"products_added"`
	ProductsModified   string           `gorm:"type:text" json:"products_modified"`
	ProductsRemoved    string           `gorm:"type:text" json:"products_removed"`
	AmountBefore       *decimal.Decimal `gorm:"type:decimal(14,2)" json:"amount_before"`
	AmountAfter        *decimal.Decimal `gorm:"type:decimal(14,2)" json:"amount_after"`
	Summary            string           `gorm:"size:255" json:"summary"`
	Reason             string           `gorm:"size:255" json:"reason"`
	CreatedAt          time.Time        `json:"created_at"`
}

// TableName returns the table name for GORM
func (AuditEntry) TableName() string {
	return "audit_entries"
}

// EncodeRefCreate encodes a reference captured at creation: the bare id.
func EncodeRefCreate(id uuid.UUID) string {
	return id.String()
}

// EncodeRefChange encodes a changed reference as "<old> ----> <new>".
// Unchanged references should be recorded with EncodeRefCreate of the
// current value instead.
func EncodeRefChange(oldID, newID uuid.UUID) string {
	return oldID.String() + refChangeSeparator + newID.String()
}

// ProductModification describes one changed line inside an update entry.
type ProductModification struct {
	ProductID     uuid.UUID `json:"id"`
	ChangedFields []string  `json:"changedFields"`
}

// EncodeProductIDs marshals a product id list for the added/removed columns.
// Returns the empty string for an empty delta so the column stays blank.
func EncodeProductIDs(ids []uuid.UUID) string {
	if len(ids) == 0 {
		return ""
	}
	b, _ := json.Marshal(ids)
	return string(b)
}

// EncodeProductModifications marshals the modified-lines delta.
func EncodeProductModifications(mods []ProductModification) string {
	if len(mods) == 0 {
		return ""
	}
	b, _ := json.Marshal(mods)
	return string(b)
}

// DecodeProductIDs is the inverse of EncodeProductIDs.
func DecodeProductIDs(raw string) ([]uuid.UUID, error) {
	if raw == "" {
		return nil, nil
	}
	var ids []uuid.UUID
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// DecodeProductModifications is the inverse of EncodeProductModifications.
func DecodeProductModifications(raw string) ([]ProductModification, error) {
	if raw == "" {
		return nil, nil
	}
	var mods []ProductModification
	if err := json.Unmarshal([]byte(raw), &mods); err != nil {
		return nil, err
	}
	return mods, nil
}
