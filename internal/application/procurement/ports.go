// Package procurement wires the purchase-order use cases: batch creation
// with artifact generation, update and delete flows, background
// consolidation and the audit trail read side.
package procurement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corpelima/backend/internal/domain/procurement"
)

// ObjectStorage is the artifact store as the use cases see it.
type ObjectStorage interface {
	Upload(ctx context.Context, storageKey string, data []byte, contentType string) error
	DeleteObject(ctx context.Context, storageKey string) error
	ObjectExists(ctx context.Context, storageKey string) (bool, error)
}

// ArtifactSnapshot is the render input for one order document: the order
// plus the display names the document needs but the database never
// denormalizes.
type ArtifactSnapshot struct {
	Order        *procurement.PurchaseOrder
	ProviderName string
	ContactName  string
	ProductNames map[uuid.UUID]string
}

// ArtifactGenerator renders one order into its document bytes.
type ArtifactGenerator interface {
	Generate(ctx context.Context, snapshot ArtifactSnapshot) (data []byte, contentType string, err error)
}

// RateSource supplies the current PEN-per-USD sell rate for first-time
// consolidations.
type RateSource interface {
	LatestRate(ctx context.Context) (decimal.Decimal, time.Time, error)
}

// NameResolver resolves display names for artifact rendering. Provider and
// product masters live outside this service.
type NameResolver interface {
	ProviderName(ctx context.Context, providerID uuid.UUID) (string, error)
	ContactName(ctx context.Context, contactID uuid.UUID) (string, error)
	ProductNames(ctx context.Context, productIDs []uuid.UUID) (map[uuid.UUID]string, error)
}
