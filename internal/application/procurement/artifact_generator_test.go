package procurement_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	procurementapp "github.com/corpelima/backend/internal/application/procurement"
	"github.com/corpelima/backend/internal/domain/procurement"
)

func TestJSONArtifactGeneratorRendersDocument(t *testing.T) {
	productID := uuid.New()
	order := &procurement.PurchaseOrder{
		ID:           uuid.New(),
		Correlative:  "OC-000007-2026",
		Currency:     "PEN",
		TaxTreatment: procurement.TaxIncluded,
		PaymentTerms: "30 days",
		Total:        decimal.NewFromFloat(118.00),
		Lines: []procurement.PurchaseOrderLine{
			{
				ID:        uuid.New(),
				ProductID: productID,
				Quantity:  decimal.NewFromInt(2),
				UnitPrice: decimal.NewFromFloat(59.00),
				LineTotal: decimal.NewFromFloat(118.00),
			},
		},
	}

	gen := procurementapp.NewJSONArtifactGenerator()
	data, contentType, err := gen.Generate(context.Background(), procurementapp.ArtifactSnapshot{
		Order:        order,
		ProviderName: "ACME Perú",
		ContactName:  "J. Quispe",
		ProductNames: map[uuid.UUID]string{productID: "Cemento x 42.5kg"},
	})
	require.NoError(t, err)
	assert.Equal(t, "application/json", contentType)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "OC-000007-2026", doc["correlative"])
	assert.Equal(t, "ACME Perú", doc["provider_name"])
	assert.Equal(t, "118.00", doc["total"])

	lines, ok := doc["lines"].([]any)
	require.True(t, ok)
	require.Len(t, lines, 1)
	line := lines[0].(map[string]any)
	assert.Equal(t, "Cemento x 42.5kg", line["product_name"])
	assert.Equal(t, "118.00", line["line_total"])
}
