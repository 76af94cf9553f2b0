package procurement

import (
	"context"
	"encoding/json"
	"time"
)

// JSONArtifactGenerator renders an order document as formatted JSON. It is
// the built-in renderer; richer formats plug in behind the
// ArtifactGenerator port.
type JSONArtifactGenerator struct{}

// NewJSONArtifactGenerator creates a JSONArtifactGenerator.
func NewJSONArtifactGenerator() *JSONArtifactGenerator {
	return &JSONArtifactGenerator{}
}

// Ensure JSONArtifactGenerator implements ArtifactGenerator
var _ ArtifactGenerator = (*JSONArtifactGenerator)(nil)

type artifactLine struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
}

type artifactDocument struct {
	Correlative   string         `json:"correlative"`
	GeneratedAt   string         `json:"generated_at"`
	ProviderName  string         `json:"provider_name,omitempty"`
	ContactName   string         `json:"contact_name,omitempty"`
	Currency      string         `json:"currency"`
	TaxTreatment  string         `json:"tax_treatment"`
	PaymentTerms  string         `json:"payment_terms,omitempty"`
	DeliveryTerms string         `json:"delivery_terms,omitempty"`
	Total         string         `json:"total"`
	Lines         []artifactLine `json:"lines"`
}

// Generate renders the snapshot into the document bytes.
func (g *JSONArtifactGenerator) Generate(ctx context.Context, snapshot ArtifactSnapshot) ([]byte, string, error) {
	order := snapshot.Order

	doc := artifactDocument{
		Correlative:   order.Correlative,
		GeneratedAt:   time.Now().UTC().Format(time.RFC3339),
		ProviderName:  snapshot.ProviderName,
		ContactName:   snapshot.ContactName,
		Currency:      order.Currency,
		TaxTreatment:  string(order.TaxTreatment),
		PaymentTerms:  order.PaymentTerms,
		DeliveryTerms: order.DeliveryTerms,
		Total:         order.Total.StringFixed(2),
	}
	for i := range order.Lines {
		line := order.Lines[i]
		doc.Lines = append(doc.Lines, artifactLine{
			ProductID:   line.ProductID.String(),
			ProductName: snapshot.ProductNames[line.ProductID],
			Quantity:    line.Quantity.String(),
			UnitPrice:   line.UnitPrice.String(),
			LineTotal:   line.LineTotal.StringFixed(2),
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, "", err
	}
	return data, "application/json", nil
}
