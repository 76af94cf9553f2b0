package procurement

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/corpelima/backend/internal/domain/shared"
)

// igvFactor converts a tax-inclusive PEN amount into its tax-exclusive base.
var igvFactor = decimal.NewFromFloat(1.18)

// Totals is the outcome of consolidating a set of orders under one exchange
// rate. All monetary fields are rounded to two decimals, half up.
type Totals struct {
	Currency     Currency
	TotalUSD     decimal.Decimal
	TotalPEN     decimal.Decimal
	TotalExclTax decimal.Decimal
	ExchangeRate decimal.Decimal
	CompanyType  CompanyType
}

// Consolidate computes consolidated totals for the given orders at the given
// PEN-per-USD exchange rate. It is a pure function: no I/O, no clock, no
// randomness.
//
// PEN amounts are converted to USD by dividing by the rate; the canonical
// PEN total is the USD total multiplied back by the rate, so a pure-PEN set
// round-trips through USD. The tax-exclusive total divides the PEN total by
// 1.18 (IGV).
func Consolidate(orders []*PurchaseOrder, rate decimal.Decimal) (Totals, error) {
	if len(orders) == 0 {
		return Totals{}, shared.NewValidationError("nothing to consolidate")
	}
	if !rate.IsPositive() {
		return Totals{}, shared.NewValidationError("exchange rate must be positive")
	}

	var (
		penSum     = decimal.Zero
		usdSum     = decimal.Zero
		sawPEN     bool
		sawUSD     bool
		consortium bool
	)
	for _, o := range orders {
		cur, err := o.NormalizedCurrency()
		if err != nil {
			return Totals{}, err
		}
		switch cur {
		case CurrencyPEN:
			penSum = penSum.Add(o.Total)
			sawPEN = true
		case CurrencyUSD:
			usdSum = usdSum.Add(o.Total)
			sawUSD = true
		}
		if o.Consortium {
			consortium = true
		}
	}

	// Rounding happens once per published figure, at the end. The PEN total
	// multiplies the unrounded USD sum back, so 118 PEN + 50 USD at 3.70
	// yields 303.00, not the 302.99 a cascaded rounding would produce.
	usdExact := usdSum.Add(penSum.Div(rate))
	totalUSD := usdExact.Round(2)
	totalPEN := usdExact.Mul(rate).Round(2)
	exclTax := totalPEN.Div(igvFactor).Round(2)

	currency := CurrencyMixed
	switch {
	case sawPEN && !sawUSD:
		currency = CurrencyPEN
	case sawUSD && !sawPEN:
		currency = CurrencyUSD
	}

	company := CompanyCorpelima
	if consortium {
		company = CompanyConsortium
	}

	return Totals{
		Currency:     currency,
		TotalUSD:     totalUSD,
		TotalPEN:     totalPEN,
		TotalExclTax: exclTax,
		ExchangeRate: rate,
		CompanyType:  company,
	}, nil
}

// LinkSnapshot builds the link row snapshot for one order. The amount keeps
// the order's own currency; conversion happens only in the totals.
func LinkSnapshot(recordID uuid.UUID, o *PurchaseOrder) (ConsolidatedLink, error) {
	cur, err := o.NormalizedCurrency()
	if err != nil {
		return ConsolidatedLink{}, err
	}
	return ConsolidatedLink{
		ID:        uuid.New(),
		RecordID:  recordID,
		OrderID:   o.ID,
		Currency:  cur,
		Amount:    o.Total,
		OrderedAt: o.CreatedAt,
	}, nil
}
