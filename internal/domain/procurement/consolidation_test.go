package procurement

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func orderWith(currency string, total string, consortium bool) *PurchaseOrder {
	return &PurchaseOrder{
		ID:         uuid.New(),
		Currency:   currency,
		Total:      decimal.RequireFromString(total),
		Consortium: consortium,
	}
}

func TestConsolidate_MixedCurrencies(t *testing.T) {
	// Order A: 118.00 PEN, Order B: 50.00 USD, rate 3.70
	orders := []*PurchaseOrder{
		orderWith("PEN", "118.00", false),
		orderWith("USD", "50.00", false),
	}
	rate := decimal.RequireFromString("3.70")

	totals, err := Consolidate(orders, rate)
	require.NoError(t, err)

	// 50 + 118/3.70 = 81.891891... -> 81.89
	assert.Equal(t, "81.89", totals.TotalUSD.StringFixed(2))
	// (50 + 118/3.70) * 3.70 = 303.00 exactly
	assert.Equal(t, "303.00", totals.TotalPEN.StringFixed(2))
	// 303.00 / 1.18 = 256.7796... -> 256.78
	assert.Equal(t, "256.78", totals.TotalExclTax.StringFixed(2))
	assert.Equal(t, CurrencyMixed, totals.Currency)
	assert.Equal(t, CompanyCorpelima, totals.CompanyType)
}

func TestConsolidate_SingleCurrencyTags(t *testing.T) {
	rate := decimal.RequireFromString("3.50")

	penOnly, err := Consolidate([]*PurchaseOrder{orderWith("SOLES", "100.00", false)}, rate)
	require.NoError(t, err)
	assert.Equal(t, CurrencyPEN, penOnly.Currency)

	usdOnly, err := Consolidate([]*PurchaseOrder{orderWith("DOLARES", "100.00", false)}, rate)
	require.NoError(t, err)
	assert.Equal(t, CurrencyUSD, usdOnly.Currency)
}

func TestConsolidate_PureUSDIdentity(t *testing.T) {
	// With no PEN orders the USD total is the exact USD sum.
	orders := []*PurchaseOrder{
		orderWith("USD", "10.25", false),
		orderWith("USD", "89.75", false),
	}
	totals, err := Consolidate(orders, decimal.RequireFromString("3.70"))
	require.NoError(t, err)
	assert.Equal(t, "100.00", totals.TotalUSD.StringFixed(2))
	assert.Equal(t, "370.00", totals.TotalPEN.StringFixed(2))
}

func TestConsolidate_PurePENRoundTrips(t *testing.T) {
	// A pure-PEN set converted to USD and back stays within one cent.
	orders := []*PurchaseOrder{orderWith("PEN", "1000.00", false)}
	rate := decimal.RequireFromString("3.70")

	totals, err := Consolidate(orders, rate)
	require.NoError(t, err)

	diff := totals.TotalPEN.Sub(decimal.RequireFromString("1000.00")).Abs()
	assert.True(t, diff.LessThanOrEqual(decimal.RequireFromString("0.01")),
		"pure PEN total drifted by %s", diff)
}

func TestConsolidate_ConsortiumWinsOverDefault(t *testing.T) {
	orders := []*PurchaseOrder{
		orderWith("PEN", "50.00", false),
		orderWith("PEN", "50.00", true),
	}
	totals, err := Consolidate(orders, decimal.RequireFromString("3.70"))
	require.NoError(t, err)
	assert.Equal(t, CompanyConsortium, totals.CompanyType)
}

func TestConsolidate_Deterministic(t *testing.T) {
	orders := []*PurchaseOrder{
		orderWith("PEN", "118.00", false),
		orderWith("USD", "50.00", false),
	}
	rate := decimal.RequireFromString("3.70")

	first, err := Consolidate(orders, rate)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Consolidate(orders, rate)
		require.NoError(t, err)
		assert.True(t, first.TotalPEN.Equal(again.TotalPEN))
		assert.True(t, first.TotalUSD.Equal(again.TotalUSD))
		assert.True(t, first.TotalExclTax.Equal(again.TotalExclTax))
	}
}

func TestConsolidate_Errors(t *testing.T) {
	rate := decimal.RequireFromString("3.70")

	_, err := Consolidate(nil, rate)
	assert.Error(t, err)

	_, err = Consolidate([]*PurchaseOrder{orderWith("PEN", "10.00", false)}, decimal.Zero)
	assert.Error(t, err)

	_, err = Consolidate([]*PurchaseOrder{orderWith("EUR", "10.00", false)}, rate)
	assert.Error(t, err)
}

func TestNormalizeCurrency(t *testing.T) {
	cases := map[string]Currency{
		"PEN":     CurrencyPEN,
		"soles":   CurrencyPEN,
		" Soles ": CurrencyPEN,
		"USD":     CurrencyUSD,
		"dolares": CurrencyUSD,
		"DÓLARES": CurrencyUSD,
	}
	for raw, want := range cases {
		got, err := NormalizeCurrency(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := NormalizeCurrency("EUR")
	assert.Error(t, err)
}

func TestRecordStatusTransitions(t *testing.T) {
	assert.True(t, RecordActive.CanTransitionTo(RecordInactive))
	assert.False(t, RecordInactive.CanTransitionTo(RecordActive))
	assert.False(t, RecordInactive.CanTransitionTo(RecordInactive))
	assert.False(t, RecordActive.CanTransitionTo(RecordActive))
}

func TestConsolidatedRecord_Deactivate(t *testing.T) {
	r := &ConsolidatedRecord{Status: RecordActive}
	require.NoError(t, r.Deactivate())
	assert.Equal(t, RecordInactive, r.Status)

	assert.Error(t, r.Deactivate())
}

func TestApplyTotals_ChangeDetection(t *testing.T) {
	r := &ConsolidatedRecord{
		Currency: CurrencyPEN,
		TotalPEN: decimal.RequireFromString("100.00"),
		TotalUSD: decimal.RequireFromString("27.03"),
	}

	unchanged := Totals{
		Currency: CurrencyPEN,
		TotalPEN: decimal.RequireFromString("100.00"),
		TotalUSD: decimal.RequireFromString("27.03"),
	}
	assert.False(t, r.ApplyTotals(unchanged))

	moved := unchanged
	moved.TotalPEN = decimal.RequireFromString("150.00")
	assert.True(t, r.ApplyTotals(moved))
}
