package model

import "fmt"

// InstrumentId uniquely identifies a tradable instrument on a venue. It is
// ordered lexicographically by its string form, which serves as the stable
// secondary sort key wherever ties must break deterministically.
type InstrumentId struct {
	Venue  string
	Symbol string
}

func NewInstrumentId(venue, symbol string) InstrumentId {
	return InstrumentId{Venue: venue, Symbol: symbol}
}

func (id InstrumentId) String() string { return fmt.Sprintf("%s.%s", id.Symbol, id.Venue) }

// Less orders two instrument ids by their string form.
func (id InstrumentId) Less(o InstrumentId) bool { return id.String() < o.String() }

// AssetClass categorizes an instrument for fee/margin treatment.
type AssetClass string

const (
	AssetClassFX       AssetClass = "FX"
	AssetClassEquity   AssetClass = "EQUITY"
	AssetClassCrypto   AssetClass = "CRYPTO"
	AssetClassFuture   AssetClass = "FUTURE"
	AssetClassCFD      AssetClass = "CFD"
)

// Instrument is the static descriptor referenced by every Price/Quantity
// constructed for this symbol; it never changes for the lifetime of a run.
type Instrument struct {
	ID              InstrumentId
	AssetClass      AssetClass
	PricePrecision  Precision
	SizePrecision   Precision
	TickSize        Price
	MinTradeSize    Quantity
	MaxTradeSize    Quantity
	QuoteCurrency   string
	BaseCurrency    string
	IsInverse       bool
	MakerFee        float64 // fraction, e.g. 0.0002
	TakerFee        float64
}

// NotionalValue computes quantity * price in the quote currency (or base
// currency for inverse instruments when invertAsQuote is false), matching the
// commission-calculation contract used by the matching engine's fee models.
func (i Instrument) NotionalValue(qty Quantity, px Price, invertAsQuote bool) Money {
	notional := qty.Decimal().Mul(px.Decimal())
	currency := i.QuoteCurrency
	if i.IsInverse && !invertAsQuote {
		currency = i.BaseCurrency
	}
	return Money{val: notional.Round(int32(i.PricePrecision)), Currency: currency, prec: i.PricePrecision}
}

// ValidateTradeSize reports whether qty is positive and within the
// instrument's min/max trade size (a zero bound is not checked); it does not
// check qty's precision. Used by order validation.
func (i Instrument) ValidateTradeSize(qty Quantity) bool {
	if qty.IsZero() || qty.IsNegative() {
		return false
	}
	if !i.MinTradeSize.IsZero() && qty.LessThan(i.MinTradeSize) {
		return false
	}
	if !i.MaxTradeSize.IsZero() && qty.GreaterThan(i.MaxTradeSize) {
		return false
	}
	return true
}
