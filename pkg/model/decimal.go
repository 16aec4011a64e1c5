// Package model defines the precision-aware fixed-point types, instrument and
// market-data entities, order/position state machines, and event envelopes
// shared by every subsystem of the backtest core.
package model

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"github.com/shopspring/decimal"

	coreerrors "github.com/abdoElHodaky/backtestcore/pkg/errors"
)

func gobEncodeFixedPoint(val decimal.Decimal, prec Precision) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gobFixedPoint{Val: val, Prec: prec}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecodeFixedPoint(b []byte) (decimal.Decimal, Precision, error) {
	var g gobFixedPoint
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&g); err != nil {
		return decimal.Decimal{}, 0, err
	}
	return g.Val, g.Prec, nil
}

// Precision is the number of digits right of the decimal point a value is
// rounded to. Price and Quantity carry the precision of the instrument they
// were constructed against; Money carries the precision of its currency.
type Precision uint8

// Price is a fixed-point, precision-aware trade/quote price.
type Price struct {
	val  decimal.Decimal
	prec Precision
}

// NewPrice constructs a Price rounded to prec digits.
func NewPrice(value float64, prec Precision) Price {
	return Price{val: decimal.NewFromFloat(value).Round(int32(prec)), prec: prec}
}

// PriceFromDecimal constructs a Price from an existing decimal.Decimal.
func PriceFromDecimal(d decimal.Decimal, prec Precision) Price {
	return Price{val: d.Round(int32(prec)), prec: prec}
}

func (p Price) Decimal() decimal.Decimal { return p.val }
func (p Price) Precision() Precision     { return p.prec }
func (p Price) Float64() float64         { f, _ := p.val.Float64(); return f }
func (p Price) String() string           { return p.val.StringFixed(int32(p.prec)) }
func (p Price) IsZero() bool             { return p.val.IsZero() }

// gobFixedPoint is the exported shape gob actually walks; Price/Quantity/
// Money keep val/prec unexported, so each implements GobEncode/GobDecode
// through this rather than relying on gob's reflection (which silently
// drops unexported fields).
type gobFixedPoint struct {
	Val  decimal.Decimal
	Prec Precision
}

func (p Price) GobEncode() ([]byte, error) { return gobEncodeFixedPoint(p.val, p.prec) }
func (p *Price) GobDecode(b []byte) error {
	val, prec, err := gobDecodeFixedPoint(b)
	if err != nil {
		return err
	}
	p.val, p.prec = val, prec
	return nil
}

// checkPrecision returns a PRECISION_MISMATCH model error if the two operands
// do not share a precision; arithmetic across instruments with different
// tick sizes is never implicitly coerced.
func checkPrecision(a, b Precision) error {
	if a != b {
		return coreerrors.Newf(coreerrors.ErrPrecisionMismatch,
			"mismatched precision: %d vs %d", a, b)
	}
	return nil
}

func (p Price) Add(o Price) (Price, error) {
	if err := checkPrecision(p.prec, o.prec); err != nil {
		return Price{}, err
	}
	return Price{val: p.val.Add(o.val), prec: p.prec}, nil
}

func (p Price) Sub(o Price) (Price, error) {
	if err := checkPrecision(p.prec, o.prec); err != nil {
		return Price{}, err
	}
	return Price{val: p.val.Sub(o.val), prec: p.prec}, nil
}

func (p Price) Cmp(o Price) int { return p.val.Cmp(o.val) }
func (p Price) LessThan(o Price) bool    { return p.val.LessThan(o.val) }
func (p Price) GreaterThan(o Price) bool { return p.val.GreaterThan(o.val) }
func (p Price) Equal(o Price) bool       { return p.val.Equal(o.val) }

// AddTicks shifts the price by n tick sizes (n may be negative).
func (p Price) AddTicks(n int64, tick Price) Price {
	shift := tick.val.Mul(decimal.NewFromInt(n))
	return Price{val: p.val.Add(shift).Round(int32(p.prec)), prec: p.prec}
}

// Quantity is a fixed-point, precision-aware order/trade size.
type Quantity struct {
	val  decimal.Decimal
	prec Precision
}

func NewQuantity(value float64, prec Precision) Quantity {
	return Quantity{val: decimal.NewFromFloat(value).Round(int32(prec)), prec: prec}
}

func QuantityFromDecimal(d decimal.Decimal, prec Precision) Quantity {
	return Quantity{val: d.Round(int32(prec)), prec: prec}
}

func ZeroQuantity(prec Precision) Quantity { return Quantity{val: decimal.Zero, prec: prec} }

func (q Quantity) Decimal() decimal.Decimal { return q.val }
func (q Quantity) Precision() Precision     { return q.prec }
func (q Quantity) Float64() float64         { f, _ := q.val.Float64(); return f }
func (q Quantity) String() string           { return q.val.StringFixed(int32(q.prec)) }
func (q Quantity) IsZero() bool             { return q.val.IsZero() }
func (q Quantity) IsPositive() bool         { return q.val.IsPositive() }
func (q Quantity) IsNegative() bool         { return q.val.IsNegative() }

func (q Quantity) GobEncode() ([]byte, error) { return gobEncodeFixedPoint(q.val, q.prec) }
func (q *Quantity) GobDecode(b []byte) error {
	val, prec, err := gobDecodeFixedPoint(b)
	if err != nil {
		return err
	}
	q.val, q.prec = val, prec
	return nil
}

func (q Quantity) Add(o Quantity) (Quantity, error) {
	if err := checkPrecision(q.prec, o.prec); err != nil {
		return Quantity{}, err
	}
	return Quantity{val: q.val.Add(o.val), prec: q.prec}, nil
}

func (q Quantity) Sub(o Quantity) (Quantity, error) {
	if err := checkPrecision(q.prec, o.prec); err != nil {
		return Quantity{}, err
	}
	return Quantity{val: q.val.Sub(o.val), prec: q.prec}, nil
}

func (q Quantity) Min(o Quantity) Quantity {
	if q.val.LessThan(o.val) {
		return q
	}
	return o
}

func (q Quantity) Cmp(o Quantity) int         { return q.val.Cmp(o.val) }
func (q Quantity) LessThan(o Quantity) bool    { return q.val.LessThan(o.val) }
func (q Quantity) GreaterThan(o Quantity) bool { return q.val.GreaterThan(o.val) }
func (q Quantity) Equal(o Quantity) bool       { return q.val.Equal(o.val) }

// Money is a fixed-point amount denominated in a specific currency.
type Money struct {
	val      decimal.Decimal
	Currency string
	prec     Precision
}

func NewMoney(value float64, currency string, prec Precision) Money {
	return Money{val: decimal.NewFromFloat(value).Round(int32(prec)), Currency: currency, prec: prec}
}

func (m Money) Decimal() decimal.Decimal { return m.val }
func (m Money) Precision() Precision     { return m.prec }
func (m Money) Float64() float64         { f, _ := m.val.Float64(); return f }
func (m Money) String() string           { return fmt.Sprintf("%s %s", m.val.StringFixed(int32(m.prec)), m.Currency) }

type gobMoney struct {
	Val      decimal.Decimal
	Currency string
	Prec     Precision
}

func (m Money) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(gobMoney{Val: m.val, Currency: m.Currency, Prec: m.prec}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *Money) GobDecode(b []byte) error {
	var g gobMoney
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&g); err != nil {
		return err
	}
	m.val, m.Currency, m.prec = g.Val, g.Currency, g.Prec
	return nil
}

func (m Money) Add(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, coreerrors.Newf(coreerrors.ErrPrecisionMismatch,
			"cannot add money of different currencies: %s vs %s", m.Currency, o.Currency)
	}
	return Money{val: m.val.Add(o.val), Currency: m.Currency, prec: m.prec}, nil
}

// MulMoney scales a Money amount by a plain multiplier, used for commission
// and notional calculations where the multiplier has no currency of its own.
func MulMoney(rate decimal.Decimal, amount Money) Money {
	return Money{val: amount.val.Mul(rate).Round(int32(amount.prec)), Currency: amount.Currency, prec: amount.prec}
}
