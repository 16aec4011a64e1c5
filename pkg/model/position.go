package model

// PositionSide is the signed direction of a position.
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
	PositionFlat  PositionSide = "FLAT"
)

// OMSType selects how positions are keyed: one net position per instrument
// per strategy (NETTING), or one position per accepted order (HEDGING).
type OMSType string

const (
	OMSNetting OMSType = "NETTING"
	OMSHedging OMSType = "HEDGING"
)

// Position tracks the signed quantity held for one instrument under one
// position id. Quantity equals the signed sum of all of its fills'
// quantities (invariant 4); it is closed when Quantity returns to zero.
type Position struct {
	PositionID   string
	InstrumentID InstrumentId
	Side         PositionSide
	Quantity     Quantity
	AvgOpenPrice Price
	PeakQty      Quantity
	RealizedPnL  Money
	StrategyID   string
	AccountID    string
	OpenedAtNs   int64
	ClosedAtNs   int64
}

// IsClosed reports whether the position has returned to zero quantity.
func (p *Position) IsClosed() bool { return p.Quantity.IsZero() }

// ApplyFill folds one fill into the position, updating side, quantity,
// average open price and realized PnL. signedQty is positive for a BUY fill
// and negative for a SELL fill.
func (p *Position) ApplyFill(signedQty Quantity, fillPrice Price) {
	prevQty := p.Quantity
	newQtyDec := prevQty.Decimal().Add(signedQty.Decimal())

	// Realize PnL on the portion that reduces or flips the existing position.
	if !prevQty.IsZero() && prevQty.Decimal().Sign() != signedQty.Decimal().Sign() {
		closingDec := signedQty.Decimal().Neg()
		if closingDec.Abs().GreaterThan(prevQty.Decimal().Abs()) {
			closingDec = prevQty.Decimal().Neg()
		}
		pnlPerUnit := fillPrice.Decimal().Sub(p.AvgOpenPrice.Decimal())
		if prevQty.Decimal().IsNegative() {
			pnlPerUnit = pnlPerUnit.Neg()
		}
		realized := closingDec.Abs().Mul(pnlPerUnit)
		p.RealizedPnL.val = p.RealizedPnL.val.Add(realized)
	}

	if prevQty.IsZero() || prevQty.Decimal().Sign() == signedQty.Decimal().Sign() {
		// Opening or adding to the position: recompute the weighted average.
		totalCost := prevQty.Decimal().Abs().Mul(p.AvgOpenPrice.Decimal()).Add(signedQty.Decimal().Abs().Mul(fillPrice.Decimal()))
		totalQty := prevQty.Decimal().Abs().Add(signedQty.Decimal().Abs())
		if !totalQty.IsZero() {
			p.AvgOpenPrice = PriceFromDecimal(totalCost.Div(totalQty), fillPrice.Precision())
		}
	} else if newQtyDec.Sign() != prevQty.Decimal().Sign() && !newQtyDec.IsZero() {
		// Flipped through flat: the remainder opens fresh at the fill price.
		p.AvgOpenPrice = fillPrice
	}

	p.Quantity = QuantityFromDecimal(newQtyDec, prevQty.Precision())
	switch {
	case p.Quantity.IsZero():
		p.Side = PositionFlat
	case p.Quantity.IsPositive():
		p.Side = PositionLong
	default:
		p.Side = PositionShort
	}
	if p.Quantity.Decimal().Abs().GreaterThan(p.PeakQty.Decimal()) {
		p.PeakQty = QuantityFromDecimal(p.Quantity.Decimal().Abs(), p.Quantity.Precision())
	}
}
