package matching

import (
	"github.com/shopspring/decimal"

	"github.com/abdoElHodaky/backtestcore/pkg/model"
)

// FeeModel computes the commission owed on one fill. Each fee scheme is one
// small implementation behind this interface rather than a type hierarchy.
type FeeModel interface {
	Commission(instrument model.Instrument, qty model.Quantity, price model.Price, liquidity model.LiquiditySide) model.Money
}

// MakerTakerFeeModel charges a notional-proportional rate that differs by
// liquidity side.
type MakerTakerFeeModel struct{}

func (MakerTakerFeeModel) Commission(instrument model.Instrument, qty model.Quantity, price model.Price, liquidity model.LiquiditySide) model.Money {
	notional := instrument.NotionalValue(qty, price, false)
	rate := instrument.TakerFee
	if liquidity == model.LiquidityMaker {
		rate = instrument.MakerFee
	}
	return model.MulMoney(decimal.NewFromFloat(rate), notional)
}

// FixedFeeModel charges the same flat amount per fill regardless of size.
type FixedFeeModel struct {
	Amount model.Money
}

func (f FixedFeeModel) Commission(model.Instrument, model.Quantity, model.Price, model.LiquiditySide) model.Money {
	return f.Amount
}

// PerContractFeeModel charges a flat amount per unit of filled quantity.
type PerContractFeeModel struct {
	RatePerUnit decimal.Decimal
	Currency    string
	Precision   model.Precision
}

func (f PerContractFeeModel) Commission(_ model.Instrument, qty model.Quantity, _ model.Price, _ model.LiquiditySide) model.Money {
	amount := qty.Decimal().Abs().Mul(f.RatePerUnit)
	return model.NewMoney(mustFloat(amount), f.Currency, f.Precision)
}

func mustFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
