package model

// AggressorSide identifies which side of a trade crossed the spread.
type AggressorSide string

const (
	AggressorBuy  AggressorSide = "BUY"
	AggressorSell AggressorSide = "SELL"
	AggressorNone AggressorSide = "NO_AGGRESSOR"
)

// QuoteTick is a top-of-book bid/ask snapshot. ts_init must never precede
// ts_event: ts_event is when the venue generated the quote, ts_init is when
// this process observed/constructed it.
type QuoteTick struct {
	InstrumentID InstrumentId
	Bid          Price
	Ask          Price
	BidSize      Quantity
	AskSize      Quantity
	TsEvent      int64
	TsInit       int64
}

// TradeTick is a single executed trade observed on the venue.
type TradeTick struct {
	InstrumentID  InstrumentId
	Price         Price
	Size          Quantity
	AggressorSide AggressorSide
	TradeID       string
	TsEvent       int64
	TsInit        int64
}

// BarAggregation names a bar's sampling rule, e.g. "1-MINUTE-LAST".
type BarAggregation string

// BarPriceType distinguishes bars built from bid, ask, mid, or last-trade
// prices. Deriving synthetic quote ticks from bars requires matched BID/ASK
// bar series; LAST/MID bars instead synthesize trade ticks.
type BarPriceType string

const (
	BarPriceBid  BarPriceType = "BID"
	BarPriceAsk  BarPriceType = "ASK"
	BarPriceMid  BarPriceType = "MID"
	BarPriceLast BarPriceType = "LAST"
)

// BarType names an instrument/aggregation/price-type triple.
type BarType struct {
	InstrumentID InstrumentId
	Aggregation  BarAggregation
	PriceType    BarPriceType
}

// Bar is an OHLCV summary over BarType's aggregation window.
type Bar struct {
	BarType         BarType
	Open            Price
	High            Price
	Low             Price
	Close           Price
	Volume          Quantity
	VolumePrecision Precision
	TsEvent         int64
	TsInit          int64
}
