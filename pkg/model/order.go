package model

// OrderSide is the side of an order or fill.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Opposite returns the other side, used throughout matching to look up the
// opposing book.
func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// OrderType is the discriminant of the Order tagged union. All order types
// share OrderCommon; price-bearing variants additionally populate Price
// and/or TriggerPrice on the same struct rather than through a deep type
// hierarchy, per the matching engine's single `switch order.Type` dispatch.
type OrderType string

const (
	OrderTypeMarket             OrderType = "MARKET"
	OrderTypeMarketToLimit      OrderType = "MARKET_TO_LIMIT"
	OrderTypeLimit              OrderType = "LIMIT"
	OrderTypeStopMarket         OrderType = "STOP_MARKET"
	OrderTypeStopLimit          OrderType = "STOP_LIMIT"
	OrderTypeMarketIfTouched    OrderType = "MARKET_IF_TOUCHED"
	OrderTypeLimitIfTouched     OrderType = "LIMIT_IF_TOUCHED"
	OrderTypeTrailingStopMarket OrderType = "TRAILING_STOP_MARKET"
	OrderTypeTrailingStopLimit  OrderType = "TRAILING_STOP_LIMIT"
)

// IsStopType reports whether the order type triggers off a stop/trigger price.
func (t OrderType) IsStopType() bool {
	switch t {
	case OrderTypeStopMarket, OrderTypeStopLimit, OrderTypeMarketIfTouched,
		OrderTypeLimitIfTouched, OrderTypeTrailingStopMarket, OrderTypeTrailingStopLimit:
		return true
	default:
		return false
	}
}

// IsLimitType reports whether the order rests at a limit price once accepted
// (or once triggered, for stop-limit/limit-if-touched variants).
func (t OrderType) IsLimitType() bool {
	switch t {
	case OrderTypeLimit, OrderTypeStopLimit, OrderTypeLimitIfTouched, OrderTypeTrailingStopLimit:
		return true
	default:
		return false
	}
}

// TimeInForce governs how long an order remains workable.
type TimeInForce string

const (
	TIFGTC TimeInForce = "GTC"
	TIFIOC TimeInForce = "IOC"
	TIFFOK TimeInForce = "FOK"
	TIFGTD TimeInForce = "GTD"
	TIFDay TimeInForce = "DAY"
)

// OrderStatus is the order lifecycle state machine. Transitions are strictly
// monotone: INITIALIZED -> SUBMITTED -> {ACCEPTED|REJECTED} ->
// {PENDING_UPDATE|PENDING_CANCEL}* -> {TRIGGERED ->}
// {PARTIALLY_FILLED -> FILLED | CANCELED | EXPIRED}.
type OrderStatus string

const (
	StatusInitialized    OrderStatus = "INITIALIZED"
	StatusSubmitted      OrderStatus = "SUBMITTED"
	StatusAccepted       OrderStatus = "ACCEPTED"
	StatusRejected       OrderStatus = "REJECTED"
	StatusPendingUpdate  OrderStatus = "PENDING_UPDATE"
	StatusPendingCancel  OrderStatus = "PENDING_CANCEL"
	StatusTriggered      OrderStatus = "TRIGGERED"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled         OrderStatus = "FILLED"
	StatusCanceled       OrderStatus = "CANCELED"
	StatusExpired        OrderStatus = "EXPIRED"
)

// IsTerminal reports whether no further transition from this status is legal.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusRejected, StatusFilled, StatusCanceled, StatusExpired:
		return true
	default:
		return false
	}
}

// IsOpen reports whether the order can still rest in the matching core
// (invariant 2: an order is in a bid/ask set iff its status is one of these
// and it is a passive type).
func (s OrderStatus) IsOpen() bool {
	switch s {
	case StatusAccepted, StatusPartiallyFilled, StatusTriggered:
		return true
	default:
		return false
	}
}

// statusRank gives each non-pending status a monotone rank used to detect
// backtracking. PENDING_UPDATE/PENDING_CANCEL are excursions handled
// explicitly by CanTransition: they are reachable from any open working
// status and resolve back to one.
var statusRank = map[OrderStatus]int{
	StatusInitialized:     0,
	StatusSubmitted:       1,
	StatusAccepted:        2,
	StatusRejected:        2,
	StatusTriggered:       2,
	StatusPartiallyFilled: 3,
	StatusFilled:          4,
	StatusCanceled:        4,
	StatusExpired:         4,
}

func (s OrderStatus) isPending() bool {
	return s == StatusPendingUpdate || s == StatusPendingCancel
}

// CanTransition reports whether moving from s to next respects monotonicity.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next.isPending() {
		return s.IsOpen() || s.isPending()
	}
	if s.isPending() {
		// A pending excursion resolves to any open or terminal status, but
		// never back before acceptance.
		return next != StatusInitialized && next != StatusSubmitted
	}
	return statusRank[next] >= statusRank[s]
}

// ContingencyType names the linkage semantics between an order and its
// LinkedOrderIDs.
type ContingencyType string

const (
	ContingencyNone ContingencyType = "NONE"
	ContingencyOTO  ContingencyType = "OTO" // one-triggers-other
	ContingencyOCO  ContingencyType = "OCO" // one-cancels-other
	ContingencyOUO  ContingencyType = "OUO" // one-updates-other
)

// TrailingOffsetType names how a trailing stop's offset is measured.
type TrailingOffsetType string

const (
	TrailingOffsetPrice      TrailingOffsetType = "PRICE"
	TrailingOffsetTicks      TrailingOffsetType = "TICKS"
	TrailingOffsetBasisPoints TrailingOffsetType = "BASIS_POINTS"
)

// TrailingOffset parameterizes a TRAILING_STOP_* order.
type TrailingOffset struct {
	Type  TrailingOffsetType
	Value float64
}

// Order is the tagged union over every order type the engine accepts. Common
// fields apply to all variants; Price/TriggerPrice/Trailing are populated
// only for the variants that use them, per OrderType.IsLimitType/IsStopType.
type Order struct {
	ClientOrderID   string
	VenueOrderID    string
	InstrumentID    InstrumentId
	Type            OrderType
	Side            OrderSide
	Quantity        Quantity
	FilledQty       Quantity
	TimeInForce     TimeInForce
	ExpireTimeNs    int64
	Status          OrderStatus
	IsPostOnly      bool
	IsReduceOnly    bool
	ContingencyType ContingencyType
	LinkedOrderIDs  []string
	ParentOrderID   string
	PositionID      string

	Price        Price // LIMIT, STOP_LIMIT, LIMIT_IF_TOUCHED, TRAILING_STOP_LIMIT
	HasPrice     bool
	TriggerPrice Price // STOP_MARKET, STOP_LIMIT, MARKET_IF_TOUCHED, LIMIT_IF_TOUCHED, TRAILING_STOP_*
	HasTrigger   bool
	Trailing     TrailingOffset

	AccountID  string
	TraderID   string
	StrategyID string

	SubmittedAtNs int64
	AcceptedAtNs  int64
}

// LeavesQty returns the unfilled remainder: quantity - filled_qty.
func (o *Order) LeavesQty() Quantity {
	q, err := o.Quantity.Sub(o.FilledQty)
	if err != nil {
		return ZeroQuantity(o.Quantity.Precision())
	}
	return q
}

// IsPassive reports whether the order type rests in the matching core's
// bid/ask collections once accepted. MARKET and MARKET_TO_LIMIT report
// false; the matching engine still rests a MARKET_TO_LIMIT remainder at its
// last fill price.
func (o *Order) IsPassive() bool {
	return o.Type != OrderTypeMarket && o.Type != OrderTypeMarketToLimit
}

// IsChildOf reports whether this order is an OTO child of parent.
func (o *Order) IsChildOf(parentID string) bool {
	return o.ParentOrderID != "" && o.ParentOrderID == parentID
}
