package model

import "github.com/google/uuid"

// LiquiditySide distinguishes an order that rested (MAKER) from one that
// consumed resting liquidity (TAKER).
type LiquiditySide string

const (
	LiquidityMaker LiquiditySide = "MAKER"
	LiquidityTaker LiquiditySide = "TAKER"
	LiquidityNone  LiquiditySide = "NO_LIQUIDITY_SIDE"
)

// EventKind discriminates the Event union published on the message bus.
type EventKind string

const (
	EventOrderSubmitted     EventKind = "OrderSubmitted"
	EventOrderAccepted      EventKind = "OrderAccepted"
	EventOrderRejected      EventKind = "OrderRejected"
	EventOrderPendingUpdate EventKind = "OrderPendingUpdate"
	EventOrderPendingCancel EventKind = "OrderPendingCancel"
	EventOrderModifyRejected EventKind = "OrderModifyRejected"
	EventOrderCancelRejected EventKind = "OrderCancelRejected"
	EventOrderUpdated       EventKind = "OrderUpdated"
	EventOrderTriggered     EventKind = "OrderTriggered"
	EventOrderExpired       EventKind = "OrderExpired"
	EventOrderCanceled      EventKind = "OrderCanceled"
	EventOrderFilled        EventKind = "OrderFilled"
	EventAccountState       EventKind = "AccountState"
)

// EventHeader carries the fields common to every event on the bus.
type EventHeader struct {
	Kind          EventKind
	TraderID      string
	StrategyID    string
	AccountID     string
	InstrumentID  InstrumentId
	ClientOrderID string
	VenueOrderID  string
	EventID       uuid.UUID
	TsEvent       int64
	TsInit        int64
}

// Event is the sum type published on the message bus. Only the fields
// relevant to Header.Kind are populated; OrderFilled additionally carries
// TradeID/PositionID/fill economics.
type Event struct {
	Header EventHeader

	// OrderRejected / OrderModifyRejected / OrderCancelRejected
	Reason string

	// OrderFilled
	TradeID       string
	PositionID    string
	OrderSide     OrderSide
	OrderType     OrderType
	LastQty       Quantity
	LastPx        Price
	Currency      string
	Commission    Money
	LiquiditySide LiquiditySide

	// AccountState
	Balances []Balance
}

// NewEvent builds an Event with a fresh random event id and the given
// timestamps. seededUUID, when non-nil, is used instead of a random UUID so
// that deterministic replay can also reproduce cross-run-identical ids.
func NewEvent(kind EventKind, hdr EventHeader, tsEvent, tsInit int64, seededUUID func() uuid.UUID) Event {
	id := uuid.New()
	if seededUUID != nil {
		id = seededUUID()
	}
	hdr.Kind = kind
	hdr.EventID = id
	hdr.TsEvent = tsEvent
	hdr.TsInit = tsInit
	return Event{Header: hdr}
}
