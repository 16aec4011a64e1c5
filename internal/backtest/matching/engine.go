// Package matching implements the per-instrument order matching engine:
// it consumes market observations and trading commands and
// generates order lifecycle events by delegating book/trigger bookkeeping to
// matchcore and fill/trigger randomness to fillmodel. Command latency is
// applied by the exchange before commands reach the engine.
package matching

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	coreerrors "github.com/abdoElHodaky/backtestcore/pkg/errors"
	"github.com/abdoElHodaky/backtestcore/internal/backtest/fillmodel"
	"github.com/abdoElHodaky/backtestcore/internal/backtest/matchcore"
	"github.com/abdoElHodaky/backtestcore/pkg/model"
)

// EventSink receives every event the engine produces. internal/backtest/bus's
// Bus implements this; it is accepted as an interface here so that this
// package never imports bus, keeping the dependency direction one-way.
type EventSink interface {
	Publish(model.Event)
}

// Config parameterizes one engine instance.
type Config struct {
	BookType         model.BookType
	OMSType          model.OMSType
	RejectStopOrders bool
	SupportGTD       bool
	UseRandomIDs     bool
	DepthType        model.DepthType
	AdaptiveBarOrder bool // open->low->high->close when true, else open->high->low->close
}

// Engine is the matching engine for exactly one instrument.
type Engine struct {
	cfg        Config
	instrument model.Instrument
	book       *model.OrderBook
	core       *matchcore.Core
	fillModel  *fillmodel.FillModel
	feeModel   FeeModel
	sink       EventSink
	logger     *zap.Logger

	orders    map[string]*model.Order // client_order_id -> order
	positions map[string]*model.Position
	account   *model.Account

	venueOrderSeq    uint64
	venuePositionSeq uint64
	tradeSeq         uint64

	updatingContingencies bool

	lastBidBarTs int64
	pendingBidBar *model.Bar
}

// New constructs an engine for one instrument against one account.
func New(cfg Config, instrument model.Instrument, fm *fillmodel.FillModel, feeModel FeeModel, sink EventSink, account *model.Account, logger *zap.Logger) *Engine {
	return &Engine{
		cfg:        cfg,
		instrument: instrument,
		book:       model.NewOrderBook(instrument.ID, cfg.BookType),
		core:       matchcore.New(instrument.ID),
		fillModel:  fm,
		feeModel:   feeModel,
		sink:       sink,
		logger:     logger,
		orders:     make(map[string]*model.Order),
		positions:  make(map[string]*model.Position),
		account:    account,
	}
}

// InstrumentID returns the instrument this engine matches orders for.
func (e *Engine) InstrumentID() model.InstrumentId { return e.instrument.ID }

func (e *Engine) nextVenueOrderID(rawID string) string {
	e.venueOrderSeq++
	if e.cfg.UseRandomIDs {
		return uuid.NewString()
	}
	return fmt.Sprintf("%s-%s-%03d", e.instrument.ID.Venue, rawID, e.venueOrderSeq)
}

func (e *Engine) nextPositionID() string {
	e.venuePositionSeq++
	if e.cfg.UseRandomIDs {
		return uuid.NewString()
	}
	return fmt.Sprintf("%s-POS-%03d", e.instrument.ID.Venue, e.venuePositionSeq)
}

func (e *Engine) nextTradeID() string {
	e.tradeSeq++
	if e.cfg.UseRandomIDs {
		return uuid.NewString()
	}
	return fmt.Sprintf("%s-TRADE-%03d", e.instrument.ID.Venue, e.tradeSeq)
}

func (e *Engine) publish(kind model.EventKind, o *model.Order, tsEvent, tsInit int64) {
	hdr := model.EventHeader{
		TraderID:      o.TraderID,
		StrategyID:    o.StrategyID,
		AccountID:     o.AccountID,
		InstrumentID:  o.InstrumentID,
		ClientOrderID: o.ClientOrderID,
		VenueOrderID:  o.VenueOrderID,
	}
	ev := model.NewEvent(kind, hdr, tsEvent, tsInit, nil)
	e.sink.Publish(ev)
}

func (e *Engine) publishRejected(kind model.EventKind, o *model.Order, reason string, tsEvent, tsInit int64) {
	hdr := model.EventHeader{
		TraderID:      o.TraderID,
		StrategyID:    o.StrategyID,
		AccountID:     o.AccountID,
		InstrumentID:  o.InstrumentID,
		ClientOrderID: o.ClientOrderID,
		VenueOrderID:  o.VenueOrderID,
	}
	ev := model.NewEvent(kind, hdr, tsEvent, tsInit, nil)
	ev.Reason = reason
	e.sink.Publish(ev)
}

// publishAccountState emits a fresh AccountState snapshot after a fill,
// unless the account is frozen.
func (e *Engine) publishAccountState(o *model.Order, tsEvent, tsInit int64) {
	if e.account == nil || e.account.Frozen {
		return
	}
	hdr := model.EventHeader{
		TraderID:     o.TraderID,
		StrategyID:   o.StrategyID,
		AccountID:    e.account.AccountID,
		InstrumentID: o.InstrumentID,
	}
	ev := model.NewEvent(model.EventAccountState, hdr, tsEvent, tsInit, nil)
	ev.Balances = e.account.BalancesSnapshot()
	e.sink.Publish(ev)
}

// transition guards against status backtracking before mutating an order's
// status.
func (e *Engine) transition(o *model.Order, next model.OrderStatus) error {
	if !o.Status.CanTransition(next) {
		return coreerrors.Newf(coreerrors.ErrStatusBacktrack,
			"order %s: illegal transition %s -> %s", o.ClientOrderID, o.Status, next)
	}
	o.Status = next
	return nil
}

// positionFor resolves (and lazily creates) the position an order's fills
// apply to: one net position per instrument/strategy under NETTING, one
// position per order under HEDGING.
func (e *Engine) positionFor(o *model.Order) *model.Position {
	key := o.PositionID
	if key == "" {
		if e.cfg.OMSType == model.OMSHedging {
			key = e.nextPositionID()
		} else {
			key = o.InstrumentID.String() + "|" + o.StrategyID
		}
		o.PositionID = key
	}
	pos, ok := e.positions[key]
	if !ok {
		pos = &model.Position{
			PositionID:   key,
			InstrumentID: o.InstrumentID,
			Side:         model.PositionFlat,
			Quantity:     model.ZeroQuantity(o.Quantity.Precision()),
			AvgOpenPrice: model.NewPrice(0, e.instrument.PricePrecision),
			PeakQty:      model.ZeroQuantity(o.Quantity.Precision()),
			RealizedPnL:  model.NewMoney(0, e.instrument.QuoteCurrency, e.instrument.PricePrecision),
			StrategyID:   o.StrategyID,
			AccountID:    o.AccountID,
		}
		e.positions[key] = pos
	}
	return pos
}

// Position returns the current state of one position, for tests and the
// shared cache's read-through refresh.
func (e *Engine) Position(positionID string) (*model.Position, bool) {
	p, ok := e.positions[positionID]
	return p, ok
}

// Order returns the current state of one order by client id.
func (e *Engine) Order(clientOrderID string) (*model.Order, bool) {
	o, ok := e.orders[clientOrderID]
	return o, ok
}

// Book exposes the engine's order book, read-only, for strategies/tests.
func (e *Engine) Book() *model.OrderBook { return e.book }
