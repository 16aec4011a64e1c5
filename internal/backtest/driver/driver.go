// Package driver implements the backtest engine driver: the
// single-threaded main loop that wires the data producer, one simulated
// exchange per venue, the test clock, the message bus, and the shared
// cache into one deterministic replay.
package driver

import (
	"sort"

	"go.uber.org/zap"

	"github.com/abdoElHodaky/backtestcore/internal/backtest/bus"
	"github.com/abdoElHodaky/backtestcore/internal/backtest/cache"
	"github.com/abdoElHodaky/backtestcore/internal/backtest/clock"
	"github.com/abdoElHodaky/backtestcore/internal/backtest/exchange"
	"github.com/abdoElHodaky/backtestcore/internal/backtest/producer"
	"github.com/abdoElHodaky/backtestcore/pkg/model"
)

// Stream is whatever the driver iterates over: a *producer.Producer or a
// *producer.CachedProducer, both of which satisfy it unmodified.
type Stream interface {
	Setup(startNs, stopNs int64)
	HasData() bool
	Next() (producer.Item, bool)
}

// TimerHandler receives one fired timer, the driver's dispatch() target for
// clock.AdvanceTime's output.
type TimerHandler func(clock.TimeEventHandler)

// Driver owns one run's worth of wiring: one clock, one stream, one bus, one
// cache, and one exchange per venue. It is not safe for concurrent use;
// a run has exactly one logical thread of control.
type Driver struct {
	clk       *clock.Clock
	stream    Stream
	bus       *bus.Bus
	cache     *cache.Cache
	exchanges map[string]*exchange.Exchange
	venues    []string // sorted, so per-iteration exchange draining is deterministic
	timerSubs []TimerHandler
	stopNs    int64
	logger    *zap.Logger
}

// New constructs a driver around its four shared collaborators; exchanges
// are registered afterwards with AddExchange, one per venue.
func New(clk *clock.Clock, stream Stream, eventBus *bus.Bus, sharedCache *cache.Cache, logger *zap.Logger) *Driver {
	d := &Driver{
		clk:       clk,
		stream:    stream,
		bus:       eventBus,
		cache:     sharedCache,
		exchanges: make(map[string]*exchange.Exchange),
		logger:    logger,
	}
	// The cache's single mutation entrypoint: every published event refreshes
	// exactly the order/position it names, read back from the engine that
	// produced it.
	d.bus.Subscribe(func(ev model.Event) {
		ex, ok := d.exchanges[ev.Header.InstrumentID.Venue]
		if !ok {
			return
		}
		eng, ok := ex.Engine(ev.Header.InstrumentID)
		if !ok {
			return
		}
		d.cache.Apply(ev, eng)
	})
	return d
}

// AddExchange registers one venue's Simulated Exchange.
func (d *Driver) AddExchange(ex *exchange.Exchange) {
	if _, exists := d.exchanges[ex.Venue]; !exists {
		d.venues = append(d.venues, ex.Venue)
		sort.Strings(d.venues)
	}
	d.exchanges[ex.Venue] = ex
}

// SubscribeTimer registers a handler invoked for every fired timer, in the
// order AdvanceTime returns them.
func (d *Driver) SubscribeTimer(h TimerHandler) { d.timerSubs = append(d.timerSubs, h) }

const dayNs = 24 * 60 * 60 * 1_000_000_000

// ScheduleDailyActor registers an actor fired once per simulated day
// starting at firstFireNs, the extension point for modules like overnight
// rollover interest, which adjust account balances outside the matching
// engines.
func (d *Driver) ScheduleDailyActor(name string, firstFireNs int64, actor func(fireNs int64)) {
	d.clk.SetTimer(name, dayNs, firstFireNs, 0, false)
	d.SubscribeTimer(func(e clock.TimeEventHandler) {
		if e.Name == name {
			actor(e.FireNs)
		}
	})
}

// Bus exposes the driver's message bus so callers can subscribe strategies
// before Run.
func (d *Driver) Bus() *bus.Bus { return d.bus }

// Cache exposes the driver's shared cache for strategies' read-through
// lookups.
func (d *Driver) Cache() *cache.Cache { return d.cache }

// Setup slices the stream to the replay window, sets the clock's logical
// time to start_ns, and emits each exchange's opening account state. Each
// exchange's account and engines are expected to already be constructed
// fresh for this run; one driver owns exactly one set of them.
func (d *Driver) Setup(startNs, stopNs int64) {
	d.stream.Setup(startNs, stopNs)
	d.clk.SetTime(startNs)
	d.stopNs = stopNs
	for _, venue := range d.venues {
		d.exchanges[venue].InitializeAccount(startNs)
	}
}

// Run drains the stream, advancing the clock and routing each item before
// draining every exchange's inflight command queue, stopping once the
// clock reaches stop_ns.
func (d *Driver) Run() {
	for d.stream.HasData() {
		item, ok := d.stream.Next()
		if !ok {
			break
		}
		d.advanceClockAndFireTimers(item.TsInit)
		d.route(item)
		now := d.clk.Now()
		for _, venue := range d.venues {
			d.exchanges[venue].Process(now)
		}
		if d.clk.Now() >= d.stopNs {
			break
		}
	}
}

// advanceClockAndFireTimers advances the clock to to_ns and dispatches
// every timer that fired, in the (fire_ns, timer_name) order AdvanceTime
// already guarantees.
func (d *Driver) advanceClockAndFireTimers(toNs int64) {
	for _, e := range d.clk.AdvanceTime(toNs) {
		for _, h := range d.timerSubs {
			h(e)
		}
	}
}

// route sends tick/bar/book-data to the matching engine for its
// instrument's venue, and GenericData to the message bus for strategies
// and actors.
func (d *Driver) route(item producer.Item) {
	switch item.Kind {
	case producer.ItemQuote:
		d.routeToVenue(item.Quote.InstrumentID, func(ex *exchange.Exchange) { ex.RouteQuoteTick(*item.Quote) })
	case producer.ItemTrade:
		d.routeToVenue(item.Trade.InstrumentID, func(ex *exchange.Exchange) { ex.RouteTradeTick(*item.Trade) })
	case producer.ItemBookDeltas:
		d.routeToVenue(item.BookDeltas.InstrumentID, func(ex *exchange.Exchange) { ex.RouteOrderBookDeltas(*item.BookDeltas) })
	case producer.ItemGeneric:
		d.bus.PublishGeneric(*item.Generic)
	}
}

func (d *Driver) routeToVenue(id model.InstrumentId, apply func(*exchange.Exchange)) {
	ex, ok := d.exchanges[id.Venue]
	if !ok {
		d.logger.Warn("dropping market data for unknown venue", zap.String("instrument", id.String()))
		return
	}
	apply(ex)
}
