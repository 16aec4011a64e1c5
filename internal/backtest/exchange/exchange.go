// Package exchange implements the simulated exchange: it hosts
// one matching engine per instrument for a single venue, owns the
// latency-stamped inflight command queue, and tracks account state.
package exchange

import (
	"container/heap"

	"go.uber.org/zap"

	"github.com/abdoElHodaky/backtestcore/internal/backtest/latency"
	"github.com/abdoElHodaky/backtestcore/internal/backtest/matching"
	"github.com/abdoElHodaky/backtestcore/pkg/model"
)

// Command is one trading command awaiting delivery to its matching engine.
type Command struct {
	Kind         latency.CommandKind
	InstrumentID model.InstrumentId
	ReadyNs      int64
	TsEvent      int64
	seq          uint64 // submission order, the tie-break for equal ReadyNs

	// Populated per command kind; exactly one of these applies.
	SubmitOrder *model.Order
	Modify      *ModifyCommand
	Cancel      *CancelCommand
	CancelAll   *CancelAllCommand
}

type ModifyCommand struct {
	ClientOrderID   string
	NewPrice        model.Price
	HasPrice        bool
	NewTriggerPrice model.Price
	HasTrigger      bool
	NewQuantity     model.Quantity
	HasQuantity     bool
}

type CancelCommand struct {
	ClientOrderID string
}

type CancelAllCommand struct {
	InstrumentID model.InstrumentId
}

// inflightQueue is a min-heap over Command ordered by ReadyNs. Equal
// ReadyNs falls back to submission order, so two commands issued at the
// same instant with identical latency dispatch first-sent-first.
type inflightQueue []Command

func (q inflightQueue) Len() int { return len(q) }
func (q inflightQueue) Less(i, j int) bool {
	if q[i].ReadyNs != q[j].ReadyNs {
		return q[i].ReadyNs < q[j].ReadyNs
	}
	return q[i].seq < q[j].seq
}
func (q inflightQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *inflightQueue) Push(x interface{}) { *q = append(*q, x.(Command)) }
func (q *inflightQueue) Pop() interface{} {
	old := *q
	n := len(old)
	c := old[n-1]
	*q = old[:n-1]
	return c
}

// Exchange hosts matching engines for one venue.
type Exchange struct {
	Venue string

	engines map[model.InstrumentId]*matching.Engine
	account *model.Account
	latency *latency.Model
	sink    matching.EventSink
	logger  *zap.Logger

	inflight inflightQueue
	sendSeq  uint64
}

// New constructs an empty exchange for one venue. sink receives the
// AccountState events the exchange itself emits (engines carry their own).
func New(venue string, account *model.Account, latencyModel *latency.Model, sink matching.EventSink, logger *zap.Logger) *Exchange {
	ex := &Exchange{
		Venue:   venue,
		engines: make(map[model.InstrumentId]*matching.Engine),
		account: account,
		latency: latencyModel,
		sink:    sink,
		logger:  logger,
	}
	heap.Init(&ex.inflight)
	return ex
}

// InitializeAccount emits the account's opening AccountState snapshot. The
// driver calls this once per exchange during setup.
func (ex *Exchange) InitializeAccount(nowNs int64) {
	if ex.account == nil || ex.sink == nil {
		return
	}
	hdr := model.EventHeader{AccountID: ex.account.AccountID}
	ev := model.NewEvent(model.EventAccountState, hdr, nowNs, nowNs, nil)
	ev.Balances = ex.account.BalancesSnapshot()
	ex.sink.Publish(ev)
}

// AddEngine registers a matching engine for one instrument.
func (ex *Exchange) AddEngine(e *matching.Engine) { ex.engines[e.InstrumentID()] = e }

// Engine returns the matching engine for an instrument, if registered.
func (ex *Exchange) Engine(id model.InstrumentId) (*matching.Engine, bool) {
	e, ok := ex.engines[id]
	return e, ok
}

// Account exposes this venue's account state.
func (ex *Exchange) Account() *model.Account { return ex.account }

// Send stamps cmd with its latency-derived ready_ns and enqueues it.
func (ex *Exchange) Send(kind latency.CommandKind, nowNs int64, cmd Command) {
	ex.sendSeq++
	cmd.Kind = kind
	cmd.ReadyNs = ex.latency.ReadyAt(nowNs, kind)
	cmd.seq = ex.sendSeq
	heap.Push(&ex.inflight, cmd)
}

// Process drains the inflight queue while its head's ready_ns <= nowNs and
// dispatches each command to its matching engine.
func (ex *Exchange) Process(nowNs int64) {
	for ex.inflight.Len() > 0 && ex.inflight[0].ReadyNs <= nowNs {
		cmd := heap.Pop(&ex.inflight).(Command)
		ex.dispatch(cmd, nowNs)
	}
}

func (ex *Exchange) dispatch(cmd Command, nowNs int64) {
	engine, ok := ex.engines[cmd.InstrumentID]
	if !ok {
		ex.logger.Warn("dropping command for unknown instrument",
			zap.String("instrument", cmd.InstrumentID.String()))
		return
	}
	switch {
	case cmd.SubmitOrder != nil:
		engine.ProcessOrder(cmd.SubmitOrder, cmd.TsEvent, nowNs)
	case cmd.Modify != nil:
		m := cmd.Modify
		engine.ProcessModify(m.ClientOrderID, m.NewPrice, m.HasPrice, m.NewTriggerPrice, m.HasTrigger, m.NewQuantity, m.HasQuantity, cmd.TsEvent, nowNs)
	case cmd.Cancel != nil:
		engine.ProcessCancel(cmd.Cancel.ClientOrderID, cmd.TsEvent, nowNs)
	case cmd.CancelAll != nil:
		engine.ProcessCancelAll(cmd.TsEvent, nowNs)
	}
}

// RouteQuoteTick and the Route* helpers below fan a market-data item out to
// its instrument's engine; the driver calls these for every
// QuoteTick/TradeTick/Bar/OrderBookDelta item it pulls from the stream.
func (ex *Exchange) RouteQuoteTick(t model.QuoteTick) {
	if e, ok := ex.engines[t.InstrumentID]; ok {
		e.ProcessQuoteTick(t)
	}
}

func (ex *Exchange) RouteTradeTick(t model.TradeTick) {
	if e, ok := ex.engines[t.InstrumentID]; ok {
		e.ProcessTradeTick(t)
	}
}

func (ex *Exchange) RouteBar(b model.Bar) {
	if e, ok := ex.engines[b.BarType.InstrumentID]; ok {
		e.ProcessBar(b)
	}
}

func (ex *Exchange) RouteOrderBookDelta(d model.OrderBookDelta) {
	if e, ok := ex.engines[d.InstrumentID]; ok {
		e.ProcessOrderBookDelta(d)
	}
}

func (ex *Exchange) RouteOrderBookDeltas(ds model.Deltas) {
	if e, ok := ex.engines[ds.InstrumentID]; ok {
		e.ProcessOrderBookDeltas(ds)
	}
}
