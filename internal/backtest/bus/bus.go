// Package bus implements the message bus: a
// synchronous, in-process dispatcher for the events the Order Matching
// Engine publishes. It wraps each event in a watermill.Message envelope for
// id/metadata/tracing purposes, but never touches watermill's pub/sub
// transport: the replay core is single-threaded with no suspension
// points, so dispatch happens inline, in handler-registration order, on
// the caller's own goroutine.
package bus

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/backtestcore/internal/backtest/producer"
	"github.com/abdoElHodaky/backtestcore/pkg/model"
)

// Handler receives one published event. Handlers run synchronously and in
// registration order; a handler must not itself call Publish (no reentrant
// dispatch is supported, matching the core's single-threaded model).
type Handler func(model.Event)

// GenericHandler receives one GenericData item, the driver's route() case
// for data that is neither a tick/bar/book-delta nor scoped to a matching
// engine; the driver routes such items here for strategies and actors.
type GenericHandler func(producer.GenericData)

// Bus is the execution engine's + strategies' shared event sink. It
// implements internal/backtest/matching.EventSink without importing that
// package, keeping the dependency direction matching -> bus.
type Bus struct {
	handlers        []Handler
	kindHandlers    map[model.EventKind][]Handler
	genericHandlers []GenericHandler
	logger          *zap.Logger
}

// New constructs an empty bus.
func New(logger *zap.Logger) *Bus {
	return &Bus{kindHandlers: make(map[model.EventKind][]Handler), logger: logger}
}

// Subscribe registers a handler invoked for every event.
func (b *Bus) Subscribe(h Handler) { b.handlers = append(b.handlers, h) }

// SubscribeKind registers a handler invoked only for events of one kind.
func (b *Bus) SubscribeKind(kind model.EventKind, h Handler) {
	b.kindHandlers[kind] = append(b.kindHandlers[kind], h)
}

// SubscribeGeneric registers a handler invoked for every GenericData item
// the driver routes to the bus.
func (b *Bus) SubscribeGeneric(h GenericHandler) { b.genericHandlers = append(b.genericHandlers, h) }

// PublishGeneric dispatches g to every generic handler, inline and in
// registration order, matching Publish's synchronous contract.
func (b *Bus) PublishGeneric(g producer.GenericData) {
	for _, h := range b.genericHandlers {
		h(g)
	}
}

// Publish implements matching.EventSink: it envelopes ev in a
// watermill.Message (id + metadata only, no payload marshalling; the
// typed Event is passed to handlers directly, never round-tripped through
// bytes, since this bus has no wire boundary to cross) and dispatches it to
// every matching handler, in registration order.
func (b *Bus) Publish(ev model.Event) {
	envelope := toEnvelope(ev)
	b.logger.Debug("dispatching event",
		zap.String("kind", string(ev.Header.Kind)),
		zap.String("message_id", envelope.UUID))

	for _, h := range b.handlers {
		h(ev)
	}
	for _, h := range b.kindHandlers[ev.Header.Kind] {
		h(ev)
	}
}

// toEnvelope builds the watermill.Message carrying ev's routing metadata;
// its Payload is intentionally empty (see Publish's doc comment).
func toEnvelope(ev model.Event) *message.Message {
	msg := message.NewMessage(ev.Header.EventID.String(), nil)
	msg.Metadata.Set("kind", string(ev.Header.Kind))
	msg.Metadata.Set("instrument_id", ev.Header.InstrumentID.String())
	msg.Metadata.Set("client_order_id", ev.Header.ClientOrderID)
	msg.Metadata.Set("account_id", ev.Header.AccountID)
	return msg
}
