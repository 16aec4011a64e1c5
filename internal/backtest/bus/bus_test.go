package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/backtestcore/internal/backtest/producer"
	"github.com/abdoElHodaky/backtestcore/pkg/model"
)

func event(kind model.EventKind) model.Event {
	return model.NewEvent(kind, model.EventHeader{
		InstrumentID:  model.NewInstrumentId("SIM", "EUR/USD"),
		ClientOrderID: "O-1",
	}, 1, 1, nil)
}

func TestPublishDispatchesInRegistrationOrder(t *testing.T) {
	b := New(zap.NewNop())

	var calls []string
	b.Subscribe(func(model.Event) { calls = append(calls, "first") })
	b.Subscribe(func(model.Event) { calls = append(calls, "second") })
	b.Subscribe(func(model.Event) { calls = append(calls, "third") })

	b.Publish(event(model.EventOrderAccepted))
	assert.Equal(t, []string{"first", "second", "third"}, calls)
}

func TestPublishIsSynchronous(t *testing.T) {
	b := New(zap.NewNop())

	delivered := false
	b.Subscribe(func(model.Event) { delivered = true })
	b.Publish(event(model.EventOrderFilled))

	// No goroutines: the handler has run by the time Publish returns.
	assert.True(t, delivered)
}

func TestSubscribeKindFiltersByKind(t *testing.T) {
	b := New(zap.NewNop())

	var fills, cancels int
	b.SubscribeKind(model.EventOrderFilled, func(model.Event) { fills++ })
	b.SubscribeKind(model.EventOrderCanceled, func(model.Event) { cancels++ })

	b.Publish(event(model.EventOrderFilled))
	b.Publish(event(model.EventOrderFilled))
	b.Publish(event(model.EventOrderCanceled))

	assert.Equal(t, 2, fills)
	assert.Equal(t, 1, cancels)
}

func TestGlobalHandlersRunBeforeKindHandlers(t *testing.T) {
	b := New(zap.NewNop())

	var calls []string
	b.SubscribeKind(model.EventOrderFilled, func(model.Event) { calls = append(calls, "kind") })
	b.Subscribe(func(model.Event) { calls = append(calls, "global") })

	b.Publish(event(model.EventOrderFilled))
	assert.Equal(t, []string{"global", "kind"}, calls)
}

func TestPublishGeneric(t *testing.T) {
	b := New(zap.NewNop())

	var got []producer.GenericData
	b.SubscribeGeneric(func(g producer.GenericData) { got = append(got, g) })

	g := producer.GenericData{Payload: "news", TsEvent: 5, TsInit: 5}
	b.PublishGeneric(g)

	assert.Len(t, got, 1)
	assert.Equal(t, "news", got[0].Payload)
}

func TestPublishWithNoHandlers(t *testing.T) {
	b := New(zap.NewNop())
	// Must not panic.
	b.Publish(event(model.EventOrderSubmitted))
	b.PublishGeneric(producer.GenericData{})
}

func TestEventPassedByValueUnmodified(t *testing.T) {
	b := New(zap.NewNop())

	var seen model.Event
	b.Subscribe(func(ev model.Event) { seen = ev })

	ev := event(model.EventOrderRejected)
	ev.Reason = "POST_ONLY: order would have been a TAKER"
	b.Publish(ev)

	assert.Equal(t, ev.Reason, seen.Reason)
	assert.Equal(t, ev.Header.EventID, seen.Header.EventID)
}
