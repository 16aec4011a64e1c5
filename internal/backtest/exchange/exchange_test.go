package exchange

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/backtestcore/internal/backtest/fillmodel"
	"github.com/abdoElHodaky/backtestcore/internal/backtest/latency"
	"github.com/abdoElHodaky/backtestcore/internal/backtest/matching"
	"github.com/abdoElHodaky/backtestcore/pkg/model"
)

var testID = model.NewInstrumentId("SIM", "EUR/USD")

func testInstrument() model.Instrument {
	return model.Instrument{
		ID:             testID,
		AssetClass:     model.AssetClassFX,
		PricePrecision: 5,
		SizePrecision:  0,
		TickSize:       model.NewPrice(0.00001, 5),
		QuoteCurrency:  "USD",
		BaseCurrency:   "EUR",
		TakerFee:       0.0002,
	}
}

type recordingSink struct {
	events []model.Event
}

func (r *recordingSink) Publish(ev model.Event) { r.events = append(r.events, ev) }

type ExchangeSuite struct {
	suite.Suite
	sink *recordingSink
	ex   *Exchange
}

func TestExchangeSuite(t *testing.T) {
	suite.Run(t, new(ExchangeSuite))
}

func (s *ExchangeSuite) build(latencyCfg latency.Config) {
	s.sink = &recordingSink{}

	lat, err := latency.New(latencyCfg)
	s.Require().NoError(err)
	fm, err := fillmodel.New(fillmodel.Config{ProbFillOnLimit: 1, ProbFillOnStop: 1})
	s.Require().NoError(err)

	account := model.NewAccount("SIM-001", model.AccountCash, "USD",
		[]model.Money{model.NewMoney(1_000_000, "USD", 5)}, 1)
	s.ex = New("SIM", account, lat, s.sink, zap.NewNop())
	engine := matching.New(
		matching.Config{BookType: model.BookL1TBBO, OMSType: model.OMSNetting},
		testInstrument(), fm, matching.MakerTakerFeeModel{}, s.sink, account, zap.NewNop())
	s.ex.AddEngine(engine)
}

func (s *ExchangeSuite) SetupTest() {
	s.build(latency.Config{BaseNs: 1_000_000_000})
}

func (s *ExchangeSuite) quote(bid, ask float64, ts int64) {
	s.ex.RouteQuoteTick(model.QuoteTick{
		InstrumentID: testID,
		Bid:          model.NewPrice(bid, 5),
		Ask:          model.NewPrice(ask, 5),
		BidSize:      model.NewQuantity(1_000_000, 0),
		AskSize:      model.NewQuantity(1_000_000, 0),
		TsEvent:      ts,
		TsInit:       ts,
	})
}

func submitCmd(id string, side model.OrderSide, qty float64, ts int64) Command {
	return Command{
		InstrumentID: testID,
		TsEvent:      ts,
		SubmitOrder: &model.Order{
			ClientOrderID: id,
			InstrumentID:  testID,
			Type:          model.OrderTypeMarket,
			Side:          side,
			Quantity:      model.NewQuantity(qty, 0),
			FilledQty:     model.ZeroQuantity(0),
			TimeInForce:   model.TIFGTC,
			AccountID:     "SIM-001",
		},
	}
}

func (s *ExchangeSuite) kindsFor(id string) []model.EventKind {
	var out []model.EventKind
	for _, ev := range s.sink.events {
		if ev.Header.ClientOrderID == id {
			out = append(out, ev.Header.Kind)
		}
	}
	return out
}

func (s *ExchangeSuite) TestCommandHeldUntilReady() {
	s.quote(1.10000, 1.10002, 500)
	s.ex.Send(latency.KindSubmit, 1_000, submitCmd("O-1", model.OrderSideBuy, 10000, 1_000))

	// Latency is 1s; processing before ready_ns delivers nothing.
	s.ex.Process(500_000_000)
	s.Empty(s.kindsFor("O-1"))

	s.ex.Process(1_000_001_000)
	s.Equal([]model.EventKind{
		model.EventOrderSubmitted,
		model.EventOrderAccepted,
		model.EventOrderFilled,
	}, s.kindsFor("O-1")[:3])
}

func (s *ExchangeSuite) TestZeroLatencyDeliversOnNextProcess() {
	s.build(latency.Config{})
	s.quote(1.10000, 1.10002, 500)

	s.ex.Send(latency.KindSubmit, 1_000, submitCmd("O-1", model.OrderSideBuy, 10000, 1_000))
	s.ex.Process(1_000)
	s.NotEmpty(s.kindsFor("O-1"))
}

func (s *ExchangeSuite) TestLatencyOrderPreserved() {
	s.quote(1.10000, 1.10002, 500)

	// A submitted before B, identical latency: A must reach the engine first.
	s.ex.Send(latency.KindSubmit, 1_000, submitCmd("O-a", model.OrderSideBuy, 10000, 1_000))
	s.ex.Send(latency.KindSubmit, 2_000, submitCmd("O-b", model.OrderSideBuy, 10000, 2_000))
	s.ex.Process(2_000_000_000)

	var order []string
	for _, ev := range s.sink.events {
		if ev.Header.Kind == model.EventOrderSubmitted {
			order = append(order, ev.Header.ClientOrderID)
		}
	}
	s.Equal([]string{"O-a", "O-b"}, order)
}

func (s *ExchangeSuite) TestEqualReadyNsDispatchesFIFO() {
	s.build(latency.Config{})
	s.quote(1.10000, 1.10002, 500)

	for _, id := range []string{"O-1", "O-2", "O-3"} {
		s.ex.Send(latency.KindSubmit, 1_000, submitCmd(id, model.OrderSideBuy, 10000, 1_000))
	}
	s.ex.Process(1_000)

	var order []string
	for _, ev := range s.sink.events {
		if ev.Header.Kind == model.EventOrderSubmitted {
			order = append(order, ev.Header.ClientOrderID)
		}
	}
	s.Equal([]string{"O-1", "O-2", "O-3"}, order)
}

func (s *ExchangeSuite) TestCancelCommandDispatch() {
	s.build(latency.Config{})
	s.quote(1.10000, 1.10002, 500)

	// A resting limit order, then a cancel for it.
	cmd := submitCmd("O-1", model.OrderSideBuy, 10000, 1_000)
	cmd.SubmitOrder.Type = model.OrderTypeLimit
	cmd.SubmitOrder.Price = model.NewPrice(1.09990, 5)
	cmd.SubmitOrder.HasPrice = true
	s.ex.Send(latency.KindSubmit, 1_000, cmd)
	s.ex.Process(1_000)

	s.ex.Send(latency.KindCancel, 2_000, Command{
		InstrumentID: testID,
		TsEvent:      2_000,
		Cancel:       &CancelCommand{ClientOrderID: "O-1"},
	})
	s.ex.Process(2_000)

	kinds := s.kindsFor("O-1")
	s.Equal(model.EventOrderCanceled, kinds[len(kinds)-1])
}

func (s *ExchangeSuite) TestModifyCommandDispatch() {
	s.build(latency.Config{})
	s.quote(1.10000, 1.10002, 500)

	cmd := submitCmd("O-1", model.OrderSideBuy, 10000, 1_000)
	cmd.SubmitOrder.Type = model.OrderTypeLimit
	cmd.SubmitOrder.Price = model.NewPrice(1.09990, 5)
	cmd.SubmitOrder.HasPrice = true
	s.ex.Send(latency.KindSubmit, 1_000, cmd)
	s.ex.Process(1_000)

	s.ex.Send(latency.KindModify, 2_000, Command{
		InstrumentID: testID,
		TsEvent:      2_000,
		Modify: &ModifyCommand{
			ClientOrderID: "O-1",
			NewPrice:      model.NewPrice(1.09995, 5),
			HasPrice:      true,
		},
	})
	s.ex.Process(2_000)

	eng, ok := s.ex.Engine(testID)
	s.Require().True(ok)
	o, ok := eng.Order("O-1")
	s.Require().True(ok)
	s.Equal("1.09995", o.Price.String())
}

func (s *ExchangeSuite) TestCancelAllCommandDispatch() {
	s.build(latency.Config{})
	s.quote(1.10000, 1.10002, 500)

	for _, id := range []string{"O-1", "O-2"} {
		cmd := submitCmd(id, model.OrderSideBuy, 10000, 1_000)
		cmd.SubmitOrder.Type = model.OrderTypeLimit
		cmd.SubmitOrder.Price = model.NewPrice(1.09990, 5)
		cmd.SubmitOrder.HasPrice = true
		s.ex.Send(latency.KindSubmit, 1_000, cmd)
	}
	s.ex.Process(1_000)

	s.ex.Send(latency.KindCancel, 2_000, Command{
		InstrumentID: testID,
		TsEvent:      2_000,
		CancelAll:    &CancelAllCommand{InstrumentID: testID},
	})
	s.ex.Process(2_000)

	eng, _ := s.ex.Engine(testID)
	for _, id := range []string{"O-1", "O-2"} {
		o, ok := eng.Order(id)
		s.Require().True(ok)
		s.Equal(model.StatusCanceled, o.Status)
	}
}

func (s *ExchangeSuite) TestUnknownInstrumentCommandDropped() {
	cmd := submitCmd("O-1", model.OrderSideBuy, 10000, 1_000)
	cmd.InstrumentID = model.NewInstrumentId("SIM", "XAU/USD")
	s.ex.Send(latency.KindSubmit, 1_000, cmd)

	// Must not panic; no events are produced.
	s.ex.Process(2_000_000_000)
	s.Empty(s.sink.events)
}

func (s *ExchangeSuite) TestInitializeAccountEmitsOpeningState() {
	s.ex.InitializeAccount(1_000)

	require.Len(s.T(), s.sink.events, 1)
	ev := s.sink.events[0]
	s.Equal(model.EventAccountState, ev.Header.Kind)
	s.Equal("SIM-001", ev.Header.AccountID)
	require.Len(s.T(), ev.Balances, 1)
	s.Equal("1000000.00000 USD", ev.Balances[0].Total.String())
}

func (s *ExchangeSuite) TestRouteMarketDataToEngine() {
	s.quote(1.10000, 1.10002, 500)

	eng, ok := s.ex.Engine(testID)
	s.Require().True(ok)
	bid, ok := eng.Book().BestBidPrice()
	s.Require().True(ok)
	s.Equal("1.10000", bid.String())

	s.ex.RouteTradeTick(model.TradeTick{
		InstrumentID:  testID,
		Price:         model.NewPrice(1.10001, 5),
		Size:          model.NewQuantity(1000, 0),
		AggressorSide: model.AggressorBuy,
		TradeID:       "T-1",
		TsEvent:       600,
		TsInit:        600,
	})
	last, ok := eng.Book().LastPrice()
	s.Require().True(ok)
	s.Equal("1.10001", last.String())
}
