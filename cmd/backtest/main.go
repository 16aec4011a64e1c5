// Command backtest runs one deterministic backtest replay: it loads the run
// configuration, restores a cached data-producer snapshot, constructs the
// simulated exchange and its matching engines, and drives the replay loop to
// completion, logging a per-event-kind summary at the end.
package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/backtestcore/internal/backtest/bus"
	"github.com/abdoElHodaky/backtestcore/internal/backtest/cache"
	"github.com/abdoElHodaky/backtestcore/internal/backtest/clock"
	"github.com/abdoElHodaky/backtestcore/internal/backtest/config"
	"github.com/abdoElHodaky/backtestcore/internal/backtest/driver"
	"github.com/abdoElHodaky/backtestcore/internal/backtest/exchange"
	"github.com/abdoElHodaky/backtestcore/internal/backtest/fillmodel"
	"github.com/abdoElHodaky/backtestcore/internal/backtest/latency"
	"github.com/abdoElHodaky/backtestcore/internal/backtest/matching"
	"github.com/abdoElHodaky/backtestcore/internal/backtest/producer"
	"github.com/abdoElHodaky/backtestcore/pkg/model"
)

// Flags are the run parameters supplied on the command line.
type Flags struct {
	ConfigPath   string
	SnapshotPath string
	StartNs      int64
	StopNs       int64
}

func main() {
	flags := parseFlags()

	app := fx.New(
		fx.Supply(flags),
		fx.Provide(
			loadConfig,
			newLogger,
			clock.New,
			cache.New,
			bus.New,
			newStream,
			newExchange,
			newDriver,
		),
		fx.Invoke(runBacktest),
	)

	app.Run()
}

func parseFlags() Flags {
	var f Flags
	flag.StringVar(&f.ConfigPath, "config", "", "path to the YAML run configuration")
	flag.StringVar(&f.SnapshotPath, "snapshot", "", "path to a cached data-producer snapshot")
	flag.Int64Var(&f.StartNs, "start", 0, "replay window start (UTC ns, 0 = snapshot start)")
	flag.Int64Var(&f.StopNs, "stop", 0, "replay window stop (UTC ns, 0 = snapshot end)")
	flag.Parse()
	return f
}

func loadConfig(flags Flags) (config.Config, error) {
	return config.Load(flags.ConfigPath)
}

func newLogger() *zap.Logger {
	var logger *zap.Logger
	var err error

	if os.Getenv("BACKTEST_ENV") == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	return logger
}

func newStream(flags Flags) (*producer.CachedProducer, error) {
	if flags.SnapshotPath == "" {
		return nil, fmt.Errorf("a -snapshot path is required")
	}
	data, err := os.ReadFile(flags.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %q: %w", flags.SnapshotPath, err)
	}
	return producer.LoadCachedSnapshot(data)
}

func newExchange(cfg config.Config, eventBus *bus.Bus, logger *zap.Logger) (*exchange.Exchange, error) {
	if len(cfg.Instruments) == 0 {
		return nil, fmt.Errorf("config declares no instruments")
	}

	fm, err := fillmodel.New(cfg.FillModelDomain())
	if err != nil {
		return nil, err
	}
	lat, err := latency.New(cfg.LatencyDomain())
	if err != nil {
		return nil, err
	}

	account := cfg.Account.ToAccount()
	venue := cfg.Instruments[0].Venue
	ex := exchange.New(venue, account, lat, eventBus, logger)
	for _, ic := range cfg.Instruments {
		instrument := ic.ToInstrument()
		engine := matching.New(cfg.EngineDomain(), instrument, fm, matching.MakerTakerFeeModel{}, eventBus, account, logger)
		ex.AddEngine(engine)
	}
	return ex, nil
}

func newDriver(clk *clock.Clock, stream *producer.CachedProducer, eventBus *bus.Bus, sharedCache *cache.Cache, ex *exchange.Exchange, logger *zap.Logger) *driver.Driver {
	d := driver.New(clk, stream, eventBus, sharedCache, logger)
	d.AddExchange(ex)
	return d
}

func runBacktest(d *driver.Driver, flags Flags, stream *producer.CachedProducer, logger *zap.Logger, shutdowner fx.Shutdowner) {
	counts := make(map[model.EventKind]int)
	var total int
	d.Bus().Subscribe(func(ev model.Event) {
		counts[ev.Header.Kind]++
		total++
	})

	startNs, stopNs := flags.StartNs, flags.StopNs
	minNs, maxNs := stream.MinMaxTsNs()
	if startNs == 0 {
		startNs = minNs
	}
	if stopNs == 0 {
		stopNs = maxNs
	}

	logger.Info("starting backtest",
		zap.Int64("start_ns", startNs),
		zap.Int64("stop_ns", stopNs))

	d.Setup(startNs, stopNs)
	d.Run()

	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, kind := range kinds {
		logger.Info("event summary", zap.String("kind", kind), zap.Int("count", counts[model.EventKind(kind)]))
	}
	logger.Info("backtest complete", zap.Int("total_events", total))

	_ = shutdowner.Shutdown()
}
