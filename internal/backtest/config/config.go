// Package config loads and validates the fill-model, latency-model, engine
// and account configuration a backtest run is constructed from. Values are
// read through viper and checked with go-playground/validator struct tags,
// so a malformed config file fails fast with a field-level message instead
// of surfacing as an obscure run abort.
package config

import (
	"fmt"
	"strings"

	validator "github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/abdoElHodaky/backtestcore/internal/backtest/fillmodel"
	"github.com/abdoElHodaky/backtestcore/internal/backtest/latency"
	"github.com/abdoElHodaky/backtestcore/internal/backtest/matching"
	"github.com/abdoElHodaky/backtestcore/pkg/model"
)

// FillModelConfig mirrors fillmodel.Config with viper/validator tags; it is
// converted to a fillmodel.Config once loaded.
type FillModelConfig struct {
	ProbFillOnLimit float64 `mapstructure:"prob_fill_on_limit" validate:"gte=0,lte=1"`
	ProbFillOnStop  float64 `mapstructure:"prob_fill_on_stop" validate:"gte=0,lte=1"`
	ProbSlippage    float64 `mapstructure:"prob_slippage" validate:"gte=0,lte=1"`
	RandomSeed      uint64  `mapstructure:"random_seed"`
}

func (c FillModelConfig) toDomain() fillmodel.Config {
	return fillmodel.Config{
		ProbFillOnLimit: c.ProbFillOnLimit,
		ProbFillOnStop:  c.ProbFillOnStop,
		ProbSlippage:    c.ProbSlippage,
		RandomSeed:      c.RandomSeed,
	}
}

// LatencyConfig mirrors latency.Config with viper/validator tags.
type LatencyConfig struct {
	BaseNs   int64 `mapstructure:"base_ns" validate:"gte=0"`
	InsertNs int64 `mapstructure:"insert_ns" validate:"gte=0"`
	UpdateNs int64 `mapstructure:"update_ns" validate:"gte=0"`
	CancelNs int64 `mapstructure:"cancel_ns" validate:"gte=0"`
}

func (c LatencyConfig) toDomain() latency.Config {
	return latency.Config{
		BaseNs:   c.BaseNs,
		InsertNs: c.InsertNs,
		UpdateNs: c.UpdateNs,
		CancelNs: c.CancelNs,
	}
}

// EngineConfig mirrors matching.Config with viper/validator tags.
type EngineConfig struct {
	BookType         string `mapstructure:"book_type" validate:"oneof=L1_TBBO L2_MBP L3_MBO"`
	OMSType          string `mapstructure:"oms_type" validate:"oneof=NETTING HEDGING"`
	RejectStopOrders bool   `mapstructure:"reject_stop_orders"`
	SupportGTD       bool   `mapstructure:"support_gtd"`
	UseRandomIDs     bool   `mapstructure:"use_random_ids"`
	DepthType        string `mapstructure:"depth_type" validate:"oneof=VISIBLE VOLUME_WITH_IMAGINARY_LEVEL"`
	AdaptiveBarOrder bool   `mapstructure:"adaptive_bar_order"`
}

func (c EngineConfig) toDomain() matching.Config {
	return matching.Config{
		BookType:         model.BookType(c.BookType),
		OMSType:          model.OMSType(c.OMSType),
		RejectStopOrders: c.RejectStopOrders,
		SupportGTD:       c.SupportGTD,
		UseRandomIDs:     c.UseRandomIDs,
		DepthType:        model.DepthType(c.DepthType),
		AdaptiveBarOrder: c.AdaptiveBarOrder,
	}
}

// BalanceConfig is one starting balance entry.
type BalanceConfig struct {
	Currency  string  `mapstructure:"currency" validate:"required"`
	Amount    float64 `mapstructure:"amount" validate:"gte=0"`
	Precision uint8   `mapstructure:"precision"`
}

// AccountConfig carries the account-side run configuration: account type,
// base currency, starting balances, leverage, frozen flag.
type AccountConfig struct {
	AccountID        string          `mapstructure:"account_id"`
	AccountType      string          `mapstructure:"account_type" validate:"oneof=CASH MARGIN BETTING"`
	BaseCurrency     string          `mapstructure:"base_currency"`
	StartingBalances []BalanceConfig `mapstructure:"starting_balances" validate:"dive"`
	DefaultLeverage  float64         `mapstructure:"default_leverage" validate:"gte=0"`
	Leverages        map[string]float64 `mapstructure:"leverages"` // "SYMBOL.VENUE" -> leverage
	FrozenAccount    bool            `mapstructure:"frozen_account"`
}

// ToAccount constructs the model.Account this config describes.
func (c AccountConfig) ToAccount() *model.Account {
	starting := make([]model.Money, 0, len(c.StartingBalances))
	for _, b := range c.StartingBalances {
		starting = append(starting, model.NewMoney(b.Amount, b.Currency, model.Precision(b.Precision)))
	}
	acc := model.NewAccount(c.AccountID, model.AccountType(c.AccountType), c.BaseCurrency, starting, c.DefaultLeverage)
	acc.Frozen = c.FrozenAccount
	for key, lev := range c.Leverages {
		if dot := strings.LastIndex(key, "."); dot > 0 {
			acc.Leverages[model.NewInstrumentId(key[dot+1:], key[:dot])] = lev
		}
	}
	return acc
}

// InstrumentConfig declares one instrument of the run's trading universe.
type InstrumentConfig struct {
	Venue          string  `mapstructure:"venue" validate:"required"`
	Symbol         string  `mapstructure:"symbol" validate:"required"`
	AssetClass     string  `mapstructure:"asset_class"`
	PricePrecision uint8   `mapstructure:"price_precision"`
	SizePrecision  uint8   `mapstructure:"size_precision"`
	TickSize       float64 `mapstructure:"tick_size" validate:"gt=0"`
	MinTradeSize   float64 `mapstructure:"min_trade_size" validate:"gte=0"`
	MaxTradeSize   float64 `mapstructure:"max_trade_size" validate:"gte=0"`
	QuoteCurrency  string  `mapstructure:"quote_currency"`
	BaseCurrency   string  `mapstructure:"base_currency"`
	IsInverse      bool    `mapstructure:"is_inverse"`
	MakerFee       float64 `mapstructure:"maker_fee"`
	TakerFee       float64 `mapstructure:"taker_fee"`
}

// ToInstrument constructs the model.Instrument this config describes.
func (c InstrumentConfig) ToInstrument() model.Instrument {
	return model.Instrument{
		ID:             model.NewInstrumentId(c.Venue, c.Symbol),
		AssetClass:     model.AssetClass(c.AssetClass),
		PricePrecision: model.Precision(c.PricePrecision),
		SizePrecision:  model.Precision(c.SizePrecision),
		TickSize:       model.NewPrice(c.TickSize, model.Precision(c.PricePrecision)),
		MinTradeSize:   model.NewQuantity(c.MinTradeSize, model.Precision(c.SizePrecision)),
		MaxTradeSize:   model.NewQuantity(c.MaxTradeSize, model.Precision(c.SizePrecision)),
		QuoteCurrency:  c.QuoteCurrency,
		BaseCurrency:   c.BaseCurrency,
		IsInverse:      c.IsInverse,
		MakerFee:       c.MakerFee,
		TakerFee:       c.TakerFee,
	}
}

// Config is the top-level run configuration.
type Config struct {
	FillModel   FillModelConfig    `mapstructure:"fill_model"`
	Latency     LatencyConfig      `mapstructure:"latency"`
	Engine      EngineConfig       `mapstructure:"engine"`
	Account     AccountConfig      `mapstructure:"account"`
	Instruments []InstrumentConfig `mapstructure:"instruments" validate:"dive"`
}

// Defaults returns zero fill-model probabilities (deterministic fills, no
// PRNG draws consumed), latency.DefaultConfig's 1s base latency, and an
// L2/NETTING/visible-depth engine.
func Defaults() Config {
	return Config{
		Latency: LatencyConfig{BaseNs: latency.DefaultConfig().BaseNs},
		Engine: EngineConfig{
			BookType:  string(model.BookL2MBP),
			OMSType:   string(model.OMSNetting),
			DepthType: string(model.DepthVisible),
		},
		Account: AccountConfig{
			AccountID:       "BACKTEST-001",
			AccountType:     string(model.AccountCash),
			BaseCurrency:    "USD",
			DefaultLeverage: 1,
		},
	}
}

// Load reads configPath (if non-empty) through viper, falling back to
// Defaults for anything the file or environment does not set, then
// validates the result with struct tags.
func Load(configPath string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetEnvPrefix("BACKTEST")
	bindDefaults(v, cfg)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", configPath, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate runs struct-tag validation over cfg, returning a field-level
// error message rather than a bare validator.ValidationErrors value.
func Validate(cfg Config) error {
	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return fmt.Errorf("invalid config: %s", formatValidationErrors(verrs))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func formatValidationErrors(verrs validator.ValidationErrors) string {
	msg := ""
	for i, e := range verrs {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("%s failed %q (value=%v)", e.Namespace(), e.Tag(), e.Value())
	}
	return msg
}

// bindDefaults seeds viper with cfg's zero-value-free defaults so an absent
// config file or env var falls back to Defaults() rather than the type's
// zero value.
func bindDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("fill_model.prob_fill_on_limit", cfg.FillModel.ProbFillOnLimit)
	v.SetDefault("fill_model.prob_fill_on_stop", cfg.FillModel.ProbFillOnStop)
	v.SetDefault("fill_model.prob_slippage", cfg.FillModel.ProbSlippage)
	v.SetDefault("fill_model.random_seed", cfg.FillModel.RandomSeed)
	v.SetDefault("latency.base_ns", cfg.Latency.BaseNs)
	v.SetDefault("latency.insert_ns", cfg.Latency.InsertNs)
	v.SetDefault("latency.update_ns", cfg.Latency.UpdateNs)
	v.SetDefault("latency.cancel_ns", cfg.Latency.CancelNs)
	v.SetDefault("engine.book_type", cfg.Engine.BookType)
	v.SetDefault("engine.oms_type", cfg.Engine.OMSType)
	v.SetDefault("engine.reject_stop_orders", cfg.Engine.RejectStopOrders)
	v.SetDefault("engine.support_gtd", cfg.Engine.SupportGTD)
	v.SetDefault("engine.use_random_ids", cfg.Engine.UseRandomIDs)
	v.SetDefault("engine.depth_type", cfg.Engine.DepthType)
	v.SetDefault("engine.adaptive_bar_order", cfg.Engine.AdaptiveBarOrder)
	v.SetDefault("account.account_id", cfg.Account.AccountID)
	v.SetDefault("account.account_type", cfg.Account.AccountType)
	v.SetDefault("account.base_currency", cfg.Account.BaseCurrency)
	v.SetDefault("account.default_leverage", cfg.Account.DefaultLeverage)
	v.SetDefault("account.frozen_account", cfg.Account.FrozenAccount)
}

// FillModelDomain, LatencyDomain, and EngineDomain convert the loaded config into the domain
// types each component's constructor expects.
func (c Config) FillModelDomain() fillmodel.Config { return c.FillModel.toDomain() }
func (c Config) LatencyDomain() latency.Config     { return c.Latency.toDomain() }
func (c Config) EngineDomain() matching.Config     { return c.Engine.toDomain() }
