// Package latency implements the constant per-command-kind delays the
// simulated exchange applies between a strategy issuing a trading command and
// that command reaching its matching engine.
package latency

import coreerrors "github.com/abdoElHodaky/backtestcore/pkg/errors"

// CommandKind selects which of the four offsets applies.
type CommandKind string

const (
	KindSubmit CommandKind = "SUBMIT"
	KindModify CommandKind = "MODIFY"
	KindCancel CommandKind = "CANCEL"
)

// Config holds the four non-negative nanosecond offsets. Effective latency
// for a command is Base + the kind-specific offset.
type Config struct {
	BaseNs   int64
	InsertNs int64
	UpdateNs int64
	CancelNs int64
}

// DefaultConfig is a 1s base latency with zero kind-specific offsets.
func DefaultConfig() Config {
	return Config{BaseNs: 1_000_000_000}
}

// Validate reports a NEGATIVE_LATENCY model error for any negative offset.
func (c Config) Validate() error {
	for _, v := range []int64{c.BaseNs, c.InsertNs, c.UpdateNs, c.CancelNs} {
		if v < 0 {
			return coreerrors.New(coreerrors.ErrNegativeLatency, "latency offsets must be non-negative")
		}
	}
	return nil
}

// Model computes ready_ns = now_ns + latency(kind) for each inbound command.
type Model struct {
	cfg Config
}

// New constructs a Model from cfg, validating its offsets.
func New(cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Model{cfg: cfg}, nil
}

// Delay returns the effective nanosecond delay for the given command kind.
// Zero-latency configuration collapses to immediate delivery on the next
// iteration step (ReadyNs == nowNs), not instantaneous in-call delivery.
func (m *Model) Delay(kind CommandKind) int64 {
	switch kind {
	case KindModify:
		return m.cfg.BaseNs + m.cfg.UpdateNs
	case KindCancel:
		return m.cfg.BaseNs + m.cfg.CancelNs
	default:
		return m.cfg.BaseNs + m.cfg.InsertNs
	}
}

// ReadyAt returns the ready_ns stamp for a command issued at nowNs.
func (m *Model) ReadyAt(nowNs int64, kind CommandKind) int64 {
	return nowNs + m.Delay(kind)
}
