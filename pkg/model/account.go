package model

import "sort"

// AccountType selects the balance/margin model applied to fills.
type AccountType string

const (
	AccountCash    AccountType = "CASH"
	AccountMargin  AccountType = "MARGIN"
	AccountBetting AccountType = "BETTING"
)

// Balance is a single currency's total/locked/free split.
type Balance struct {
	Currency string
	Total    Money
	Locked   Money
	Free     Money
}

// Account holds starting balances, per-currency balances, and leverage for
// one simulated-exchange venue. Its balances change through ApplyMoneyDelta,
// which the matching engine calls to settle commission on each fill.
type Account struct {
	AccountID         string
	Type              AccountType
	BaseCurrency      string
	Balances          map[string]*Balance
	DefaultLeverage   float64
	Leverages         map[InstrumentId]float64
	Frozen            bool
}

// NewAccount constructs an account seeded with the given starting balances.
func NewAccount(accountID string, accType AccountType, baseCurrency string, starting []Money, defaultLeverage float64) *Account {
	balances := make(map[string]*Balance, len(starting))
	for _, m := range starting {
		balances[m.Currency] = &Balance{Currency: m.Currency, Total: m, Locked: Money{Currency: m.Currency}, Free: m}
	}
	return &Account{
		AccountID:       accountID,
		Type:            accType,
		BaseCurrency:    baseCurrency,
		Balances:        balances,
		DefaultLeverage: defaultLeverage,
		Leverages:       make(map[InstrumentId]float64),
	}
}

// LeverageFor returns the configured leverage for an instrument, falling
// back to the account's default.
func (a *Account) LeverageFor(id InstrumentId) float64 {
	if lev, ok := a.Leverages[id]; ok {
		return lev
	}
	return a.DefaultLeverage
}

// BalancesSnapshot returns a copy of every balance, ordered by currency so
// AccountState events carry a deterministic balance list.
func (a *Account) BalancesSnapshot() []Balance {
	currencies := make([]string, 0, len(a.Balances))
	for c := range a.Balances {
		currencies = append(currencies, c)
	}
	sort.Strings(currencies)
	out := make([]Balance, 0, len(currencies))
	for _, c := range currencies {
		out = append(out, *a.Balances[c])
	}
	return out
}

// ApplyMoneyDelta adds (or subtracts, for a negative delta) an amount to the
// free and total balance of delta's currency, creating the balance entry on
// first use.
func (a *Account) ApplyMoneyDelta(delta Money) {
	bal, ok := a.Balances[delta.Currency]
	if !ok {
		bal = &Balance{Currency: delta.Currency, Total: Money{Currency: delta.Currency}, Free: Money{Currency: delta.Currency}, Locked: Money{Currency: delta.Currency}}
		a.Balances[delta.Currency] = bal
	}
	bal.Total.val = bal.Total.val.Add(delta.val)
	bal.Free.val = bal.Free.val.Add(delta.val)
}
