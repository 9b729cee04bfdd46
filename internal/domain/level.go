package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Flip returns the opposite side. A level flips after a successful
// execution so the grid keeps oscillating.
func (s Side) Flip() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// GridLevel is one rung of the price ladder. Price is fixed at creation;
// Side and Active are mutable runtime state.
type GridLevel struct {
	Index          int
	Price          decimal.Decimal // tokenB per tokenA, fixed
	Side           Side
	Active         bool
	LastExecutedAt time.Time // zero until the first execution
}

// CooldownReady reports whether the level may execute again at the given time.
func (l *GridLevel) CooldownReady(now time.Time, cooldownSeconds int64) bool {
	if l.LastExecutedAt.IsZero() {
		return true
	}
	return !now.Before(l.LastExecutedAt.Add(time.Duration(cooldownSeconds) * time.Second))
}

// Triggered reports whether the current price satisfies the level's
// trigger condition: a Buy triggers at or below its price, a Sell at or above.
func (l *GridLevel) Triggered(price decimal.Decimal) bool {
	if l.Side == SideBuy {
		return price.Cmp(l.Price) <= 0
	}
	return price.Cmp(l.Price) >= 0
}

// Asset names the two legs of the pair held in custody.
type Asset string

const (
	AssetA Asset = "A"
	AssetB Asset = "B"
)

func (a Asset) Valid() bool {
	return a == AssetA || a == AssetB
}

// Balances are the custodial holdings of the engine. Never negative.
type Balances struct {
	BalanceA decimal.Decimal
	BalanceB decimal.Decimal
}
