package oracle

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vitos/gridpool/internal/domain"
)

// TwapOracle derives a time-weighted average price from two cumulative
// tick samples. A single manipulated block moves the average tick by at
// most its share of the window, which is the whole point.
type TwapOracle struct {
	pool      domain.LiquidityPool
	decimalsA int32
	decimalsB int32
}

func NewTwapOracle(pool domain.LiquidityPool, decimalsA, decimalsB int32) *TwapOracle {
	return &TwapOracle{
		pool:      pool,
		decimalsA: decimalsA,
		decimalsB: decimalsB,
	}
}

// TwapPrice returns the average price over the trailing window, tokenB per
// tokenA. It fails with ErrOracleUnavailable when the window predates the
// pool's stored observation history; callers must not substitute a stale
// or zero value silently.
func (o *TwapOracle) TwapPrice(ctx context.Context, windowSeconds uint32) (decimal.Decimal, error) {
	if windowSeconds == 0 {
		return decimal.Zero, fmt.Errorf("twap window must be > 0")
	}

	cumulatives, err := o.pool.ObserveTicks(ctx, []uint32{windowSeconds, 0})
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", domain.ErrOracleUnavailable, err)
	}
	if len(cumulatives) != 2 {
		return decimal.Zero, fmt.Errorf("%w: expected 2 samples, got %d", domain.ErrOracleUnavailable, len(cumulatives))
	}

	delta := cumulatives[1] - cumulatives[0]
	avgTick := floorDiv(delta, int64(windowSeconds))

	price, err := PriceAtTick(int(avgTick), o.decimalsA, o.decimalsB)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", domain.ErrOracleUnavailable, err)
	}
	return price, nil
}

// floorDiv rounds toward negative infinity. Plain integer division
// truncates toward zero, which would bias the average tick upward
// whenever the delta is negative.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
