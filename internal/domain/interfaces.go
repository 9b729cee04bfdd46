package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// LiquidityPool is the external venue providing both cumulative price
// samples and swap execution. The engine never implements it.
type LiquidityPool interface {
	// ObserveTicks returns the pool's cumulative tick-time samples for each
	// requested age in seconds, newest semantics matching Uniswap V3 observe:
	// secondsAgo 0 means now. An age beyond the stored observation history
	// must return an error.
	ObserveTicks(ctx context.Context, secondsAgos []uint32) ([]int64, error)

	// Swap executes an exact-input swap and returns the realized output.
	// The pool rejects the swap when the realized output falls below
	// params.MinAmountOut.
	Swap(ctx context.Context, params SwapParams) (SwapResult, error)
}

// SwapParams describes an exact-input swap through the pool.
type SwapParams struct {
	AssetIn      Asset
	AmountIn     decimal.Decimal
	MinAmountOut decimal.Decimal
}

type SwapResult struct {
	AmountOut decimal.Decimal
}

// PriceSource yields a manipulation-resistant price for the pair,
// tokenB per tokenA.
type PriceSource interface {
	TwapPrice(ctx context.Context, windowSeconds uint32) (decimal.Decimal, error)
}

// GridRepository persists engine state across restarts.
type GridRepository interface {
	SaveConfig(ctx context.Context, cfg *GridConfig) error
	LoadConfig(ctx context.Context) (*GridConfig, error) // (nil, nil) when none stored

	SaveLevels(ctx context.Context, levels []*GridLevel) error
	UpdateLevel(ctx context.Context, level *GridLevel) error
	ListLevels(ctx context.Context) ([]*GridLevel, error)

	SaveEngineState(ctx context.Context, state *EngineState) error
	LoadEngineState(ctx context.Context) (*EngineState, error) // (nil, nil) when none stored

	SaveExecution(ctx context.Context, rec *ExecutionRecord) error
	ListExecutions(ctx context.Context, limit int) ([]*ExecutionRecord, error)

	SaveReport(ctx context.Context, report *ExecutionReport) error
	ListReports(ctx context.Context, limit int) ([]*ExecutionReport, error)
}

// EngineState is the persisted custody/ownership snapshot.
type EngineState struct {
	Owner    string
	Paused   bool
	Balances Balances
}

// Notifier receives every state-change event. Implementations must not block.
type Notifier interface {
	Publish(event Event)
}
