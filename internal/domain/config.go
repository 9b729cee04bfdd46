package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	// MinLevelCount and MaxLevelCount bound the grid ladder size.
	MinLevelCount = 2
	MaxLevelCount = 100

	// MaxSlippageBps is the upper bound for the slippage setting (10%).
	MaxSlippageBps = 1000

	// BpsDenominator is the basis-point scale used for slippage math.
	BpsDenominator = 10000
)

// FeeTier is the pool fee in hundredths of a basis point (Uniswap V3 convention).
type FeeTier uint32

const (
	FeeTier100   FeeTier = 100   // 0.01%
	FeeTier500   FeeTier = 500   // 0.05%
	FeeTier3000  FeeTier = 3000  // 0.30%
	FeeTier10000 FeeTier = 10000 // 1.00%
)

func (f FeeTier) Valid() bool {
	switch f {
	case FeeTier100, FeeTier500, FeeTier3000, FeeTier10000:
		return true
	}
	return false
}

// GridConfig describes the trading range and order parameters.
// It is set exactly once and immutable afterwards.
type GridConfig struct {
	TokenA          string          // base token identifier, e.g. "WETH"
	TokenB          string          // quote token identifier, e.g. "USDC"
	LowerPrice      decimal.Decimal // bottom of the range, tokenB per tokenA
	UpperPrice      decimal.Decimal // top of the range, tokenB per tokenA
	LevelCount      int
	OrderSizeA      decimal.Decimal // tokenA spent per Sell execution
	OrderSizeB      decimal.Decimal // tokenB spent per Buy execution
	FeeTier         FeeTier
	MaxSlippageBps  int
	CooldownSeconds int64 // minimum seconds between executions of the same level
}

// Validate checks every invariant and reports the first violated field.
func (c *GridConfig) Validate() error {
	if c.TokenA == "" {
		return &ConfigError{Field: "tokenA", Err: fmt.Errorf("token identifier is required")}
	}
	if c.TokenB == "" {
		return &ConfigError{Field: "tokenB", Err: fmt.Errorf("token identifier is required")}
	}
	if c.TokenA == c.TokenB {
		return &ConfigError{Field: "tokenB", Err: fmt.Errorf("tokens must differ")}
	}
	if !c.LowerPrice.IsPositive() {
		return &ConfigError{Field: "lowerPrice", Err: fmt.Errorf("must be > 0, got %s", c.LowerPrice)}
	}
	if c.UpperPrice.Cmp(c.LowerPrice) <= 0 {
		return &ConfigError{Field: "upperPrice", Err: fmt.Errorf("must be > lowerPrice %s, got %s", c.LowerPrice, c.UpperPrice)}
	}
	if c.LevelCount < MinLevelCount || c.LevelCount > MaxLevelCount {
		return &ConfigError{Field: "levelCount", Err: fmt.Errorf("must be in [%d, %d], got %d", MinLevelCount, MaxLevelCount, c.LevelCount)}
	}
	if !c.OrderSizeA.IsPositive() {
		return &ConfigError{Field: "orderSizeA", Err: fmt.Errorf("must be > 0, got %s", c.OrderSizeA)}
	}
	if !c.OrderSizeB.IsPositive() {
		return &ConfigError{Field: "orderSizeB", Err: fmt.Errorf("must be > 0, got %s", c.OrderSizeB)}
	}
	if !c.FeeTier.Valid() {
		return &ConfigError{Field: "feeTier", Err: fmt.Errorf("unknown fee tier %d", c.FeeTier)}
	}
	if c.MaxSlippageBps < 0 || c.MaxSlippageBps > MaxSlippageBps {
		return &ConfigError{Field: "maxSlippageBps", Err: fmt.Errorf("must be in [0, %d], got %d", MaxSlippageBps, c.MaxSlippageBps)}
	}
	if c.CooldownSeconds < 1 {
		return &ConfigError{Field: "cooldownSeconds", Err: fmt.Errorf("must be >= 1, got %d", c.CooldownSeconds)}
	}
	return nil
}
