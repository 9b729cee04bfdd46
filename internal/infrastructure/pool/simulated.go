// Package pool provides an in-process constant-product liquidity pool
// implementing domain.LiquidityPool. It stands in for the external venue
// during paper runs and scenario tests.
package pool

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vitos/gridpool/internal/domain"
	"github.com/vitos/gridpool/internal/oracle"
)

type observation struct {
	at             time.Time
	tickCumulative int64
	tick           int64 // tick in force from this observation until the next
}

// SimulatedPool is an x*y=k venue with Uniswap-style cumulative tick
// observations. Swaps move the price; observations accrue tick-seconds so
// the TWAP oracle can be exercised end to end.
type SimulatedPool struct {
	mu           sync.Mutex
	reserveA     decimal.Decimal
	reserveB     decimal.Decimal
	feeTier      domain.FeeTier // hundredths of a basis point
	decimalsA    int32
	decimalsB    int32
	now          func() time.Time
	observations []observation // ascending by time
}

type Option func(*SimulatedPool)

func WithClock(now func() time.Time) Option {
	return func(p *SimulatedPool) { p.now = now }
}

func NewSimulatedPool(reserveA, reserveB decimal.Decimal, feeTier domain.FeeTier, decimalsA, decimalsB int32, opts ...Option) *SimulatedPool {
	p := &SimulatedPool{
		reserveA:  reserveA,
		reserveB:  reserveB,
		feeTier:   feeTier,
		decimalsA: decimalsA,
		decimalsB: decimalsB,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.observations = []observation{{at: p.now(), tick: p.currentTickLocked()}}
	return p
}

// currentTickLocked derives the tick from the reserve ratio. A drained
// pool reports the minimum tick, i.e. a near-zero price.
func (p *SimulatedPool) currentTickLocked() int64 {
	if !p.reserveA.IsPositive() || !p.reserveB.IsPositive() {
		return oracle.MinTick
	}
	price, _ := p.reserveB.DivRound(p.reserveA, 18).Float64()
	raw := price * math.Pow(10, float64(p.decimalsB-p.decimalsA))
	if raw <= 0 {
		return oracle.MinTick
	}
	tick := int64(math.Floor(math.Log(raw) / math.Log(1.0001)))
	if tick < oracle.MinTick {
		tick = oracle.MinTick
	}
	if tick > oracle.MaxTick {
		tick = oracle.MaxTick
	}
	return tick
}

func (p *SimulatedPool) recordObservationLocked() {
	now := p.now()
	last := p.observations[len(p.observations)-1]
	elapsed := int64(now.Sub(last.at) / time.Second)
	p.observations = append(p.observations, observation{
		at:             now,
		tickCumulative: last.tickCumulative + last.tick*elapsed,
		tick:           p.currentTickLocked(),
	})
}

// cumulativeAtLocked returns the tick-time cumulative at the target time,
// extrapolating from the most recent observation at or before it.
func (p *SimulatedPool) cumulativeAtLocked(target time.Time) (int64, error) {
	if len(p.observations) == 0 {
		return 0, fmt.Errorf("no observations")
	}
	oldest := p.observations[0]
	if target.Before(oldest.at) {
		return 0, fmt.Errorf("requested time predates observation history")
	}

	obs := oldest
	for _, o := range p.observations {
		if o.at.After(target) {
			break
		}
		obs = o
	}
	elapsed := int64(target.Sub(obs.at) / time.Second)
	return obs.tickCumulative + obs.tick*elapsed, nil
}

func (p *SimulatedPool) ObserveTicks(ctx context.Context, secondsAgos []uint32) ([]int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	out := make([]int64, len(secondsAgos))
	for i, age := range secondsAgos {
		c, err := p.cumulativeAtLocked(now.Add(-time.Duration(age) * time.Second))
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}

func (p *SimulatedPool) Swap(ctx context.Context, params domain.SwapParams) (domain.SwapResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !params.AmountIn.IsPositive() {
		return domain.SwapResult{}, fmt.Errorf("swap amount must be > 0")
	}

	var reserveIn, reserveOut decimal.Decimal
	if params.AssetIn == domain.AssetA {
		reserveIn, reserveOut = p.reserveA, p.reserveB
	} else {
		reserveIn, reserveOut = p.reserveB, p.reserveA
	}
	if !reserveIn.IsPositive() || !reserveOut.IsPositive() {
		return domain.SwapResult{}, fmt.Errorf("pool has no liquidity")
	}

	// Fee tier is in hundredths of a basis point: 3000 -> 0.30%.
	feeFactor := decimal.NewFromInt(1_000_000 - int64(p.feeTier)).
		DivRound(decimal.NewFromInt(1_000_000), 18)
	effectiveIn := params.AmountIn.Mul(feeFactor)

	amountOut := reserveOut.Mul(effectiveIn).
		DivRound(reserveIn.Add(effectiveIn), 18)

	if amountOut.Cmp(params.MinAmountOut) < 0 {
		return domain.SwapResult{}, fmt.Errorf("%w: realized %s < min %s",
			domain.ErrSlippageExceeded, amountOut, params.MinAmountOut)
	}

	if params.AssetIn == domain.AssetA {
		p.reserveA = p.reserveA.Add(params.AmountIn)
		p.reserveB = p.reserveB.Sub(amountOut)
	} else {
		p.reserveB = p.reserveB.Add(params.AmountIn)
		p.reserveA = p.reserveA.Sub(amountOut)
	}
	p.recordObservationLocked()

	return domain.SwapResult{AmountOut: amountOut}, nil
}

// SpotPrice returns the instantaneous reserve-ratio price, tokenB per
// tokenA. Display only; the engine prices off the TWAP oracle.
func (p *SimulatedPool) SpotPrice() decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.reserveA.IsPositive() {
		return decimal.Zero
	}
	return p.reserveB.DivRound(p.reserveA, 18)
}
