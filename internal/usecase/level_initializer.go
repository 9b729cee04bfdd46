package usecase

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vitos/gridpool/internal/domain"
)

// ladderPrecision is the working precision for the fixed-point
// exponentiation. Results are rounded to 18 fractional digits; see the
// initializer tests for the accepted tolerance.
const ladderPrecision = 24

// InitializeLevels derives the geometric price ladder from the stored
// config and classifies each level against the oracle price observed now.
// Owner-only; requires a config and no existing levels.
func (s *GridService) InitializeLevels(ctx context.Context, caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(caller); err != nil {
		return err
	}
	if s.cfg == nil {
		return domain.ErrNotConfigured
	}
	if len(s.levels) > 0 {
		return domain.ErrAlreadyInitialized
	}

	prices, err := computeLadder(s.cfg)
	if err != nil {
		return fmt.Errorf("compute ladder: %w", err)
	}

	// A drained pool reports a near-zero price; classification still works
	// and marks every level as a Sell candidate.
	oraclePrice, err := s.price.TwapPrice(ctx, s.twapWindow)
	if err != nil {
		return err
	}

	levels := make([]*domain.GridLevel, len(prices))
	for i, p := range prices {
		side := domain.SideSell
		if p.Cmp(oraclePrice) < 0 {
			side = domain.SideBuy
		}
		levels[i] = &domain.GridLevel{
			Index:  i,
			Price:  p,
			Side:   side,
			Active: true,
		}
	}
	s.levels = levels

	if err := s.repo.SaveLevels(ctx, levels); err != nil {
		s.logger.Warn("failed to persist levels", zap.Error(err))
	}

	s.logger.Info("levels initialized",
		zap.Int("count", len(levels)),
		zap.String("oracle_price", oraclePrice.String()))
	s.publish(domain.Event{Type: domain.EventLevelsInitialized, At: s.now(),
		Detail: fmt.Sprintf("%d levels", len(levels))})
	return nil
}

// computeLadder returns the strictly ascending geometric sequence
// lower * (upper/lower)^(i/(n-1)) for i in [0, n). The endpoints are the
// exact configured bounds; interior rungs carry the exponentiation
// rounding, bounded by ladderPrecision.
func computeLadder(cfg *domain.GridConfig) ([]decimal.Decimal, error) {
	n := cfg.LevelCount
	prices := make([]decimal.Decimal, n)
	prices[0] = cfg.LowerPrice
	prices[n-1] = cfg.UpperPrice

	ratio := cfg.UpperPrice.DivRound(cfg.LowerPrice, ladderPrecision)
	denom := decimal.NewFromInt(int64(n - 1))

	for i := 1; i < n-1; i++ {
		exp := decimal.NewFromInt(int64(i)).DivRound(denom, ladderPrecision)
		factor, err := ratio.PowWithPrecision(exp, ladderPrecision)
		if err != nil {
			return nil, fmt.Errorf("level %d: %w", i, err)
		}
		prices[i] = cfg.LowerPrice.Mul(factor).Round(18)
	}

	for i := 1; i < n; i++ {
		if prices[i].Cmp(prices[i-1]) <= 0 {
			return nil, fmt.Errorf("ladder not strictly ascending at index %d: %s <= %s",
				i, prices[i], prices[i-1])
		}
	}
	return prices, nil
}
