package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vitos/gridpool/internal/domain"
)

// ExecuteGrid evaluates every level against the current oracle price and
// executes the triggered, cooled-down ones through the pool. Owner-only;
// blocked while paused. At most one successful execution per level per
// cooldown window, and one level's failure never aborts its siblings.
func (s *GridService) ExecuteGrid(ctx context.Context, caller string) (*domain.ExecutionReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(caller); err != nil {
		return nil, err
	}
	return s.runGridLocked(ctx)
}

// runGridLocked is the shared execution path for ExecuteGrid and
// PerformUpkeep. Caller holds s.mu for the whole invocation.
func (s *GridService) runGridLocked(ctx context.Context) (*domain.ExecutionReport, error) {
	if s.paused {
		return nil, domain.ErrPaused
	}
	if s.cfg == nil {
		return nil, domain.ErrNotConfigured
	}
	if len(s.levels) == 0 {
		return nil, domain.ErrNotInitialized
	}

	price, err := s.price.TwapPrice(ctx, s.twapWindow)
	if err != nil {
		return nil, err
	}

	now := s.now()
	report := &domain.ExecutionReport{
		ID:       uuid.NewString(),
		At:       now,
		Price:    price,
		Outcomes: make([]domain.LevelOutcome, 0, len(s.levels)),
	}

	// Ascending index order, stable and reproducible.
	for _, lvl := range s.levels {
		outcome := s.executeLevelLocked(ctx, lvl, price, now, report.ID)
		report.Outcomes = append(report.Outcomes, outcome)
		switch outcome.Status {
		case domain.LevelExecuted:
			report.Executed++
		case domain.LevelFailed:
			report.Failed++
		}
	}

	if err := s.repo.SaveReport(ctx, report); err != nil {
		s.logger.Warn("failed to persist report", zap.String("report_id", report.ID), zap.Error(err))
	}

	s.logger.Info("grid run finished",
		zap.String("report_id", report.ID),
		zap.String("price", price.String()),
		zap.Int("executed", report.Executed),
		zap.Int("failed", report.Failed))
	return report, nil
}

func (s *GridService) executeLevelLocked(ctx context.Context, lvl *domain.GridLevel, price decimal.Decimal, now time.Time, reportID string) domain.LevelOutcome {
	outcome := domain.LevelOutcome{Index: lvl.Index, Side: lvl.Side}

	if !lvl.Active {
		outcome.Status = domain.LevelSkipped
		outcome.Reason = "inactive"
		return outcome
	}
	if !lvl.Triggered(price) {
		outcome.Status = domain.LevelSkipped
		outcome.Reason = "not triggered"
		return outcome
	}
	if !lvl.CooldownReady(now, s.cfg.CooldownSeconds) {
		outcome.Status = domain.LevelSkipped
		outcome.Reason = domain.ErrCooldownActive.Error()
		return outcome
	}

	// Sell spends tokenA for tokenB, Buy the other way round.
	var (
		assetIn  domain.Asset
		amountIn decimal.Decimal
		held     decimal.Decimal
		expected decimal.Decimal
	)
	if lvl.Side == domain.SideSell {
		assetIn = domain.AssetA
		amountIn = s.cfg.OrderSizeA
		held = s.balances.BalanceA
		expected = amountIn.Mul(price)
	} else {
		assetIn = domain.AssetB
		amountIn = s.cfg.OrderSizeB
		held = s.balances.BalanceB
		if price.IsZero() {
			outcome.Status = domain.LevelFailed
			outcome.Reason = "price is zero"
			return outcome
		}
		expected = amountIn.DivRound(price, 18)
	}

	if held.Cmp(amountIn) < 0 {
		outcome.Status = domain.LevelFailed
		outcome.Reason = domain.ErrInsufficientBalance.Error()
		return outcome
	}

	minOut := expected.
		Mul(decimal.NewFromInt(int64(domain.BpsDenominator - s.cfg.MaxSlippageBps))).
		DivRound(decimal.NewFromInt(domain.BpsDenominator), 18)

	result, err := s.pool.Swap(ctx, domain.SwapParams{
		AssetIn:      assetIn,
		AmountIn:     amountIn,
		MinAmountOut: minOut,
	})
	if err != nil {
		// Recorded locally; never aborts the remaining levels.
		s.logger.Warn("level swap failed",
			zap.Int("index", lvl.Index),
			zap.String("side", string(lvl.Side)),
			zap.Error(err))
		outcome.Status = domain.LevelFailed
		outcome.Reason = err.Error()
		return outcome
	}

	if lvl.Side == domain.SideSell {
		s.balances.BalanceA = s.balances.BalanceA.Sub(amountIn)
		s.balances.BalanceB = s.balances.BalanceB.Add(result.AmountOut)
	} else {
		s.balances.BalanceB = s.balances.BalanceB.Sub(amountIn)
		s.balances.BalanceA = s.balances.BalanceA.Add(result.AmountOut)
	}

	executedSide := lvl.Side
	lvl.LastExecutedAt = now
	lvl.Side = lvl.Side.Flip()

	if err := s.repo.UpdateLevel(ctx, lvl); err != nil {
		s.logger.Warn("failed to persist level", zap.Int("index", lvl.Index), zap.Error(err))
	}
	s.persistStateLocked(ctx)

	rec := &domain.ExecutionRecord{
		ID:         uuid.NewString(),
		ReportID:   reportID,
		LevelIndex: lvl.Index,
		Side:       executedSide,
		Price:      price,
		AmountIn:   amountIn,
		AmountOut:  result.AmountOut,
		CreatedAt:  now,
	}
	if err := s.repo.SaveExecution(ctx, rec); err != nil {
		s.logger.Warn("failed to persist execution", zap.Error(err))
	}

	s.publish(domain.Event{
		Type:       domain.EventLevelExecuted,
		At:         now,
		LevelIndex: lvl.Index,
		Side:       executedSide,
		AmountIn:   amountIn,
		AmountOut:  result.AmountOut,
	})

	outcome.Status = domain.LevelExecuted
	outcome.AmountIn = amountIn
	outcome.AmountOut = result.AmountOut
	return outcome
}
