package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vitos/gridpool/internal/domain"
	"github.com/vitos/gridpool/internal/usecase"
)

// setupGrid returns a configured, initialized service holding 10 tokenA
// and 10000 tokenB. Initialization price is 3000, so levels 0-3 start as
// Buy and 4-14 as Sell.
func setupGrid(t *testing.T) (*usecase.GridService, *MockRepo, *MockPool, *MockPriceSource, *MockNotifier, *FixedClock) {
	t.Helper()
	price := &MockPriceSource{Price: dec("3000")}
	svc, repo, pool, notifier, clock := newService(t, price)
	ctx := context.Background()

	if err := svc.ConfigureGrid(ctx, owner, validConfig()); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := svc.InitializeLevels(ctx, owner); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := svc.Deposit(ctx, owner, domain.AssetA, dec("10")); err != nil {
		t.Fatalf("deposit A: %v", err)
	}
	if err := svc.Deposit(ctx, owner, domain.AssetB, dec("10000")); err != nil {
		t.Fatalf("deposit B: %v", err)
	}
	return svc, repo, pool, price, notifier, clock
}

func TestExecuteGrid_SellTriggersAndFlips(t *testing.T) {
	svc, repo, pool, price, notifier, _ := setupGrid(t)
	ctx := context.Background()

	// 3100 crosses the two lowest Sell levels (indices 4 and 5).
	price.Price = dec("3100")
	report, err := svc.ExecuteGrid(ctx, owner)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if report.Executed != 2 {
		t.Fatalf("executed = %d, want 2", report.Executed)
	}
	if len(report.Outcomes) != 15 {
		t.Fatalf("outcomes = %d, want one per level", len(report.Outcomes))
	}
	for _, o := range report.Outcomes {
		switch o.Index {
		case 4, 5:
			if o.Status != domain.LevelExecuted {
				t.Errorf("level %d status = %s, want EXECUTED", o.Index, o.Status)
			}
		default:
			if o.Status != domain.LevelSkipped {
				t.Errorf("level %d status = %s, want SKIPPED", o.Index, o.Status)
			}
		}
	}

	// Each Sell spends 0.1 A; minimum acceptable output is
	// 0.1 * 3100 * (10000-100)/10000 = 306.9, which the mock pool pays.
	if !svc.BalanceA().Equal(dec("9.8")) {
		t.Errorf("balance A = %s, want 9.8", svc.BalanceA())
	}
	if !svc.BalanceB().Equal(dec("10613.8")) {
		t.Errorf("balance B = %s, want 10613.8", svc.BalanceB())
	}

	for _, idx := range []int{4, 5} {
		lvl, _ := svc.Level(idx)
		if lvl.Side != domain.SideBuy {
			t.Errorf("level %d should have flipped to BUY", idx)
		}
		if lvl.LastExecutedAt.IsZero() {
			t.Errorf("level %d should carry an execution timestamp", idx)
		}
	}

	if len(pool.SwapCalls) != 2 {
		t.Errorf("swap calls = %d, want 2", len(pool.SwapCalls))
	}
	if len(repo.Executions) != 2 {
		t.Errorf("persisted executions = %d, want 2", len(repo.Executions))
	}
	if notifier.Count(domain.EventLevelExecuted) != 2 {
		t.Errorf("level-executed events = %d, want 2", notifier.Count(domain.EventLevelExecuted))
	}
}

func TestExecuteGrid_BuyTriggers(t *testing.T) {
	svc, _, pool, price, _, _ := setupGrid(t)
	ctx := context.Background()

	// 2850 sits below the Buy levels 1-3 but above level 0 (2800).
	price.Price = dec("2850")
	report, err := svc.ExecuteGrid(ctx, owner)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if report.Executed != 3 {
		t.Fatalf("executed = %d, want 3", report.Executed)
	}
	for _, p := range pool.SwapCalls {
		if p.AssetIn != domain.AssetB {
			t.Errorf("buy should spend tokenB, spent %s", p.AssetIn)
		}
		if !p.AmountIn.Equal(dec("300")) {
			t.Errorf("buy amount = %s, want orderSizeB 300", p.AmountIn)
		}
	}
	for _, idx := range []int{1, 2, 3} {
		lvl, _ := svc.Level(idx)
		if lvl.Side != domain.SideSell {
			t.Errorf("level %d should have flipped to SELL", idx)
		}
	}
}

func TestExecuteGrid_CooldownAllowsAtMostOnePerWindow(t *testing.T) {
	svc, repo, _, price, _, clock := setupGrid(t)
	ctx := context.Background()

	// Price exactly at level 0 triggers it as Buy, and after the flip the
	// Sell condition holds at the same price, so only the cooldown stands
	// between two executions. Levels 1-3 would also trigger as Buys at
	// 2800; deactivate them to watch level 0 alone.
	for _, idx := range []int{1, 2, 3} {
		if err := svc.SetLevelActive(ctx, owner, idx, false); err != nil {
			t.Fatalf("deactivate %d: %v", idx, err)
		}
	}
	price.Price = dec("2800")

	report, err := svc.ExecuteGrid(ctx, owner)
	if err != nil {
		t.Fatalf("first execute: %v", err)
	}
	if report.Executed != 1 {
		t.Fatalf("first run executed = %d, want 1 (level 0)", report.Executed)
	}

	report, err = svc.ExecuteGrid(ctx, owner)
	if err != nil {
		t.Fatalf("second execute: %v", err)
	}
	if report.Executed != 0 {
		t.Fatalf("second run executed = %d, want 0 (cooldown)", report.Executed)
	}
	if report.Outcomes[0].Reason != domain.ErrCooldownActive.Error() {
		t.Errorf("level 0 skip reason = %q, want cooldown", report.Outcomes[0].Reason)
	}

	clock.Advance(301 * time.Second)
	report, err = svc.ExecuteGrid(ctx, owner)
	if err != nil {
		t.Fatalf("third execute: %v", err)
	}
	if report.Executed != 1 {
		t.Fatalf("after cooldown executed = %d, want 1", report.Executed)
	}

	if len(repo.Executions) != 2 {
		t.Errorf("persisted executions = %d, want 2", len(repo.Executions))
	}
}

func TestExecuteGrid_SlippageFailureIsIsolated(t *testing.T) {
	svc, _, pool, price, _, _ := setupGrid(t)
	ctx := context.Background()

	// First swap of the run pays under the slippage bound; the second is fine.
	pool.OutputFor = func(params domain.SwapParams) decimal.Decimal {
		if len(pool.SwapCalls) == 1 {
			return params.MinAmountOut.Sub(dec("0.000001"))
		}
		return params.MinAmountOut
	}

	price.Price = dec("3100")
	report, err := svc.ExecuteGrid(ctx, owner)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if report.Executed != 1 || report.Failed != 1 {
		t.Fatalf("executed/failed = %d/%d, want 1/1", report.Executed, report.Failed)
	}
	if report.Outcomes[4].Status != domain.LevelFailed {
		t.Errorf("level 4 status = %s, want FAILED", report.Outcomes[4].Status)
	}
	if report.Outcomes[5].Status != domain.LevelExecuted {
		t.Errorf("level 5 status = %s, want EXECUTED (isolation)", report.Outcomes[5].Status)
	}

	// The failed level keeps its side and stays eligible.
	lvl, _ := svc.Level(4)
	if lvl.Side != domain.SideSell || !lvl.LastExecutedAt.IsZero() {
		t.Error("failed level must keep its side and cooldown state")
	}
}

func TestExecuteGrid_PersistsFullReport(t *testing.T) {
	svc, repo, pool, price, _, _ := setupGrid(t)
	ctx := context.Background()

	// Level 4 fails on slippage, level 5 executes, the rest skip: the
	// stored report must carry all three outcome kinds, not just the
	// executed trades.
	pool.OutputFor = func(params domain.SwapParams) decimal.Decimal {
		if len(pool.SwapCalls) == 1 {
			return params.MinAmountOut.Sub(dec("0.000001"))
		}
		return params.MinAmountOut
	}
	price.Price = dec("3100")

	report, err := svc.ExecuteGrid(ctx, owner)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if len(repo.Reports) != 1 {
		t.Fatalf("persisted reports = %d, want 1", len(repo.Reports))
	}
	stored := repo.Reports[0]
	if stored.ID != report.ID {
		t.Errorf("stored report id = %s, want %s", stored.ID, report.ID)
	}
	if !stored.Price.Equal(dec("3100")) {
		t.Errorf("stored price = %s, want 3100", stored.Price)
	}
	if stored.Executed != 1 || stored.Failed != 1 {
		t.Errorf("stored executed/failed = %d/%d, want 1/1", stored.Executed, stored.Failed)
	}
	if len(stored.Outcomes) != 15 {
		t.Fatalf("stored outcomes = %d, want one per level", len(stored.Outcomes))
	}
	if stored.Outcomes[4].Status != domain.LevelFailed || stored.Outcomes[4].Reason == "" {
		t.Errorf("stored level 4 = %s/%q, want FAILED with reason", stored.Outcomes[4].Status, stored.Outcomes[4].Reason)
	}
	if stored.Outcomes[5].Status != domain.LevelExecuted {
		t.Errorf("stored level 5 = %s, want EXECUTED", stored.Outcomes[5].Status)
	}
	if stored.Outcomes[0].Status != domain.LevelSkipped || stored.Outcomes[0].Reason != "not triggered" {
		t.Errorf("stored level 0 = %s/%q, want SKIPPED/not triggered", stored.Outcomes[0].Status, stored.Outcomes[0].Reason)
	}
}

func TestExecuteGrid_InsufficientBalanceIsIsolated(t *testing.T) {
	price := &MockPriceSource{Price: dec("3000")}
	svc, _, _, _, _ := newService(t, price)
	ctx := context.Background()

	if err := svc.ConfigureGrid(ctx, owner, validConfig()); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if err := svc.InitializeLevels(ctx, owner); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	// Only enough tokenA for one 0.1 sell.
	if err := svc.Deposit(ctx, owner, domain.AssetA, dec("0.15")); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	price.Price = dec("3100")
	report, err := svc.ExecuteGrid(ctx, owner)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}

	if report.Executed != 1 || report.Failed != 1 {
		t.Fatalf("executed/failed = %d/%d, want 1/1", report.Executed, report.Failed)
	}
	if report.Outcomes[5].Reason != domain.ErrInsufficientBalance.Error() {
		t.Errorf("level 5 reason = %q, want insufficient balance", report.Outcomes[5].Reason)
	}
	if svc.BalanceA().IsNegative() {
		t.Error("balance must never go negative")
	}
}

func TestExecuteGrid_Guards(t *testing.T) {
	svc, _, _, price, _, _ := setupGrid(t)
	ctx := context.Background()

	if _, err := svc.ExecuteGrid(ctx, "intruder"); !errors.Is(err, domain.ErrNotOwner) {
		t.Fatalf("non-owner: want ErrNotOwner, got %v", err)
	}

	if err := svc.Pause(ctx, owner); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := svc.ExecuteGrid(ctx, owner); !errors.Is(err, domain.ErrPaused) {
		t.Fatalf("paused: want ErrPaused, got %v", err)
	}
	if err := svc.Unpause(ctx, owner); err != nil {
		t.Fatalf("unpause: %v", err)
	}

	price.Err = domain.ErrOracleUnavailable
	if _, err := svc.ExecuteGrid(ctx, owner); !errors.Is(err, domain.ErrOracleUnavailable) {
		t.Fatalf("oracle down: want ErrOracleUnavailable, got %v", err)
	}
}

func TestExecuteGrid_InactiveLevelIsSkipped(t *testing.T) {
	svc, _, _, price, _, _ := setupGrid(t)
	ctx := context.Background()

	if err := svc.SetLevelActive(ctx, owner, 4, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	price.Price = dec("3100")
	report, err := svc.ExecuteGrid(ctx, owner)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if report.Outcomes[4].Status != domain.LevelSkipped || report.Outcomes[4].Reason != "inactive" {
		t.Errorf("level 4 = %s/%q, want SKIPPED/inactive", report.Outcomes[4].Status, report.Outcomes[4].Reason)
	}
	if report.Executed != 1 {
		t.Errorf("executed = %d, want 1 (level 5 only)", report.Executed)
	}
}
