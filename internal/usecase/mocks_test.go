package usecase_test

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vitos/gridpool/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// MockRepo is an in-memory GridRepository.
type MockRepo struct {
	Config     *domain.GridConfig
	Levels     []*domain.GridLevel
	State      *domain.EngineState
	Executions []*domain.ExecutionRecord
	Reports    []*domain.ExecutionReport

	SaveLevelCalls int
}

func (m *MockRepo) SaveConfig(ctx context.Context, cfg *domain.GridConfig) error {
	c := *cfg
	m.Config = &c
	return nil
}

func (m *MockRepo) LoadConfig(ctx context.Context) (*domain.GridConfig, error) {
	return m.Config, nil
}

func (m *MockRepo) SaveLevels(ctx context.Context, levels []*domain.GridLevel) error {
	m.Levels = nil
	for _, l := range levels {
		lvl := *l
		m.Levels = append(m.Levels, &lvl)
	}
	return nil
}

func (m *MockRepo) UpdateLevel(ctx context.Context, level *domain.GridLevel) error {
	m.SaveLevelCalls++
	for i, l := range m.Levels {
		if l.Index == level.Index {
			lvl := *level
			m.Levels[i] = &lvl
			return nil
		}
	}
	lvl := *level
	m.Levels = append(m.Levels, &lvl)
	return nil
}

func (m *MockRepo) ListLevels(ctx context.Context) ([]*domain.GridLevel, error) {
	return m.Levels, nil
}

func (m *MockRepo) SaveEngineState(ctx context.Context, state *domain.EngineState) error {
	s := *state
	m.State = &s
	return nil
}

func (m *MockRepo) LoadEngineState(ctx context.Context) (*domain.EngineState, error) {
	return m.State, nil
}

func (m *MockRepo) SaveExecution(ctx context.Context, rec *domain.ExecutionRecord) error {
	r := *rec
	m.Executions = append(m.Executions, &r)
	return nil
}

func (m *MockRepo) ListExecutions(ctx context.Context, limit int) ([]*domain.ExecutionRecord, error) {
	if limit > len(m.Executions) {
		limit = len(m.Executions)
	}
	return m.Executions[:limit], nil
}

func (m *MockRepo) SaveReport(ctx context.Context, report *domain.ExecutionReport) error {
	r := *report
	r.Outcomes = append([]domain.LevelOutcome(nil), report.Outcomes...)
	m.Reports = append(m.Reports, &r)
	return nil
}

func (m *MockRepo) ListReports(ctx context.Context, limit int) ([]*domain.ExecutionReport, error) {
	if limit > len(m.Reports) {
		limit = len(m.Reports)
	}
	return m.Reports[:limit], nil
}

// MockPool scripts swap behavior per call.
type MockPool struct {
	SwapCalls []domain.SwapParams

	// SwapErr fails every swap when set. FailAssetIn fails only swaps
	// spending that asset.
	SwapErr     error
	FailAssetIn domain.Asset

	// OutputFor computes the realized output; defaults to MinAmountOut
	// exactly when nil.
	OutputFor func(params domain.SwapParams) decimal.Decimal
}

func (m *MockPool) ObserveTicks(ctx context.Context, secondsAgos []uint32) ([]int64, error) {
	return make([]int64, len(secondsAgos)), nil
}

func (m *MockPool) Swap(ctx context.Context, params domain.SwapParams) (domain.SwapResult, error) {
	m.SwapCalls = append(m.SwapCalls, params)
	if m.SwapErr != nil && (m.FailAssetIn == "" || m.FailAssetIn == params.AssetIn) {
		return domain.SwapResult{}, m.SwapErr
	}
	out := params.MinAmountOut
	if m.OutputFor != nil {
		out = m.OutputFor(params)
	}
	if out.Cmp(params.MinAmountOut) < 0 {
		return domain.SwapResult{}, domain.ErrSlippageExceeded
	}
	return domain.SwapResult{AmountOut: out}, nil
}

// MockPriceSource returns a fixed price, or an error when set.
type MockPriceSource struct {
	Price decimal.Decimal
	Err   error
}

func (m *MockPriceSource) TwapPrice(ctx context.Context, windowSeconds uint32) (decimal.Decimal, error) {
	if m.Err != nil {
		return decimal.Zero, m.Err
	}
	return m.Price, nil
}

// MockNotifier records published events.
type MockNotifier struct {
	mu     sync.Mutex
	Events []domain.Event
}

func (m *MockNotifier) Publish(event domain.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
}

func (m *MockNotifier) Count(t domain.EventType) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.Events {
		if e.Type == t {
			n++
		}
	}
	return n
}

// FixedClock is an adjustable test clock.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func NewFixedClock(t time.Time) *FixedClock {
	return &FixedClock{t: t}
}

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func validConfig() *domain.GridConfig {
	return &domain.GridConfig{
		TokenA:          "WETH",
		TokenB:          "USDC",
		LowerPrice:      dec("2800"),
		UpperPrice:      dec("3600"),
		LevelCount:      15,
		OrderSizeA:      dec("0.1"),
		OrderSizeB:      dec("300"),
		FeeTier:         domain.FeeTier3000,
		MaxSlippageBps:  100,
		CooldownSeconds: 300,
	}
}
