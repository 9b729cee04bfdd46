package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vitos/gridpool/internal/domain"
)

// DefaultTwapWindow is the trailing window used for trigger evaluation
// when no override is given.
const DefaultTwapWindow uint32 = 300

// GridService is the custodial grid engine. Every invocation runs under a
// single mutex and either completes deterministically or fails
// deterministically; the only concurrency-control primitive beyond that is
// the per-level cooldown timestamp.
type GridService struct {
	repo     domain.GridRepository
	pool     domain.LiquidityPool
	price    domain.PriceSource
	notifier domain.Notifier
	logger   *zap.Logger

	twapWindow uint32
	now        func() time.Time

	mu       sync.Mutex
	owner    string
	paused   bool
	cfg      *domain.GridConfig
	levels   []*domain.GridLevel
	balances domain.Balances
}

// Option tweaks service construction. Used by tests to pin the clock.
type Option func(*GridService)

func WithClock(now func() time.Time) Option {
	return func(s *GridService) { s.now = now }
}

func WithTwapWindow(seconds uint32) Option {
	return func(s *GridService) { s.twapWindow = seconds }
}

func NewGridService(
	owner string,
	repo domain.GridRepository,
	pool domain.LiquidityPool,
	price domain.PriceSource,
	notifier domain.Notifier,
	logger *zap.Logger,
	opts ...Option,
) *GridService {
	s := &GridService{
		repo:       repo,
		pool:       pool,
		price:      price,
		notifier:   notifier,
		logger:     logger,
		twapWindow: DefaultTwapWindow,
		now:        time.Now,
		owner:      owner,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads persisted config, levels and custody state. Call once at
// startup, before serving.
func (s *GridService) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.repo.LoadConfig(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg != nil {
		s.cfg = cfg
	}

	levels, err := s.repo.ListLevels(ctx)
	if err != nil {
		return fmt.Errorf("list levels: %w", err)
	}
	if len(levels) > 0 {
		s.levels = levels
	}

	state, err := s.repo.LoadEngineState(ctx)
	if err != nil {
		return fmt.Errorf("load engine state: %w", err)
	}
	if state != nil {
		s.owner = state.Owner
		s.paused = state.Paused
		s.balances = state.Balances
	}
	return nil
}

func (s *GridService) requireOwnerLocked(caller string) error {
	if caller != s.owner {
		return domain.ErrNotOwner
	}
	return nil
}

// persistStateLocked saves the custody snapshot. Persistence trouble is
// logged, not propagated: in-memory state is the authority within a run.
func (s *GridService) persistStateLocked(ctx context.Context) {
	state := &domain.EngineState{
		Owner:    s.owner,
		Paused:   s.paused,
		Balances: s.balances,
	}
	if err := s.repo.SaveEngineState(ctx, state); err != nil {
		s.logger.Warn("failed to persist engine state", zap.Error(err))
	}
}

func (s *GridService) publish(event domain.Event) {
	if s.notifier != nil {
		s.notifier.Publish(event)
	}
}

// ConfigureGrid validates and stores the grid parameters. Owner-only,
// first call wins; there is no reconfiguration path. A later change of
// range requires a fresh engine instance.
func (s *GridService) ConfigureGrid(ctx context.Context, caller string, cfg *domain.GridConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(caller); err != nil {
		return err
	}
	if s.cfg != nil {
		return domain.ErrAlreadyConfigured
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	stored := *cfg
	s.cfg = &stored
	if err := s.repo.SaveConfig(ctx, &stored); err != nil {
		s.logger.Warn("failed to persist config", zap.Error(err))
	}

	s.logger.Info("grid configured",
		zap.String("pair", cfg.TokenA+"/"+cfg.TokenB),
		zap.String("lower", cfg.LowerPrice.String()),
		zap.String("upper", cfg.UpperPrice.String()),
		zap.Int("levels", cfg.LevelCount))
	s.publish(domain.Event{Type: domain.EventConfigApplied, At: s.now(), Detail: cfg.TokenA + "/" + cfg.TokenB})
	return nil
}

// Deposit credits custody. Owner-only and blocked while paused.
func (s *GridService) Deposit(ctx context.Context, caller string, asset domain.Asset, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(caller); err != nil {
		return err
	}
	if s.paused {
		return domain.ErrPaused
	}
	if !asset.Valid() {
		return fmt.Errorf("unknown asset %q", asset)
	}
	if !amount.IsPositive() {
		return domain.ErrInvalidAmount
	}

	if asset == domain.AssetA {
		s.balances.BalanceA = s.balances.BalanceA.Add(amount)
	} else {
		s.balances.BalanceB = s.balances.BalanceB.Add(amount)
	}
	s.persistStateLocked(ctx)
	s.publish(domain.Event{Type: domain.EventDeposit, At: s.now(), Detail: string(asset) + " " + amount.String()})
	return nil
}

// Withdraw debits custody. Owner-only; allowed while paused.
func (s *GridService) Withdraw(ctx context.Context, caller string, asset domain.Asset, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(caller); err != nil {
		return err
	}
	if !asset.Valid() {
		return fmt.Errorf("unknown asset %q", asset)
	}
	if !amount.IsPositive() {
		return domain.ErrInvalidAmount
	}

	if asset == domain.AssetA {
		if s.balances.BalanceA.Cmp(amount) < 0 {
			return domain.ErrInsufficientBalance
		}
		s.balances.BalanceA = s.balances.BalanceA.Sub(amount)
	} else {
		if s.balances.BalanceB.Cmp(amount) < 0 {
			return domain.ErrInsufficientBalance
		}
		s.balances.BalanceB = s.balances.BalanceB.Sub(amount)
	}
	s.persistStateLocked(ctx)
	s.publish(domain.Event{Type: domain.EventWithdrawal, At: s.now(), Detail: string(asset) + " " + amount.String()})
	return nil
}

// EmergencyWithdrawAll drains the full balance regardless of pause state.
// This is the circuit breaker.
func (s *GridService) EmergencyWithdrawAll(ctx context.Context, caller string) (decimal.Decimal, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(caller); err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	a, b := s.balances.BalanceA, s.balances.BalanceB
	s.balances = domain.Balances{BalanceA: decimal.Zero, BalanceB: decimal.Zero}
	s.persistStateLocked(ctx)

	s.logger.Warn("emergency withdrawal",
		zap.String("balance_a", a.String()),
		zap.String("balance_b", b.String()))
	s.publish(domain.Event{Type: domain.EventEmergencyWithdrawal, At: s.now(), Detail: a.String() + " / " + b.String()})
	return a, b, nil
}

// Pause blocks ExecuteGrid, PerformUpkeep and deposits. Withdrawals and
// the emergency exit stay available.
func (s *GridService) Pause(ctx context.Context, caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(caller); err != nil {
		return err
	}
	if s.paused {
		return nil
	}
	s.paused = true
	s.persistStateLocked(ctx)
	s.publish(domain.Event{Type: domain.EventPaused, At: s.now()})
	return nil
}

func (s *GridService) Unpause(ctx context.Context, caller string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(caller); err != nil {
		return err
	}
	if !s.paused {
		return nil
	}
	s.paused = false
	s.persistStateLocked(ctx)
	s.publish(domain.Event{Type: domain.EventUnpaused, At: s.now()})
	return nil
}

// TransferOwnership hands the engine to exactly one new owner identity in
// a single step.
func (s *GridService) TransferOwnership(ctx context.Context, caller, newOwner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(caller); err != nil {
		return err
	}
	if newOwner == "" {
		return fmt.Errorf("new owner identity is required")
	}

	s.owner = newOwner
	s.persistStateLocked(ctx)
	s.publish(domain.Event{Type: domain.EventOwnershipTransfer, At: s.now(), Detail: newOwner})
	return nil
}

// SetLevelActive enables or disables a single level.
func (s *GridService) SetLevelActive(ctx context.Context, caller string, index int, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(caller); err != nil {
		return err
	}
	if len(s.levels) == 0 {
		return domain.ErrNotInitialized
	}
	if index < 0 || index >= len(s.levels) {
		return domain.ErrLevelNotFound
	}

	s.levels[index].Active = active
	if err := s.repo.UpdateLevel(ctx, s.levels[index]); err != nil {
		s.logger.Warn("failed to persist level", zap.Int("index", index), zap.Error(err))
	}
	s.publish(domain.Event{Type: domain.EventLevelAdmin, At: s.now(), LevelIndex: index,
		Detail: fmt.Sprintf("active=%t", active)})
	return nil
}

// ResetLevelCooldown clears a level's cooldown so it may execute on the
// next trigger.
func (s *GridService) ResetLevelCooldown(ctx context.Context, caller string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireOwnerLocked(caller); err != nil {
		return err
	}
	if len(s.levels) == 0 {
		return domain.ErrNotInitialized
	}
	if index < 0 || index >= len(s.levels) {
		return domain.ErrLevelNotFound
	}

	s.levels[index].LastExecutedAt = time.Time{}
	if err := s.repo.UpdateLevel(ctx, s.levels[index]); err != nil {
		s.logger.Warn("failed to persist level", zap.Int("index", index), zap.Error(err))
	}
	s.publish(domain.Event{Type: domain.EventLevelAdmin, At: s.now(), LevelIndex: index, Detail: "cooldown reset"})
	return nil
}

// GridConfig returns a copy of the stored configuration.
func (s *GridService) GridConfig() (*domain.GridConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg == nil {
		return nil, domain.ErrNotConfigured
	}
	cfg := *s.cfg
	return &cfg, nil
}

// Level returns a copy of the level at the given index.
func (s *GridService) Level(index int) (*domain.GridLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.levels) == 0 {
		return nil, domain.ErrNotInitialized
	}
	if index < 0 || index >= len(s.levels) {
		return nil, domain.ErrLevelNotFound
	}
	lvl := *s.levels[index]
	return &lvl, nil
}

// Levels returns a copy of all levels in ascending index order.
func (s *GridService) Levels() []*domain.GridLevel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.GridLevel, len(s.levels))
	for i, l := range s.levels {
		lvl := *l
		out[i] = &lvl
	}
	return out
}

func (s *GridService) LevelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.levels)
}

func (s *GridService) BalanceA() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances.BalanceA
}

func (s *GridService) BalanceB() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balances.BalanceB
}

func (s *GridService) Owner() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

func (s *GridService) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// CurrentPrice returns the oracle price over the configured window.
func (s *GridService) CurrentPrice(ctx context.Context) (decimal.Decimal, error) {
	return s.price.TwapPrice(ctx, s.twapWindow)
}
