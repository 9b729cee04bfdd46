package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vitos/gridpool/internal/domain"
)

// UpkeepPayload encodes which levels qualified when CheckUpkeep ran. It
// is advisory only: PerformUpkeep never trusts it.
type UpkeepPayload struct {
	Indices []int           `json:"indices"`
	Price   decimal.Decimal `json:"price"`
	At      time.Time       `json:"at"`
}

// CheckUpkeep is the side-effect-free predicate consumed by an external
// scheduler. It reports whether at least one active level currently
// satisfies both the trigger and cooldown tests, with the qualifying
// indices encoded in the payload.
func (s *GridService) CheckUpkeep(ctx context.Context) (bool, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused || s.cfg == nil || len(s.levels) == 0 {
		return false, nil, nil
	}

	price, err := s.price.TwapPrice(ctx, s.twapWindow)
	if err != nil {
		return false, nil, err
	}

	now := s.now()
	var indices []int
	for _, lvl := range s.levels {
		if lvl.Active && lvl.Triggered(price) && lvl.CooldownReady(now, s.cfg.CooldownSeconds) {
			indices = append(indices, lvl.Index)
		}
	}
	if len(indices) == 0 {
		return false, nil, nil
	}

	payload, err := json.Marshal(UpkeepPayload{Indices: indices, Price: price, At: now})
	if err != nil {
		return false, nil, err
	}
	return true, payload, nil
}

// PerformUpkeep re-validates every condition independently of the
// supplied payload and runs the grid for the re-confirmed subset. Callable
// by anyone. A stale or forged payload is harmless: when conditions no
// longer hold the call is a no-op, not a failure.
func (s *GridService) PerformUpkeep(ctx context.Context, payload []byte) (*domain.ExecutionReport, error) {
	if len(payload) > 0 {
		var hint UpkeepPayload
		if err := json.Unmarshal(payload, &hint); err != nil {
			s.logger.Debug("ignoring malformed upkeep payload", zap.Error(err))
		} else {
			s.logger.Debug("upkeep hint received", zap.Ints("indices", hint.Indices))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runGridLocked(ctx)
}
