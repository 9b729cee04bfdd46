package oracle

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vitos/gridpool/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type stubPool struct {
	cumulatives []int64
	err         error
}

func (p *stubPool) ObserveTicks(ctx context.Context, secondsAgos []uint32) ([]int64, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.cumulatives, nil
}

func (p *stubPool) Swap(ctx context.Context, params domain.SwapParams) (domain.SwapResult, error) {
	return domain.SwapResult{}, fmt.Errorf("not implemented")
}

func TestTwapPrice_ConstantFeed(t *testing.T) {
	// A feed pinned at tick 6932 for the whole window: the cumulative
	// grows by tick*window, so the average is the tick itself and the
	// TWAP equals the constant price.
	const tick = 6932
	const window = 300
	pool := &stubPool{cumulatives: []int64{1_000_000, 1_000_000 + tick*window}}

	oracle := NewTwapOracle(pool, 18, 18)
	got, err := oracle.TwapPrice(context.Background(), window)
	if err != nil {
		t.Fatalf("twap: %v", err)
	}

	want, err := PriceAtTick(tick, 18, 18)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(want) {
		t.Errorf("twap = %s, want %s", got, want)
	}
	if got.Sub(dec("2")).Abs().Cmp(dec("0.001")) > 0 {
		t.Errorf("twap = %s, want ~2", got)
	}
}

func TestTwapPrice_NegativeDeltaFloors(t *testing.T) {
	// delta = -7 over a 2-second window. Floor division gives tick -4;
	// truncation toward zero would give -3 and bias the price upward.
	pool := &stubPool{cumulatives: []int64{7, 0}}
	oracle := NewTwapOracle(pool, 18, 18)

	got, err := oracle.TwapPrice(context.Background(), 2)
	if err != nil {
		t.Fatalf("twap: %v", err)
	}

	want, err := PriceAtTick(-4, 18, 18)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(want) {
		t.Errorf("twap = %s, want price at tick -4 = %s", got, want)
	}
}

func TestTwapPrice_ExactDivisionUnaffected(t *testing.T) {
	pool := &stubPool{cumulatives: []int64{8, 0}} // delta -8 over 2s -> tick -4
	oracle := NewTwapOracle(pool, 18, 18)

	got, err := oracle.TwapPrice(context.Background(), 2)
	if err != nil {
		t.Fatalf("twap: %v", err)
	}
	want, _ := PriceAtTick(-4, 18, 18)
	if !got.Equal(want) {
		t.Errorf("twap = %s, want %s", got, want)
	}
}

func TestTwapPrice_WindowBeyondHistory(t *testing.T) {
	pool := &stubPool{err: fmt.Errorf("requested time predates observation history")}
	oracle := NewTwapOracle(pool, 18, 18)

	_, err := oracle.TwapPrice(context.Background(), 600)
	if !errors.Is(err, domain.ErrOracleUnavailable) {
		t.Fatalf("want ErrOracleUnavailable, got %v", err)
	}
}

func TestTwapPrice_ZeroWindowRejected(t *testing.T) {
	oracle := NewTwapOracle(&stubPool{}, 18, 18)
	if _, err := oracle.TwapPrice(context.Background(), 0); err == nil {
		t.Fatal("zero window must be rejected")
	}
}
