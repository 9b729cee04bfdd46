// Package oracle computes a manipulation-resistant time-weighted average
// price from the pool's cumulative tick samples.
package oracle

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	// MinTick and MaxTick bound the canonical tick range.
	MinTick = -887272
	MaxTick = 887272
)

// ratioMagic are the precomputed Q128.128 factors for sqrt(1.0001)^-(2^i),
// indexed by bit position of the tick magnitude. This is the standard
// bit-shift method for the tick-to-price mapping.
var ratioMagic = [20]*big.Int{
	hexBig("fffcb933bd6fad37aa2d162d1a594001"),
	hexBig("fff97272373d413259a46990580e213a"),
	hexBig("fff2e50f5f656932ef12357cf3c7fdcc"),
	hexBig("ffe5caca7e10e4e61c3624eaa0941cd0"),
	hexBig("ffcb9843d60f6159c9db58835c926644"),
	hexBig("ff973b41fa98c081472e6896dfb254c0"),
	hexBig("ff2ea16466c96a3843ec78b326b52861"),
	hexBig("fe5dee046a99a2a811c461f1969c3053"),
	hexBig("fcbe86c7900a88aedcffc83b479aa3a4"),
	hexBig("f987a7253ac413176f2b074cf7815e54"),
	hexBig("f3392b0822b70005940c7a398e4b70f3"),
	hexBig("e7159475a2c29b7443b29c7fa6e889d9"),
	hexBig("d097f3bdfd2022b8845ad8f792aa5825"),
	hexBig("a9f746462d870fdf8a65dc1f90e061e5"),
	hexBig("70d869a156d2a1b890bb3df62baf32f7"),
	hexBig("31be135f97d08fd981231505542fcfa6"),
	hexBig("9aa508b5b7a84e1c677de54f3e99bc9"),
	hexBig("5d6af8dedb81196699c329225ee604"),
	hexBig("2216e584f5fa1ea926041bedfe98"),
	hexBig("48a170391f7dc42444e8fa2"),
}

var (
	q128       = new(big.Int).Lsh(big.NewInt(1), 128)
	maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	pow10e18   = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

func hexBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 16)
	if !ok {
		panic("oracle: bad ratio constant " + s)
	}
	return v
}

// SqrtRatioAtTick returns sqrt(1.0001^tick) as a Q64.96 fixed-point value.
func SqrtRatioAtTick(tick int) (*big.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, fmt.Errorf("tick %d out of range [%d, %d]", tick, MinTick, MaxTick)
	}

	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}

	ratio := new(big.Int).Set(q128)
	if absTick&1 != 0 {
		ratio.Set(ratioMagic[0])
	}
	for i := 1; i < len(ratioMagic); i++ {
		if absTick&(1<<uint(i)) != 0 {
			ratio.Mul(ratio, ratioMagic[i])
			ratio.Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio.Div(new(big.Int).Set(maxUint256), ratio)
	}

	// Q128.128 -> Q64.96, rounding up so round-tripping stays consistent.
	rem := new(big.Int).And(ratio, big.NewInt((1<<32)-1))
	ratio.Rsh(ratio, 32)
	if rem.Sign() != 0 {
		ratio.Add(ratio, big.NewInt(1))
	}
	return ratio, nil
}

// PriceAtTick converts a tick to a price of tokenA in tokenB units,
// squaring the sqrt ratio and rescaling for the tokens' decimal difference.
// The result carries 18 fractional digits.
func PriceAtTick(tick int, decimalsA, decimalsB int32) (decimal.Decimal, error) {
	sqrt, err := SqrtRatioAtTick(tick)
	if err != nil {
		return decimal.Zero, err
	}

	// price = sqrt^2 / 2^192, scaled to 18 fractional digits.
	num := new(big.Int).Mul(sqrt, sqrt)
	num.Mul(num, pow10e18)
	num.Rsh(num, 192)

	price := decimal.NewFromBigInt(num, -18)
	return price.Shift(decimalsA - decimalsB), nil
}
