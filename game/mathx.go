package game

import (
	"fmt"
	"math/big"
	"math/bits"
)

// mulDiv returns floor(a*b/d) without intermediate overflow. A quotient
// that does not fit in 64 bits is an invariant violation.
func mulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, fmt.Errorf("%w: division by zero in %d*%d/0", ErrInvariantBroken, a, b)
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, fmt.Errorf("%w: overflow in %d*%d/%d", ErrInvariantBroken, a, b, d)
	}
	q, _ := bits.Div64(hi, lo, d)
	return q, nil
}

// bps returns floor(amount*bps/10000).
func bps(amount, basis uint64) (uint64, error) {
	return mulDiv(amount, basis, 10_000)
}

// pct returns floor(amount*p/100).
func pct(amount, p uint64) (uint64, error) {
	return mulDiv(amount, p, 100)
}

// compound returns floor(principal * (10000+step)^n / 10000^n) computed
// exactly.
func compound(principal, step, n uint64) (uint64, error) {
	num := new(big.Int).Exp(new(big.Int).SetUint64(10_000+step), new(big.Int).SetUint64(n), nil)
	den := new(big.Int).Exp(big.NewInt(10_000), new(big.Int).SetUint64(n), nil)
	num.Mul(num, new(big.Int).SetUint64(principal))
	num.Quo(num, den)
	if !num.IsUint64() {
		return 0, fmt.Errorf("%w: compounding %d over %d steps of %d bps overflows", ErrInvariantBroken, principal, n, step)
	}
	return num.Uint64(), nil
}

func addChecked(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: overflow adding %d and %d", ErrInvariantBroken, a, b)
	}
	return sum, nil
}

func subChecked(a, b uint64) (uint64, error) {
	if b > a {
		return 0, fmt.Errorf("%w: underflow subtracting %d from %d", ErrInvariantBroken, b, a)
	}
	return a - b, nil
}
