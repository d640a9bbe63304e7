package billing

import (
	"github.com/shopspring/decimal"
)

// distributeEqual splits total across n units, each share rounded to two
// decimals. The last unit absorbs the rounding remainder so the shares sum
// back to the total exactly.
func distributeEqual(total decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	shares := make([]decimal.Decimal, n)
	share := total.Div(decimal.NewFromInt(int64(n))).Round(2)
	running := decimal.Zero
	for i := 0; i < n-1; i++ {
		shares[i] = share
		running = running.Add(share)
	}
	shares[n-1] = total.Sub(running)
	return shares
}

// distributeBySqft splits total proportional to each unit's area. Shares are
// rounded to two decimals; the last unit absorbs the remainder.
func distributeBySqft(total decimal.Decimal, areas []decimal.Decimal) []decimal.Decimal {
	n := len(areas)
	if n == 0 {
		return nil
	}
	sum := decimal.Zero
	for _, a := range areas {
		sum = sum.Add(a)
	}
	if sum.IsZero() {
		return nil
	}
	shares := make([]decimal.Decimal, n)
	running := decimal.Zero
	for i := 0; i < n-1; i++ {
		shares[i] = total.Mul(areas[i]).Div(sum).Round(2)
		running = running.Add(shares[i])
	}
	shares[n-1] = total.Sub(running)
	return shares
}
