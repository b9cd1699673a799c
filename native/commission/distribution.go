package commission

import "math/big"

var oneHundred = big.NewInt(100)

// LevelPayout records a single referral level award produced by a
// distribution walk.
type LevelPayout struct {
	Recipient [20]byte
	Amount    *big.Int
	Level     int
}

// commissionPool returns price * rate / 100, truncating. All percentage math
// multiplies before dividing so rounding stays deterministic.
func commissionPool(price *big.Int, rate uint64) *big.Int {
	pool := new(big.Int).Mul(price, new(big.Int).SetUint64(rate))
	return pool.Div(pool, oneHundred)
}

// distribute walks the referral chain starting at the named referrer and
// computes the geometrically decaying award per level. The walk stops at the
// first zero ancestor, when the computed award falls below the dust cutoff, or
// at the depth bound. The cutoff applies uniformly, level 1 included: when the
// whole pool is below MinDistributionAmount nothing is distributed and the
// creator keeps the full payment. It returns the per-level payouts and the
// total amount distributed; the caller pays the creator price minus that total
// so every unit of the payment stays accounted for.
//
// next resolves the referrer edge of an account, reporting false when none is
// set.
func distribute(start [20]byte, price *big.Int, p Params, next func([20]byte) ([20]byte, bool, error)) ([]LevelPayout, *big.Int, error) {
	total := big.NewInt(0)
	var zero [20]byte
	if start == zero || price == nil || price.Sign() <= 0 {
		return nil, total, nil
	}
	amount := commissionPool(price, p.CommissionRate)
	payouts := make([]LevelPayout, 0, p.MaxReferralDepth)
	current := start
	for level := 1; level <= p.MaxReferralDepth; level++ {
		if current == zero || amount.Cmp(p.MinDistributionAmount) < 0 {
			break
		}
		payouts = append(payouts, LevelPayout{
			Recipient: current,
			Amount:    new(big.Int).Set(amount),
			Level:     level,
		})
		total = total.Add(total, amount)

		amount = new(big.Int).Mul(amount, new(big.Int).SetUint64(p.CommissionRate))
		amount = amount.Div(amount, oneHundred)
		ancestor, ok, err := next(current)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			break
		}
		current = ancestor
	}
	return payouts, total, nil
}
