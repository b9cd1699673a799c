package commission

import (
	"math/big"
	"testing"
)

// chainResolver builds a next function over a static referrer map.
func chainResolver(edges map[[20]byte][20]byte) func([20]byte) ([20]byte, bool, error) {
	return func(addr [20]byte) ([20]byte, bool, error) {
		referrer, ok := edges[addr]
		return referrer, ok, nil
	}
}

func linearChain(accounts ...[20]byte) map[[20]byte][20]byte {
	edges := make(map[[20]byte][20]byte)
	for i := 0; i+1 < len(accounts); i++ {
		edges[accounts[i]] = accounts[i+1]
	}
	return edges
}

func TestCommissionPoolTruncates(t *testing.T) {
	cases := []struct {
		price int64
		rate  uint64
		want  int64
	}{
		{100, 20, 20},
		{99, 20, 19},
		{5, 20, 1},
		{4, 20, 0},
		{1, 99, 0},
	}
	for _, tc := range cases {
		got := commissionPool(big.NewInt(tc.price), tc.rate)
		if got.Cmp(big.NewInt(tc.want)) != 0 {
			t.Fatalf("pool(%d, %d): want %d got %s", tc.price, tc.rate, tc.want, got)
		}
	}
}

func TestDistributeEmptyChain(t *testing.T) {
	params := DefaultParams()
	payouts, total, err := distribute([20]byte{}, big.NewInt(10_000), params, chainResolver(nil))
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	if len(payouts) != 0 || total.Sign() != 0 {
		t.Fatalf("zero start must distribute nothing: %v %s", payouts, total)
	}
}

func TestDistributeSingleLevel(t *testing.T) {
	params := DefaultParams()
	start := addr(0x01)
	payouts, total, err := distribute(start, big.NewInt(1_000), params, chainResolver(nil))
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	if len(payouts) != 1 {
		t.Fatalf("expected one level, got %d", len(payouts))
	}
	if payouts[0].Recipient != start || payouts[0].Level != 1 || payouts[0].Amount.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("unexpected level 1 payout: %+v", payouts[0])
	}
	if total.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("total: want 200 got %s", total)
	}
}

func TestDistributeGeometricDecay(t *testing.T) {
	params := DefaultParams()
	accounts := [][20]byte{addr(0x01), addr(0x02), addr(0x03), addr(0x04), addr(0x05)}
	edges := linearChain(accounts...)

	payouts, total, err := distribute(accounts[0], big.NewInt(1_000_000), params, chainResolver(edges))
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	want := []int64{200_000, 40_000, 8_000, 1_600, 320}
	if len(payouts) != len(want) {
		t.Fatalf("level count: want %d got %d", len(want), len(payouts))
	}
	sum := int64(0)
	for i, amount := range want {
		if payouts[i].Recipient != accounts[i] {
			t.Fatalf("level %d recipient mismatch", i+1)
		}
		if payouts[i].Amount.Cmp(big.NewInt(amount)) != 0 {
			t.Fatalf("level %d: want %d got %s", i+1, amount, payouts[i].Amount)
		}
		sum += amount
	}
	if total.Cmp(big.NewInt(sum)) != 0 {
		t.Fatalf("total: want %d got %s", sum, total)
	}
}

func TestDistributeDustCutoff(t *testing.T) {
	params := DefaultParams()
	params.MinDistributionAmount = big.NewInt(50)
	accounts := [][20]byte{addr(0x01), addr(0x02), addr(0x03), addr(0x04)}
	edges := linearChain(accounts...)

	// Pool 200, then 40 which is below the cutoff of 50.
	payouts, total, err := distribute(accounts[0], big.NewInt(1_000), params, chainResolver(edges))
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	if len(payouts) != 1 {
		t.Fatalf("expected dust stop after one level, got %d", len(payouts))
	}
	if total.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("total: want 200 got %s", total)
	}

	// The cutoff also covers level 1: a pool of 40 yields no payouts at all
	// and the caller routes the full payment to the creator.
	payouts, total, err = distribute(accounts[0], big.NewInt(200), params, chainResolver(edges))
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	if len(payouts) != 0 {
		t.Fatalf("expected no payouts below the cutoff, got %d", len(payouts))
	}
	if total.Sign() != 0 {
		t.Fatalf("total: want 0 got %s", total)
	}
}

func TestDistributeDepthBound(t *testing.T) {
	params := DefaultParams()
	params.MaxReferralDepth = 3
	accounts := make([][20]byte, 8)
	for i := range accounts {
		accounts[i] = addr(byte(i + 1))
	}
	edges := linearChain(accounts...)

	payouts, _, err := distribute(accounts[0], big.NewInt(100_000_000), params, chainResolver(edges))
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	if len(payouts) != 3 {
		t.Fatalf("depth bound ignored: got %d levels", len(payouts))
	}
	if payouts[2].Level != 3 {
		t.Fatalf("unexpected final level: %d", payouts[2].Level)
	}
}

func TestDistributeTotalMatchesPayoutSum(t *testing.T) {
	params := DefaultParams()
	accounts := [][20]byte{addr(0x01), addr(0x02), addr(0x03)}
	edges := linearChain(accounts...)

	payouts, total, err := distribute(accounts[0], big.NewInt(12_345), params, chainResolver(edges))
	if err != nil {
		t.Fatalf("distribute failed: %v", err)
	}
	sum := big.NewInt(0)
	for _, payout := range payouts {
		sum = sum.Add(sum, payout.Amount)
	}
	if sum.Cmp(total) != 0 {
		t.Fatalf("payout sum %s does not match total %s", sum, total)
	}
	pool := commissionPool(big.NewInt(12_345), params.CommissionRate)
	if total.Cmp(pool) > 0 {
		t.Fatalf("distributed %s exceeds pool %s", total, pool)
	}
}
