package commission

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ContentID is the opaque 256-bit identifier for a piece of paid content. The
// off-chain catalog addresses content by arbitrary strings; those are hashed
// into this space with DeriveContentID so no truncation is ever needed.
type ContentID [32]byte

// DeriveContentID maps an off-chain content identifier into the ledger's id
// space via keccak256.
func DeriveContentID(raw string) ContentID {
	var id ContentID
	copy(id[:], ethcrypto.Keccak256([]byte(raw)))
	return id
}

// ParseContentID decodes a 0x-prefixed 32-byte hex identifier.
func ParseContentID(s string) (ContentID, error) {
	var id ContentID
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return id, fmt.Errorf("invalid content id: %w", err)
	}
	if len(decoded) != len(id) {
		return id, errors.New("content id must be 32 bytes")
	}
	copy(id[:], decoded)
	return id, nil
}

// Hex renders the identifier as 0x-prefixed hex.
func (id ContentID) Hex() string {
	return "0x" + hex.EncodeToString(id[:])
}

// IsZero reports whether the identifier is unset.
func (id ContentID) IsZero() bool {
	return id == ContentID{}
}

// Content is a registry entry for a paid content item. Price is denominated in
// the smallest unit of the payment asset.
type Content struct {
	ID           ContentID `json:"id"`
	Price        *big.Int  `json:"price"`
	Creator      [20]byte  `json:"creator"`
	RegisteredAt int64     `json:"registeredAt"`
}

// Clone returns a deep copy of the content record.
func (c *Content) Clone() *Content {
	if c == nil {
		return nil
	}
	clone := *c
	if c.Price != nil {
		clone.Price = new(big.Int).Set(c.Price)
	}
	return &clone
}

// Subscription records a paid subscription of a user to one content item.
// Price and Referrer are snapshots taken at subscribe time and never track
// later changes to the content registry or the referral-edge map.
type Subscription struct {
	User      [20]byte  `json:"user"`
	ContentID ContentID `json:"contentId"`
	Price     *big.Int  `json:"price"`
	StartTime int64     `json:"startTime"`
	EndTime   int64     `json:"endTime"`
	Referrer  [20]byte  `json:"referrer"`
	Active    bool      `json:"active"`
}

// Clone returns a deep copy of the subscription.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	clone := *s
	if s.Price != nil {
		clone.Price = new(big.Int).Set(s.Price)
	}
	return &clone
}

// ActiveAt reports whether the subscription grants access at the supplied
// time. Both the stored flag and the expiry must pass.
func (s *Subscription) ActiveAt(now int64) bool {
	return s != nil && s.Active && now <= s.EndTime
}

// Params carries the distribution constants fixed at node start.
type Params struct {
	// CommissionRate is the percentage of every payment set aside as the
	// level-1 commission pool, and also the per-level geometric decay.
	CommissionRate uint64
	// MinDistributionAmount is the dust cutoff: a level whose computed award
	// falls below this amount ends the walk and the remainder reverts to the
	// creator.
	MinDistributionAmount *big.Int
	// SubscriptionPeriod is the subscription length in seconds.
	SubscriptionPeriod int64
	// MaxReferralDepth bounds the ancestor walk per transaction.
	MaxReferralDepth int
}

const (
	defaultCommissionRate     = 20
	defaultSubscriptionPeriod = 30 * 24 * 60 * 60
	defaultMaxReferralDepth   = 10
)

// DefaultParams returns the deployment defaults mirroring the reference
// schedule: 20% rate, 30-day period, depth 10, dust cutoff of one unit.
func DefaultParams() Params {
	return Params{
		CommissionRate:        defaultCommissionRate,
		MinDistributionAmount: big.NewInt(1),
		SubscriptionPeriod:    defaultSubscriptionPeriod,
		MaxReferralDepth:      defaultMaxReferralDepth,
	}
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	if p.CommissionRate == 0 || p.CommissionRate >= 100 {
		return errors.New("commission rate must be in (0, 100)")
	}
	if p.MinDistributionAmount == nil || p.MinDistributionAmount.Sign() <= 0 {
		return errors.New("min distribution amount must be positive")
	}
	if p.SubscriptionPeriod <= 0 {
		return errors.New("subscription period must be positive")
	}
	if p.MaxReferralDepth <= 0 {
		return errors.New("max referral depth must be positive")
	}
	return nil
}

// Clone returns a deep copy of the params.
func (p Params) Clone() Params {
	clone := p
	if p.MinDistributionAmount != nil {
		clone.MinDistributionAmount = new(big.Int).Set(p.MinDistributionAmount)
	}
	return clone
}

// Totals tracks the module-wide money flow. The conservation invariant is
//
//	Received == CreatorPaid + Withdrawn + outstanding pending balances
//
// where Distributed - Withdrawn equals the outstanding pending sum.
type Totals struct {
	Received    *big.Int `json:"received"`
	CreatorPaid *big.Int `json:"creatorPaid"`
	Distributed *big.Int `json:"distributed"`
	Withdrawn   *big.Int `json:"withdrawn"`
}

// NewTotals returns a zeroed totals record.
func NewTotals() *Totals {
	return &Totals{
		Received:    big.NewInt(0),
		CreatorPaid: big.NewInt(0),
		Distributed: big.NewInt(0),
		Withdrawn:   big.NewInt(0),
	}
}

// Clone returns a deep copy of the totals.
func (t *Totals) Clone() *Totals {
	if t == nil {
		return nil
	}
	clone := NewTotals()
	if t.Received != nil {
		clone.Received.Set(t.Received)
	}
	if t.CreatorPaid != nil {
		clone.CreatorPaid.Set(t.CreatorPaid)
	}
	if t.Distributed != nil {
		clone.Distributed.Set(t.Distributed)
	}
	if t.Withdrawn != nil {
		clone.Withdrawn.Set(t.Withdrawn)
	}
	return clone
}
