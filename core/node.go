package core

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"socialtree/core/state"
	"socialtree/core/types"
	"socialtree/native/commission"
	"socialtree/storage"
)

// GenesisAccount seeds an account balance at first boot.
type GenesisAccount struct {
	Address [20]byte
	Balance *big.Int
}

// Node owns the ledger state and executes every mutator atomically. The
// execution environment is single-threaded by construction: a mutex
// serializes mutators, each one runs against a state overlay, and the overlay
// commits only when the operation succeeds. Events buffered during the
// operation are published after commit, never for a reverted transaction.
type Node struct {
	mu     sync.Mutex
	db     storage.Database
	state  *state.Manager
	engine *commission.Engine
	feed   *EventFeed
}

// NewNode wires storage, state manager, engine and the event feed. Genesis
// allocations are applied exactly once, on the boot that first records the
// owner account.
func NewNode(db storage.Database, params commission.Params, owner [20]byte, allocs []GenesisAccount) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: storage required")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("node: invalid commission params: %w", err)
	}
	manager := state.NewManager(db)
	feed := NewEventFeed()
	engine := commission.NewEngine()
	engine.SetState(manager)
	engine.SetEmitter(feed)
	engine.SetParams(params)

	n := &Node{db: db, state: manager, engine: engine, feed: feed}
	if err := n.initialize(owner, allocs); err != nil {
		return nil, err
	}
	return n, nil
}

func (n *Node) initialize(owner [20]byte, allocs []GenesisAccount) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	existing, err := n.engine.Owner()
	if err != nil {
		return err
	}
	var zero [20]byte
	fresh := existing == zero

	n.state.Begin()
	n.feed.begin()
	if fresh {
		for _, alloc := range allocs {
			balance := alloc.Balance
			if balance == nil {
				balance = big.NewInt(0)
			}
			account := &types.Account{Balance: new(big.Int).Set(balance)}
			if err := n.state.PutAccount(alloc.Address[:], account); err != nil {
				n.state.Revert()
				n.feed.revert()
				return err
			}
		}
	}
	if err := n.engine.InitOwner(owner); err != nil {
		n.state.Revert()
		n.feed.revert()
		return err
	}
	if err := n.state.Commit(); err != nil {
		n.feed.revert()
		return err
	}
	n.feed.commit()
	return nil
}

// withTx runs fn inside a serialized, atomic transaction.
func (n *Node) withTx(fn func() error) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.state.Begin()
	n.feed.begin()
	if err := fn(); err != nil {
		n.state.Revert()
		n.feed.revert()
		return err
	}
	if err := n.state.Commit(); err != nil {
		n.feed.revert()
		return err
	}
	n.feed.commit()
	return nil
}

// --- mutators ---

// RegisterContent upserts a content registry entry on behalf of the owner.
func (n *Node) RegisterContent(caller [20]byte, id commission.ContentID, price *big.Int, creator [20]byte) (*commission.Content, error) {
	var content *commission.Content
	err := n.withTx(func() error {
		var err error
		content, err = n.engine.RegisterContent(caller, id, price, creator)
		return err
	})
	return content, err
}

// TransferOwnership rotates the administrative account.
func (n *Node) TransferOwnership(caller [20]byte, newOwner [20]byte) error {
	return n.withTx(func() error {
		return n.engine.TransferOwnership(caller, newOwner)
	})
}

// SetReferrer records the caller's referral edge.
func (n *Node) SetReferrer(caller [20]byte, referrer [20]byte) error {
	return n.withTx(func() error {
		return n.engine.SetReferrer(caller, referrer)
	})
}

// MigrateReferrer rewrites a single referral edge on the owner's authority.
func (n *Node) MigrateReferrer(caller [20]byte, user [20]byte, newReferrer [20]byte) error {
	return n.withTx(func() error {
		return n.engine.MigrateReferrer(caller, user, newReferrer)
	})
}

// MigrateReferralNetwork reassigns a referrer's direct referrals in bulk and
// reports how many edges moved.
func (n *Node) MigrateReferralNetwork(caller [20]byte, fromUser [20]byte, toReferrer [20]byte) (int, error) {
	var migrated int
	err := n.withTx(func() error {
		var err error
		migrated, err = n.engine.MigrateReferralNetwork(caller, fromUser, toReferrer)
		return err
	})
	return migrated, err
}

// Subscribe processes a paid subscription and distributes commissions.
func (n *Node) Subscribe(caller [20]byte, id commission.ContentID, referrer [20]byte, payment *big.Int) (*commission.Subscription, error) {
	var sub *commission.Subscription
	err := n.withTx(func() error {
		var err error
		sub, err = n.engine.Subscribe(caller, id, referrer, payment)
		return err
	})
	return sub, err
}

// CancelSubscription deactivates the caller's subscription.
func (n *Node) CancelSubscription(caller [20]byte, id commission.ContentID) (*commission.Subscription, error) {
	var sub *commission.Subscription
	err := n.withTx(func() error {
		var err error
		sub, err = n.engine.CancelSubscription(caller, id)
		return err
	})
	return sub, err
}

// Withdraw pays out the caller's pending commission balance.
func (n *Node) Withdraw(caller [20]byte) (*big.Int, error) {
	var amount *big.Int
	err := n.withTx(func() error {
		var err error
		amount, err = n.engine.Withdraw(caller)
		return err
	})
	return amount, err
}

// --- views (read committed state) ---

// Content returns the registry entry for the id.
func (n *Node) Content(id commission.ContentID) (*commission.Content, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Content(id)
}

// Owner returns the administrative account.
func (n *Node) Owner() ([20]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Owner()
}

// CommissionParams returns the active distribution constants.
func (n *Node) CommissionParams() commission.Params {
	return n.engine.Params()
}

// ReferrerOf returns the stored referral edge for a user.
func (n *Node) ReferrerOf(user [20]byte) ([20]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.ReferrerOf(user)
}

// ReferredUsers returns one page of the referred-users index plus the total
// length of the index.
func (n *Node) ReferredUsers(referrer [20]byte, offset int, limit int) ([][20]byte, int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.ReferredUsers(referrer, offset, limit)
}

// ReferralChain returns the bounded ancestor walk for a user.
func (n *Node) ReferralChain(user [20]byte) ([][20]byte, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.ReferralChain(user)
}

// SubscriptionOf returns the raw subscription record.
func (n *Node) SubscriptionOf(user [20]byte, id commission.ContentID) (*commission.Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.SubscriptionOf(user, id)
}

// SubscriptionStatus reports whether a subscription grants access now.
func (n *Node) SubscriptionStatus(user [20]byte, id commission.ContentID) (bool, int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.SubscriptionStatus(user, id)
}

// ActiveSubscriptionCount returns how many of the user's subscription records
// are still flagged active.
func (n *Node) ActiveSubscriptionCount(user [20]byte) (uint64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.ActiveSubscriptionCount(user)
}

// PendingCommission returns an account's pending commission balance.
func (n *Node) PendingCommission(addr [20]byte) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.PendingCommission(addr)
}

// CommissionTotals returns the module-wide money-flow counters.
func (n *Node) CommissionTotals() (*commission.Totals, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.engine.Totals()
}

// Balance returns the account record for an address, zeroed when the address
// has never transacted.
func (n *Node) Balance(addr [20]byte) (*types.Account, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	account, err := n.state.GetAccount(addr[:])
	if err != nil {
		return nil, err
	}
	if account == nil {
		return &types.Account{Balance: big.NewInt(0)}, nil
	}
	if account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
	return account, nil
}

// EventsSubscribe registers a consumer for committed ledger events occurring
// strictly after the supplied cursor.
func (n *Node) EventsSubscribe(ctx context.Context, cursor string) (<-chan EventRecord, func(), []EventRecord, error) {
	return n.feed.Subscribe(ctx, cursor)
}

// Close releases the backing store.
func (n *Node) Close() {
	n.db.Close()
}
