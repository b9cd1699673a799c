package commission

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"time"

	"socialtree/core/events"
	"socialtree/core/types"
)

// maxReferredPageSize caps a single referred-users read. The index grows
// without bound, so reads hand back a capped slice plus a continuation offset.
const maxReferredPageSize = 256

type engineState interface {
	CommissionContentGet(id ContentID) (*Content, bool, error)
	CommissionContentPut(content *Content) error
	CommissionReferrerGet(user [20]byte) ([20]byte, bool, error)
	CommissionReferrerPut(user [20]byte, referrer [20]byte) error
	CommissionReferredAppend(referrer [20]byte, user [20]byte) error
	CommissionReferredList(referrer [20]byte) ([][20]byte, error)
	CommissionReferredReplace(referrer [20]byte, users [][20]byte) error
	CommissionSubscriptionGet(user [20]byte, id ContentID) (*Subscription, bool, error)
	CommissionSubscriptionPut(sub *Subscription) error
	CommissionPendingGet(addr [20]byte) (*big.Int, error)
	CommissionPendingPut(addr [20]byte, amount *big.Int) error
	CommissionActiveCountGet(user [20]byte) (uint64, error)
	CommissionActiveCountPut(user [20]byte, count uint64) error
	CommissionOwnerGet() ([20]byte, bool, error)
	CommissionOwnerPut(owner [20]byte) error
	CommissionTotalsGet() (*Totals, error)
	CommissionTotalsPut(totals *Totals) error
	GetAccount(addr []byte) (*types.Account, error)
	PutAccount(addr []byte, account *types.Account) error
}

// Engine wires the commission ledger business logic with persistence and
// event emission. All mutators assume the caller provides atomicity: the node
// runs each one inside a state overlay and reverts every write on error.
type Engine struct {
	state   engineState
	emitter events.Emitter
	nowFn   func() int64
	params  Params
}

// NewEngine constructs a commission engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
		params: DefaultParams(),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetParams configures the distribution constants.
func (e *Engine) SetParams(p Params) { e.params = p.Clone() }

// Params returns the active distribution constants.
func (e *Engine) Params() Params { return e.params.Clone() }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func ensureAccount(acc *types.Account) *types.Account {
	if acc == nil {
		return &types.Account{Balance: big.NewInt(0)}
	}
	if acc.Balance == nil {
		acc.Balance = big.NewInt(0)
	}
	return acc
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func isZeroAddress(addr [20]byte) bool {
	var zero [20]byte
	return addr == zero
}

// InitOwner records the administrative account if none is stored yet. It is
// called once at node start and is a no-op afterwards.
func (e *Engine) InitOwner(owner [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if isZeroAddress(owner) {
		return ErrNotOwner
	}
	if _, ok, err := e.state.CommissionOwnerGet(); err != nil {
		return err
	} else if ok {
		return nil
	}
	return e.state.CommissionOwnerPut(owner)
}

// Owner returns the current administrative account.
func (e *Engine) Owner() ([20]byte, error) {
	var zero [20]byte
	if e == nil || e.state == nil {
		return zero, ErrNilState
	}
	owner, _, err := e.state.CommissionOwnerGet()
	return owner, err
}

func (e *Engine) requireOwner(caller [20]byte) error {
	owner, ok, err := e.state.CommissionOwnerGet()
	if err != nil {
		return err
	}
	if !ok || owner != caller {
		return ErrNotOwner
	}
	return nil
}

// TransferOwnership rotates the administrative account.
func (e *Engine) TransferOwnership(caller [20]byte, newOwner [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if isZeroAddress(newOwner) {
		return ErrNotOwner
	}
	if err := e.state.CommissionOwnerPut(newOwner); err != nil {
		return err
	}
	e.emit(OwnershipTransferredEvent(hexAddr(caller), hexAddr(newOwner)))
	return nil
}

// RegisterContent upserts a content registry entry. Owner only. Existing
// subscriptions keep their price snapshots, so an overwrite never reprices
// them.
func (e *Engine) RegisterContent(caller [20]byte, id ContentID, price *big.Int, creator [20]byte) (*Content, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	if err := e.requireOwner(caller); err != nil {
		return nil, err
	}
	if id.IsZero() || price == nil || price.Sign() <= 0 || isZeroAddress(creator) {
		return nil, ErrInvalidContent
	}
	content := &Content{
		ID:           id,
		Price:        new(big.Int).Set(price),
		Creator:      creator,
		RegisteredAt: e.now(),
	}
	if err := e.state.CommissionContentPut(content); err != nil {
		return nil, err
	}
	e.emit(ContentRegisteredEvent(id.Hex(), hexAddr(creator), content.Price.String()))
	return content.Clone(), nil
}

// Content returns the registry entry for the supplied id.
func (e *Engine) Content(id ContentID) (*Content, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	content, ok, err := e.state.CommissionContentGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || content == nil || isZeroAddress(content.Creator) {
		return nil, ErrContentNotFound
	}
	return content.Clone(), nil
}

// SetReferrer records the caller's referral edge. Edges are first-write-wins:
// a second call is rejected regardless of the target so historical commission
// calculations stay meaningful. The proposed referrer's ancestor chain is
// walked (bounded by the distribution depth) to reject cycles.
func (e *Engine) SetReferrer(caller [20]byte, referrer [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if isZeroAddress(referrer) {
		return ErrInvalidReferrer
	}
	if referrer == caller {
		return ErrSelfReferral
	}
	if _, ok, err := e.state.CommissionReferrerGet(caller); err != nil {
		return err
	} else if ok {
		return ErrReferrerAlreadySet
	}
	cyclic, err := e.isAncestor(caller, referrer)
	if err != nil {
		return err
	}
	if cyclic {
		return ErrReferralCycle
	}
	if err := e.state.CommissionReferrerPut(caller, referrer); err != nil {
		return err
	}
	if err := e.state.CommissionReferredAppend(referrer, caller); err != nil {
		return err
	}
	e.emit(ReferrerSetEvent(hexAddr(caller), hexAddr(referrer)))
	return nil
}

// isAncestor reports whether needle appears in the ancestor chain of start,
// walking at most MaxReferralDepth edges.
func (e *Engine) isAncestor(needle [20]byte, start [20]byte) (bool, error) {
	current := start
	for depth := 0; depth < e.params.MaxReferralDepth; depth++ {
		ancestor, ok, err := e.state.CommissionReferrerGet(current)
		if err != nil {
			return false, err
		}
		if !ok || isZeroAddress(ancestor) {
			return false, nil
		}
		if ancestor == needle {
			return true, nil
		}
		current = ancestor
	}
	return false, nil
}

// removeReferred drops the user from the referrer's referred-users index.
// Missing entries are ignored so migration stays idempotent over a
// hand-repaired index.
func (e *Engine) removeReferred(referrer [20]byte, user [20]byte) error {
	list, err := e.state.CommissionReferredList(referrer)
	if err != nil {
		return err
	}
	filtered := make([][20]byte, 0, len(list))
	for _, entry := range list {
		if entry == user {
			continue
		}
		filtered = append(filtered, entry)
	}
	if len(filtered) == len(list) {
		return nil
	}
	return e.state.CommissionReferredReplace(referrer, filtered)
}

// MigrateReferrer rewrites a user's referral edge. Owner only; this is the
// administrative escape hatch for stale first-write-wins edges. The old
// referrer's index loses the user, the new referrer's index gains them, and
// existing subscription snapshots keep their recorded referrer.
func (e *Engine) MigrateReferrer(caller [20]byte, user [20]byte, newReferrer [20]byte) error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if isZeroAddress(user) {
		return ErrInvalidUser
	}
	if isZeroAddress(newReferrer) {
		return ErrInvalidReferrer
	}
	if newReferrer == user {
		return ErrSelfReferral
	}
	old, hadOld, err := e.state.CommissionReferrerGet(user)
	if err != nil {
		return err
	}
	if hadOld && old == newReferrer {
		return ErrReferrerAlreadySet
	}
	cyclic, err := e.isAncestor(user, newReferrer)
	if err != nil {
		return err
	}
	if cyclic {
		return ErrReferralCycle
	}
	if hadOld && !isZeroAddress(old) {
		if err := e.removeReferred(old, user); err != nil {
			return err
		}
	}
	if err := e.state.CommissionReferrerPut(user, newReferrer); err != nil {
		return err
	}
	if err := e.state.CommissionReferredAppend(newReferrer, user); err != nil {
		return err
	}
	var oldHex string
	if hadOld {
		oldHex = hexAddr(old)
	} else {
		var zero [20]byte
		oldHex = hexAddr(zero)
	}
	e.emit(ReferrerMigratedEvent(hexAddr(user), oldHex, hexAddr(newReferrer)))
	return nil
}

// MigrateReferralNetwork reassigns every direct referral of fromUser to
// toReferrer in one pass. Owner only. Entries that cannot move (toReferrer
// itself, or edges whose rewrite would form a cycle) stay on fromUser. Emits
// one edge event per migrated user plus a summary event, and returns the
// migrated count.
func (e *Engine) MigrateReferralNetwork(caller [20]byte, fromUser [20]byte, toReferrer [20]byte) (int, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	if err := e.requireOwner(caller); err != nil {
		return 0, err
	}
	if isZeroAddress(fromUser) {
		return 0, ErrInvalidUser
	}
	if isZeroAddress(toReferrer) {
		return 0, ErrInvalidReferrer
	}
	if toReferrer == fromUser {
		return 0, ErrSelfReferral
	}
	list, err := e.state.CommissionReferredList(fromUser)
	if err != nil {
		return 0, err
	}
	remaining := make([][20]byte, 0, len(list))
	migrated := 0
	for _, user := range list {
		if user == toReferrer {
			remaining = append(remaining, user)
			continue
		}
		cyclic, err := e.isAncestor(user, toReferrer)
		if err != nil {
			return 0, err
		}
		if cyclic {
			remaining = append(remaining, user)
			continue
		}
		if err := e.state.CommissionReferrerPut(user, toReferrer); err != nil {
			return 0, err
		}
		if err := e.state.CommissionReferredAppend(toReferrer, user); err != nil {
			return 0, err
		}
		e.emit(ReferrerMigratedEvent(hexAddr(user), hexAddr(fromUser), hexAddr(toReferrer)))
		migrated++
	}
	if err := e.state.CommissionReferredReplace(fromUser, remaining); err != nil {
		return 0, err
	}
	e.emit(NetworkMigratedEvent(hexAddr(fromUser), hexAddr(toReferrer), strconv.Itoa(migrated)))
	return migrated, nil
}

// ReferrerOf returns the stored referral edge for a user, or the zero address
// when none is set.
func (e *Engine) ReferrerOf(user [20]byte) ([20]byte, error) {
	var zero [20]byte
	if e == nil || e.state == nil {
		return zero, ErrNilState
	}
	referrer, ok, err := e.state.CommissionReferrerGet(user)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, nil
	}
	return referrer, nil
}

// ReferredUsers returns one page of the referred-users index plus the total
// index length. Limit is clamped to maxReferredPageSize.
func (e *Engine) ReferredUsers(referrer [20]byte, offset int, limit int) ([][20]byte, int, error) {
	if e == nil || e.state == nil {
		return nil, 0, ErrNilState
	}
	list, err := e.state.CommissionReferredList(referrer)
	if err != nil {
		return nil, 0, err
	}
	total := len(list)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return nil, total, nil
	}
	if limit <= 0 || limit > maxReferredPageSize {
		limit = maxReferredPageSize
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := make([][20]byte, end-offset)
	copy(page, list[offset:end])
	return page, total, nil
}

// ReferralChain returns the bounded ancestor walk starting at the user's own
// referral edge. Analytics only; money movement re-resolves the chain during
// distribution.
func (e *Engine) ReferralChain(user [20]byte) ([][20]byte, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	chain := make([][20]byte, 0, e.params.MaxReferralDepth)
	current := user
	for depth := 0; depth < e.params.MaxReferralDepth; depth++ {
		ancestor, ok, err := e.state.CommissionReferrerGet(current)
		if err != nil {
			return nil, err
		}
		if !ok || isZeroAddress(ancestor) {
			break
		}
		chain = append(chain, ancestor)
		current = ancestor
	}
	return chain, nil
}

// Subscribe processes a paid subscription: validates the payment, snapshots
// the subscription record, runs the decaying distribution against the named
// referrer, and pays the creator the undistributed remainder synchronously.
// Referrers accrue pending balances instead of receiving transfers, which
// keeps the walk an O(depth) loop of storage increments.
func (e *Engine) Subscribe(caller [20]byte, id ContentID, referrer [20]byte, payment *big.Int) (*Subscription, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	content, ok, err := e.state.CommissionContentGet(id)
	if err != nil {
		return nil, err
	}
	if !ok || content == nil || isZeroAddress(content.Creator) {
		return nil, ErrContentNotFound
	}
	if payment == nil || content.Price == nil || payment.Cmp(content.Price) != 0 {
		return nil, ErrPaymentMismatch
	}
	now := e.now()
	existing, hadRecord, err := e.state.CommissionSubscriptionGet(caller, id)
	if err != nil {
		return nil, err
	}
	if hadRecord && existing.ActiveAt(now) {
		return nil, ErrAlreadySubscribed
	}
	if referrer == caller {
		return nil, ErrSelfReferral
	}
	// A zero referrer argument falls back to the caller's standing edge; a
	// non-zero argument (referral-link campaign) wins for this subscription
	// only.
	if isZeroAddress(referrer) {
		stored, ok, err := e.state.CommissionReferrerGet(caller)
		if err != nil {
			return nil, err
		}
		if ok {
			referrer = stored
		}
	}

	payerAccount, err := e.state.GetAccount(caller[:])
	if err != nil {
		return nil, err
	}
	payerAccount = ensureAccount(payerAccount)
	if payerAccount.Balance.Cmp(payment) < 0 {
		return nil, ErrInsufficientFunds
	}
	payerAccount.Balance = new(big.Int).Sub(payerAccount.Balance, payment)
	if err := e.state.PutAccount(caller[:], payerAccount); err != nil {
		return nil, err
	}

	sub := &Subscription{
		User:      caller,
		ContentID: id,
		Price:     new(big.Int).Set(content.Price),
		StartTime: now,
		EndTime:   now + e.params.SubscriptionPeriod,
		Referrer:  referrer,
		Active:    true,
	}
	if err := e.state.CommissionSubscriptionPut(sub); err != nil {
		return nil, err
	}
	// The active counter tracks stored records whose Active flag is set, so an
	// expired-but-uncancelled record being overwritten does not count twice.
	if !hadRecord || !existing.Active {
		count, err := e.state.CommissionActiveCountGet(caller)
		if err != nil {
			return nil, err
		}
		if err := e.state.CommissionActiveCountPut(caller, count+1); err != nil {
			return nil, err
		}
	}

	payouts, distributed, err := distribute(referrer, content.Price, e.params, func(addr [20]byte) ([20]byte, bool, error) {
		return e.state.CommissionReferrerGet(addr)
	})
	if err != nil {
		return nil, err
	}
	for _, payout := range payouts {
		pending, err := e.state.CommissionPendingGet(payout.Recipient)
		if err != nil {
			return nil, err
		}
		pending = new(big.Int).Add(pending, payout.Amount)
		if err := e.state.CommissionPendingPut(payout.Recipient, pending); err != nil {
			return nil, err
		}
		e.emit(DistributedEvent(hexAddr(payout.Recipient), hexAddr(caller), payout.Amount.String(), strconv.Itoa(payout.Level)))
	}

	// The creator takes everything the walk did not place: the non-commission
	// base plus any pool remainder cut off by dust, depth, or a short chain.
	creatorShare := new(big.Int).Sub(payment, distributed)
	creatorAccount, err := e.state.GetAccount(content.Creator[:])
	if err != nil {
		return nil, err
	}
	creatorAccount = ensureAccount(creatorAccount)
	creatorAccount.Balance = new(big.Int).Add(creatorAccount.Balance, creatorShare)
	if err := e.state.PutAccount(content.Creator[:], creatorAccount); err != nil {
		return nil, err
	}

	totals, err := e.state.CommissionTotalsGet()
	if err != nil {
		return nil, err
	}
	totals = totals.Clone()
	totals.Received = new(big.Int).Add(totals.Received, payment)
	totals.CreatorPaid = new(big.Int).Add(totals.CreatorPaid, creatorShare)
	totals.Distributed = new(big.Int).Add(totals.Distributed, distributed)
	if err := e.state.CommissionTotalsPut(totals); err != nil {
		return nil, err
	}

	e.emit(SubscribedEvent(hexAddr(caller), id.Hex(), hexAddr(referrer), payment.String(), strconv.FormatInt(sub.EndTime, 10)))
	return sub.Clone(), nil
}

// CancelSubscription deactivates the caller's subscription to the content.
// No refund and no commission clawback; already distributed commissions are
// final.
func (e *Engine) CancelSubscription(caller [20]byte, id ContentID) (*Subscription, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	sub, ok, err := e.state.CommissionSubscriptionGet(caller, id)
	if err != nil {
		return nil, err
	}
	if !ok || sub == nil || !sub.Active {
		return nil, ErrSubscriptionNotFound
	}
	sub.Active = false
	if err := e.state.CommissionSubscriptionPut(sub); err != nil {
		return nil, err
	}
	count, err := e.state.CommissionActiveCountGet(caller)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		if err := e.state.CommissionActiveCountPut(caller, count-1); err != nil {
			return nil, err
		}
	}
	e.emit(SubscriptionCancelledEvent(hexAddr(caller), id.Hex(), strconv.FormatInt(e.now(), 10)))
	return sub.Clone(), nil
}

// SubscriptionOf returns the raw subscription record for (user, content).
func (e *Engine) SubscriptionOf(user [20]byte, id ContentID) (*Subscription, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	sub, ok, err := e.state.CommissionSubscriptionGet(user, id)
	if err != nil {
		return nil, err
	}
	if !ok || sub == nil {
		return nil, ErrSubscriptionNotFound
	}
	return sub.Clone(), nil
}

// SubscriptionStatus reports whether the subscription currently grants
// access, alongside its end time. An expired-but-uncancelled subscription
// reports inactive.
func (e *Engine) SubscriptionStatus(user [20]byte, id ContentID) (bool, int64, error) {
	if e == nil || e.state == nil {
		return false, 0, ErrNilState
	}
	sub, ok, err := e.state.CommissionSubscriptionGet(user, id)
	if err != nil {
		return false, 0, err
	}
	if !ok || sub == nil {
		return false, 0, nil
	}
	return sub.ActiveAt(e.now()), sub.EndTime, nil
}

// ActiveSubscriptionCount returns the number of the user's subscription
// records whose Active flag is set. Expiry does not decrement the counter;
// only cancellation does.
func (e *Engine) ActiveSubscriptionCount(user [20]byte) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, ErrNilState
	}
	return e.state.CommissionActiveCountGet(user)
}

// PendingCommission returns the accumulated, not-yet-withdrawn commission
// credit for an account.
func (e *Engine) PendingCommission(addr [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.state.CommissionPendingGet(addr)
}

// Withdraw pays out the caller's full pending balance into their account. The
// pending balance is zeroed before the credit is applied; if any later write
// fails the node's overlay revert restores it, so funds are never lost or
// double-paid.
func (e *Engine) Withdraw(caller [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	pending, err := e.state.CommissionPendingGet(caller)
	if err != nil {
		return nil, err
	}
	if pending.Sign() == 0 {
		return nil, ErrNoBalance
	}
	amount := new(big.Int).Set(pending)
	if err := e.state.CommissionPendingPut(caller, big.NewInt(0)); err != nil {
		return nil, err
	}
	account, err := e.state.GetAccount(caller[:])
	if err != nil {
		return nil, err
	}
	account = ensureAccount(account)
	account.Balance = new(big.Int).Add(account.Balance, amount)
	if err := e.state.PutAccount(caller[:], account); err != nil {
		return nil, err
	}
	totals, err := e.state.CommissionTotalsGet()
	if err != nil {
		return nil, err
	}
	totals = totals.Clone()
	totals.Withdrawn = new(big.Int).Add(totals.Withdrawn, amount)
	if err := e.state.CommissionTotalsPut(totals); err != nil {
		return nil, err
	}
	e.emit(WithdrawnEvent(hexAddr(caller), amount.String()))
	return amount, nil
}

// Totals returns the module-wide money-flow counters.
func (e *Engine) Totals() (*Totals, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	totals, err := e.state.CommissionTotalsGet()
	if err != nil {
		return nil, err
	}
	return totals.Clone(), nil
}
