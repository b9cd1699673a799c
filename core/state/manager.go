package state

import (
	"errors"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"socialtree/core/types"
	"socialtree/native/commission"
	"socialtree/storage"
)

// Manager persists ledger state in a key-value store. Keys are keccak256
// hashes of a readable prefix plus the record coordinates; values are
// RLP-encoded records.
//
// The manager carries an optional write overlay so the node can make each
// mutator all-or-nothing: Begin buffers every write in memory, Commit flushes
// the buffer to the backing store, Revert discards it. Reads always observe
// the overlay first. The manager is not safe for concurrent use; the node
// serializes access.
type Manager struct {
	db      storage.Database
	overlay map[string][]byte
}

// NewManager creates a state manager over the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	contentPrefix      = []byte("commission/content/")
	referrerPrefix     = []byte("commission/referrer/")
	referredPrefix     = []byte("commission/referred/")
	subscriptionPrefix = []byte("commission/subscription/")
	pendingPrefix      = []byte("commission/pending/")
	activeCountPrefix  = []byte("commission/activecount/")
	ownerKeyBytes      = []byte("commission/owner")
	totalsKeyBytes     = []byte("commission/totals")
	accountPrefix      = []byte("account/")
)

func hashKey(parts ...[]byte) []byte {
	size := 0
	for _, part := range parts {
		size += len(part)
	}
	buf := make([]byte, 0, size)
	for _, part := range parts {
		buf = append(buf, part...)
	}
	return ethcrypto.Keccak256(buf)
}

// Begin opens a write overlay. Nested transactions are not supported.
func (m *Manager) Begin() {
	m.overlay = make(map[string][]byte)
}

// Commit flushes the overlay to the backing store and closes it.
func (m *Manager) Commit() error {
	for key, value := range m.overlay {
		if err := m.db.Put([]byte(key), value); err != nil {
			return err
		}
	}
	m.overlay = nil
	return nil
}

// Revert discards the overlay without touching the backing store.
func (m *Manager) Revert() {
	m.overlay = nil
}

func (m *Manager) get(key []byte) ([]byte, bool, error) {
	if m.overlay != nil {
		if value, ok := m.overlay[string(key)]; ok {
			return value, true, nil
		}
	}
	ok, err := m.db.Has(key)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	value, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (m *Manager) put(key []byte, value []byte) error {
	if m.overlay != nil {
		m.overlay[string(key)] = value
		return nil
	}
	return m.db.Put(key, value)
}

// --- stored record shapes (RLP-friendly: unsigned ints only) ---

type storedContent struct {
	ID           [32]byte
	Price        *big.Int
	Creator      [20]byte
	RegisteredAt uint64
}

type storedSubscription struct {
	User      [20]byte
	ContentID [32]byte
	Price     *big.Int
	StartTime uint64
	EndTime   uint64
	Referrer  [20]byte
	Active    bool
}

type storedTotals struct {
	Received    *big.Int
	CreatorPaid *big.Int
	Distributed *big.Int
	Withdrawn   *big.Int
}

type storedAccount struct {
	Nonce   uint64
	Balance *big.Int
}

// --- commission engine state ---

func (m *Manager) CommissionContentGet(id commission.ContentID) (*commission.Content, bool, error) {
	data, ok, err := m.get(hashKey(contentPrefix, id[:]))
	if err != nil || !ok {
		return nil, false, err
	}
	stored := new(storedContent)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, err
	}
	return &commission.Content{
		ID:           commission.ContentID(stored.ID),
		Price:        stored.Price,
		Creator:      stored.Creator,
		RegisteredAt: int64(stored.RegisteredAt),
	}, true, nil
}

func (m *Manager) CommissionContentPut(content *commission.Content) error {
	if content == nil {
		return errors.New("state: nil content")
	}
	stored := &storedContent{
		ID:           content.ID,
		Price:        content.Price,
		Creator:      content.Creator,
		RegisteredAt: uint64(content.RegisteredAt),
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return m.put(hashKey(contentPrefix, stored.ID[:]), encoded)
}

func (m *Manager) CommissionReferrerGet(user [20]byte) ([20]byte, bool, error) {
	var referrer [20]byte
	data, ok, err := m.get(hashKey(referrerPrefix, user[:]))
	if err != nil || !ok {
		return referrer, false, err
	}
	if err := rlp.DecodeBytes(data, &referrer); err != nil {
		return referrer, false, err
	}
	return referrer, true, nil
}

func (m *Manager) CommissionReferrerPut(user [20]byte, referrer [20]byte) error {
	encoded, err := rlp.EncodeToBytes(referrer)
	if err != nil {
		return err
	}
	return m.put(hashKey(referrerPrefix, user[:]), encoded)
}

func (m *Manager) CommissionReferredList(referrer [20]byte) ([][20]byte, error) {
	data, ok, err := m.get(hashKey(referredPrefix, referrer[:]))
	if err != nil || !ok {
		return nil, err
	}
	var list [][20]byte
	if err := rlp.DecodeBytes(data, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (m *Manager) CommissionReferredAppend(referrer [20]byte, user [20]byte) error {
	list, err := m.CommissionReferredList(referrer)
	if err != nil {
		return err
	}
	list = append(list, user)
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return m.put(hashKey(referredPrefix, referrer[:]), encoded)
}

func (m *Manager) CommissionReferredReplace(referrer [20]byte, users [][20]byte) error {
	if users == nil {
		users = [][20]byte{}
	}
	encoded, err := rlp.EncodeToBytes(users)
	if err != nil {
		return err
	}
	return m.put(hashKey(referredPrefix, referrer[:]), encoded)
}

func (m *Manager) CommissionSubscriptionGet(user [20]byte, id commission.ContentID) (*commission.Subscription, bool, error) {
	data, ok, err := m.get(hashKey(subscriptionPrefix, user[:], id[:]))
	if err != nil || !ok {
		return nil, false, err
	}
	stored := new(storedSubscription)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, false, err
	}
	return &commission.Subscription{
		User:      stored.User,
		ContentID: commission.ContentID(stored.ContentID),
		Price:     stored.Price,
		StartTime: int64(stored.StartTime),
		EndTime:   int64(stored.EndTime),
		Referrer:  stored.Referrer,
		Active:    stored.Active,
	}, true, nil
}

func (m *Manager) CommissionSubscriptionPut(sub *commission.Subscription) error {
	if sub == nil {
		return errors.New("state: nil subscription")
	}
	stored := &storedSubscription{
		User:      sub.User,
		ContentID: sub.ContentID,
		Price:     sub.Price,
		StartTime: uint64(sub.StartTime),
		EndTime:   uint64(sub.EndTime),
		Referrer:  sub.Referrer,
		Active:    sub.Active,
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return m.put(hashKey(subscriptionPrefix, stored.User[:], stored.ContentID[:]), encoded)
}

func (m *Manager) CommissionPendingGet(addr [20]byte) (*big.Int, error) {
	data, ok, err := m.get(hashKey(pendingPrefix, addr[:]))
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	amount := new(big.Int)
	if err := rlp.DecodeBytes(data, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

func (m *Manager) CommissionPendingPut(addr [20]byte, amount *big.Int) error {
	if amount == nil {
		amount = big.NewInt(0)
	}
	encoded, err := rlp.EncodeToBytes(amount)
	if err != nil {
		return err
	}
	return m.put(hashKey(pendingPrefix, addr[:]), encoded)
}

func (m *Manager) CommissionActiveCountGet(user [20]byte) (uint64, error) {
	data, ok, err := m.get(hashKey(activeCountPrefix, user[:]))
	if err != nil || !ok {
		return 0, err
	}
	var count uint64
	if err := rlp.DecodeBytes(data, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (m *Manager) CommissionActiveCountPut(user [20]byte, count uint64) error {
	encoded, err := rlp.EncodeToBytes(count)
	if err != nil {
		return err
	}
	return m.put(hashKey(activeCountPrefix, user[:]), encoded)
}

func (m *Manager) CommissionOwnerGet() ([20]byte, bool, error) {
	var owner [20]byte
	data, ok, err := m.get(hashKey(ownerKeyBytes))
	if err != nil || !ok {
		return owner, false, err
	}
	if err := rlp.DecodeBytes(data, &owner); err != nil {
		return owner, false, err
	}
	return owner, true, nil
}

func (m *Manager) CommissionOwnerPut(owner [20]byte) error {
	encoded, err := rlp.EncodeToBytes(owner)
	if err != nil {
		return err
	}
	return m.put(hashKey(ownerKeyBytes), encoded)
}

func (m *Manager) CommissionTotalsGet() (*commission.Totals, error) {
	data, ok, err := m.get(hashKey(totalsKeyBytes))
	if err != nil {
		return nil, err
	}
	if !ok {
		return commission.NewTotals(), nil
	}
	stored := new(storedTotals)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, err
	}
	return &commission.Totals{
		Received:    stored.Received,
		CreatorPaid: stored.CreatorPaid,
		Distributed: stored.Distributed,
		Withdrawn:   stored.Withdrawn,
	}, nil
}

func (m *Manager) CommissionTotalsPut(totals *commission.Totals) error {
	if totals == nil {
		return errors.New("state: nil totals")
	}
	stored := &storedTotals{
		Received:    totals.Received,
		CreatorPaid: totals.CreatorPaid,
		Distributed: totals.Distributed,
		Withdrawn:   totals.Withdrawn,
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	return m.put(hashKey(totalsKeyBytes), encoded)
}

// --- accounts ---

// GetAccount returns the stored account or nil when the address has never
// been written.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	data, ok, err := m.get(hashKey(accountPrefix, addr))
	if err != nil || !ok {
		return nil, err
	}
	stored := new(storedAccount)
	if err := rlp.DecodeBytes(data, stored); err != nil {
		return nil, err
	}
	return &types.Account{Nonce: stored.Nonce, Balance: stored.Balance}, nil
}

// PutAccount persists the account record for the address.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if account == nil {
		return errors.New("state: nil account")
	}
	balance := account.Balance
	if balance == nil {
		balance = big.NewInt(0)
	}
	encoded, err := rlp.EncodeToBytes(&storedAccount{Nonce: account.Nonce, Balance: balance})
	if err != nil {
		return err
	}
	return m.put(hashKey(accountPrefix, addr), encoded)
}
