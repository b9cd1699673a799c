package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"socialtree/core/types"
	"socialtree/native/commission"
	"socialtree/storage"
)

func testAddr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func TestContentRoundtrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	id := commission.DeriveContentID("series-1")

	_, ok, err := manager.CommissionContentGet(id)
	require.NoError(t, err)
	require.False(t, ok)

	content := &commission.Content{
		ID:           id,
		Price:        big.NewInt(2_500),
		Creator:      testAddr(0x01),
		RegisteredAt: 1_700_000_000,
	}
	require.NoError(t, manager.CommissionContentPut(content))

	loaded, ok, err := manager.CommissionContentGet(id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, content.ID, loaded.ID)
	require.Equal(t, content.Creator, loaded.Creator)
	require.Zero(t, content.Price.Cmp(loaded.Price))
	require.Equal(t, content.RegisteredAt, loaded.RegisteredAt)
}

func TestSubscriptionRoundtrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	id := commission.DeriveContentID("series-2")
	sub := &commission.Subscription{
		User:      testAddr(0x02),
		ContentID: id,
		Price:     big.NewInt(900),
		StartTime: 100,
		EndTime:   100 + 30*24*3600,
		Referrer:  testAddr(0x03),
		Active:    true,
	}
	require.NoError(t, manager.CommissionSubscriptionPut(sub))

	loaded, ok, err := manager.CommissionSubscriptionGet(sub.User, id)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sub.User, loaded.User)
	require.Equal(t, sub.ContentID, loaded.ContentID)
	require.Zero(t, sub.Price.Cmp(loaded.Price))
	require.Equal(t, sub.StartTime, loaded.StartTime)
	require.Equal(t, sub.EndTime, loaded.EndTime)
	require.Equal(t, sub.Referrer, loaded.Referrer)
	require.True(t, loaded.Active)

	// Different content id misses.
	_, ok, err = manager.CommissionSubscriptionGet(sub.User, commission.DeriveContentID("other"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReferrerAndReferredIndex(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	referrer := testAddr(0x0A)

	_, ok, err := manager.CommissionReferrerGet(testAddr(0x01))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, manager.CommissionReferrerPut(testAddr(0x01), referrer))
	require.NoError(t, manager.CommissionReferredAppend(referrer, testAddr(0x01)))
	require.NoError(t, manager.CommissionReferrerPut(testAddr(0x02), referrer))
	require.NoError(t, manager.CommissionReferredAppend(referrer, testAddr(0x02)))

	stored, ok, err := manager.CommissionReferrerGet(testAddr(0x01))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, referrer, stored)

	list, err := manager.CommissionReferredList(referrer)
	require.NoError(t, err)
	require.Equal(t, [][20]byte{testAddr(0x01), testAddr(0x02)}, list)

	require.NoError(t, manager.CommissionReferredReplace(referrer, [][20]byte{testAddr(0x02)}))
	list, err = manager.CommissionReferredList(referrer)
	require.NoError(t, err)
	require.Equal(t, [][20]byte{testAddr(0x02)}, list)

	require.NoError(t, manager.CommissionReferredReplace(referrer, nil))
	list, err = manager.CommissionReferredList(referrer)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestActiveCountRoundtrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	user := testAddr(0x07)

	count, err := manager.CommissionActiveCountGet(user)
	require.NoError(t, err)
	require.Zero(t, count)

	require.NoError(t, manager.CommissionActiveCountPut(user, 3))
	count, err = manager.CommissionActiveCountGet(user)
	require.NoError(t, err)
	require.Equal(t, uint64(3), count)

	require.NoError(t, manager.CommissionActiveCountPut(user, 0))
	count, err = manager.CommissionActiveCountGet(user)
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestPendingDefaultsToZero(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	addr := testAddr(0x05)

	pending, err := manager.CommissionPendingGet(addr)
	require.NoError(t, err)
	require.Zero(t, pending.Sign())

	require.NoError(t, manager.CommissionPendingPut(addr, big.NewInt(4_321)))
	pending, err = manager.CommissionPendingGet(addr)
	require.NoError(t, err)
	require.Zero(t, pending.Cmp(big.NewInt(4_321)))
}

func TestOwnerRoundtrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	_, ok, err := manager.CommissionOwnerGet()
	require.NoError(t, err)
	require.False(t, ok)

	owner := testAddr(0x07)
	require.NoError(t, manager.CommissionOwnerPut(owner))
	stored, ok, err := manager.CommissionOwnerGet()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, owner, stored)
}

func TestTotalsDefaultsAndRoundtrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())

	totals, err := manager.CommissionTotalsGet()
	require.NoError(t, err)
	require.Zero(t, totals.Received.Sign())
	require.Zero(t, totals.Withdrawn.Sign())

	totals.Received = big.NewInt(1_000)
	totals.CreatorPaid = big.NewInt(760)
	totals.Distributed = big.NewInt(240)
	totals.Withdrawn = big.NewInt(40)
	require.NoError(t, manager.CommissionTotalsPut(totals))

	loaded, err := manager.CommissionTotalsGet()
	require.NoError(t, err)
	require.Zero(t, loaded.Received.Cmp(big.NewInt(1_000)))
	require.Zero(t, loaded.CreatorPaid.Cmp(big.NewInt(760)))
	require.Zero(t, loaded.Distributed.Cmp(big.NewInt(240)))
	require.Zero(t, loaded.Withdrawn.Cmp(big.NewInt(40)))
}

func TestAccountRoundtrip(t *testing.T) {
	manager := NewManager(storage.NewMemDB())
	addr := testAddr(0x09)

	account, err := manager.GetAccount(addr[:])
	require.NoError(t, err)
	require.Nil(t, account)

	require.NoError(t, manager.PutAccount(addr[:], &types.Account{Nonce: 3, Balance: big.NewInt(777)}))
	account, err = manager.GetAccount(addr[:])
	require.NoError(t, err)
	require.NotNil(t, account)
	require.Equal(t, uint64(3), account.Nonce)
	require.Zero(t, account.Balance.Cmp(big.NewInt(777)))
}

func TestOverlayCommitAndRevert(t *testing.T) {
	db := storage.NewMemDB()
	manager := NewManager(db)
	addr := testAddr(0x10)

	manager.Begin()
	require.NoError(t, manager.CommissionPendingPut(addr, big.NewInt(500)))

	// Reads inside the transaction observe the overlay.
	pending, err := manager.CommissionPendingGet(addr)
	require.NoError(t, err)
	require.Zero(t, pending.Cmp(big.NewInt(500)))

	manager.Revert()
	pending, err = manager.CommissionPendingGet(addr)
	require.NoError(t, err)
	require.Zero(t, pending.Sign())

	manager.Begin()
	require.NoError(t, manager.CommissionPendingPut(addr, big.NewInt(900)))
	require.NoError(t, manager.Commit())

	// A fresh manager over the same database sees the committed write.
	reopened := NewManager(db)
	pending, err = reopened.CommissionPendingGet(addr)
	require.NoError(t, err)
	require.Zero(t, pending.Cmp(big.NewInt(900)))
}
