package rpc

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"socialtree/core"
	"socialtree/crypto"
	"socialtree/native/commission"
	"socialtree/storage"
)

const testAuthToken = "test-token"

func rpcAddr(last byte) [20]byte {
	var out [20]byte
	out[19] = last
	return out
}

func bech(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.STTPrefix, addr[:]).String()
}

func newTestServer(t *testing.T, allocs ...core.GenesisAccount) (*Server, [20]byte) {
	t.Helper()
	t.Setenv("STT_RPC_TOKEN", testAuthToken)
	owner := rpcAddr(0x01)
	node, err := core.NewNode(storage.NewMemDB(), commission.DefaultParams(), owner, allocs)
	require.NoError(t, err)
	return NewServer(node), owner
}

func call(t *testing.T, server *Server, method string, params interface{}, token string) (*httptest.ResponseRecorder, RPCResponse) {
	t.Helper()
	request := map[string]interface{}{
		"jsonrpc": jsonRPCVersion,
		"id":      1,
		"method":  method,
	}
	if params != nil {
		request["params"] = []interface{}{params}
	}
	body, err := json.Marshal(request)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	server.Router().ServeHTTP(recorder, req)

	var resp RPCResponse
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &resp))
	return recorder, resp
}

func TestMethodNotFound(t *testing.T) {
	server, _ := newTestServer(t)
	_, resp := call(t, server, "bogus_method", nil, "")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestMutatorRequiresAuth(t *testing.T) {
	server, owner := newTestServer(t)
	params := setContentParams{
		Caller:     bech(owner),
		ContentKey: "series-1",
		Price:      "1000",
		Creator:    bech(rpcAddr(0x02)),
	}

	recorder, resp := call(t, server, "commission_setContent", params, "")
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	_, resp = call(t, server, "commission_setContent", params, "wrong-token")
	require.NotNil(t, resp.Error)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestSetContentAndQuery(t *testing.T) {
	server, owner := newTestServer(t)
	params := setContentParams{
		Caller:     bech(owner),
		ContentKey: "series-1",
		Price:      "1000",
		Creator:    bech(rpcAddr(0x02)),
	}
	_, resp := call(t, server, "commission_setContent", params, testAuthToken)
	require.Nil(t, resp.Error)

	_, resp = call(t, server, "commission_getContent", contentQueryParams{ContentKey: "series-1"}, "")
	require.Nil(t, resp.Error)
	encoded, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result contentResult
	require.NoError(t, json.Unmarshal(encoded, &result))
	require.Equal(t, "1000", result.Price)
	require.Equal(t, bech(rpcAddr(0x02)), result.Creator)
	require.Equal(t, commission.DeriveContentID("series-1").Hex(), result.ID)
}

func TestSubscribeOverRPC(t *testing.T) {
	user := rpcAddr(0x10)
	referrer := rpcAddr(0x11)
	server, owner := newTestServer(t, core.GenesisAccount{Address: user, Balance: big.NewInt(10_000)})

	_, resp := call(t, server, "commission_setContent", setContentParams{
		Caller:     bech(owner),
		ContentKey: "series-1",
		Price:      "1000",
		Creator:    bech(rpcAddr(0x02)),
	}, testAuthToken)
	require.Nil(t, resp.Error)

	_, resp = call(t, server, "commission_setReferrer", setReferrerParams{
		Caller:   bech(user),
		Referrer: bech(referrer),
	}, testAuthToken)
	require.Nil(t, resp.Error)

	_, resp = call(t, server, "commission_subscribe", subscribeParams{
		Caller:     bech(user),
		ContentKey: "series-1",
		Payment:    "1000",
	}, testAuthToken)
	require.Nil(t, resp.Error)
	encoded, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var sub subscriptionResult
	require.NoError(t, json.Unmarshal(encoded, &sub))
	require.True(t, sub.Active)
	require.Equal(t, bech(referrer), sub.Referrer)

	_, resp = call(t, server, "commission_getCommission", addressParams{Address: bech(referrer)}, "")
	require.Nil(t, resp.Error)
	encoded, err = json.Marshal(resp.Result)
	require.NoError(t, err)
	var pending commissionResult
	require.NoError(t, json.Unmarshal(encoded, &pending))
	require.Equal(t, "200", pending.Pending)

	_, resp = call(t, server, "commission_withdraw", withdrawParams{Caller: bech(referrer)}, testAuthToken)
	require.Nil(t, resp.Error)

	_, resp = call(t, server, "stt_getBalance", addressParams{Address: bech(referrer)}, "")
	require.Nil(t, resp.Error)
	encoded, err = json.Marshal(resp.Result)
	require.NoError(t, err)
	var balance balanceResult
	require.NoError(t, json.Unmarshal(encoded, &balance))
	require.Equal(t, "200", balance.Balance)
}

func TestSubscribeErrorSurfacesAsServerError(t *testing.T) {
	user := rpcAddr(0x10)
	server, owner := newTestServer(t)

	_, resp := call(t, server, "commission_setContent", setContentParams{
		Caller:     bech(owner),
		ContentKey: "series-1",
		Price:      "1000",
		Creator:    bech(rpcAddr(0x02)),
	}, testAuthToken)
	require.Nil(t, resp.Error)

	_, resp = call(t, server, "commission_subscribe", subscribeParams{
		Caller:     bech(user),
		ContentKey: "series-1",
		Payment:    "999",
	}, testAuthToken)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeServerError, resp.Error.Code)
}

func TestMigrateReferrerOverRPC(t *testing.T) {
	server, owner := newTestServer(t)
	user := rpcAddr(0x10)
	oldReferrer := rpcAddr(0x11)
	newReferrer := rpcAddr(0x12)

	_, resp := call(t, server, "commission_setReferrer", setReferrerParams{
		Caller:   bech(user),
		Referrer: bech(oldReferrer),
	}, testAuthToken)
	require.Nil(t, resp.Error)

	migrateParams := migrateReferrerParams{
		Caller:      bech(owner),
		User:        bech(user),
		NewReferrer: bech(newReferrer),
	}
	recorder, resp := call(t, server, "commission_migrateReferrer", migrateParams, "")
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
	require.NotNil(t, resp.Error)

	// Non-owner callers are rejected by the engine.
	_, resp = call(t, server, "commission_migrateReferrer", migrateReferrerParams{
		Caller:      bech(user),
		User:        bech(user),
		NewReferrer: bech(newReferrer),
	}, testAuthToken)
	require.NotNil(t, resp.Error)
	require.Equal(t, codeServerError, resp.Error.Code)

	_, resp = call(t, server, "commission_migrateReferrer", migrateParams, testAuthToken)
	require.Nil(t, resp.Error)

	_, resp = call(t, server, "commission_getReferrer", addressParams{Address: bech(user)}, "")
	require.Nil(t, resp.Error)
	encoded, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var referrer map[string]string
	require.NoError(t, json.Unmarshal(encoded, &referrer))
	require.Equal(t, bech(newReferrer), referrer["referrer"])

	_, resp = call(t, server, "commission_getReferredUsers", referredUsersParams{Address: bech(oldReferrer)}, "")
	require.Nil(t, resp.Error)
	encoded, err = json.Marshal(resp.Result)
	require.NoError(t, err)
	var referred referredUsersResult
	require.NoError(t, json.Unmarshal(encoded, &referred))
	require.Zero(t, referred.Total)
}

func TestMigrateReferralNetworkOverRPC(t *testing.T) {
	server, owner := newTestServer(t)
	from := rpcAddr(0x10)
	u1 := rpcAddr(0x11)
	u2 := rpcAddr(0x12)
	target := rpcAddr(0x13)

	for _, user := range [][20]byte{u1, u2} {
		_, resp := call(t, server, "commission_setReferrer", setReferrerParams{
			Caller:   bech(user),
			Referrer: bech(from),
		}, testAuthToken)
		require.Nil(t, resp.Error)
	}

	_, resp := call(t, server, "commission_migrateReferralNetwork", migrateNetworkParams{
		Caller:     bech(owner),
		FromUser:   bech(from),
		ToReferrer: bech(target),
	}, testAuthToken)
	require.Nil(t, resp.Error)
	encoded, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result map[string]interface{}
	require.NoError(t, json.Unmarshal(encoded, &result))
	require.Equal(t, float64(2), result["migratedCount"])

	_, resp = call(t, server, "commission_getReferredUsers", referredUsersParams{Address: bech(target)}, "")
	require.Nil(t, resp.Error)
	encoded, err = json.Marshal(resp.Result)
	require.NoError(t, err)
	var referred referredUsersResult
	require.NoError(t, json.Unmarshal(encoded, &referred))
	require.Equal(t, 2, referred.Total)
}

func TestActiveSubscriptionCountOverRPC(t *testing.T) {
	user := rpcAddr(0x10)
	server, owner := newTestServer(t, core.GenesisAccount{Address: user, Balance: big.NewInt(2_000)})

	_, resp := call(t, server, "commission_setContent", setContentParams{
		Caller:     bech(owner),
		ContentKey: "series-1",
		Price:      "1000",
		Creator:    bech(rpcAddr(0x02)),
	}, testAuthToken)
	require.Nil(t, resp.Error)

	count := func() float64 {
		_, resp := call(t, server, "commission_getActiveSubscriptionCount", addressParams{Address: bech(user)}, "")
		require.Nil(t, resp.Error)
		encoded, err := json.Marshal(resp.Result)
		require.NoError(t, err)
		var result map[string]interface{}
		require.NoError(t, json.Unmarshal(encoded, &result))
		return result["count"].(float64)
	}

	require.Zero(t, count())
	_, resp = call(t, server, "commission_subscribe", subscribeParams{
		Caller:     bech(user),
		ContentKey: "series-1",
		Payment:    "1000",
	}, testAuthToken)
	require.Nil(t, resp.Error)
	require.Equal(t, float64(1), count())

	_, resp = call(t, server, "commission_cancelSubscription", cancelSubscriptionParams{
		Caller:     bech(user),
		ContentKey: "series-1",
	}, testAuthToken)
	require.Nil(t, resp.Error)
	require.Zero(t, count())
}

func TestGetParamsDefaults(t *testing.T) {
	server, _ := newTestServer(t)
	_, resp := call(t, server, "commission_getParams", nil, "")
	require.Nil(t, resp.Error)
	encoded, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var result paramsResult
	require.NoError(t, json.Unmarshal(encoded, &result))
	require.Equal(t, uint64(20), result.CommissionRate)
	require.Equal(t, 10, result.MaxReferralDepth)
}
