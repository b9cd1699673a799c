package rpc

import (
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"strings"

	"socialtree/crypto"
	"socialtree/native/commission"
)

type setContentParams struct {
	Caller     string `json:"caller"`
	ContentID  string `json:"contentId,omitempty"`
	ContentKey string `json:"contentKey,omitempty"`
	Price      string `json:"price"`
	Creator    string `json:"creator"`
}

type transferOwnershipParams struct {
	Caller   string `json:"caller"`
	NewOwner string `json:"newOwner"`
}

type setReferrerParams struct {
	Caller   string `json:"caller"`
	Referrer string `json:"referrer"`
}

type migrateReferrerParams struct {
	Caller      string `json:"caller"`
	User        string `json:"user"`
	NewReferrer string `json:"newReferrer"`
}

type migrateNetworkParams struct {
	Caller     string `json:"caller"`
	FromUser   string `json:"fromUser"`
	ToReferrer string `json:"toReferrer"`
}

type subscribeParams struct {
	Caller     string `json:"caller"`
	ContentID  string `json:"contentId,omitempty"`
	ContentKey string `json:"contentKey,omitempty"`
	Referrer   string `json:"referrer,omitempty"`
	Payment    string `json:"payment"`
}

type cancelSubscriptionParams struct {
	Caller     string `json:"caller"`
	ContentID  string `json:"contentId,omitempty"`
	ContentKey string `json:"contentKey,omitempty"`
}

type withdrawParams struct {
	Caller string `json:"caller"`
}

type contentQueryParams struct {
	ContentID  string `json:"contentId,omitempty"`
	ContentKey string `json:"contentKey,omitempty"`
}

type addressParams struct {
	Address string `json:"address"`
}

type referredUsersParams struct {
	Address string `json:"address"`
	Offset  int    `json:"offset,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

type subscriptionQueryParams struct {
	Address    string `json:"address"`
	ContentID  string `json:"contentId,omitempty"`
	ContentKey string `json:"contentKey,omitempty"`
}

type contentResult struct {
	ID           string `json:"id"`
	Creator      string `json:"creator"`
	Price        string `json:"price"`
	RegisteredAt int64  `json:"registeredAt"`
}

type subscriptionResult struct {
	User      string `json:"user"`
	ContentID string `json:"contentId"`
	Price     string `json:"price"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
	Referrer  string `json:"referrer,omitempty"`
	Active    bool   `json:"active"`
}

type commissionResult struct {
	Address string `json:"address"`
	Pending string `json:"pending"`
}

type referredUsersResult struct {
	Referrer string   `json:"referrer"`
	Users    []string `json:"users"`
	Total    int      `json:"total"`
	Offset   int      `json:"offset"`
}

type referralChainResult struct {
	Address string   `json:"address"`
	Chain   []string `json:"chain"`
}

type subscriptionStatusResult struct {
	Active    bool  `json:"active"`
	ExpiresAt int64 `json:"expiresAt"`
}

type totalsResult struct {
	Received    string `json:"received"`
	CreatorPaid string `json:"creatorPaid"`
	Distributed string `json:"distributed"`
	Withdrawn   string `json:"withdrawn"`
}

type paramsResult struct {
	CommissionRate        uint64 `json:"commissionRate"`
	MinDistributionAmount string `json:"minDistributionAmount"`
	SubscriptionPeriod    int64  `json:"subscriptionPeriodSeconds"`
	MaxReferralDepth      int    `json:"maxReferralDepth"`
}

type withdrawResult struct {
	Address string `json:"address"`
	Amount  string `json:"amount"`
}

type balanceResult struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

func decodeBech32(addr string) ([20]byte, error) {
	decoded, err := crypto.DecodeAddress(strings.TrimSpace(addr))
	if err != nil {
		return [20]byte{}, err
	}
	return decoded.Bytes20(), nil
}

func formatAddress(addr [20]byte) string {
	return crypto.MustNewAddress(crypto.STTPrefix, addr[:]).String()
}

func formatOptionalAddress(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return formatAddress(addr)
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok || amount.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

// resolveContentID accepts either an explicit 32-byte hex id or a raw content
// key that is hashed into one.
func resolveContentID(contentID, contentKey string) (commission.ContentID, error) {
	id := strings.TrimSpace(contentID)
	if id != "" {
		return commission.ParseContentID(id)
	}
	key := strings.TrimSpace(contentKey)
	if key == "" {
		return commission.ContentID{}, fmt.Errorf("contentId or contentKey is required")
	}
	return commission.DeriveContentID(key), nil
}

func formatContent(content *commission.Content) contentResult {
	price := "0"
	if content.Price != nil {
		price = content.Price.String()
	}
	return contentResult{
		ID:           content.ID.Hex(),
		Creator:      formatAddress(content.Creator),
		Price:        price,
		RegisteredAt: content.RegisteredAt,
	}
}

func formatSubscription(sub *commission.Subscription) subscriptionResult {
	price := "0"
	if sub.Price != nil {
		price = sub.Price.String()
	}
	return subscriptionResult{
		User:      formatAddress(sub.User),
		ContentID: sub.ContentID.Hex(),
		Price:     price,
		StartTime: sub.StartTime,
		EndTime:   sub.EndTime,
		Referrer:  formatOptionalAddress(sub.Referrer),
		Active:    sub.Active,
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func decodeSingleParam(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "exactly one parameter object expected"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid parameter object", Data: err.Error()}
	}
	return nil
}

func (s *Server) handleSetContent(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params setContentParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	callerAddr, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	creatorAddr, err := decodeBech32(params.Creator)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid creator address", err.Error())
		return
	}
	id, err := resolveContentID(params.ContentID, params.ContentKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	price, err := parseAmount(params.Price)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	content, err := s.node.RegisterContent(callerAddr, id, price, creatorAddr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "failed to register content", err.Error())
		return
	}
	writeResult(w, req.ID, formatContent(content))
}

func (s *Server) handleTransferOwnership(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params transferOwnershipParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	callerAddr, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	newOwner, err := decodeBech32(params.NewOwner)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid newOwner address", err.Error())
		return
	}
	if err := s.node.TransferOwnership(callerAddr, newOwner); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "failed to transfer ownership", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]string{"owner": params.NewOwner})
}

func (s *Server) handleSetReferrer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params setReferrerParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	callerAddr, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	referrerAddr, err := decodeBech32(params.Referrer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid referrer address", err.Error())
		return
	}
	if err := s.node.SetReferrer(callerAddr, referrerAddr); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "failed to set referrer", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]string{"user": params.Caller, "referrer": params.Referrer})
}

func (s *Server) handleMigrateReferrer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params migrateReferrerParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	callerAddr, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	userAddr, err := decodeBech32(params.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid user address", err.Error())
		return
	}
	newReferrerAddr, err := decodeBech32(params.NewReferrer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid newReferrer address", err.Error())
		return
	}
	if err := s.node.MigrateReferrer(callerAddr, userAddr, newReferrerAddr); err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "failed to migrate referrer", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]string{"user": params.User, "referrer": params.NewReferrer})
}

func (s *Server) handleMigrateReferralNetwork(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params migrateNetworkParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	callerAddr, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	fromAddr, err := decodeBech32(params.FromUser)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid fromUser address", err.Error())
		return
	}
	toAddr, err := decodeBech32(params.ToReferrer)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid toReferrer address", err.Error())
		return
	}
	migrated, err := s.node.MigrateReferralNetwork(callerAddr, fromAddr, toAddr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "failed to migrate referral network", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]any{
		"fromUser":      params.FromUser,
		"toReferrer":    params.ToReferrer,
		"migratedCount": migrated,
	})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params subscribeParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	callerAddr, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	id, err := resolveContentID(params.ContentID, params.ContentKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	var referrerAddr [20]byte
	if strings.TrimSpace(params.Referrer) != "" {
		referrerAddr, err = decodeBech32(params.Referrer)
		if err != nil {
			writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid referrer address", err.Error())
			return
		}
	}
	payment, err := parseAmount(params.Payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	sub, err := s.node.Subscribe(callerAddr, id, referrerAddr, payment)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "failed to subscribe", err.Error())
		return
	}
	writeResult(w, req.ID, formatSubscription(sub))
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params cancelSubscriptionParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	callerAddr, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	id, err := resolveContentID(params.ContentID, params.ContentKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	sub, err := s.node.CancelSubscription(callerAddr, id)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "failed to cancel subscription", err.Error())
		return
	}
	writeResult(w, req.ID, formatSubscription(sub))
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params withdrawParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	callerAddr, err := decodeBech32(params.Caller)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid caller address", err.Error())
		return
	}
	amount, err := s.node.Withdraw(callerAddr)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "failed to withdraw", err.Error())
		return
	}
	writeResult(w, req.ID, withdrawResult{Address: params.Caller, Amount: bigString(amount)})
}

func (s *Server) handleGetContent(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params contentQueryParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	id, err := resolveContentID(params.ContentID, params.ContentKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	content, err := s.node.Content(id)
	if err != nil {
		writeError(w, http.StatusNotFound, req.ID, codeServerError, "content not found", err.Error())
		return
	}
	writeResult(w, req.ID, formatContent(content))
}

func (s *Server) handleGetCommission(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params addressParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, err := decodeBech32(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	pending, err := s.node.PendingCommission(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load pending commission", err.Error())
		return
	}
	writeResult(w, req.ID, commissionResult{Address: params.Address, Pending: bigString(pending)})
}

func (s *Server) handleGetReferrer(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params addressParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, err := decodeBech32(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	referrer, err := s.node.ReferrerOf(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load referrer", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]string{
		"address":  params.Address,
		"referrer": formatOptionalAddress(referrer),
	})
}

func (s *Server) handleGetReferredUsers(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params referredUsersParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, err := decodeBech32(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	users, total, err := s.node.ReferredUsers(addr, params.Offset, params.Limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeServerError, "failed to load referred users", err.Error())
		return
	}
	encoded := make([]string, 0, len(users))
	for _, user := range users {
		encoded = append(encoded, formatAddress(user))
	}
	writeResult(w, req.ID, referredUsersResult{
		Referrer: params.Address,
		Users:    encoded,
		Total:    total,
		Offset:   params.Offset,
	})
}

func (s *Server) handleGetReferralChain(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params addressParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, err := decodeBech32(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	chain, err := s.node.ReferralChain(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load referral chain", err.Error())
		return
	}
	encoded := make([]string, 0, len(chain))
	for _, ancestor := range chain {
		encoded = append(encoded, formatAddress(ancestor))
	}
	writeResult(w, req.ID, referralChainResult{Address: params.Address, Chain: encoded})
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params subscriptionQueryParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, err := decodeBech32(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	id, err := resolveContentID(params.ContentID, params.ContentKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	sub, err := s.node.SubscriptionOf(addr, id)
	if err != nil {
		writeError(w, http.StatusNotFound, req.ID, codeServerError, "subscription not found", err.Error())
		return
	}
	writeResult(w, req.ID, formatSubscription(sub))
}

func (s *Server) handleGetSubscriptionStatus(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params subscriptionQueryParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, err := decodeBech32(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	id, err := resolveContentID(params.ContentID, params.ContentKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, err.Error(), nil)
		return
	}
	active, expiresAt, err := s.node.SubscriptionStatus(addr, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load subscription status", err.Error())
		return
	}
	writeResult(w, req.ID, subscriptionStatusResult{Active: active, ExpiresAt: expiresAt})
}

func (s *Server) handleGetActiveSubscriptionCount(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params addressParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, err := decodeBech32(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	count, err := s.node.ActiveSubscriptionCount(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load subscription count", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]any{
		"address": params.Address,
		"count":   count,
	})
}

func (s *Server) handleGetTotals(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	totals, err := s.node.CommissionTotals()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load totals", err.Error())
		return
	}
	writeResult(w, req.ID, totalsResult{
		Received:    bigString(totals.Received),
		CreatorPaid: bigString(totals.CreatorPaid),
		Distributed: bigString(totals.Distributed),
		Withdrawn:   bigString(totals.Withdrawn),
	})
}

func (s *Server) handleGetParams(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	params := s.node.CommissionParams()
	writeResult(w, req.ID, paramsResult{
		CommissionRate:        params.CommissionRate,
		MinDistributionAmount: bigString(params.MinDistributionAmount),
		SubscriptionPeriod:    params.SubscriptionPeriod,
		MaxReferralDepth:      params.MaxReferralDepth,
	})
}

func (s *Server) handleGetOwner(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	owner, err := s.node.Owner()
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load owner", err.Error())
		return
	}
	writeResult(w, req.ID, map[string]string{"owner": formatOptionalAddress(owner)})
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request, req *RPCRequest) {
	var params addressParams
	if rpcErr := decodeSingleParam(req, &params); rpcErr != nil {
		writeError(w, http.StatusBadRequest, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	addr, err := decodeBech32(params.Address)
	if err != nil {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidParams, "invalid address", err.Error())
		return
	}
	account, err := s.node.Balance(addr)
	if err != nil {
		writeError(w, http.StatusInternalServerError, req.ID, codeServerError, "failed to load account", err.Error())
		return
	}
	writeResult(w, req.ID, balanceResult{
		Address: params.Address,
		Balance: bigString(account.Balance),
		Nonce:   account.Nonce,
	})
}
