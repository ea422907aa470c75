package localnet

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"

	"notes-dapp/solana"
)

type handlerFunc func(c *Cluster, params []json.RawMessage) (any, *solana.RPCError)

var methods = map[string]handlerFunc{
	"getHealth":                         (*Cluster).rpcHealth,
	"getSlot":                           (*Cluster).rpcSlot,
	"getLatestBlockhash":                (*Cluster).rpcLatestBlockhash,
	"getProgramAccounts":                (*Cluster).rpcProgramAccounts,
	"getAccountInfo":                    (*Cluster).rpcAccountInfo,
	"getBalance":                        (*Cluster).rpcBalance,
	"getMinimumBalanceForRentExemption": (*Cluster).rpcRentExemption,
	"requestAirdrop":                    (*Cluster).rpcAirdrop,
	"sendTransaction":                   (*Cluster).rpcSendTransaction,
	"getSignatureStatuses":              (*Cluster).rpcSignatureStatuses,
}

// ServeHTTP answers JSON-RPC 2.0 requests the way a validator's RPC port does.
func (c *Cluster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req solana.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, solana.Response{JSONRPC: "2.0", Error: &solana.RPCError{Code: solana.CodeParseError, Message: "Parse error"}})
		return
	}

	resp := solana.Response{JSONRPC: "2.0", ID: req.ID}
	h, ok := methods[req.Method]
	if !ok {
		resp.Error = &solana.RPCError{Code: solana.CodeMethodNotFound, Message: "Method not found"}
		writeResponse(w, resp)
		return
	}

	result, rpcErr := h(c, req.Params)
	if rpcErr != nil {
		c.log.WithFields(logrus.Fields{"method": req.Method, "code": rpcErr.Code}).Debug(rpcErr.Message)
		resp.Error = rpcErr
		writeResponse(w, resp)
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		resp.Error = &solana.RPCError{Code: solana.CodeInternalError, Message: err.Error()}
	} else {
		resp.Result = raw
	}
	writeResponse(w, resp)
}

func writeResponse(w http.ResponseWriter, resp solana.Response) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func invalidParams(format string, args ...any) *solana.RPCError {
	return &solana.RPCError{Code: solana.CodeInvalidParams, Message: "Invalid params: " + fmt.Sprintf(format, args...)}
}

func param(params []json.RawMessage, i int, v any) *solana.RPCError {
	if i >= len(params) {
		return invalidParams("missing parameter %d", i)
	}
	if err := json.Unmarshal(params[i], v); err != nil {
		return invalidParams("%v", err)
	}
	return nil
}

type withContext struct {
	Context solana.RPCContext `json:"context"`
	Value   any               `json:"value"`
}

func (c *Cluster) rpcHealth([]json.RawMessage) (any, *solana.RPCError) {
	return "ok", nil
}

func (c *Cluster) rpcSlot([]json.RawMessage) (any, *solana.RPCError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slot, nil
}

func (c *Cluster) rpcLatestBlockhash([]json.RawMessage) (any, *solana.RPCError) {
	c.mu.Lock()
	defer c.mu.Unlock()
	h, lastValid := c.latestBlockhash()
	return withContext{
		Context: solana.RPCContext{Slot: c.slot},
		Value: map[string]any{
			"blockhash":            h.String(),
			"lastValidBlockHeight": lastValid,
		},
	}, nil
}

func (c *Cluster) rpcProgramAccounts(params []json.RawMessage) (any, *solana.RPCError) {
	var owner solana.PublicKey
	if err := param(params, 0, &owner); err != nil {
		return nil, err
	}
	var cfg struct {
		Encoding string          `json:"encoding"`
		Filters  []solana.Filter `json:"filters"`
	}
	if len(params) > 1 {
		if err := param(params, 1, &cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Encoding != "" && cfg.Encoding != "base64" {
		return nil, invalidParams("unsupported encoding %q", cfg.Encoding)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := rpc.GetProgramAccountsResult{}
	for pk, acc := range c.accounts {
		if acc.Owner != owner || !matchAll(cfg.Filters, acc.Data) {
			continue
		}
		out = append(out, &rpc.KeyedAccount{Pubkey: pk, Account: solana.EncodeAccount(acc)})
	}
	return out, nil
}

func matchAll(filters []solana.Filter, data []byte) bool {
	for _, f := range filters {
		if !solana.MatchFilter(f, data) {
			return false
		}
	}
	return true
}

func (c *Cluster) rpcAccountInfo(params []json.RawMessage) (any, *solana.RPCError) {
	var pk solana.PublicKey
	if err := param(params, 0, &pk); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	res := withContext{Context: solana.RPCContext{Slot: c.slot}}
	if acc, ok := c.accounts[pk]; ok {
		res.Value = solana.EncodeAccount(acc)
	}
	return res, nil
}

func (c *Cluster) rpcBalance(params []json.RawMessage) (any, *solana.RPCError) {
	var pk solana.PublicKey
	if err := param(params, 0, &pk); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return withContext{Context: solana.RPCContext{Slot: c.slot}, Value: c.accounts[pk].Lamports}, nil
}

func (c *Cluster) rpcRentExemption(params []json.RawMessage) (any, *solana.RPCError) {
	var size int
	if err := param(params, 0, &size); err != nil {
		return nil, err
	}
	return RentExempt(size), nil
}

func (c *Cluster) rpcAirdrop(params []json.RawMessage) (any, *solana.RPCError) {
	var pk solana.PublicKey
	if err := param(params, 0, &pk); err != nil {
		return nil, err
	}
	var lamports uint64
	if err := param(params, 1, &lamports); err != nil {
		return nil, err
	}
	return c.Airdrop(pk, lamports), nil
}

func (c *Cluster) rpcSendTransaction(params []json.RawMessage) (any, *solana.RPCError) {
	var encoded string
	if err := param(params, 0, &encoded); err != nil {
		return nil, err
	}
	var cfg struct {
		Encoding string `json:"encoding"`
	}
	if len(params) > 1 {
		if err := param(params, 1, &cfg); err != nil {
			return nil, err
		}
	}
	if cfg.Encoding != "base64" {
		return nil, invalidParams("only base64 transactions are accepted")
	}
	wire, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, invalidParams("invalid base64 encoding: %v", err)
	}
	tx, err := solana.DecodeTransaction(wire)
	if err != nil {
		return nil, invalidParams("failed to deserialize transaction: %v", err)
	}

	sig, err := c.process(tx)
	if err == nil {
		return sig, nil
	}
	if errors.Is(err, errSignatureFailure) {
		return nil, &solana.RPCError{Code: codeSignatureVerificationFailure, Message: "Transaction signature verification failure"}
	}
	var failure *txFailure
	if errors.As(err, &failure) {
		data, _ := json.Marshal(map[string]any{
			"err":  failure.err,
			"logs": failure.logs,
		})
		return nil, &solana.RPCError{
			Code:    solana.CodeSendTransactionFailed,
			Message: "Transaction simulation failed: " + failure.Error(),
			Data:    data,
		}
	}
	return nil, &solana.RPCError{Code: solana.CodeInternalError, Message: err.Error()}
}

const codeSignatureVerificationFailure = -32003

func (c *Cluster) rpcSignatureStatuses(params []json.RawMessage) (any, *solana.RPCError) {
	var encoded []string
	if err := param(params, 0, &encoded); err != nil {
		return nil, err
	}
	statuses := make([]*solana.SignatureStatus, len(encoded))
	for i, s := range encoded {
		sig, err := solana.SignatureFromBase58(strings.TrimSpace(s))
		if err != nil {
			return nil, invalidParams("%v", err)
		}
		statuses[i] = c.signatureStatus(sig)
	}
	c.mu.Lock()
	slot := c.slot
	c.mu.Unlock()
	return withContext{Context: solana.RPCContext{Slot: slot}, Value: statuses}, nil
}
