package solana

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rpcStub answers each method with a canned result or error.
func rpcStub(t *testing.T, answer func(r *http.Request, req Request) (any, *RPCError)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, rpcErr := answer(r, req)
		resp := Response{JSONRPC: "2.0", ID: req.ID, Error: rpcErr}
		if rpcErr == nil {
			raw, err := json.Marshal(result)
			assert.NoError(t, err)
			resp.Result = raw
		}
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetProgramAccounts(t *testing.T) {
	program := testKeypair(t, 2).PublicKey()
	author := testKeypair(t, 3).PublicKey()
	noteAddr := testKeypair(t, 4).PublicKey()

	srv := rpcStub(t, func(_ *http.Request, req Request) (any, *RPCError) {
		assert.Equal(t, "getProgramAccounts", req.Method)
		if !assert.Len(t, req.Params, 2) {
			return nil, &RPCError{Code: CodeInvalidParams}
		}

		var cfg struct {
			Encoding   string   `json:"encoding"`
			Commitment string   `json:"commitment"`
			Filters    []Filter `json:"filters"`
		}
		assert.NoError(t, json.Unmarshal(req.Params[1], &cfg))
		assert.Equal(t, "base64", cfg.Encoding)
		assert.Equal(t, "confirmed", cfg.Commitment)
		if !assert.Len(t, cfg.Filters, 1) {
			return nil, &RPCError{Code: CodeInvalidParams}
		}
		assert.Equal(t, uint64(8), cfg.Filters[0].Memcmp.Offset)
		assert.Equal(t, author[:], []byte(cfg.Filters[0].Memcmp.Bytes))

		return []*rpc.KeyedAccount{{
			Pubkey:  noteAddr,
			Account: EncodeAccount(Account{Lamports: 42, Owner: program, Data: []byte{1, 2, 3}}),
		}}, nil
	})

	client := NewClient(srv.URL)
	accounts, err := client.GetProgramAccounts(context.Background(), program, Memcmp(8, author[:]))
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, noteAddr, accounts[0].PublicKey)
	assert.Equal(t, []byte{1, 2, 3}, accounts[0].Account.Data)
	assert.Equal(t, uint64(42), accounts[0].Account.Lamports)
	assert.Equal(t, program, accounts[0].Account.Owner)
}

func TestGetAccountInfoMissing(t *testing.T) {
	srv := rpcStub(t, func(_ *http.Request, req Request) (any, *RPCError) {
		return map[string]any{"context": RPCContext{Slot: 3}, "value": nil}, nil
	})
	acc, err := NewClient(srv.URL).GetAccountInfo(context.Background(), testKeypair(t, 1).PublicKey())
	require.NoError(t, err)
	assert.Nil(t, acc)
}

func TestSendTransactionPreflightFailure(t *testing.T) {
	payer := testKeypair(t, 1)
	ix := NewInstruction(testKeypair(t, 2).PublicKey(), []*AccountMeta{Meta(payer.PublicKey()).WRITE().SIGNER()}, []byte{1})
	tx, err := NewTransaction(payer.PublicKey(), []Instruction{ix}, Hash{1})
	require.NoError(t, err)
	require.NoError(t, payer.SignTransaction(tx))

	srv := rpcStub(t, func(_ *http.Request, req Request) (any, *RPCError) {
		var encoded string
		assert.NoError(t, json.Unmarshal(req.Params[0], &encoded))
		wire, err := base64.StdEncoding.DecodeString(encoded)
		assert.NoError(t, err)
		sent, err := DecodeTransaction(wire)
		if assert.NoError(t, err) {
			assert.NoError(t, sent.VerifySignatures())
		}

		data, _ := json.Marshal(map[string]any{
			"err":  json.RawMessage(InstructionErr(0, 6001)),
			"logs": []string{"Program log: AnchorError occurred"},
		})
		return nil, &RPCError{Code: CodeSendTransactionFailed, Message: "Transaction simulation failed", Data: data}
	})

	_, err = NewClient(srv.URL).SendTransaction(context.Background(), tx)
	require.Error(t, err)

	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, CodeSendTransactionFailed, rpcErr.Code)

	code, ok := CustomErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, uint32(6001), code)

	var txErr *TransactionError
	require.True(t, errors.As(err, &txErr))
	assert.Equal(t, 0, txErr.InstructionIndex)
	assert.Equal(t, []string{"Program log: AnchorError occurred"}, txErr.Logs)
}

type recordingObserver struct {
	methods []string
	errs    []error
}

func (o *recordingObserver) ObserveRPC(method string, err error, _ time.Duration) {
	o.methods = append(o.methods, method)
	o.errs = append(o.errs, err)
}

func TestClientObserver(t *testing.T) {
	srv := rpcStub(t, func(_ *http.Request, req Request) (any, *RPCError) {
		if req.Method == "getBalance" {
			return map[string]any{"context": RPCContext{Slot: 1}, "value": 7}, nil
		}
		return nil, &RPCError{Code: CodeMethodNotFound, Message: "Method not found"}
	})
	obs := &recordingObserver{}
	client := NewClient(srv.URL, WithObserver(obs))

	balance, err := client.GetBalance(context.Background(), testKeypair(t, 1).PublicKey())
	require.NoError(t, err)
	assert.Equal(t, uint64(7), balance)

	_, err = client.RequestAirdrop(context.Background(), testKeypair(t, 1).PublicKey(), 1)
	var rpcErr *RPCError
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, CodeMethodNotFound, rpcErr.Code)

	assert.Equal(t, []string{"getBalance", "requestAirdrop"}, obs.methods)
	assert.NoError(t, obs.errs[0])
	assert.Error(t, obs.errs[1])
}

func TestConfirmTransaction(t *testing.T) {
	sig := Signature{1}

	t.Run("Polls until the commitment is reached", func(t *testing.T) {
		var calls atomic.Int32
		srv := rpcStub(t, func(_ *http.Request, req Request) (any, *RPCError) {
			n := calls.Add(1)
			status := &SignatureStatus{Slot: 1, ConfirmationStatus: CommitmentProcessed}
			if n >= 3 {
				status.ConfirmationStatus = CommitmentConfirmed
			}
			return map[string]any{"context": RPCContext{Slot: 1}, "value": []*SignatureStatus{status}}, nil
		})
		client := NewClient(srv.URL, WithPollInterval(time.Millisecond))
		require.NoError(t, client.ConfirmTransaction(context.Background(), sig))
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("Reports on-chain failure", func(t *testing.T) {
		srv := rpcStub(t, func(_ *http.Request, req Request) (any, *RPCError) {
			status := &SignatureStatus{Slot: 1, ConfirmationStatus: CommitmentConfirmed, Err: InstructionErrKind(0, "InvalidArgument")}
			return map[string]any{"value": []*SignatureStatus{status}}, nil
		})
		err := NewClient(srv.URL).ConfirmTransaction(context.Background(), sig)
		var txErr *TransactionError
		require.True(t, errors.As(err, &txErr))
		assert.Equal(t, "InvalidArgument", txErr.Kind)
	})

	t.Run("Gives up when the context ends between polls", func(t *testing.T) {
		srv := rpcStub(t, func(_ *http.Request, req Request) (any, *RPCError) {
			return map[string]any{"value": []*SignatureStatus{nil}}, nil
		})
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := NewClient(srv.URL, WithPollInterval(time.Millisecond)).ConfirmTransaction(ctx, sig)
		require.ErrorIs(t, err, ErrTransactionNotConfirmed)
	})

	t.Run("Gives up when the context ends during a status request", func(t *testing.T) {
		release := make(chan struct{})
		srv := rpcStub(t, func(r *http.Request, req Request) (any, *RPCError) {
			select {
			case <-r.Context().Done():
			case <-release:
			}
			return map[string]any{"value": []*SignatureStatus{nil}}, nil
		})
		t.Cleanup(func() { close(release) })

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := NewClient(srv.URL, WithPollInterval(time.Hour)).ConfirmTransaction(ctx, sig)
		require.ErrorIs(t, err, ErrTransactionNotConfirmed)
		require.ErrorContains(t, err, context.DeadlineExceeded.Error())
	})
}

func TestParseTransactionError(t *testing.T) {
	assert.Nil(t, ParseTransactionError(nil))
	assert.Nil(t, ParseTransactionError(json.RawMessage("null")))

	plain := ParseTransactionError(json.RawMessage(`"AccountNotFound"`))
	require.NotNil(t, plain)
	assert.Equal(t, "AccountNotFound", plain.Kind)
	assert.Equal(t, -1, plain.InstructionIndex)

	custom := ParseTransactionError(InstructionErr(2, 6004))
	require.NotNil(t, custom)
	assert.Equal(t, 2, custom.InstructionIndex)
	require.NotNil(t, custom.Custom)
	assert.Equal(t, uint32(6004), *custom.Custom)
}

func TestMatchFilter(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5}
	assert.True(t, MatchFilter(Memcmp(2, []byte{2, 3}), data))
	assert.False(t, MatchFilter(Memcmp(2, []byte{3}), data))
	assert.False(t, MatchFilter(Memcmp(5, []byte{5, 6}), data))

	assert.True(t, MatchFilter(Filter{DataSize: 6}, data))
	assert.False(t, MatchFilter(Filter{DataSize: 7}, data))
}
