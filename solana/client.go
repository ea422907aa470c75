package solana

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"github.com/sirupsen/logrus"
)

var ErrTransactionNotConfirmed = errors.New("transaction not confirmed")

// Observer is told about every RPC round trip. Used for metrics.
type Observer interface {
	ObserveRPC(method string, err error, elapsed time.Duration)
}

// Client talks JSON-RPC 2.0 to a Solana node.
type Client struct {
	endpoint     string
	http         *http.Client
	rpc          *rpc.Client
	commitment   Commitment
	pollInterval time.Duration
	observer     Observer
	log          logrus.FieldLogger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

func WithCommitment(commitment Commitment) Option {
	return func(c *Client) { c.commitment = commitment }
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) { c.pollInterval = d }
}

func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) { c.log = l }
}

func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:     endpoint,
		http:         &http.Client{Timeout: 30 * time.Second},
		commitment:   CommitmentConfirmed,
		pollInterval: 500 * time.Millisecond,
		log:          logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.rpc = rpc.NewWithCustomRPCClient(jsonrpc.NewClientWithOpts(endpoint, &jsonrpc.RPCClientOpts{HTTPClient: c.http}))
	return c
}

func (c *Client) Endpoint() string       { return c.endpoint }
func (c *Client) Commitment() Commitment { return c.commitment }

// observe wraps one round trip with metrics, debug logging and error mapping.
func (c *Client) observe(method string, call func() error) (err error) {
	start := time.Now()
	defer func() {
		if c.observer != nil {
			c.observer.ObserveRPC(method, err, time.Since(start))
		}
		c.log.WithFields(logrus.Fields{
			"method":  method,
			"elapsed": time.Since(start),
		}).Debug("rpc call")
	}()

	err = call()
	if err == nil {
		return nil
	}
	var remote *jsonrpc.RPCError
	if errors.As(err, &remote) {
		return fromRemote(remote)
	}
	if errors.Is(err, rpc.ErrNotFound) {
		return err
	}
	return fmt.Errorf("%s: %w", method, err)
}

func fromRemote(e *jsonrpc.RPCError) *RPCError {
	out := &RPCError{Code: e.Code, Message: e.Message}
	if e.Data != nil {
		if raw, err := json.Marshal(e.Data); err == nil {
			out.Data = raw
		}
	}
	return out
}

func (c *Client) GetLatestBlockhash(ctx context.Context) (LatestBlockhash, error) {
	var res *rpc.GetLatestBlockhashResult
	err := c.observe("getLatestBlockhash", func() (err error) {
		res, err = c.rpc.GetLatestBlockhash(ctx, c.commitment.rpc())
		return err
	})
	if err != nil {
		return LatestBlockhash{}, err
	}
	if res == nil || res.Value == nil {
		return LatestBlockhash{}, fmt.Errorf("getLatestBlockhash: empty result")
	}
	return LatestBlockhash{Blockhash: res.Value.Blockhash, LastValidBlockHeight: res.Value.LastValidBlockHeight}, nil
}

// GetProgramAccounts returns every account owned by programID that passes all filters.
func (c *Client) GetProgramAccounts(ctx context.Context, programID PublicKey, filters ...Filter) ([]KeyedAccount, error) {
	var res rpc.GetProgramAccountsResult
	err := c.observe("getProgramAccounts", func() (err error) {
		res, err = c.rpc.GetProgramAccountsWithOpts(ctx, programID, &rpc.GetProgramAccountsOpts{
			Commitment: c.commitment.rpc(),
			Encoding:   "base64",
			Filters:    filters,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([]KeyedAccount, 0, len(res))
	for _, r := range res {
		if r == nil {
			continue
		}
		acc, err := decodeAccount(r.Account)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", r.Pubkey, err)
		}
		out = append(out, KeyedAccount{PublicKey: r.Pubkey, Account: acc})
	}
	return out, nil
}

// GetAccountInfo returns nil without error when the account does not exist.
func (c *Client) GetAccountInfo(ctx context.Context, pk PublicKey) (*Account, error) {
	var res *rpc.GetAccountInfoResult
	err := c.observe("getAccountInfo", func() (err error) {
		res, err = c.rpc.GetAccountInfoWithOpts(ctx, pk, &rpc.GetAccountInfoOpts{
			Commitment: c.commitment.rpc(),
			Encoding:   "base64",
		})
		return err
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	acc, err := decodeAccount(res.Value)
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (c *Client) GetBalance(ctx context.Context, pk PublicKey) (uint64, error) {
	var res *rpc.GetBalanceResult
	err := c.observe("getBalance", func() (err error) {
		res, err = c.rpc.GetBalance(ctx, pk, c.commitment.rpc())
		return err
	})
	if err != nil {
		return 0, err
	}
	if res == nil {
		return 0, nil
	}
	return res.Value, nil
}

func (c *Client) RequestAirdrop(ctx context.Context, pk PublicKey, lamports uint64) (Signature, error) {
	var sig Signature
	err := c.observe("requestAirdrop", func() (err error) {
		sig, err = c.rpc.RequestAirdrop(ctx, pk, lamports, c.commitment.rpc())
		return err
	})
	return sig, err
}

// SendTransaction submits a signed transaction with preflight simulation.
func (c *Client) SendTransaction(ctx context.Context, tx *Transaction) (Signature, error) {
	var sig Signature
	err := c.observe("sendTransaction", func() (err error) {
		sig, err = c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
			PreflightCommitment: c.commitment.rpc(),
		})
		return err
	})
	if err != nil {
		return Signature{}, err
	}
	return sig, nil
}

// GetSignatureStatuses returns one entry per signature, nil for those the
// node has not seen.
func (c *Client) GetSignatureStatuses(ctx context.Context, sigs ...Signature) ([]*SignatureStatus, error) {
	var res *rpc.GetSignatureStatusesResult
	err := c.observe("getSignatureStatuses", func() (err error) {
		res, err = c.rpc.GetSignatureStatuses(ctx, false, sigs...)
		return err
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return make([]*SignatureStatus, len(sigs)), nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]*SignatureStatus, len(res.Value))
	for i, r := range res.Value {
		if out[i], err = signatureStatus(r); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// ConfirmTransaction polls until sig reaches the client commitment, fails on
// chain, or ctx is done.
func (c *Client) ConfirmTransaction(ctx context.Context, sig Signature) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		statuses, err := c.GetSignatureStatuses(ctx, sig)
		if err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("%w: %s: %v", ErrTransactionNotConfirmed, sig, ctx.Err())
			}
			return err
		}
		if len(statuses) == 1 && statuses[0] != nil {
			st := statuses[0]
			if st.Failed() {
				if txErr := ParseTransactionError(st.Err); txErr != nil {
					return txErr
				}
				return fmt.Errorf("transaction %s failed: %s", sig, st.Err)
			}
			if st.ConfirmationStatus.Reaches(c.commitment) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s: %v", ErrTransactionNotConfirmed, sig, ctx.Err())
		case <-ticker.C:
		}
	}
}

// SendAndConfirm is SendTransaction followed by ConfirmTransaction.
func (c *Client) SendAndConfirm(ctx context.Context, tx *Transaction) (Signature, error) {
	sig, err := c.SendTransaction(ctx, tx)
	if err != nil {
		return Signature{}, err
	}
	if err := c.ConfirmTransaction(ctx, sig); err != nil {
		return sig, err
	}
	return sig, nil
}
