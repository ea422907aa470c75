package solana

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

func (c Commitment) rank() int {
	switch c {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	}
	return 0
}

// Reaches reports whether a transaction at commitment c satisfies want.
func (c Commitment) Reaches(want Commitment) bool {
	return c.rank() >= want.rank() && c.rank() > 0
}

func (c Commitment) rpc() rpc.CommitmentType {
	return rpc.CommitmentType(c)
}

func ParseCommitment(s string) (Commitment, error) {
	c := Commitment(strings.ToLower(strings.TrimSpace(s)))
	if c.rank() == 0 {
		return "", fmt.Errorf("unknown commitment %q", s)
	}
	return c, nil
}

// Request is a JSON-RPC 2.0 request envelope as a node receives it.
type Request struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC 2.0 response envelope. Clients reject unknown
// top-level fields, so it carries nothing else.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCContext accompanies results that are tied to a slot.
type RPCContext struct {
	Slot uint64 `json:"slot"`
}

// Filter narrows getProgramAccounts on the node side.
type Filter = rpc.RPCFilter

// Memcmp matches accounts whose data holds b at offset.
func Memcmp(offset uint64, b []byte) Filter {
	return Filter{Memcmp: &rpc.RPCFilterMemcmp{Offset: offset, Bytes: solanago.Base58(b)}}
}

// MatchFilter applies f to raw account data the way a node does.
func MatchFilter(f Filter, data []byte) bool {
	if f.DataSize != 0 && uint64(len(data)) != f.DataSize {
		return false
	}
	if f.Memcmp != nil {
		end := f.Memcmp.Offset + uint64(len(f.Memcmp.Bytes))
		if end > uint64(len(data)) {
			return false
		}
		if !bytes.Equal(data[f.Memcmp.Offset:end], f.Memcmp.Bytes) {
			return false
		}
	}
	return true
}

type Account struct {
	Lamports   uint64
	Owner      PublicKey
	Data       []byte
	Executable bool
	RentEpoch  uint64
}

type KeyedAccount struct {
	PublicKey PublicKey
	Account   Account
}

// EncodeAccount renders a as a node returns it with base64 data.
func EncodeAccount(a Account) *rpc.Account {
	return &rpc.Account{
		Lamports:   a.Lamports,
		Owner:      a.Owner,
		Data:       rpc.DataBytesOrJSONFromBytes(a.Data),
		Executable: a.Executable,
		Space:      uint64(len(a.Data)),
	}
}

func decodeAccount(a *rpc.Account) (Account, error) {
	if a == nil {
		return Account{}, fmt.Errorf("missing account")
	}
	out := Account{
		Lamports:   a.Lamports,
		Owner:      a.Owner,
		Executable: a.Executable,
	}
	if a.Data != nil {
		out.Data = a.Data.GetBinary()
	}
	if a.RentEpoch != nil && a.RentEpoch.IsUint64() {
		out.RentEpoch = a.RentEpoch.Uint64()
	}
	return out, nil
}

type LatestBlockhash struct {
	Blockhash            Hash
	LastValidBlockHeight uint64
}

type SignatureStatus struct {
	Slot               uint64          `json:"slot"`
	Confirmations      *uint64         `json:"confirmations"`
	Err                json.RawMessage `json:"err"`
	ConfirmationStatus Commitment      `json:"confirmationStatus"`
}

// Failed reports whether the transaction landed with an error.
func (s *SignatureStatus) Failed() bool {
	return len(s.Err) > 0 && string(s.Err) != "null"
}

func signatureStatus(r *rpc.SignatureStatusesResult) (*SignatureStatus, error) {
	if r == nil {
		return nil, nil
	}
	st := &SignatureStatus{
		Slot:               r.Slot,
		Confirmations:      r.Confirmations,
		ConfirmationStatus: Commitment(r.ConfirmationStatus),
	}
	if r.Err != nil {
		raw, err := json.Marshal(r.Err)
		if err != nil {
			return nil, fmt.Errorf("encode status error: %w", err)
		}
		st.Err = raw
	}
	return st, nil
}
