// Package localnet is an in-process Solana cluster that serves the JSON-RPC
// subset this client uses and executes the notes program. It backs the
// "simulated" cluster of the serve command and the end-to-end tests.
package localnet

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"notes-dapp/program"
	"notes-dapp/solana"
)

const (
	LamportsPerSignature = 5000
	LamportsPerSOL       = 1_000_000_000

	recentBlockhashes = 150
)

// RentExempt is the balance an account of size bytes needs to be rent exempt.
func RentExempt(size int) uint64 {
	return uint64(128+size) * 3480 * 2
}

// Cluster holds the accounts of a single-node ledger.
type Cluster struct {
	mu          sync.Mutex
	programID   solana.PublicKey
	accounts    map[solana.PublicKey]solana.Account
	statuses    map[solana.Signature]*solana.SignatureStatus
	blockhashes []solana.Hash
	slot        uint64
	received    int
	faucet      uint64
	clock       func() time.Time
	log         logrus.FieldLogger
}

type Option func(*Cluster)

func WithProgramID(id solana.PublicKey) Option {
	return func(c *Cluster) { c.programID = id }
}

// WithClock sets the source of on-chain timestamps.
func WithClock(clock func() time.Time) Option {
	return func(c *Cluster) { c.clock = clock }
}

// WithFaucet credits lamports to any fee payer seen with an empty balance.
func WithFaucet(lamports uint64) Option {
	return func(c *Cluster) { c.faucet = lamports }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Cluster) { c.log = l }
}

func New(opts ...Option) *Cluster {
	c := &Cluster{
		programID: program.DefaultProgramID,
		accounts:  map[solana.PublicKey]solana.Account{},
		statuses:  map[solana.Signature]*solana.SignatureStatus{},
		slot:      1,
		clock:     time.Now,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.accounts[c.programID] = solana.Account{Lamports: 1, Owner: bpfLoader, Executable: true}
	return c
}

var bpfLoader = solana.MustPublicKeyFromBase58("BPFLoaderUpgradeab1e11111111111111111111111")

func (c *Cluster) ProgramID() solana.PublicKey { return c.programID }

// Received counts sendTransaction calls, successful or not.
func (c *Cluster) Received() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.received
}

func (c *Cluster) Balance(pk solana.PublicKey) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accounts[pk].Lamports
}

// Account returns a copy of the account at pk.
func (c *Cluster) Account(pk solana.PublicKey) (solana.Account, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc, ok := c.accounts[pk]
	if ok {
		acc.Data = append([]byte(nil), acc.Data...)
	}
	return acc, ok
}

// Airdrop credits lamports to pk and records a confirmed pseudo transaction.
func (c *Cluster) Airdrop(pk solana.PublicKey, lamports uint64) solana.Signature {
	c.mu.Lock()
	defer c.mu.Unlock()
	acc := c.accounts[pk]
	acc.Lamports += lamports
	c.accounts[pk] = acc

	var sig solana.Signature
	h := sha256.Sum256(binary.LittleEndian.AppendUint64(append([]byte("airdrop"), pk[:]...), c.slot))
	copy(sig[:], h[:])
	c.slot++
	c.statuses[sig] = &solana.SignatureStatus{Slot: c.slot, ConfirmationStatus: solana.CommitmentFinalized}
	return sig
}

func (c *Cluster) latestBlockhash() (solana.Hash, uint64) {
	var seed [8]byte
	binary.LittleEndian.PutUint64(seed[:], c.slot)
	h := solana.Hash(sha256.Sum256(append([]byte("localnet"), seed[:]...)))
	if n := len(c.blockhashes); n == 0 || c.blockhashes[n-1] != h {
		c.blockhashes = append(c.blockhashes, h)
		if len(c.blockhashes) > recentBlockhashes {
			c.blockhashes = c.blockhashes[1:]
		}
	}
	return h, c.slot + recentBlockhashes
}

func (c *Cluster) knownBlockhash(h solana.Hash) bool {
	for _, known := range c.blockhashes {
		if known == h {
			return true
		}
	}
	return false
}

// txFailure is a rejected transaction: the runtime error plus program logs.
type txFailure struct {
	err  json.RawMessage
	logs []string
}

func (f *txFailure) Error() string {
	if txErr := solana.ParseTransactionError(f.err); txErr != nil {
		return txErr.Error()
	}
	return string(f.err)
}

func runtimeError(kind string) *txFailure {
	raw, _ := json.Marshal(kind)
	return &txFailure{err: raw}
}

var errSignatureFailure = errors.New("transaction signature verification failure")

// process runs tx against a copy of the touched accounts and commits on success.
func (c *Cluster) process(tx *solana.Transaction) (solana.Signature, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received++

	if len(tx.Signatures) == 0 || len(tx.Message.AccountKeys) == 0 {
		return solana.Signature{}, errSignatureFailure
	}
	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, errSignatureFailure
	}
	sig := solana.TransactionID(tx)
	if _, dup := c.statuses[sig]; dup {
		return sig, runtimeError("AlreadyProcessed")
	}
	if !c.knownBlockhash(tx.Message.RecentBlockhash) {
		return sig, runtimeError("BlockhashNotFound")
	}

	payer := tx.Message.AccountKeys[0]
	fee := uint64(LamportsPerSignature * len(tx.Signatures))
	if c.faucet > 0 && c.accounts[payer].Lamports == 0 {
		acc := c.accounts[payer]
		acc.Lamports = c.faucet
		c.accounts[payer] = acc
	}
	if c.accounts[payer].Lamports < fee {
		return sig, runtimeError("InsufficientFundsForFee")
	}

	st := &state{base: c.accounts, dirty: map[solana.PublicKey]*solana.Account{}}
	payerAcc := st.get(payer)
	payerAcc.Lamports -= fee

	var logs []string
	for i, ci := range tx.Message.Instructions {
		ix, err := solana.ResolveInstruction(&tx.Message, ci)
		if err != nil {
			return sig, &txFailure{err: solana.InstructionErrKind(i, "InvalidAccountIndex"), logs: logs}
		}
		if ix.ProgramID != c.programID {
			return sig, &txFailure{err: solana.InstructionErrKind(i, "UnsupportedProgramId"), logs: logs}
		}
		ixLogs, failure := c.executeNotes(st, i, ix)
		logs = append(logs, ixLogs...)
		if failure != nil {
			failure.logs = logs
			return sig, failure
		}
	}

	st.commit()
	c.slot++
	c.statuses[sig] = &solana.SignatureStatus{Slot: c.slot, ConfirmationStatus: solana.CommitmentFinalized}
	c.log.WithFields(logrus.Fields{"signature": sig.String(), "slot": c.slot}).Debug("localnet transaction committed")
	return sig, nil
}

// state is a copy-on-write view of the ledger used while executing one transaction.
type state struct {
	base  map[solana.PublicKey]solana.Account
	dirty map[solana.PublicKey]*solana.Account
	gone  map[solana.PublicKey]bool
}

func (s *state) exists(pk solana.PublicKey) bool {
	if s.gone[pk] {
		return false
	}
	if _, ok := s.dirty[pk]; ok {
		return true
	}
	_, ok := s.base[pk]
	return ok
}

func (s *state) get(pk solana.PublicKey) *solana.Account {
	if acc, ok := s.dirty[pk]; ok {
		return acc
	}
	var acc solana.Account
	if !s.gone[pk] {
		acc = s.base[pk]
		acc.Data = append([]byte(nil), acc.Data...)
	}
	delete(s.gone, pk)
	s.dirty[pk] = &acc
	return &acc
}

func (s *state) remove(pk solana.PublicKey) {
	if s.gone == nil {
		s.gone = map[solana.PublicKey]bool{}
	}
	delete(s.dirty, pk)
	s.gone[pk] = true
}

func (s *state) commit() {
	for pk, acc := range s.dirty {
		s.base[pk] = *acc
	}
	for pk := range s.gone {
		delete(s.base, pk)
	}
}

func (c *Cluster) signatureStatus(sig solana.Signature) *solana.SignatureStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.statuses[sig]
	if !ok {
		return nil
	}
	cp := *st
	return &cp
}

func (c *Cluster) String() string {
	return fmt.Sprintf("localnet(program=%s)", c.programID)
}
