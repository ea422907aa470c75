package program

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"notes-dapp/models"
	"notes-dapp/solana"
)

var (
	ErrWalletNotConnected = errors.New("wallet not connected")
	ErrTitleNotDerivable  = errors.New("title cannot be used as an address seed")
)

// RPC is the part of the node API the program client needs.
type RPC interface {
	GetLatestBlockhash(ctx context.Context) (solana.LatestBlockhash, error)
	GetProgramAccounts(ctx context.Context, programID solana.PublicKey, filters ...solana.Filter) ([]solana.KeyedAccount, error)
	SendAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Wallet is a connected, signing-capable identity.
type Wallet interface {
	PublicKey() solana.PublicKey
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// Recorder journals submitted transactions.
type Recorder interface {
	RecordTransaction(ctx context.Context, rec models.TxRecord) error
}

// Client is a handle to the notes program bound to one wallet.
type Client struct {
	rpc       RPC
	wallet    Wallet
	programID solana.PublicKey
	recorder  Recorder
	log       logrus.FieldLogger
	now       func() time.Time
}

type ClientOption func(*Client)

func WithProgramID(id solana.PublicKey) ClientOption {
	return func(c *Client) { c.programID = id }
}

func WithRecorder(r Recorder) ClientOption {
	return func(c *Client) { c.recorder = r }
}

func WithLogger(l logrus.FieldLogger) ClientOption {
	return func(c *Client) { c.log = l }
}

// New returns a program handle, or ErrWalletNotConnected when there is no
// wallet to sign with.
func New(rpc RPC, wallet Wallet, opts ...ClientOption) (*Client, error) {
	if wallet == nil {
		return nil, ErrWalletNotConnected
	}
	c := &Client{
		rpc:       rpc,
		wallet:    wallet,
		programID: DefaultProgramID,
		log:       logrus.StandardLogger(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) ProgramID() solana.PublicKey { return c.programID }
func (c *Client) Author() solana.PublicKey    { return c.wallet.PublicKey() }

// NoteAddress derives the address of the connected author's note titled title.
func (c *Client) NoteAddress(title string) (solana.PublicKey, error) {
	addr, _, err := NoteAddress(c.programID, c.Author(), title)
	if err != nil {
		if errors.Is(err, solana.ErrMaxSeedLengthExceeded) {
			return solana.PublicKey{}, fmt.Errorf("%w: %v", ErrTitleNotDerivable, err)
		}
		return solana.PublicKey{}, err
	}
	return addr, nil
}

// ListNotes fetches every note whose stored author is author, newest first.
func (c *Client) ListNotes(ctx context.Context, author solana.PublicKey) ([]models.NoteAccount, error) {
	accounts, err := c.rpc.GetProgramAccounts(ctx, c.programID, AuthorFilters(author)...)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	notes := make([]models.NoteAccount, 0, len(accounts))
	for _, acc := range accounts {
		n, err := DecodeNote(acc.Account.Data)
		if err != nil {
			c.log.WithError(err).WithField("address", acc.PublicKey.String()).Warn("skipping undecodable note account")
			continue
		}
		notes = append(notes, models.NoteAccount{Address: acc.PublicKey, Note: n})
	}
	sort.Slice(notes, func(i, j int) bool {
		if !notes[i].CreatedAt.Equal(notes[j].CreatedAt) {
			return notes[i].CreatedAt.After(notes[j].CreatedAt)
		}
		return bytes.Compare(notes[i].Address[:], notes[j].Address[:]) < 0
	})
	return notes, nil
}

func (c *Client) CreateNote(ctx context.Context, title, content string) (solana.Signature, error) {
	addr, err := c.NoteAddress(title)
	if err != nil {
		return solana.Signature{}, err
	}
	ix := CreateNoteInstruction(c.programID, addr, c.Author(), title, content)
	return c.submit(ctx, OpCreate, addr, ix)
}

// UpdateNote replaces the content of the author's note titled title.
func (c *Client) UpdateNote(ctx context.Context, title, content string) (solana.Signature, error) {
	addr, err := c.NoteAddress(title)
	if err != nil {
		return solana.Signature{}, err
	}
	ix := UpdateNoteInstruction(c.programID, addr, c.Author(), content)
	return c.submit(ctx, OpUpdate, addr, ix)
}

func (c *Client) DeleteNote(ctx context.Context, title string) (solana.Signature, error) {
	addr, err := c.NoteAddress(title)
	if err != nil {
		return solana.Signature{}, err
	}
	ix := DeleteNoteInstruction(c.programID, addr, c.Author())
	return c.submit(ctx, OpDelete, addr, ix)
}

func (c *Client) submit(ctx context.Context, op Operation, note solana.PublicKey, ix solana.Instruction) (solana.Signature, error) {
	log := c.log.WithFields(logrus.Fields{
		"op":     string(op),
		"note":   note.String(),
		"author": c.Author().String(),
	})

	bh, err := c.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%s: latest blockhash: %w", op, err)
	}
	tx, err := solana.NewTransaction(c.Author(), []solana.Instruction{ix}, bh.Blockhash)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("%s: build transaction: %w", op, err)
	}
	if err := c.wallet.SignTransaction(ctx, tx); err != nil {
		return solana.Signature{}, fmt.Errorf("%s: sign: %w", op, err)
	}

	sig, err := c.rpc.SendAndConfirm(ctx, tx)
	if sig.IsZero() {
		sig = solana.TransactionID(tx)
	}
	c.record(ctx, op, note, sig, err)
	if err != nil {
		if perr, ok := ParseError(err); ok {
			log = log.WithField("program_error", perr.Name)
		}
		log.WithError(err).Warn("transaction failed")
		return sig, fmt.Errorf("%s: %w", op, err)
	}
	log.WithField("signature", sig.String()).Info("transaction confirmed")
	return sig, nil
}

func (c *Client) record(ctx context.Context, op Operation, note solana.PublicKey, sig solana.Signature, err error) {
	if c.recorder == nil {
		return
	}
	rec := models.TxRecord{
		Signature:   sig,
		Wallet:      c.Author(),
		Operation:   string(op),
		NoteAddress: note,
		Status:      models.TxStatusConfirmed,
		CreatedAt:   c.now().UTC(),
	}
	if err != nil {
		rec.Status = models.TxStatusFailed
		rec.Error = err.Error()
	}
	if rerr := c.recorder.RecordTransaction(ctx, rec); rerr != nil {
		c.log.WithError(rerr).Warn("could not journal transaction")
	}
}
