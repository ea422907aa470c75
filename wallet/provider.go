package wallet

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"notes-dapp/program"
	"notes-dapp/solana"
)

// RPC is the node API a connection hands to the program client.
type RPC interface {
	program.RPC
	GetBalance(ctx context.Context, pk solana.PublicKey) (uint64, error)
}

// Provider binds the one configured cluster to the one wallet adapter.
type Provider struct {
	rpc       RPC
	endpoint  string
	adapter   *Adapter
	programID solana.PublicKey
	recorder  program.Recorder
	log       logrus.FieldLogger
}

type ProviderOption func(*Provider)

func WithProgramID(id solana.PublicKey) ProviderOption {
	return func(p *Provider) { p.programID = id }
}

// WithRecorder journals transactions submitted through any connection.
func WithRecorder(r program.Recorder) ProviderOption {
	return func(p *Provider) { p.recorder = r }
}

func WithLogger(l logrus.FieldLogger) ProviderOption {
	return func(p *Provider) { p.log = l }
}

func NewProvider(rpc RPC, endpoint string, adapter *Adapter, opts ...ProviderOption) *Provider {
	p := &Provider{
		rpc:       rpc,
		endpoint:  endpoint,
		adapter:   adapter,
		programID: program.DefaultProgramID,
		log:       logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Provider) Endpoint() string            { return p.endpoint }
func (p *Provider) Adapter() *Adapter           { return p.adapter }
func (p *Provider) ProgramID() solana.PublicKey { return p.programID }

// Connect unlocks label through the adapter and returns a live connection.
func (p *Provider) Connect(ctx context.Context, label, passphrase string) (*Connection, error) {
	w, err := p.adapter.Connect(ctx, label, passphrase)
	if err != nil {
		return nil, err
	}
	return p.Attach(w), nil
}

// Attach wraps an already connected wallet.
func (p *Provider) Attach(w Wallet) *Connection {
	return &Connection{provider: p, wallet: w}
}

// Connection is the wallet state the page reads: whether a wallet is
// connected, who it is, and whether it can sign.
type Connection struct {
	provider *Provider

	mu     sync.RWMutex
	wallet Wallet
}

func (c *Connection) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.wallet != nil
}

// PublicKey reports the connected identity; ok is false after Disconnect.
func (c *Connection) PublicKey() (pk solana.PublicKey, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.wallet == nil {
		return solana.PublicKey{}, false
	}
	return c.wallet.PublicKey(), true
}

func (c *Connection) CanSign() bool {
	return c.Connected()
}

func (c *Connection) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.wallet != nil {
		c.provider.log.WithField("address", c.wallet.PublicKey().String()).Info("wallet disconnected")
	}
	c.wallet = nil
}

// Program returns a program handle bound to the connected wallet, or
// program.ErrWalletNotConnected.
func (c *Connection) Program() (*program.Client, error) {
	c.mu.RLock()
	w := c.wallet
	c.mu.RUnlock()
	if w == nil {
		return nil, program.ErrWalletNotConnected
	}
	opts := []program.ClientOption{
		program.WithProgramID(c.provider.programID),
		program.WithLogger(c.provider.log),
	}
	if c.provider.recorder != nil {
		opts = append(opts, program.WithRecorder(c.provider.recorder))
	}
	return program.New(c.provider.rpc, w, opts...)
}

// NoteAddress derives the connected author's note address for title; ok is
// false when no wallet is connected or the title cannot be a seed.
func (c *Connection) NoteAddress(title string) (addr solana.PublicKey, ok bool) {
	pk, connected := c.PublicKey()
	if !connected {
		return solana.PublicKey{}, false
	}
	addr, _, err := program.NoteAddress(c.provider.programID, pk, title)
	return addr, err == nil
}

// Balance reads the connected wallet's lamports.
func (c *Connection) Balance(ctx context.Context) (uint64, error) {
	pk, ok := c.PublicKey()
	if !ok {
		return 0, program.ErrWalletNotConnected
	}
	return c.provider.rpc.GetBalance(ctx, pk)
}
