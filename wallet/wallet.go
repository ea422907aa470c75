// Package wallet supplies the connected identity to the rest of the
// application: a keystore of sealed keypairs, the keypair adapter that opens
// them, and the provider that binds a connected wallet to a cluster.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"notes-dapp/solana"
)

// Wallet is a connected identity able to sign transactions.
type Wallet interface {
	PublicKey() solana.PublicKey
	SignTransaction(ctx context.Context, tx *solana.Transaction) error
}

// KeypairWallet signs with a keypair held in memory.
type KeypairWallet struct {
	kp *solana.Keypair
}

func NewKeypairWallet(kp *solana.Keypair) *KeypairWallet {
	return &KeypairWallet{kp: kp}
}

func (w *KeypairWallet) PublicKey() solana.PublicKey { return w.kp.PublicKey() }

func (w *KeypairWallet) SignTransaction(ctx context.Context, tx *solana.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return w.kp.SignTransaction(tx)
}

const lamportDecimals = 9

var ErrInvalidAmount = errors.New("invalid SOL amount")

// FormatSOL renders lamports as a SOL amount, e.g. "1.5 SOL".
func FormatSOL(lamports uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), -lamportDecimals).String() + " SOL"
}

// ParseSOL converts a decimal SOL amount into lamports.
func ParseSOL(s string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "SOL")))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	lamports := d.Shift(lamportDecimals)
	if lamports.Sign() <= 0 || !lamports.Equal(lamports.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, s)
	}
	if !lamports.BigInt().IsUint64() {
		return 0, fmt.Errorf("%w: %s", ErrInvalidAmount, s)
	}
	return lamports.BigInt().Uint64(), nil
}
