package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"notes-dapp/solana"
)

// AdapterName is the only wallet adapter this build supports.
const AdapterName = "keypair"

// Adapter connects wallets whose keys live in a Keystore.
type Adapter struct {
	store Keystore
	log   logrus.FieldLogger
}

func NewAdapter(store Keystore, log logrus.FieldLogger) *Adapter {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Adapter{store: store, log: log.WithField("adapter", AdapterName)}
}

func (a *Adapter) Name() string { return AdapterName }

// Connect unlocks the wallet stored under label.
func (a *Adapter) Connect(ctx context.Context, label, passphrase string) (Wallet, error) {
	sealed, err := a.store.LoadKey(ctx, label)
	if err != nil {
		return nil, err
	}
	kp, err := sealed.Open(passphrase)
	if err != nil {
		a.log.WithField("label", label).Warn("wallet unlock failed")
		return nil, err
	}
	a.log.WithFields(logrus.Fields{"label": label, "address": sealed.Address.String()}).Info("wallet connected")
	return NewKeypairWallet(kp), nil
}

// Import seals kp under label.
func (a *Adapter) Import(ctx context.Context, label string, kp *solana.Keypair, passphrase string) (solana.PublicKey, error) {
	sealed, err := Seal(label, kp, passphrase)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if err := a.store.SaveKey(ctx, sealed); err != nil {
		return solana.PublicKey{}, fmt.Errorf("save wallet %q: %w", label, err)
	}
	return sealed.Address, nil
}

// Create generates a fresh keypair and stores it under label.
func (a *Adapter) Create(ctx context.Context, label, passphrase string) (solana.PublicKey, error) {
	kp, err := solana.NewKeypair()
	if err != nil {
		return solana.PublicKey{}, err
	}
	return a.Import(ctx, label, kp, passphrase)
}

// EnsureImported seals kp under label unless that label already holds it.
func (a *Adapter) EnsureImported(ctx context.Context, label string, kp *solana.Keypair, passphrase string) error {
	existing, err := a.store.LoadKey(ctx, label)
	switch {
	case err == nil:
		if existing.Address != kp.PublicKey() {
			return fmt.Errorf("%w: %q holds %s", ErrKeyExists, label, existing.Address)
		}
		return nil
	case errors.Is(err, ErrKeyNotFound):
		_, err = a.Import(ctx, label, kp, passphrase)
		return err
	default:
		return err
	}
}

func (a *Adapter) Labels(ctx context.Context) ([]string, error) {
	return a.store.Labels(ctx)
}
