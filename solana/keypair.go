package solana

import (
	"bytes"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	solanago "github.com/gagliardetto/solana-go"
)

// Keypair is an ed25519 signing key in Solana's 64-byte layout (seed || public key).
type Keypair struct {
	private solanago.PrivateKey
}

func NewKeypair() (*Keypair, error) {
	priv, err := solanago.NewRandomPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("generate keypair: %w", err)
	}
	return &Keypair{private: priv}, nil
}

func KeypairFromBytes(b []byte) (*Keypair, error) {
	priv := solanago.PrivateKey(append([]byte(nil), b...))
	if _, err := solanago.ValidatePrivateKey(priv); err != nil {
		return nil, fmt.Errorf("invalid keypair: %w", err)
	}
	if !bytes.Equal(ed25519.NewKeyFromSeed(priv[:ed25519.SeedSize]), priv) {
		return nil, fmt.Errorf("keypair public half does not match its seed")
	}
	return &Keypair{private: priv}, nil
}

// KeypairFromSeed derives a keypair deterministically. Used for fixtures.
func KeypairFromSeed(seed []byte) (*Keypair, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	return &Keypair{private: solanago.PrivateKey(ed25519.NewKeyFromSeed(seed))}, nil
}

func (k *Keypair) PublicKey() PublicKey {
	return k.private.PublicKey()
}

func (k *Keypair) Sign(message []byte) (Signature, error) {
	return k.private.Sign(message)
}

// SignTransaction fills in this keypair's signature slot. It fails when the
// transaction needs a signer other than k.
func (k *Keypair) SignTransaction(tx *Transaction) error {
	_, err := tx.Sign(func(pk PublicKey) *solanago.PrivateKey {
		if pk.Equals(k.PublicKey()) {
			return &k.private
		}
		return nil
	})
	return err
}

func (k *Keypair) Bytes() []byte {
	return append([]byte(nil), k.private...)
}

// Verify checks an ed25519 signature made by pk.
func Verify(pk PublicKey, message []byte, sig Signature) bool {
	return sig.Verify(pk, message)
}

// LoadKeypairFile reads a keypair in the Solana CLI format: a JSON array of 64 bytes.
func LoadKeypairFile(path string) (*Keypair, error) {
	priv, err := solanago.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("load keypair %s: %w", path, err)
	}
	return KeypairFromBytes(priv)
}

func SaveKeypairFile(path string, k *Keypair) error {
	ints := make([]int, len(k.private))
	for i, v := range k.private {
		ints[i] = int(v)
	}
	raw, err := json.Marshal(ints)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create keypair dir: %w", err)
	}
	return os.WriteFile(path, raw, 0o600)
}
