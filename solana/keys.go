package solana

import (
	"errors"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
)

const (
	PublicKeyLength = solanago.PublicKeyLength
	SignatureLength = solanago.SignatureLength
)

var ErrInvalidPublicKey = errors.New("invalid public key")

// PublicKey is an ed25519 public key or a program derived address.
type PublicKey = solanago.PublicKey

// Signature is an ed25519 signature; the first one of a transaction is its id.
type Signature = solanago.Signature

// Hash is a recent blockhash.
type Hash = solanago.Hash

// SystemProgramID owns every plain account and allocates space for new ones.
var SystemProgramID = solanago.SystemProgramID

func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	if len(b) != PublicKeyLength {
		return PublicKey{}, fmt.Errorf("%w: got %d bytes", ErrInvalidPublicKey, len(b))
	}
	return solanago.PublicKeyFromBytes(b), nil
}

func PublicKeyFromBase58(s string) (PublicKey, error) {
	pk, err := solanago.PublicKeyFromBase58(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	return pk, nil
}

// MustPublicKeyFromBase58 panics on malformed input. Only for constants.
func MustPublicKeyFromBase58(s string) PublicKey {
	return solanago.MustPublicKeyFromBase58(s)
}

func SignatureFromBase58(s string) (Signature, error) {
	sig, err := solanago.SignatureFromBase58(s)
	if err != nil {
		return Signature{}, fmt.Errorf("invalid signature: %w", err)
	}
	return sig, nil
}

func HashFromBase58(s string) (Hash, error) {
	return solanago.HashFromBase58(s)
}
