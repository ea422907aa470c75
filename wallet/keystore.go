package wallet

import (
	"context"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"notes-dapp/solana"
)

var (
	ErrKeyNotFound     = errors.New("wallet not found")
	ErrKeyExists       = errors.New("wallet label already in use")
	ErrWrongPassphrase = errors.New("wrong passphrase")
	ErrEmptyLabel      = errors.New("wallet label is required")
)

// scrypt parameters for the sealing key.
const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	saltSize     = 16
	sealedKeyLen = chacha20poly1305.KeySize
)

// SealedKey is a keypair encrypted under a passphrase.
type SealedKey struct {
	Label      string
	Address    solana.PublicKey
	PassHash   []byte
	Salt       []byte
	Nonce      []byte
	Ciphertext []byte
	CreatedAt  time.Time
}

// Keystore persists sealed keys by label.
type Keystore interface {
	LoadKey(ctx context.Context, label string) (SealedKey, error)
	SaveKey(ctx context.Context, key SealedKey) error
	Labels(ctx context.Context) ([]string, error)
}

// Seal encrypts kp with a key stretched from passphrase. The address is bound
// as additional data so a ciphertext cannot be moved to another entry.
func Seal(label string, kp *solana.Keypair, passphrase string) (SealedKey, error) {
	if label == "" {
		return SealedKey{}, ErrEmptyLabel
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), bcrypt.DefaultCost)
	if err != nil {
		return SealedKey{}, fmt.Errorf("hash passphrase: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return SealedKey{}, err
	}
	aead, err := sealer(passphrase, salt)
	if err != nil {
		return SealedKey{}, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return SealedKey{}, err
	}

	addr := kp.PublicKey()
	return SealedKey{
		Label:      label,
		Address:    addr,
		PassHash:   hash,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, kp.Bytes(), addr[:]),
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// Open checks passphrase against the stored hash and decrypts the keypair.
func (k SealedKey) Open(passphrase string) (*solana.Keypair, error) {
	if err := bcrypt.CompareHashAndPassword(k.PassHash, []byte(passphrase)); err != nil {
		return nil, ErrWrongPassphrase
	}
	aead, err := sealer(passphrase, k.Salt)
	if err != nil {
		return nil, err
	}
	plain, err := aead.Open(nil, k.Nonce, k.Ciphertext, k.Address[:])
	if err != nil {
		return nil, fmt.Errorf("wallet %q: %w", k.Label, ErrWrongPassphrase)
	}
	kp, err := solana.KeypairFromBytes(plain)
	if err != nil {
		return nil, err
	}
	if kp.PublicKey() != k.Address {
		return nil, fmt.Errorf("wallet %q: decrypted key does not match address %s", k.Label, k.Address)
	}
	return kp, nil
}

func sealer(passphrase string, salt []byte) (cipher.AEAD, error) {
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, sealedKeyLen)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}
	return chacha20poly1305.NewX(key)
}

// MemoryKeystore keeps sealed keys for the life of the process.
type MemoryKeystore struct {
	mu   sync.RWMutex
	keys map[string]SealedKey
}

func NewMemoryKeystore() *MemoryKeystore {
	return &MemoryKeystore{keys: map[string]SealedKey{}}
}

func (m *MemoryKeystore) LoadKey(_ context.Context, label string) (SealedKey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.keys[label]
	if !ok {
		return SealedKey{}, fmt.Errorf("%w: %q", ErrKeyNotFound, label)
	}
	return k, nil
}

func (m *MemoryKeystore) SaveKey(_ context.Context, key SealedKey) error {
	if key.Label == "" {
		return ErrEmptyLabel
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keys[key.Label]; ok {
		return fmt.Errorf("%w: %q", ErrKeyExists, key.Label)
	}
	m.keys[key.Label] = key
	return nil
}

func (m *MemoryKeystore) Labels(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	labels := make([]string, 0, len(m.keys))
	for l := range m.keys {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels, nil
}
