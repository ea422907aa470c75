package solana

import (
	"errors"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
)

const (
	MaxSeeds      = solanago.MaxSeeds
	MaxSeedLength = solanago.MaxSeedLength
)

var (
	ErrMaxSeedLengthExceeded = solanago.ErrMaxSeedLengthExceeded
	ErrTooManySeeds          = errors.New("too many seeds")
	ErrInvalidSeeds          = errors.New("provided seeds do not result in a valid address")
	ErrNoViableBumpSeed      = errors.New("unable to find a viable program address bump seed")
)

// IsOnCurve reports whether b decodes to a point on the ed25519 curve.
// Program derived addresses must not, so that no private key can sign for them.
func IsOnCurve(b []byte) bool {
	return solanago.IsOnCurve(b)
}

func checkSeeds(seeds [][]byte, limit int) error {
	if len(seeds) > limit {
		return fmt.Errorf("%w: %d seeds", ErrTooManySeeds, len(seeds))
	}
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return fmt.Errorf("%w: %d bytes", ErrMaxSeedLengthExceeded, len(seed))
		}
	}
	return nil
}

// CreateProgramAddress hashes the seeds, program id and the PDA marker and
// rejects results that land on the curve.
func CreateProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, error) {
	if err := checkSeeds(seeds, MaxSeeds); err != nil {
		return PublicKey{}, err
	}
	addr, err := solanago.CreateProgramAddress(seeds, programID)
	if err != nil {
		return PublicKey{}, ErrInvalidSeeds
	}
	return addr, nil
}

// FindProgramAddress searches bump seeds from 255 down and returns the first
// off-curve address together with its bump. The bump takes one seed slot.
func FindProgramAddress(seeds [][]byte, programID PublicKey) (PublicKey, uint8, error) {
	if err := checkSeeds(seeds, MaxSeeds-1); err != nil {
		return PublicKey{}, 0, err
	}
	addr, bump, err := solanago.FindProgramAddress(append([][]byte(nil), seeds...), programID)
	if err != nil {
		return PublicKey{}, 0, fmt.Errorf("%w: %v", ErrNoViableBumpSeed, err)
	}
	return addr, bump, nil
}
