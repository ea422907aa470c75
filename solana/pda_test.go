package solana

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgradeableLoader = MustPublicKeyFromBase58("BPFLoaderUpgradeab1e11111111111111111111111")

func TestCreateProgramAddress(t *testing.T) {
	seedKey := MustPublicKeyFromBase58("SeedPubey1111111111111111111111111111111111")

	vectors := []struct {
		name  string
		seeds [][]byte
		want  string
	}{
		{"Empty seed with bump", [][]byte{{}, {1}}, "BwqrghZA2htAcqq8dzP1WDAhTXYTYWj7CHxF5j7TDBAe"},
		{"Unicode seed", [][]byte{[]byte("☉"), {0}}, "13yWmRpaTR4r5nAktwLqMpRNr28tnVUZw26rTvPSSB19"},
		{"Two words", [][]byte{[]byte("Talking"), []byte("Squirrels")}, "2fnQrngrQT4SeLcdToJAD96phoEjNL2man2kfRLCASVk"},
		{"Public key seed", [][]byte{seedKey[:], {1}}, "976ymqVnfE32QFe6NfGDctSvVa36LWnvYxhU6G2232YL"},
	}
	for _, v := range vectors {
		t.Run(v.name, func(t *testing.T) {
			addr, err := CreateProgramAddress(v.seeds, upgradeableLoader)
			require.NoError(t, err)
			assert.Equal(t, v.want, addr.String())
		})
	}

	t.Run("Seed boundaries are not part of the hash input", func(t *testing.T) {
		split, err := CreateProgramAddress([][]byte{[]byte("Talking"), []byte("Squirrels")}, upgradeableLoader)
		require.NoError(t, err)
		joined, err := CreateProgramAddress([][]byte{[]byte("TalkingSquirrels")}, upgradeableLoader)
		require.NoError(t, err)
		assert.Equal(t, split, joined)
	})

	t.Run("Seed longer than 32 bytes", func(t *testing.T) {
		_, err := CreateProgramAddress([][]byte{bytes.Repeat([]byte{0}, MaxSeedLength+1)}, upgradeableLoader)
		require.ErrorIs(t, err, ErrMaxSeedLengthExceeded)
	})

	t.Run("Too many seeds", func(t *testing.T) {
		seeds := make([][]byte, MaxSeeds+1)
		_, err := CreateProgramAddress(seeds, upgradeableLoader)
		require.ErrorIs(t, err, ErrTooManySeeds)
	})
}

func TestFindProgramAddress(t *testing.T) {
	notesProgram := MustPublicKeyFromBase58("AZU5xiTxwuTbp5ixiN7mxoGVy6BCzhFEJFpCSvyffowc")
	author := MustPublicKeyFromBase58("AKnL4NNf3DGWZJS6cPknBuEGnVsV4A4m5tgebLHaRSZ9")
	seeds := [][]byte{[]byte("note"), author[:], []byte("Groceries")}

	addr, bump, err := FindProgramAddress(seeds, notesProgram)
	require.NoError(t, err)
	assert.Equal(t, "HpWk5u8gUKSKU9VX3ZYbSQ11Fj7Fnv9zWRLyy1sWossf", addr.String())
	assert.Equal(t, uint8(254), bump)
	assert.False(t, IsOnCurve(addr[:]), "derived address must be off curve")
	assert.Len(t, seeds, 3, "caller seeds are left untouched")

	t.Run("Skipped bump lands on the curve", func(t *testing.T) {
		_, err := CreateProgramAddress(append(seeds[:3:3], []byte{255}), notesProgram)
		require.ErrorIs(t, err, ErrInvalidSeeds)
	})

	t.Run("Found bump recreates the address", func(t *testing.T) {
		direct, err := CreateProgramAddress(append(seeds[:3:3], []byte{bump}), notesProgram)
		require.NoError(t, err)
		assert.Equal(t, addr, direct)
	})

	t.Run("Deterministic", func(t *testing.T) {
		again, bumpAgain, err := FindProgramAddress(seeds, notesProgram)
		require.NoError(t, err)
		assert.Equal(t, addr, again)
		assert.Equal(t, bump, bumpAgain)
	})

	t.Run("Seed longer than 32 bytes", func(t *testing.T) {
		_, _, err := FindProgramAddress([][]byte{bytes.Repeat([]byte("x"), 33)}, notesProgram)
		require.ErrorIs(t, err, ErrMaxSeedLengthExceeded)
	})

	t.Run("No slot left for the bump", func(t *testing.T) {
		_, _, err := FindProgramAddress(make([][]byte, MaxSeeds), notesProgram)
		require.ErrorIs(t, err, ErrTooManySeeds)
	})
}

func TestIsOnCurve(t *testing.T) {
	pk := testKeypair(t, 1).PublicKey()
	assert.True(t, IsOnCurve(pk[:]))
	assert.False(t, IsOnCurve([]byte{1, 2, 3}))
}
