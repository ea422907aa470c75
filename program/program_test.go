package program

import (
	"bytes"
	"encoding/binary"
	"errors"
	"strings"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notes-dapp/models"
	"notes-dapp/solana"
)

func fixedKey(t *testing.T, fill byte) solana.PublicKey {
	t.Helper()
	kp, err := solana.KeypairFromSeed(bytes.Repeat([]byte{fill}, 32))
	require.NoError(t, err)
	return kp.PublicKey()
}

func TestNoteAddress(t *testing.T) {
	alice := fixedKey(t, 1)
	bob := fixedKey(t, 2)

	addr, bump, err := NoteAddress(DefaultProgramID, alice, "Groceries")
	require.NoError(t, err)
	assert.False(t, solana.IsOnCurve(addr[:]))

	t.Run("Known addresses", func(t *testing.T) {
		// Derived with an independent ed25519 and sha256 implementation.
		vectors := []struct {
			author solana.PublicKey
			title  string
			addr   string
			bump   uint8
		}{
			{alice, "Groceries", "HpWk5u8gUKSKU9VX3ZYbSQ11Fj7Fnv9zWRLyy1sWossf", 254},
			{alice, "Diary", "ksjLPHE9PtMhdVgF6BgiSsWXQH7kDQXDpxrMLBMZEwo", 255},
			{bob, "Groceries", "8T24WPLFEGxidw7q5uT7oTZj3tTSwnHBXd6QT7zaCZGH", 254},
			{bob, "Diary", "ACDJTRexQBVyLQmL6X18ShipoCqiUQury2otBSmWp1qC", 255},
		}
		assert.Equal(t, "AKnL4NNf3DGWZJS6cPknBuEGnVsV4A4m5tgebLHaRSZ9", alice.String())
		assert.Equal(t, "9hSR6S7WPtxmTojgo6GG3k4yDPecgJY292j7xrsUGWBu", bob.String())
		for _, v := range vectors {
			got, gotBump, err := NoteAddress(DefaultProgramID, v.author, v.title)
			require.NoError(t, err)
			assert.Equal(t, v.addr, got.String(), v.title)
			assert.Equal(t, v.bump, gotBump, v.title)
		}
	})

	t.Run("Matches the raw seed layout", func(t *testing.T) {
		seeds := [][]byte{[]byte("note"), alice[:], []byte("Groceries"), {bump}}
		direct, err := solana.CreateProgramAddress(seeds, DefaultProgramID)
		require.NoError(t, err)
		assert.Equal(t, addr, direct)
	})

	t.Run("Is deterministic", func(t *testing.T) {
		again, againBump, err := NoteAddress(DefaultProgramID, alice, "Groceries")
		require.NoError(t, err)
		assert.Equal(t, addr, again)
		assert.Equal(t, bump, againBump)
	})

	t.Run("Same title under another author differs", func(t *testing.T) {
		other, _, err := NoteAddress(DefaultProgramID, bob, "Groceries")
		require.NoError(t, err)
		assert.NotEqual(t, addr, other)
	})

	t.Run("Title over 32 bytes cannot be derived", func(t *testing.T) {
		_, _, err := NoteAddress(DefaultProgramID, alice, strings.Repeat("x", 33))
		require.ErrorIs(t, err, solana.ErrMaxSeedLengthExceeded)
	})
}

func TestInstructionLayout(t *testing.T) {
	note := fixedKey(t, 3)
	author := fixedKey(t, 4)

	t.Run("Create", func(t *testing.T) {
		ix := CreateNoteInstruction(DefaultProgramID, note, author, "Diary", "Dear diary")
		assert.Equal(t, DefaultProgramID, ix.ProgramID())
		want := append([]byte{}, CreateNoteDiscriminator[:]...)
		want = binary.LittleEndian.AppendUint32(want, 5)
		want = append(want, "Diary"...)
		want = binary.LittleEndian.AppendUint32(want, 10)
		want = append(want, "Dear diary"...)
		assert.Equal(t, want, instructionData(t, ix))

		accounts := ix.Accounts()
		require.Len(t, accounts, 3)
		assert.Equal(t, solana.AccountMeta{PublicKey: note, IsWritable: true}, *accounts[0])
		assert.Equal(t, solana.AccountMeta{PublicKey: author, IsWritable: true, IsSigner: true}, *accounts[1])
		assert.Equal(t, solana.AccountMeta{PublicKey: solana.SystemProgramID}, *accounts[2])

		decoded, err := decodeBuilt(t, ix)
		require.NoError(t, err)
		assert.Equal(t, OpCreate, decoded.Op)
		assert.Equal(t, "Diary", decoded.Title)
		assert.Equal(t, "Dear diary", decoded.Content)
		require.NotNil(t, decoded.System)
	})

	t.Run("Update", func(t *testing.T) {
		ix := UpdateNoteInstruction(DefaultProgramID, note, author, "new")
		assert.Equal(t, UpdateNoteDiscriminator[:], instructionData(t, ix)[:8])
		assert.Equal(t, solana.AccountMeta{PublicKey: author, IsSigner: true}, *ix.Accounts()[1])

		decoded, err := decodeBuilt(t, ix)
		require.NoError(t, err)
		assert.Equal(t, OpUpdate, decoded.Op)
		assert.Equal(t, "new", decoded.Content)
		assert.Nil(t, decoded.System)
	})

	t.Run("Delete", func(t *testing.T) {
		ix := DeleteNoteInstruction(DefaultProgramID, note, author)
		assert.Equal(t, DeleteNoteDiscriminator[:], instructionData(t, ix))

		decoded, err := decodeBuilt(t, ix)
		require.NoError(t, err)
		assert.Equal(t, OpDelete, decoded.Op)
		assert.Equal(t, note, decoded.Note.PublicKey)
	})

	t.Run("Unknown discriminator", func(t *testing.T) {
		_, err := DecodeInstruction(nil, make([]byte, 8))
		require.ErrorIs(t, err, ErrUnknownInstruction)
		_, err = DecodeInstruction(nil, []byte{1, 2})
		require.ErrorIs(t, err, ErrUnknownInstruction)
	})

	t.Run("Truncated string", func(t *testing.T) {
		ix := CreateNoteInstruction(DefaultProgramID, note, author, "Diary", "Dear diary")
		data := instructionData(t, ix)
		_, err := DecodeInstruction(ix.Accounts(), data[:len(data)-3])
		require.Error(t, err)
	})

	t.Run("Missing accounts", func(t *testing.T) {
		ix := CreateNoteInstruction(DefaultProgramID, note, author, "Diary", "Dear diary")
		_, err := DecodeInstruction(ix.Accounts()[:2], instructionData(t, ix))
		require.Error(t, err)
	})
}

func TestDiscriminators(t *testing.T) {
	assert.Equal(t, bin.SighashInstruction("create_note"), CreateNoteDiscriminator[:])
	assert.Equal(t, bin.SighashInstruction("update_note"), UpdateNoteDiscriminator[:])
	assert.Equal(t, bin.SighashInstruction("delete_note"), DeleteNoteDiscriminator[:])
	assert.Equal(t, bin.SighashAccount("Note"), NoteAccountDiscriminator[:])
}

func instructionData(t *testing.T, ix solana.Instruction) []byte {
	t.Helper()
	data, err := ix.Data()
	require.NoError(t, err)
	return data
}

func decodeBuilt(t *testing.T, ix solana.Instruction) (*DecodedInstruction, error) {
	t.Helper()
	return DecodeInstruction(ix.Accounts(), instructionData(t, ix))
}

func TestNoteAccountLayout(t *testing.T) {
	n := models.Note{
		Author:      fixedKey(t, 5),
		Title:       "Groceries",
		Content:     "Milk, eggs",
		CreatedAt:   time.Unix(1700000000, 0).UTC(),
		LastUpdated: time.Unix(1700000100, 0).UTC(),
	}
	data := EncodeNote(n)
	assert.Len(t, data, NoteSpace)
	assert.Equal(t, NoteAccountDiscriminator[:], data[:8])
	assert.Equal(t, n.Author[:], data[AuthorOffset:AuthorOffset+32])

	decoded, err := DecodeNote(data)
	require.NoError(t, err)
	assert.Equal(t, n, decoded)

	filters := AuthorFilters(n.Author)
	for _, f := range filters {
		assert.True(t, solana.MatchFilter(f, data))
	}
	assert.False(t, solana.MatchFilter(AuthorFilters(fixedKey(t, 6))[1], data))

	t.Run("Fixed byte layout", func(t *testing.T) {
		want := append([]byte{}, NoteAccountDiscriminator[:]...)
		want = append(want, n.Author[:]...)
		want = binary.LittleEndian.AppendUint32(want, uint32(len(n.Title)))
		want = append(want, n.Title...)
		want = binary.LittleEndian.AppendUint32(want, uint32(len(n.Content)))
		want = append(want, n.Content...)
		want = binary.LittleEndian.AppendUint64(want, 1700000000)
		want = binary.LittleEndian.AppendUint64(want, 1700000100)
		assert.Equal(t, want, data[:len(want)])
	})

	_, err = DecodeNote(make([]byte, 16))
	require.ErrorIs(t, err, ErrNotANote)
}

func TestParseError(t *testing.T) {
	err := &solana.RPCError{Code: solana.CodeSendTransactionFailed, Data: []byte(`{"err":{"InstructionError":[0,{"Custom":6004}]}}`)}
	perr, ok := ParseError(err)
	require.True(t, ok)
	assert.Equal(t, "Unauthorized", perr.Name)

	_, ok = ParseError(errors.New("connection refused"))
	assert.False(t, ok)
}
