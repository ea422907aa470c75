package wallet

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notes-dapp/localnet"
	"notes-dapp/program"
	"notes-dapp/solana"
)

func testKeypair(t *testing.T) *solana.Keypair {
	t.Helper()
	kp, err := solana.KeypairFromSeed(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	return kp
}

func TestSealedKey(t *testing.T) {
	kp := testKeypair(t)
	sealed, err := Seal("main", kp, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), sealed.Address)
	assert.NotContains(t, string(sealed.Ciphertext), string(kp.Bytes()))

	t.Run("Right passphrase", func(t *testing.T) {
		opened, err := sealed.Open("hunter2")
		require.NoError(t, err)
		assert.Equal(t, kp.Bytes(), opened.Bytes())
	})

	t.Run("Wrong passphrase", func(t *testing.T) {
		_, err := sealed.Open("hunter3")
		require.ErrorIs(t, err, ErrWrongPassphrase)
	})

	t.Run("Ciphertext moved to another address", func(t *testing.T) {
		moved := sealed
		moved.Address = solana.PublicKey{1}
		_, err := moved.Open("hunter2")
		require.ErrorIs(t, err, ErrWrongPassphrase)
	})

	t.Run("Empty label", func(t *testing.T) {
		_, err := Seal("", kp, "x")
		require.ErrorIs(t, err, ErrEmptyLabel)
	})
}

func TestAdapter(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryKeystore()
	adapter := NewAdapter(store, logrus.New())
	kp := testKeypair(t)

	addr, err := adapter.Import(ctx, "default", kp, "pw")
	require.NoError(t, err)
	assert.Equal(t, kp.PublicKey(), addr)

	_, err = adapter.Import(ctx, "default", kp, "pw")
	require.ErrorIs(t, err, ErrKeyExists)
	require.NoError(t, adapter.EnsureImported(ctx, "default", kp, "pw"))

	other, err := adapter.Create(ctx, "spare", "pw2")
	require.NoError(t, err)
	assert.NotEqual(t, addr, other)

	labels, err := adapter.Labels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"default", "spare"}, labels)

	w, err := adapter.Connect(ctx, "default", "pw")
	require.NoError(t, err)
	assert.Equal(t, addr, w.PublicKey())

	_, err = adapter.Connect(ctx, "missing", "pw")
	require.ErrorIs(t, err, ErrKeyNotFound)
	_, err = adapter.Connect(ctx, "default", "nope")
	require.ErrorIs(t, err, ErrWrongPassphrase)
}

func TestConnection(t *testing.T) {
	ctx := context.Background()
	cluster := localnet.New()
	srv := httptest.NewServer(cluster)
	t.Cleanup(srv.Close)

	store := NewMemoryKeystore()
	adapter := NewAdapter(store, logrus.New())
	kp := testKeypair(t)
	_, err := adapter.Import(ctx, "default", kp, "pw")
	require.NoError(t, err)
	cluster.Airdrop(kp.PublicKey(), 3*localnet.LamportsPerSOL/2)

	provider := NewProvider(solana.NewClient(srv.URL), srv.URL, adapter)
	conn, err := provider.Connect(ctx, "default", "pw")
	require.NoError(t, err)

	assert.True(t, conn.Connected())
	assert.True(t, conn.CanSign())
	pk, ok := conn.PublicKey()
	require.True(t, ok)
	assert.Equal(t, kp.PublicKey(), pk)

	bal, err := conn.Balance(ctx)
	require.NoError(t, err)
	assert.Equal(t, "1.5 SOL", FormatSOL(bal))

	addr, ok := conn.NoteAddress("Groceries")
	require.True(t, ok)
	want, _, err := program.NoteAddress(program.DefaultProgramID, pk, "Groceries")
	require.NoError(t, err)
	assert.Equal(t, want, addr)

	client, err := conn.Program()
	require.NoError(t, err)
	assert.Equal(t, pk, client.Author())

	conn.Disconnect()
	assert.False(t, conn.Connected())
	_, ok = conn.NoteAddress("Groceries")
	assert.False(t, ok)
	_, err = conn.Program()
	require.ErrorIs(t, err, program.ErrWalletNotConnected)
}

func TestSOLAmounts(t *testing.T) {
	assert.Equal(t, "0 SOL", FormatSOL(0))
	assert.Equal(t, "0.000005 SOL", FormatSOL(5000))
	assert.Equal(t, "2 SOL", FormatSOL(2_000_000_000))

	for in, want := range map[string]uint64{
		"1":           1_000_000_000,
		"0.5 SOL":     500_000_000,
		"0.000000001": 1,
	} {
		got, err := ParseSOL(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "-1", "0", "0.0000000001", "abc"} {
		_, err := ParseSOL(in)
		assert.ErrorIs(t, err, ErrInvalidAmount, in)
	}
}
