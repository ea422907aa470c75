package program

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"

	"notes-dapp/solana"
)

// noteAccount is the stored note after its discriminator.
type noteAccount struct {
	Author      solana.PublicKey
	Title       string
	Content     string
	CreatedAt   int64
	LastUpdated int64
}

type createNoteArgs struct {
	Title   string
	Content string
}

type updateNoteArgs struct {
	Content string
}

// encodeTagged writes disc followed by the borsh form of v, if any.
func encodeTagged(disc Discriminator, v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)
	if err := enc.WriteBytes(disc[:], false); err != nil {
		return nil, err
	}
	if v != nil {
		if err := enc.Encode(v); err != nil {
			return nil, fmt.Errorf("borsh encode: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// mustEncodeTagged is encodeTagged for the fixed layouts of this package,
// which hold only strings, keys and integers and cannot fail to encode into memory.
func mustEncodeTagged(disc Discriminator, v any) []byte {
	b, err := encodeTagged(disc, v)
	if err != nil {
		panic(err)
	}
	return b
}

// readDiscriminator splits data into its Anchor tag and a decoder positioned
// at the payload.
func readDiscriminator(data []byte) (Discriminator, *bin.Decoder, error) {
	dec := bin.NewBorshDecoder(data)
	id, err := dec.ReadTypeID()
	if err != nil {
		return Discriminator{}, nil, err
	}
	return Discriminator(id), dec, nil
}
