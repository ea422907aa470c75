// Package program binds the notes_dapp Anchor program: its instruction and
// account layouts, its error table, and a client that submits transactions
// against it on behalf of a connected wallet.
package program

import "notes-dapp/solana"

// DefaultProgramID is the deployed notes_dapp program on devnet.
var DefaultProgramID = solana.MustPublicKeyFromBase58("AZU5xiTxwuTbp5ixiN7mxoGVy6BCzhFEJFpCSvyffowc")

// NoteSeed is the namespace tag prefixed to every note address derivation.
const NoteSeed = "note"

const (
	MaxTitleLength   = 100
	MaxContentLength = 1000
)

// Discriminator is the 8-byte Anchor prefix of instruction and account data.
type Discriminator [8]byte

var (
	CreateNoteDiscriminator = Discriminator{103, 2, 208, 242, 86, 156, 151, 107}
	UpdateNoteDiscriminator = Discriminator{103, 129, 251, 34, 33, 154, 210, 148}
	DeleteNoteDiscriminator = Discriminator{182, 211, 115, 229, 163, 88, 108, 217}

	NoteAccountDiscriminator = Discriminator{203, 75, 252, 196, 81, 210, 122, 126}
)

// AuthorOffset is where the author key starts in a stored note.
const AuthorOffset = len(Discriminator{})

// NoteSpace is the account size allocated by create_note: discriminator,
// author, both strings at their maximum, and two timestamps.
const NoteSpace = AuthorOffset + solana.PublicKeyLength + (4 + MaxTitleLength) + (4 + MaxContentLength) + 8 + 8
