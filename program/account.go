package program

import (
	"errors"
	"fmt"
	"time"

	"notes-dapp/models"
	"notes-dapp/solana"
)

var ErrNotANote = errors.New("account is not a note")

// EncodeNote lays a note out the way the program stores it. The result is
// padded to NoteSpace, as the program allocates the maximum up front.
func EncodeNote(n models.Note) []byte {
	b := mustEncodeTagged(NoteAccountDiscriminator, &noteAccount{
		Author:      n.Author,
		Title:       n.Title,
		Content:     n.Content,
		CreatedAt:   n.CreatedAt.Unix(),
		LastUpdated: n.LastUpdated.Unix(),
	})
	if len(b) < NoteSpace {
		b = append(b, make([]byte, NoteSpace-len(b))...)
	}
	return b
}

func DecodeNote(data []byte) (models.Note, error) {
	disc, dec, err := readDiscriminator(data)
	if err != nil {
		return models.Note{}, fmt.Errorf("%w: %v", ErrNotANote, err)
	}
	if disc != NoteAccountDiscriminator {
		return models.Note{}, ErrNotANote
	}

	var acc noteAccount
	if err := dec.Decode(&acc); err != nil {
		return models.Note{}, fmt.Errorf("decode note: %w", err)
	}
	return models.Note{
		Author:      acc.Author,
		Title:       acc.Title,
		Content:     acc.Content,
		CreatedAt:   time.Unix(acc.CreatedAt, 0).UTC(),
		LastUpdated: time.Unix(acc.LastUpdated, 0).UTC(),
	}, nil
}

// AuthorFilters selects note accounts written by author: the account
// discriminator at offset 0 and the author key right after it.
func AuthorFilters(author solana.PublicKey) []solana.Filter {
	return []solana.Filter{
		solana.Memcmp(0, NoteAccountDiscriminator[:]),
		solana.Memcmp(uint64(AuthorOffset), author[:]),
	}
}
