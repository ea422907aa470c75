package program

import (
	"errors"
	"fmt"

	"notes-dapp/solana"
)

var ErrUnknownInstruction = errors.New("unknown instruction")

func CreateNoteInstruction(programID, note, author solana.PublicKey, title, content string) solana.Instruction {
	return solana.NewInstruction(programID, []*solana.AccountMeta{
		solana.Meta(note).WRITE(),
		solana.Meta(author).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
	}, mustEncodeTagged(CreateNoteDiscriminator, &createNoteArgs{Title: title, Content: content}))
}

func UpdateNoteInstruction(programID, note, author solana.PublicKey, content string) solana.Instruction {
	return solana.NewInstruction(programID, []*solana.AccountMeta{
		solana.Meta(note).WRITE(),
		solana.Meta(author).SIGNER(),
	}, mustEncodeTagged(UpdateNoteDiscriminator, &updateNoteArgs{Content: content}))
}

func DeleteNoteInstruction(programID, note, author solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(programID, []*solana.AccountMeta{
		solana.Meta(note).WRITE(),
		solana.Meta(author).WRITE().SIGNER(),
	}, mustEncodeTagged(DeleteNoteDiscriminator, nil))
}

// Operation names an instruction of the program.
type Operation string

const (
	OpCreate Operation = "create_note"
	OpUpdate Operation = "update_note"
	OpDelete Operation = "delete_note"
)

// DecodedInstruction is a parsed call into the notes program.
type DecodedInstruction struct {
	Op      Operation
	Note    solana.AccountMeta
	Author  solana.AccountMeta
	System  *solana.AccountMeta
	Title   string
	Content string
}

// DecodeInstruction parses the accounts and data of an instruction built by
// one of the builders above.
func DecodeInstruction(accounts []*solana.AccountMeta, data []byte) (*DecodedInstruction, error) {
	disc, dec, err := readDiscriminator(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownInstruction, err)
	}

	out := &DecodedInstruction{}
	wantAccounts := 2
	switch disc {
	case CreateNoteDiscriminator:
		out.Op = OpCreate
		wantAccounts = 3
		var args createNoteArgs
		if err := dec.Decode(&args); err != nil {
			return nil, fmt.Errorf("create_note args: %w", err)
		}
		out.Title, out.Content = args.Title, args.Content
	case UpdateNoteDiscriminator:
		out.Op = OpUpdate
		var args updateNoteArgs
		if err := dec.Decode(&args); err != nil {
			return nil, fmt.Errorf("update_note args: %w", err)
		}
		out.Content = args.Content
	case DeleteNoteDiscriminator:
		out.Op = OpDelete
	default:
		return nil, fmt.Errorf("%w: discriminator %v", ErrUnknownInstruction, disc)
	}

	if len(accounts) < wantAccounts {
		return nil, fmt.Errorf("%s: expected %d accounts, got %d", out.Op, wantAccounts, len(accounts))
	}
	for i, meta := range accounts[:wantAccounts] {
		if meta == nil {
			return nil, fmt.Errorf("%s: account %d missing", out.Op, i)
		}
	}
	out.Note = *accounts[0]
	out.Author = *accounts[1]
	if wantAccounts == 3 {
		sys := *accounts[2]
		out.System = &sys
	}
	return out, nil
}
