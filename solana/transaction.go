package solana

import (
	"errors"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
)

type (
	Transaction         = solanago.Transaction
	Message             = solanago.Message
	CompiledInstruction = solanago.CompiledInstruction
	Instruction         = solanago.Instruction
	AccountMeta         = solanago.AccountMeta
)

var ErrAccountIndex = errors.New("instruction references an account outside the message")

// Meta starts a read-only, non-signing account reference; chain WRITE and SIGNER onto it.
func Meta(pk PublicKey) *AccountMeta {
	return solanago.Meta(pk)
}

// NewInstruction pairs a program with its accounts and serialized arguments.
func NewInstruction(programID PublicKey, accounts []*AccountMeta, data []byte) Instruction {
	return solanago.NewInstruction(programID, accounts, data)
}

// NewTransaction compiles ixs into a legacy message paid for by payer.
func NewTransaction(payer PublicKey, ixs []Instruction, recentBlockhash Hash) (*Transaction, error) {
	tx, err := solanago.NewTransaction(ixs, recentBlockhash, solanago.TransactionPayer(payer))
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	return tx, nil
}

// ResolvedInstruction is a compiled instruction with its indexes replaced by
// the keys and privileges they point at.
type ResolvedInstruction struct {
	ProgramID PublicKey
	Accounts  []*AccountMeta
	Data      []byte
}

func ResolveInstruction(msg *Message, ci CompiledInstruction) (ResolvedInstruction, error) {
	n := len(msg.AccountKeys)
	if int(ci.ProgramIDIndex) >= n {
		return ResolvedInstruction{}, fmt.Errorf("%w: program index %d", ErrAccountIndex, ci.ProgramIDIndex)
	}
	for _, idx := range ci.Accounts {
		if int(idx) >= n {
			return ResolvedInstruction{}, fmt.Errorf("%w: account index %d", ErrAccountIndex, idx)
		}
	}
	programID, err := msg.Program(ci.ProgramIDIndex)
	if err != nil {
		return ResolvedInstruction{}, err
	}
	accounts, err := ci.ResolveInstructionAccounts(msg)
	if err != nil {
		return ResolvedInstruction{}, err
	}
	return ResolvedInstruction{ProgramID: programID, Accounts: accounts, Data: ci.Data}, nil
}

// DecodeTransaction parses the wire form of a signed transaction.
func DecodeTransaction(wire []byte) (*Transaction, error) {
	return solanago.TransactionFromBytes(wire)
}

// TransactionID is the first signature of tx, zero while it is unsigned.
func TransactionID(tx *Transaction) Signature {
	if len(tx.Signatures) == 0 {
		return Signature{}
	}
	return tx.Signatures[0]
}
