package localnet

import (
	"fmt"
	"time"

	"notes-dapp/models"
	"notes-dapp/program"
	"notes-dapp/solana"
)

// execution carries one instruction's logs and failure helpers.
type execution struct {
	index     int
	programID solana.PublicKey
	logs      []string
}

func (e *execution) logf(format string, args ...any) {
	e.logs = append(e.logs, "Program log: "+fmt.Sprintf(format, args...))
}

// fail aborts with a custom error code, logging it the way Anchor does.
func (e *execution) fail(code uint32) *txFailure {
	if perr, ok := program.LookupError(code); ok && code >= 2000 {
		e.logf("AnchorError occurred. Error Code: %s. Error Number: %d. Error Message: %s.", perr.Name, perr.Code, perr.Msg)
	}
	e.logs = append(e.logs, fmt.Sprintf("Program %s failed: custom program error: %#x", e.programID, code))
	return &txFailure{err: solana.InstructionErr(e.index, code), logs: e.logs}
}

func (e *execution) failKind(kind string) *txFailure {
	e.logs = append(e.logs, fmt.Sprintf("Program %s failed: %s", e.programID, kind))
	return &txFailure{err: solana.InstructionErrKind(e.index, kind), logs: e.logs}
}

// executeNotes applies one notes program instruction to st.
func (c *Cluster) executeNotes(st *state, index int, ix solana.ResolvedInstruction) ([]string, *txFailure) {
	e := &execution{index: index, programID: c.programID}
	e.logs = append(e.logs, fmt.Sprintf("Program %s invoke [1]", c.programID))

	decoded, err := program.DecodeInstruction(ix.Accounts, ix.Data)
	if err != nil {
		return e.logs, e.failKind("InvalidInstructionData")
	}
	if !decoded.Author.IsSigner {
		return e.logs, e.failKind("MissingRequiredSignature")
	}
	if !decoded.Note.IsWritable {
		return e.logs, e.fail(program.CodeConstraintMut)
	}

	now := c.clock().Unix()
	var failure *txFailure
	switch decoded.Op {
	case program.OpCreate:
		e.logf("Instruction: CreateNote")
		failure = c.createNote(st, e, decoded, now)
	case program.OpUpdate:
		e.logf("Instruction: UpdateNote")
		failure = c.updateNote(st, e, decoded, now)
	case program.OpDelete:
		e.logf("Instruction: DeleteNote")
		failure = c.deleteNote(st, e, decoded)
	}
	if failure != nil {
		return e.logs, failure
	}
	e.logs = append(e.logs, fmt.Sprintf("Program %s success", c.programID))
	return e.logs, nil
}

func (c *Cluster) seedsMatch(note, author solana.PublicKey, title string) bool {
	want, _, err := program.NoteAddress(c.programID, author, title)
	return err == nil && want == note
}

func (c *Cluster) createNote(st *state, e *execution, ix *program.DecodedInstruction, now int64) *txFailure {
	author := ix.Author.PublicKey
	if !ix.Author.IsWritable {
		return e.fail(program.CodeConstraintMut)
	}
	if ix.System == nil || ix.System.PublicKey != solana.SystemProgramID {
		return e.fail(program.CodeInvalidProgramID)
	}
	if !c.seedsMatch(ix.Note.PublicKey, author, ix.Title) {
		return e.fail(program.CodeConstraintSeeds)
	}
	if st.exists(ix.Note.PublicKey) {
		e.logs = append(e.logs, fmt.Sprintf("Allocate: account Address { address: %s, base: None } already in use", ix.Note.PublicKey))
		return e.fail(program.CodeAccountInUse)
	}

	switch {
	case len(ix.Title) == 0:
		return e.fail(program.CodeTitleEmpty)
	case len(ix.Title) > program.MaxTitleLength:
		return e.fail(program.CodeTitleTooLong)
	case len(ix.Content) == 0:
		return e.fail(program.CodeContentEmpty)
	case len(ix.Content) > program.MaxContentLength:
		return e.fail(program.CodeContentTooLong)
	}

	rent := RentExempt(program.NoteSpace)
	payer := st.get(author)
	if payer.Lamports < rent {
		e.logs = append(e.logs, fmt.Sprintf("Transfer: insufficient lamports %d, need %d", payer.Lamports, rent))
		return e.fail(program.CodeInsufficientLamports)
	}
	payer.Lamports -= rent

	ts := time.Unix(now, 0).UTC()
	acc := st.get(ix.Note.PublicKey)
	*acc = solana.Account{
		Lamports: rent,
		Owner:    c.programID,
		Data: program.EncodeNote(models.Note{
			Author:      author,
			Title:       ix.Title,
			Content:     ix.Content,
			CreatedAt:   ts,
			LastUpdated: ts,
		}),
	}
	return nil
}

// loadNote checks the note account exists, belongs to the program, was
// written by the signer, and sits at the signer's derived address.
func (c *Cluster) loadNote(st *state, e *execution, ix *program.DecodedInstruction) (*solana.Account, models.Note, *txFailure) {
	if !st.exists(ix.Note.PublicKey) {
		return nil, models.Note{}, e.fail(program.CodeAccountNotInitialized)
	}
	acc := st.get(ix.Note.PublicKey)
	if acc.Owner != c.programID {
		return nil, models.Note{}, e.fail(program.CodeAccountOwnedByWrongProgram)
	}
	note, err := program.DecodeNote(acc.Data)
	if err != nil {
		return nil, models.Note{}, e.fail(program.CodeAccountDidNotDeserialize)
	}
	if note.Author != ix.Author.PublicKey {
		return nil, models.Note{}, e.fail(program.CodeUnauthorized)
	}
	if !c.seedsMatch(ix.Note.PublicKey, ix.Author.PublicKey, note.Title) {
		return nil, models.Note{}, e.fail(program.CodeConstraintSeeds)
	}
	return acc, note, nil
}

func (c *Cluster) updateNote(st *state, e *execution, ix *program.DecodedInstruction, now int64) *txFailure {
	acc, note, failure := c.loadNote(st, e, ix)
	if failure != nil {
		return failure
	}
	switch {
	case len(ix.Content) == 0:
		return e.fail(program.CodeContentEmpty)
	case len(ix.Content) > program.MaxContentLength:
		return e.fail(program.CodeContentTooLong)
	}
	note.Content = ix.Content
	note.LastUpdated = time.Unix(now, 0).UTC()
	acc.Data = program.EncodeNote(note)
	return nil
}

func (c *Cluster) deleteNote(st *state, e *execution, ix *program.DecodedInstruction) *txFailure {
	acc, _, failure := c.loadNote(st, e, ix)
	if failure != nil {
		return failure
	}
	if !ix.Author.IsWritable {
		return e.fail(program.CodeConstraintMut)
	}
	refund := acc.Lamports
	st.remove(ix.Note.PublicKey)
	st.get(ix.Author.PublicKey).Lamports += refund
	return nil
}
