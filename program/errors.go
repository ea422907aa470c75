package program

import (
	"fmt"

	"notes-dapp/solana"
)

// ProgramError is an error code raised by the notes program or by Anchor on its behalf.
type ProgramError struct {
	Code uint32
	Name string
	Msg  string
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
}

// Custom error codes declared by the program.
const (
	CodeTitleTooLong   uint32 = 6000
	CodeContentTooLong uint32 = 6001
	CodeTitleEmpty     uint32 = 6002
	CodeContentEmpty   uint32 = 6003
	CodeUnauthorized   uint32 = 6004
)

// Anchor framework codes the program can surface through its account constraints.
const (
	CodeConstraintMut              uint32 = 2000
	CodeConstraintSeeds            uint32 = 2006
	CodeAccountDidNotDeserialize   uint32 = 3002
	CodeAccountOwnedByWrongProgram uint32 = 3007
	CodeInvalidProgramID           uint32 = 3008
	CodeAccountNotInitialized      uint32 = 3012
)

// System program codes raised while create_note allocates the account.
const (
	CodeAccountInUse         uint32 = 0
	CodeInsufficientLamports uint32 = 1
)

var programErrors = map[uint32]*ProgramError{
	CodeTitleTooLong:               {CodeTitleTooLong, "TitleTooLong", "Title cannot be longer than 100 chars"},
	CodeContentTooLong:             {CodeContentTooLong, "ContentTooLong", "Content cannot be longer than 1000 chars"},
	CodeTitleEmpty:                 {CodeTitleEmpty, "TitleEmpty", "Title cannot be empty"},
	CodeContentEmpty:               {CodeContentEmpty, "ContentEmpty", "Content cannot be empty"},
	CodeUnauthorized:               {CodeUnauthorized, "Unauthorized", "Unauthorized"},
	CodeConstraintMut:              {CodeConstraintMut, "ConstraintMut", "A mut constraint was violated"},
	CodeConstraintSeeds:            {CodeConstraintSeeds, "ConstraintSeeds", "A seeds constraint was violated"},
	CodeAccountDidNotDeserialize:   {CodeAccountDidNotDeserialize, "AccountDidNotDeserialize", "Failed to deserialize the account"},
	CodeAccountOwnedByWrongProgram: {CodeAccountOwnedByWrongProgram, "AccountOwnedByWrongProgram", "The given account is owned by a different program than expected"},
	CodeInvalidProgramID:           {CodeInvalidProgramID, "InvalidProgramId", "Program ID was not as expected"},
	CodeAccountNotInitialized:      {CodeAccountNotInitialized, "AccountNotInitialized", "The program expected this account to be already initialized"},
	CodeAccountInUse:               {CodeAccountInUse, "AccountAlreadyInUse", "An account with the same address already exists"},
	CodeInsufficientLamports:       {CodeInsufficientLamports, "ResultWithNegativeLamports", "Account does not have enough lamports"},
}

// LookupError returns the table entry for code.
func LookupError(code uint32) (*ProgramError, bool) {
	e, ok := programErrors[code]
	return e, ok
}

// ParseError finds a known program error anywhere in err's chain.
func ParseError(err error) (*ProgramError, bool) {
	code, ok := solana.CustomErrorCode(err)
	if !ok {
		return nil, false
	}
	return LookupError(code)
}
