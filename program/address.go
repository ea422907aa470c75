package program

import "notes-dapp/solana"

// NoteAddress derives where a note lives: the PDA of ("note", author, title)
// under programID. Client, CLI and the local cluster all derive through here.
func NoteAddress(programID, author solana.PublicKey, title string) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{
		[]byte(NoteSeed),
		author[:],
		[]byte(title),
	}, programID)
}
