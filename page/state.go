package page

import (
	"notes-dapp/models"
	"notes-dapp/solana"
)

// Messages shown on the status line.
const (
	MsgCreated            = "Note created successfully"
	MsgUpdated            = "successfully updated note"
	MsgDeleted            = "Note deleted successfully"
	MsgLoadFailed         = "Error Loading the notes"
	MsgCreateFailed       = "Error creating note"
	MsgUpdateFailed       = "Error updating note"
	MsgDeleteFailed       = "Error deleting this note"
	MsgWalletNotConnected = "Wallet not connected"
	MsgBusy               = "Another request is still in progress"
)

type StatusKind int

const (
	StatusNone StatusKind = iota
	StatusInfo
	StatusError
)

type Status struct {
	Text string
	Kind StatusKind
}

type Form struct {
	Title   string
	Content string
}

// Edit names the note being edited by address. Title is the stored title the
// address was derived from.
type Edit struct {
	Address solana.PublicKey
	Title   string
	Draft   string
}

// State is everything the notes page shows. Transitions below never mutate
// their input.
type State struct {
	Author  solana.PublicKey
	Notes   []models.NoteAccount
	Form    Form
	Edit    *Edit
	Loading bool
	Status  Status
}

func (s State) find(addr solana.PublicKey) (models.NoteAccount, bool) {
	for _, n := range s.Notes {
		if n.Address == addr {
			return n, true
		}
	}
	return models.NoteAccount{}, false
}

func info(s State, text string) State {
	s.Status = Status{Text: text, Kind: StatusInfo}
	return s
}

func failure(s State, text string) State {
	s.Status = Status{Text: text, Kind: StatusError}
	return s
}

func setForm(s State, title, content string) State {
	s.Form = Form{Title: title, Content: content}
	return s
}

func beginRequest(s State) State {
	s.Loading = true
	return s
}

func endRequest(s State) State {
	s.Loading = false
	return s
}

// loaded replaces the cached list, clears an error status and re-resolves the
// edit selection against the new list.
func loaded(s State, author solana.PublicKey, notes []models.NoteAccount) State {
	s.Author = author
	s.Notes = append([]models.NoteAccount(nil), notes...)
	s.Loading = false
	if s.Status.Kind == StatusError {
		s.Status = Status{}
	}
	if s.Edit != nil {
		if _, ok := s.find(s.Edit.Address); !ok {
			s.Edit = nil
		}
	}
	return s
}

func loadFailed(s State) State {
	return endRequest(failure(s, MsgLoadFailed))
}

func created(s State) State {
	s.Form = Form{}
	return info(s, MsgCreated)
}

func createFailed(s State) State {
	return endRequest(failure(s, MsgCreateFailed))
}

func beginEdit(s State, note models.NoteAccount) State {
	s.Edit = &Edit{Address: note.Address, Title: note.Title, Draft: note.Content}
	return s
}

func setDraft(s State, draft string) State {
	if s.Edit == nil {
		return s
	}
	e := *s.Edit
	e.Draft = draft
	s.Edit = &e
	return s
}

func closeEdit(s State) State {
	s.Edit = nil
	return s
}

func updated(s State) State {
	return info(closeEdit(s), MsgUpdated)
}

// updateFailed keeps the edit so the user can retry.
func updateFailed(s State) State {
	return endRequest(failure(s, MsgUpdateFailed))
}

func deleted(s State) State {
	return info(s, MsgDeleted)
}

func deleteFailed(s State) State {
	return endRequest(failure(s, MsgDeleteFailed))
}

// disconnected drops everything tied to the previous identity.
func disconnected(s State) State {
	return State{Form: s.Form}
}
