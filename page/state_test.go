package page

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"notes-dapp/models"
	"notes-dapp/solana"
)

func noteAt(addr byte, title, content string) models.NoteAccount {
	ts := time.Unix(1700000000, 0).UTC()
	return models.NoteAccount{
		Address: solana.PublicKey{addr},
		Note:    models.Note{Title: title, Content: content, CreatedAt: ts, LastUpdated: ts},
	}
}

func TestLoadedReconcilesEdit(t *testing.T) {
	groceries := noteAt(1, "Groceries", "Milk")
	diary := noteAt(2, "Diary", "Dear diary")
	s := beginEdit(loaded(State{}, solana.PublicKey{9}, []models.NoteAccount{groceries, diary}), groceries)
	s = setDraft(s, "Milk, eggs")

	t.Run("Edited note still listed", func(t *testing.T) {
		refreshed := groceries
		refreshed.Content = "Milk, butter"
		next := loaded(s, solana.PublicKey{9}, []models.NoteAccount{refreshed, diary})
		if assert.NotNil(t, next.Edit) {
			assert.Equal(t, "Milk, eggs", next.Edit.Draft)
			assert.Equal(t, groceries.Address, next.Edit.Address)
		}
	})

	t.Run("Edited note vanished", func(t *testing.T) {
		next := loaded(s, solana.PublicKey{9}, []models.NoteAccount{diary})
		assert.Nil(t, next.Edit)
	})

	t.Run("Input is not mutated", func(t *testing.T) {
		_ = setDraft(s, "changed")
		assert.Equal(t, "Milk, eggs", s.Edit.Draft)
	})
}

func TestStatusTransitions(t *testing.T) {
	s := beginRequest(State{Notes: []models.NoteAccount{noteAt(1, "a", "b")}})

	failed := loadFailed(s)
	assert.False(t, failed.Loading)
	assert.Equal(t, Status{Text: MsgLoadFailed, Kind: StatusError}, failed.Status)
	assert.Len(t, failed.Notes, 1)

	ok := loaded(failed, solana.PublicKey{}, nil)
	assert.Equal(t, Status{}, ok.Status)
	assert.Empty(t, ok.Notes)

	done := loaded(created(setForm(s, "t", "c")), solana.PublicKey{}, nil)
	assert.Equal(t, MsgCreated, done.Status.Text)
	assert.Equal(t, Form{}, done.Form)
}

func TestRender(t *testing.T) {
	g := noteAt(1, "Groceries", "Milk")
	s := setForm(State{Notes: []models.NoteAccount{g}}, "héllo", "")

	v := render(s, solana.PublicKey{9}, true)
	assert.Equal(t, "5/100", v.Form.TitleCount)
	assert.Equal(t, "0/1000", v.Form.ContentCount)
	assert.True(t, v.Form.CreateDisabled)
	assert.Equal(t, "Create Note", v.Form.CreateLabel)
	assert.Equal(t, solana.PublicKey{9}.String(), v.Author)
	assert.Equal(t, "Edit", v.Notes[0].EditLabel)

	s = beginRequest(beginEdit(setForm(s, "t", "c"), g))
	v = render(s, solana.PublicKey{9}, true)
	assert.True(t, v.Form.CreateDisabled)
	assert.Equal(t, "Creating Note", v.Form.CreateLabel)
	assert.True(t, v.Notes[0].Editing)
	assert.Equal(t, "Save", v.Notes[0].EditLabel)
	assert.Equal(t, "Milk", v.Notes[0].Draft)

	assert.Empty(t, render(State{}, solana.PublicKey{}, false).Author)
}
