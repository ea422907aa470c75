package page

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"notes-dapp/program"
	"notes-dapp/solana"
)

// View is the read-only projection the page and the JSON API render.
type View struct {
	Connected bool       `json:"connected"`
	Author    string     `json:"author,omitempty"`
	Form      FormView   `json:"form"`
	Notes     []NoteView `json:"notes"`
	Loading   bool       `json:"loading"`
	Status    string     `json:"status,omitempty"`
	IsError   bool       `json:"is_error,omitempty"`
}

type FormView struct {
	Title          string `json:"title"`
	Content        string `json:"content"`
	TitleCount     string `json:"title_count"`
	ContentCount   string `json:"content_count"`
	CreateDisabled bool   `json:"create_disabled"`
	CreateLabel    string `json:"create_label"`
}

type NoteView struct {
	Address     string    `json:"address"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
	Editing     bool      `json:"editing"`
	Draft       string    `json:"draft,omitempty"`
	EditLabel   string    `json:"edit_label"`
}

func counter(s string, limit int) string {
	return fmt.Sprintf("%d/%d", utf8.RuneCountInString(s), limit)
}

func render(s State, author solana.PublicKey, connected bool) View {
	blank := strings.TrimSpace(s.Form.Title) == "" || strings.TrimSpace(s.Form.Content) == ""
	v := View{
		Connected: connected,
		Loading:   s.Loading,
		Status:    s.Status.Text,
		IsError:   s.Status.Kind == StatusError,
		Form: FormView{
			Title:          s.Form.Title,
			Content:        s.Form.Content,
			TitleCount:     counter(s.Form.Title, program.MaxTitleLength),
			ContentCount:   counter(s.Form.Content, program.MaxContentLength),
			CreateDisabled: s.Loading || blank,
			CreateLabel:    "Create Note",
		},
		Notes: make([]NoteView, 0, len(s.Notes)),
	}
	if s.Loading {
		v.Form.CreateLabel = "Creating Note"
	}
	if connected {
		v.Author = author.String()
	}
	for _, n := range s.Notes {
		nv := NoteView{
			Address:     n.Address.String(),
			Title:       n.Title,
			Content:     n.Content,
			CreatedAt:   n.CreatedAt,
			LastUpdated: n.LastUpdated,
			EditLabel:   "Edit",
		}
		if s.Edit != nil && s.Edit.Address == n.Address {
			nv.Editing = true
			nv.Draft = s.Edit.Draft
			nv.EditLabel = "Save"
		}
		v.Notes = append(v.Notes, nv)
	}
	return v
}
