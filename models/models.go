package models

import (
	"time"

	"notes-dapp/solana"
)

// Note is the record stored by the notes program, one account per (author, title).
type Note struct {
	Author      solana.PublicKey `json:"author"`
	Title       string           `json:"title"`
	Content     string           `json:"content"`
	CreatedAt   time.Time        `json:"created_at"`
	LastUpdated time.Time        `json:"last_updated"`
}

// NoteAccount pairs a note with the address it is stored at.
type NoteAccount struct {
	Address solana.PublicKey `json:"address"`
	Note
}

// TxRecord is one journaled transaction submitted by this client.
type TxRecord struct {
	Signature   solana.Signature `json:"signature"`
	Wallet      solana.PublicKey `json:"wallet"`
	Operation   string           `json:"operation"`
	NoteAddress solana.PublicKey `json:"note_address"`
	Status      string           `json:"status"`
	Error       string           `json:"error,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

const (
	TxStatusConfirmed = "confirmed"
	TxStatusFailed    = "failed"
)
