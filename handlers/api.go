package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"notes-dapp/models"
	"notes-dapp/page"
	"notes-dapp/wallet"
)

type connectRequest struct {
	Label      string `json:"label"`
	Passphrase string `json:"passphrase"`
}

type connectResponse struct {
	Token     string    `json:"token"`
	Wallet    string    `json:"wallet"`
	ExpiresAt time.Time `json:"expires_at"`
}

type walletResponse struct {
	Address         string `json:"address"`
	Connected       bool   `json:"connected"`
	Adapter         string `json:"adapter"`
	Endpoint        string `json:"endpoint"`
	Balance         string `json:"balance,omitempty"`
	BalanceLamports uint64 `json:"balance_lamports"`
}

type noteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// ConnectWallet unlocks a stored wallet and returns a session token.
func (s *Server) ConnectWallet(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	sess, token, err := s.connect(r.Context(), req.Label, req.Passphrase)
	if err != nil {
		s.fail(w, err)
		return
	}
	pk, _ := sess.conn.PublicKey()
	writeJSON(w, http.StatusOK, connectResponse{Token: token, Wallet: pk.String(), ExpiresAt: sess.expires})
}

func (s *Server) DisconnectWallet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.endSession(sess)
	w.WriteHeader(http.StatusNoContent)
}

// GetWallet describes the connected wallet and its balance.
func (s *Server) GetWallet(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	pk, ok := sess.conn.PublicKey()
	resp := walletResponse{
		Connected: ok,
		Adapter:   s.provider.Adapter().Name(),
		Endpoint:  s.provider.Endpoint(),
	}
	if ok {
		resp.Address = pk.String()
		lamports, err := sess.conn.Balance(r.Context())
		if err != nil {
			s.log.WithError(err).WithField("wallet", resp.Address).Warn("balance lookup failed")
		} else {
			resp.BalanceLamports = lamports
			resp.Balance = wallet.FormatSOL(lamports)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListNotes reloads the connected wallet's notes and returns the page view.
func (s *Server) ListNotes(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := sess.ctrl.Load(r.Context()); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.ctrl.View())
}

func (s *Server) CreateNote(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := sess.ctrl.Create(r.Context(), req.Title, req.Content); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess.ctrl.View())
}

// UpdateNote replaces the content of the note at {address}.
func (s *Server) UpdateNote(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	addr, err := noteAddressParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid note address")
		return
	}
	var req noteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	err = retryUnknown(r.Context(), sess.ctrl, func() error { return sess.ctrl.BeginEdit(addr) })
	if err == nil {
		err = sess.ctrl.SetEditContent(addr, req.Content)
	}
	if err == nil {
		err = sess.ctrl.Save(r.Context(), addr)
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.ctrl.View())
}

func (s *Server) DeleteNote(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	addr, err := noteAddressParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid note address")
		return
	}
	err = retryUnknown(r.Context(), sess.ctrl, func() error { return sess.ctrl.Delete(r.Context(), addr) })
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess.ctrl.View())
}

// retryUnknown runs fn once more after a reload when the note was not in the
// controller's current list.
func retryUnknown(ctx context.Context, ctrl *page.Controller, fn func() error) error {
	err := fn()
	if !errors.Is(err, page.ErrUnknownNote) {
		return err
	}
	if err := ctrl.Load(ctx); err != nil {
		return err
	}
	return fn()
}

// NoteAddress derives the connected wallet's note address for ?title=.
func (s *Server) NoteAddress(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	title := r.URL.Query().Get("title")
	if title == "" {
		writeError(w, http.StatusBadRequest, models.MsgFillIn)
		return
	}
	addr, ok := sess.conn.NoteAddress(title)
	if !ok {
		writeError(w, http.StatusBadRequest, models.MsgTitleSeedTooBig)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"title": title, "address": addr.String()})
}

// Transactions lists the newest journaled transactions of the connected wallet.
func (s *Server) Transactions(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		s.fail(w, err)
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = n
	}
	records := []models.TxRecord{}
	if s.journal != nil {
		pk, _ := sess.conn.PublicKey()
		records, err = s.journal.RecentTransactions(r.Context(), pk, limit)
		if err != nil {
			s.fail(w, err)
			return
		}
		if records == nil {
			records = []models.TxRecord{}
		}
	}
	writeJSON(w, http.StatusOK, records)
}
