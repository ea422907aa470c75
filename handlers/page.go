package handlers

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	appmw "notes-dapp/middleware"
	"notes-dapp/models"
	"notes-dapp/page"
	"notes-dapp/wallet"
)

//go:embed templates/index.html
var templateFS embed.FS

var indexTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"formatTime": func(t time.Time) string { return t.Local().Format("1/2/2006, 3:04:05 PM") },
}).ParseFS(templateFS, "templates/index.html"))

// pageData is the page view plus the wallet bar.
type pageData struct {
	page.View
	Endpoint     string
	Adapter      string
	Balance      string
	Labels       []string
	ConnectError string
	Transactions []models.TxRecord
}

// Index renders the page for the session's wallet, or the connect prompt.
func (s *Server) Index(w http.ResponseWriter, r *http.Request) {
	sess, err := s.session(r)
	if err != nil {
		if _, ok := appmw.ClaimsFrom(r.Context()); ok {
			clearSessionCookie(w)
		}
		s.renderConnect(w, r, http.StatusOK, "")
		return
	}

	data := pageData{
		View:     sess.ctrl.View(),
		Endpoint: s.provider.Endpoint(),
		Adapter:  s.provider.Adapter().Name(),
	}
	if lamports, err := sess.conn.Balance(r.Context()); err == nil {
		data.Balance = wallet.FormatSOL(lamports)
	} else {
		s.log.WithError(err).Warn("balance lookup failed")
	}
	if s.journal != nil {
		if pk, ok := sess.conn.PublicKey(); ok {
			txs, err := s.journal.RecentTransactions(r.Context(), pk, 10)
			if err != nil {
				s.log.WithError(err).Warn("transaction journal lookup failed")
			}
			data.Transactions = txs
		}
	}
	s.render(w, http.StatusOK, data)
}

func (s *Server) renderConnect(w http.ResponseWriter, r *http.Request, status int, msg string) {
	labels, err := s.provider.Adapter().Labels(r.Context())
	if err != nil {
		s.log.WithError(err).Warn("wallet labels lookup failed")
	}
	s.render(w, status, pageData{
		Adapter:      s.provider.Adapter().Name(),
		Endpoint:     s.provider.Endpoint(),
		Labels:       labels,
		ConnectError: msg,
	})
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := indexTemplate.Execute(w, data); err != nil {
		s.log.WithError(err).Error("render page")
	}
}

// ConnectForm unlocks the chosen wallet and sets the session cookie.
func (s *Server) ConnectForm(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.renderConnect(w, r, http.StatusBadRequest, "Invalid form")
		return
	}
	sess, token, err := s.connect(r.Context(), r.PostFormValue("label"), r.PostFormValue("passphrase"))
	switch {
	case err == nil:
	case errors.Is(err, wallet.ErrKeyNotFound), errors.Is(err, wallet.ErrWrongPassphrase), errors.Is(err, wallet.ErrEmptyLabel):
		s.renderConnect(w, r, http.StatusUnauthorized, "Invalid credentials")
		return
	default:
		s.log.WithError(err).Error("wallet connect failed")
		s.renderConnect(w, r, http.StatusInternalServerError, "Could not connect wallet")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     appmw.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  sess.expires,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) DisconnectForm(w http.ResponseWriter, r *http.Request) {
	if sess, err := s.session(r); err == nil {
		s.endSession(sess)
	}
	clearSessionCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: appmw.SessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
}

// formAction runs fn against the session's controller and returns to the
// page. Outcomes show up in the page status, so errors are only logged.
func (s *Server) formAction(w http.ResponseWriter, r *http.Request, fn func(*session) error) {
	sess, err := s.session(r)
	if err != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid form")
		return
	}
	if err := fn(sess); err != nil {
		s.log.WithError(err).WithField("path", r.URL.Path).Debug("page action did not complete")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) CreateForm(w http.ResponseWriter, r *http.Request) {
	s.formAction(w, r, func(sess *session) error {
		return sess.ctrl.Create(r.Context(), r.PostFormValue("title"), r.PostFormValue("content"))
	})
}

func (s *Server) RefreshForm(w http.ResponseWriter, r *http.Request) {
	s.formAction(w, r, func(sess *session) error {
		return sess.ctrl.Load(r.Context())
	})
}

func (s *Server) EditForm(w http.ResponseWriter, r *http.Request) {
	s.formAction(w, r, func(sess *session) error {
		addr, err := noteAddressParam(r)
		if err != nil {
			return err
		}
		return sess.ctrl.BeginEdit(addr)
	})
}

func (s *Server) SaveForm(w http.ResponseWriter, r *http.Request) {
	s.formAction(w, r, func(sess *session) error {
		addr, err := noteAddressParam(r)
		if err != nil {
			return err
		}
		if err := sess.ctrl.SetEditContent(addr, r.PostFormValue("content")); err != nil {
			return err
		}
		return sess.ctrl.Save(r.Context(), addr)
	})
}

func (s *Server) CloseForm(w http.ResponseWriter, r *http.Request) {
	s.formAction(w, r, func(sess *session) error {
		sess.ctrl.CloseEdit()
		return nil
	})
}

func (s *Server) DeleteForm(w http.ResponseWriter, r *http.Request) {
	s.formAction(w, r, func(sess *session) error {
		addr, err := noteAddressParam(r)
		if err != nil {
			return err
		}
		return sess.ctrl.Delete(r.Context(), addr)
	})
}
