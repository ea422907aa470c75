// Package handlers serves the notes page and its JSON API. Each browser or
// API session owns one wallet connection and one page controller.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"notes-dapp/metrics"
	appmw "notes-dapp/middleware"
	"notes-dapp/models"
	"notes-dapp/page"
	"notes-dapp/program"
	"notes-dapp/solana"
	"notes-dapp/wallet"
)

var ErrSessionExpired = errors.New("session expired")

// Journal lists transactions recorded for a wallet.
type Journal interface {
	RecentTransactions(ctx context.Context, w solana.PublicKey, limit int) ([]models.TxRecord, error)
}

type session struct {
	id      string
	conn    *wallet.Connection
	ctrl    *page.Controller
	expires time.Time
}

type Server struct {
	provider   *wallet.Provider
	secret     []byte
	ttl        time.Duration
	timeout    time.Duration
	journal    Journal
	metrics    *metrics.Metrics
	healthFunc func(context.Context) error
	log        logrus.FieldLogger

	mu       sync.Mutex
	sessions map[string]*session
}

type Option func(*Server)

// WithJournal shows recent transactions in the wallet bar and the API.
func WithJournal(j Journal) Option {
	return func(s *Server) { s.journal = j }
}

// WithMetrics instruments every route and serves /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithTimeout bounds each program request made by a page controller.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

func WithSessionTTL(d time.Duration) Option {
	return func(s *Server) { s.ttl = d }
}

// WithHealthCheck makes /health also check a dependency.
func WithHealthCheck(fn func(context.Context) error) Option {
	return func(s *Server) { s.healthFunc = fn }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) { s.log = l }
}

func NewServer(provider *wallet.Provider, secret []byte, opts ...Option) *Server {
	s := &Server{
		provider: provider,
		secret:   secret,
		ttl:      24 * time.Hour,
		timeout:  60 * time.Second,
		log:      logrus.StandardLogger(),
		sessions: map[string]*session{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes builds the router for the page and the API.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Get("/health", s.Health)

	r.Group(func(r chi.Router) {
		r.Use(appmw.OptionalWallet(s.secret))
		r.Get("/", s.Index)
		r.Post("/wallet/connect", s.ConnectForm)
		r.Post("/wallet/disconnect", s.DisconnectForm)
		r.Post("/notes", s.CreateForm)
		r.Post("/notes/refresh", s.RefreshForm)
		r.Post("/notes/{address}/edit", s.EditForm)
		r.Post("/notes/{address}/save", s.SaveForm)
		r.Post("/notes/{address}/close", s.CloseForm)
		r.Post("/notes/{address}/delete", s.DeleteForm)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(appmw.CORS)
		r.Post("/wallet/connect", s.ConnectWallet)

		r.Group(func(r chi.Router) {
			r.Use(appmw.RequireWallet(s.secret))
			r.Get("/wallet", s.GetWallet)
			r.Post("/wallet/disconnect", s.DisconnectWallet)
			r.Get("/notes", s.ListNotes)
			r.Post("/notes", s.CreateNote)
			r.Patch("/notes/{address}", s.UpdateNote)
			r.Delete("/notes/{address}", s.DeleteNote)
			r.Get("/address", s.NoteAddress)
			r.Get("/transactions", s.Transactions)
		})
	})

	return r
}

// Health reports liveness plus the optional dependency check.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if s.healthFunc != nil {
		if err := s.healthFunc(r.Context()); err != nil {
			s.log.WithError(err).Warn("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ok",
		"endpoint": s.provider.Endpoint(),
		"program":  s.provider.ProgramID().String(),
	})
}

// connect unlocks label, registers a session for it and issues its token.
// The first list load runs before returning.
func (s *Server) connect(ctx context.Context, label, passphrase string) (*session, string, error) {
	if label == "" {
		return nil, "", wallet.ErrEmptyLabel
	}
	conn, err := s.provider.Connect(ctx, label, passphrase)
	if err != nil {
		return nil, "", err
	}
	pk, _ := conn.PublicKey()
	token, claims, err := appmw.IssueToken(s.secret, pk, s.ttl)
	if err != nil {
		conn.Disconnect()
		return nil, "", err
	}

	opts := []page.Option{
		page.WithTimeout(s.timeout),
		page.WithLogger(s.log.WithField("wallet", pk.String())),
	}
	if s.metrics != nil {
		opts = append(opts, page.WithObserver(s.metrics))
	}
	sess := &session{
		id:      claims.ID,
		conn:    conn,
		ctrl:    page.NewController(page.FromConnection(conn), opts...),
		expires: claims.ExpiresAt.Time,
	}

	s.mu.Lock()
	gone := s.evictExpired(time.Now())
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	closeSessions(gone)

	if err := sess.ctrl.Load(ctx); err != nil {
		s.log.WithError(err).WithField("wallet", pk.String()).Warn("initial note load failed")
	}
	return sess, token, nil
}

// session returns the live session named by the request's claims.
func (s *Server) session(r *http.Request) (*session, error) {
	claims, ok := appmw.ClaimsFrom(r.Context())
	if !ok {
		return nil, ErrSessionExpired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[claims.ID]
	if !ok {
		return nil, ErrSessionExpired
	}
	if time.Now().After(sess.expires) {
		delete(s.sessions, claims.ID)
		closeSessions([]*session{sess})
		return nil, ErrSessionExpired
	}
	return sess, nil
}

// evictExpired removes sessions past their expiry and returns them. Callers
// hold s.mu.
func (s *Server) evictExpired(now time.Time) []*session {
	var gone []*session
	for id, sess := range s.sessions {
		if now.After(sess.expires) {
			delete(s.sessions, id)
			gone = append(gone, sess)
		}
	}
	return gone
}

func closeSessions(gone []*session) {
	for _, sess := range gone {
		sess.conn.Disconnect()
		sess.ctrl.Disconnect()
	}
}

// SweepSessions ends every expired session and reports how many it ended.
func (s *Server) SweepSessions() int {
	s.mu.Lock()
	gone := s.evictExpired(time.Now())
	s.mu.Unlock()
	closeSessions(gone)
	return len(gone)
}

// RunSweeper calls SweepSessions every interval until ctx is done.
func (s *Server) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.SweepSessions(); n > 0 {
				s.log.WithField("sessions", n).Info("expired sessions ended")
			}
		}
	}
}

func (s *Server) endSession(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()
	sess.conn.Disconnect()
	sess.ctrl.Disconnect()
}

// Sessions reports the number of live sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps an operation error to a status and its user-visible message.
func (s *Server) fail(w http.ResponseWriter, err error) {
	var (
		verr  *models.ValidationError
		opErr *page.OpError
	)
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, page.ErrBusy):
		writeError(w, http.StatusConflict, page.MsgBusy)
	case errors.Is(err, page.ErrNotConnected), errors.Is(err, program.ErrWalletNotConnected):
		writeError(w, http.StatusUnauthorized, page.MsgWalletNotConnected)
	case errors.Is(err, ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, "Session expired, please connect your wallet again")
	case errors.Is(err, page.ErrUnknownNote):
		writeError(w, http.StatusNotFound, "Note not found")
	case errors.Is(err, page.ErrNotEditing):
		writeError(w, http.StatusConflict, "Note is not being edited")
	case errors.As(err, &opErr):
		writeError(w, http.StatusBadGateway, opErr.Message)
	case errors.Is(err, wallet.ErrKeyNotFound):
		writeError(w, http.StatusNotFound, "Wallet not found")
	case errors.Is(err, wallet.ErrWrongPassphrase):
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, wallet.ErrEmptyLabel):
		writeError(w, http.StatusBadRequest, "Wallet label is required")
	default:
		s.log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func noteAddressParam(r *http.Request) (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(chi.URLParam(r, "address"))
}
