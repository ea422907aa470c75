// Package page drives the notes page: a State value changed only through
// pure transitions, a controller that runs one request at a time against the
// notes program, and the View the templates and JSON API render.
package page

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"notes-dapp/models"
	"notes-dapp/program"
	"notes-dapp/solana"
)

var (
	ErrBusy         = errors.New("another request is still in progress")
	ErrNotConnected = errors.New("wallet not connected")
	ErrUnknownNote  = errors.New("note is not in the current list")
	ErrNotEditing   = errors.New("note is not being edited")
)

// OpError is a failed round trip to the program. Its message is the fixed
// text shown to the user; the cause is kept for logs.
type OpError struct {
	Op      string
	Message string
	Err     error
}

func (e *OpError) Error() string { return e.Message }
func (e *OpError) Unwrap() error { return e.Err }

// Notes is the program handle the page talks to.
type Notes interface {
	Author() solana.PublicKey
	NoteAddress(title string) (solana.PublicKey, error)
	ListNotes(ctx context.Context, author solana.PublicKey) ([]models.NoteAccount, error)
	CreateNote(ctx context.Context, title, content string) (solana.Signature, error)
	UpdateNote(ctx context.Context, title, content string) (solana.Signature, error)
	DeleteNote(ctx context.Context, title string) (solana.Signature, error)
}

// ProgramFunc returns a handle bound to the connected wallet, or an error
// when no signing wallet is connected.
type ProgramFunc func() (Notes, error)

// FromConnection adapts a wallet connection's Program method.
func FromConnection(conn interface {
	Program() (*program.Client, error)
}) ProgramFunc {
	return func() (Notes, error) {
		p, err := conn.Program()
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// Observer counts operations by outcome.
type Observer interface {
	ObserveOperation(op, result string)
}

// Operation outcomes reported to the Observer.
const (
	ResultOK      = "ok"
	ResultInvalid = "invalid"
	ResultBusy    = "busy"
	ResultFailed  = "failed"
)

type Controller struct {
	program  ProgramFunc
	guard    *semaphore.Weighted
	timeout  time.Duration
	log      logrus.FieldLogger
	observer Observer

	mu    sync.Mutex
	state State
}

type Option func(*Controller)

// WithTimeout bounds every request to the program.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Controller) { c.log = l }
}

func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

func NewController(p ProgramFunc, opts ...Option) *Controller {
	c := &Controller{
		program: p,
		guard:   semaphore.NewWeighted(1),
		timeout: 60 * time.Second,
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Controller) update(fn func(State) State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = fn(c.state)
}

func (c *Controller) snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) observe(op, result string) {
	if c.observer != nil {
		c.observer.ObserveOperation(op, result)
	}
}

// acquire takes the single request slot or reports the page busy.
func (c *Controller) acquire(op string) error {
	if c.guard.TryAcquire(1) {
		return nil
	}
	c.update(func(s State) State { return failure(s, MsgBusy) })
	c.observe(op, ResultBusy)
	return ErrBusy
}

func (c *Controller) release() { c.guard.Release(1) }

func (c *Controller) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// State returns a copy of the current page state.
func (c *Controller) State() State {
	return c.snapshot()
}

// View projects the current state for rendering.
func (c *Controller) View() View {
	s := c.snapshot()
	p, err := c.program()
	if err != nil {
		return render(s, solana.PublicKey{}, false)
	}
	return render(s, p.Author(), true)
}

// SetForm records the create form's fields.
func (c *Controller) SetForm(title, content string) {
	c.update(func(s State) State { return setForm(s, title, content) })
}

// Load refreshes the note list for the connected wallet. Without a wallet it
// does nothing.
func (c *Controller) Load(ctx context.Context) error {
	if err := c.acquire("list"); err != nil {
		return err
	}
	defer c.release()

	p, err := c.program()
	if err != nil {
		c.update(disconnected)
		return nil
	}
	return c.load(ctx, p)
}

func (c *Controller) load(ctx context.Context, p Notes) error {
	c.update(beginRequest)
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	author := p.Author()
	notes, err := p.ListNotes(ctx, author)
	if err != nil {
		c.log.WithError(err).WithField("author", author.String()).Error("Error Loading notes")
		c.update(loadFailed)
		c.observe("list", ResultFailed)
		return &OpError{Op: "list", Message: MsgLoadFailed, Err: err}
	}
	c.update(func(s State) State { return loaded(s, author, notes) })
	c.observe("list", ResultOK)
	return nil
}

// Create records title and content as the form, validates them and submits
// create_note, then reloads. The form is only written while holding the
// request slot.
func (c *Controller) Create(ctx context.Context, title, content string) error {
	if err := c.acquire("create"); err != nil {
		return err
	}
	defer c.release()

	c.update(func(s State) State { return setForm(s, title, content) })
	form := Form{Title: title, Content: content}
	if err := (models.NoteInput{Title: form.Title, Content: form.Content}).Validate(); err != nil {
		return c.invalid("create", err)
	}
	p, err := c.program()
	if err != nil {
		c.update(func(s State) State { return failure(s, MsgWalletNotConnected) })
		c.observe("create", ResultInvalid)
		return ErrNotConnected
	}
	if _, err := p.NoteAddress(form.Title); err != nil {
		if errors.Is(err, program.ErrTitleNotDerivable) {
			return c.invalid("create", &models.ValidationError{Field: "Title", Message: models.MsgTitleSeedTooBig})
		}
		return c.invalid("create", err)
	}

	c.update(beginRequest)
	rctx, cancel := c.withTimeout(ctx)
	sig, err := p.CreateNote(rctx, form.Title, form.Content)
	cancel()
	if err != nil {
		c.logFailure(err, "Error creating note", form.Title)
		c.update(createFailed)
		c.observe("create", ResultFailed)
		return &OpError{Op: "create", Message: MsgCreateFailed, Err: err}
	}
	c.log.WithFields(logrus.Fields{"title": form.Title, "signature": sig.String()}).Info("note created")
	c.update(created)
	c.observe("create", ResultOK)
	return c.load(ctx, p)
}

// BeginEdit opens the edit box for the note at addr, seeded with its content.
func (c *Controller) BeginEdit(addr solana.PublicKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	note, ok := c.state.find(addr)
	if !ok {
		return ErrUnknownNote
	}
	c.state = beginEdit(c.state, note)
	return nil
}

// SetEditContent replaces the draft of the note being edited.
func (c *Controller) SetEditContent(addr solana.PublicKey, draft string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Edit == nil || c.state.Edit.Address != addr {
		return ErrNotEditing
	}
	c.state = setDraft(c.state, draft)
	return nil
}

// CloseEdit discards the draft.
func (c *Controller) CloseEdit() {
	c.update(closeEdit)
}

// Save submits the draft of the note at addr as its new content, then reloads.
func (c *Controller) Save(ctx context.Context, addr solana.PublicKey) error {
	if err := c.acquire("update"); err != nil {
		return err
	}
	defer c.release()

	edit := c.snapshot().Edit
	if edit == nil || edit.Address != addr {
		return ErrNotEditing
	}
	if err := (models.ContentInput{Content: edit.Draft}).Validate(); err != nil {
		return c.invalid("update", err)
	}
	p, err := c.program()
	if err != nil {
		c.observe("update", ResultInvalid)
		return ErrNotConnected
	}

	c.update(beginRequest)
	rctx, cancel := c.withTimeout(ctx)
	sig, err := p.UpdateNote(rctx, edit.Title, edit.Draft)
	cancel()
	if err != nil {
		c.logFailure(err, "Error while updating note", edit.Title)
		c.update(updateFailed)
		c.observe("update", ResultFailed)
		return &OpError{Op: "update", Message: MsgUpdateFailed, Err: err}
	}
	c.log.WithFields(logrus.Fields{"title": edit.Title, "signature": sig.String()}).Info("note updated")
	c.update(updated)
	c.observe("update", ResultOK)
	return c.load(ctx, p)
}

// Delete closes the note at addr, then reloads.
func (c *Controller) Delete(ctx context.Context, addr solana.PublicKey) error {
	if err := c.acquire("delete"); err != nil {
		return err
	}
	defer c.release()

	note, ok := c.snapshot().find(addr)
	if !ok {
		return ErrUnknownNote
	}
	p, err := c.program()
	if err != nil {
		c.observe("delete", ResultInvalid)
		return ErrNotConnected
	}

	c.update(beginRequest)
	rctx, cancel := c.withTimeout(ctx)
	sig, err := p.DeleteNote(rctx, note.Title)
	cancel()
	if err != nil {
		c.logFailure(err, "Error deleting note", note.Title)
		c.update(deleteFailed)
		c.observe("delete", ResultFailed)
		return &OpError{Op: "delete", Message: MsgDeleteFailed, Err: err}
	}
	c.log.WithFields(logrus.Fields{"title": note.Title, "signature": sig.String()}).Info("note deleted")
	c.update(deleted)
	c.observe("delete", ResultOK)
	return c.load(ctx, p)
}

// Disconnect forgets the notes of the previous wallet.
func (c *Controller) Disconnect() {
	c.update(disconnected)
}

func (c *Controller) invalid(op string, err error) error {
	msg := err.Error()
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		msg = verr.Message
	}
	c.update(func(s State) State { return failure(s, msg) })
	c.observe(op, ResultInvalid)
	return err
}

func (c *Controller) logFailure(err error, msg, title string) {
	entry := c.log.WithError(err).WithField("title", title)
	if perr, ok := program.ParseError(err); ok {
		entry = entry.WithField("program_error", perr.Name)
	}
	entry.Error(msg)
}
