package http

import (
	"context"
	"net/http"
	"sync"

	"moneytracker/internal/core"
	"moneytracker/internal/entry"
	"moneytracker/internal/log"
)

type transactionList struct {
	Month        string             `json:"month"`
	Search       string             `json:"search,omitempty"`
	Transactions []core.Transaction `json:"transactions"`
}

type transactionResult struct {
	Transaction core.Transaction    `json:"transaction"`
	Launch      *entry.LaunchTarget `json:"launch,omitempty"`
	Warnings    []string            `json:"warnings,omitempty"`
}

// warningSink collects entry warnings for one request. Launch goroutines
// may report into it, so it is locked.
type warningSink struct {
	mu       sync.Mutex
	messages []string
}

func (w *warningSink) add(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, err.Error())
}

func (w *warningSink) list() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.messages...)
}

// entryConfig builds an entry machine config from the ledger's current
// preferences. save receives the emitted record.
func (s *Server) entryConfig(ctx context.Context, warnings *warningSink, save entry.SaveFunc) entry.Config {
	state := s.ledger.State()
	return entry.Config{
		DefaultCurrency: state.DefaultCurrency,
		Rates:           state.Rates,
		Platform:        s.platform,
		OnSave:          save,
		OnWarning:       warnings.add,
		Logger:          log.FromContext(ctx),
	}
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	month := filter.Month
	if month.IsZero() {
		month = s.ledger.State().CurrentMonth
	}
	NewJSONResponse().Body(transactionList{
		Month:        month.Format(monthLayout),
		Search:       filter.Search,
		Transactions: s.ledger.Transactions(filter),
	}).Write(w)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	tx, err := s.ledger.Get(id)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	NewJSONResponse().Body(tx).Write(w)
}

// handleCreateTransaction runs a new draft through the entry machine. New
// expenses need a payment method in the body.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	var in entry.Input
	if err := DecodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	in = sanitizeEntryInput(in)

	var (
		warnings warningSink
		stored   core.Transaction
	)
	m := entry.New(s.entryConfig(ctx, &warnings, func(ctx context.Context, tx core.Transaction) error {
		var err error
		stored, err = s.ledger.Add(ctx, tx)
		return err
	}))

	res, err := entry.Submit(ctx, m, in)
	m.WaitLaunches()
	if err != nil {
		logger.WarnContext(ctx, "Transaction not created", log.FieldError, err)
		errorResponse(err).Write(w)
		return
	}

	logger.InfoContext(ctx, "Transaction created",
		log.NewFields().WithTransaction(stored.ID, stored.Type.String(), stored.Amount, stored.Currency).ToSlice()...)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/transactions/"+formatID(stored.ID)).
		Body(transactionResult{Transaction: stored, Launch: res.Launch, Warnings: warnings.list()}).
		Write(w)
}

// handleEditTransaction replaces a saved transaction through an edit draft.
// Fields missing from the body keep their saved values.
func (s *Server) handleEditTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	current, err := s.ledger.Get(id)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}

	var in entry.Input
	if err := DecodeJSON(w, r, &in); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	in = sanitizeEntryInput(in)

	var warnings warningSink
	m, err := entry.NewForEdit(s.entryConfig(ctx, &warnings, s.ledger.Save), current)
	if err != nil {
		errorResponse(err).Write(w)
		return
	}
	res, err := entry.Submit(ctx, m, in)
	if err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Transaction not updated",
			log.FieldTransactionID, id, log.FieldError, err)
		errorResponse(err).Write(w)
		return
	}

	NewJSONResponse().
		Body(transactionResult{Transaction: res.Transaction, Warnings: warnings.list()}).
		Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.ledger.Delete(r.Context(), id); err != nil {
		errorResponse(err).Write(w)
		return
	}
	log.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted", log.FieldTransactionID, id)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func sanitizeEntryInput(in entry.Input) entry.Input {
	in.Category = sanitizeInput(in.Category)
	in.Account = sanitizeInput(in.Account)
	in.FromAccount = sanitizeInput(in.FromAccount)
	in.ToAccount = sanitizeInput(in.ToAccount)
	if in.Note != nil {
		note := sanitizeInput(*in.Note)
		in.Note = &note
	}
	return in
}
