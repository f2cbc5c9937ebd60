// Package entry composes a single transaction draft from keypad input and
// selections, validates it and emits a normalized record.
//
// A Machine is created for a new record (New) or for editing a saved one
// (NewForEdit). Keypad methods are serialized by a single-slot guard:
// a press that overlaps another is dropped with ErrInputBusy. Save runs the
// validation chain and either emits the record through the configured
// SaveFunc or, for a new expense, waits for a payment method (Pay or
// PayWithApp) before emitting.
package entry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"moneytracker/internal/core"
	"moneytracker/internal/log"

	"github.com/shopspring/decimal"
)

// Save validation errors, checked in this order.
var (
	ErrMissingSourceAccount      = errors.New("select a source account")
	ErrMissingDestinationAccount = errors.New("select a destination account")
	ErrSameAccountTransfer       = errors.New("source and destination accounts must differ")
	ErrMissingAccount            = errors.New("select an account")
	ErrMissingCategory           = errors.New("select a category")
	ErrZeroOrInvalidAmount       = errors.New("amount cannot be zero")
	ErrAmountTooLarge            = errors.New("amount is too large")
)

var (
	// ErrConversionUnavailable is a warning: rates for a currency pair are
	// missing and the amount was used unconverted.
	ErrConversionUnavailable = errors.New("currency conversion unavailable")
	ErrInvalidEditRecord     = errors.New("record to edit is missing amount or currency")
	ErrNotAwaitingPayment    = errors.New("draft is not waiting for a payment method")
	ErrUnknownPaymentApp     = errors.New("unknown payment app")
	ErrUnknownPaymentMethod  = errors.New("unknown payment method")
	ErrDraftClosed           = errors.New("draft already saved")
	ErrNoSaveFunc            = errors.New("no save function configured")
)

// Step is the outcome of Save.
type Step int

const (
	// StepSaved means the record was emitted.
	StepSaved Step = iota
	// StepAwaitingPayment means a payment method must be chosen first.
	StepAwaitingPayment
)

func (s Step) String() string {
	if s == StepAwaitingPayment {
		return "awaiting_payment"
	}
	return "saved"
}

// SaveFunc receives every emitted record.
type SaveFunc func(ctx context.Context, tx core.Transaction) error

type Config struct {
	DefaultCurrency string
	Rates           core.RateTable
	Platform        Platform
	Launcher        Launcher
	OnSave          SaveFunc
	// OnWarning is told about non-fatal problems such as
	// ErrConversionUnavailable or a failed app launch.
	OnWarning func(error)
	Now       func() time.Time
	Logger    *log.Logger
}

// Draft is a snapshot of the record being composed.
type Draft struct {
	Type           core.TransactionType `json:"type"`
	AmountText     string               `json:"amount"`
	ExpressionText string               `json:"expression"`
	Note           string               `json:"note"`
	Category       string               `json:"category"`
	Account        string               `json:"account"`
	FromAccount    string               `json:"fromAccount"`
	ToAccount      string               `json:"toAccount"`
	Date           time.Time            `json:"date"`
	Currency       string               `json:"currency"`
	Editing        bool                 `json:"editing"`
}

type Machine struct {
	cfg    Config
	logger *log.Logger

	busy atomic.Bool

	mu       sync.Mutex
	draft    Draft
	keys     keypad
	editID   int64
	origCurr string
	pending  *core.Transaction
	saved    *core.Transaction
	launches sync.WaitGroup
}

// New starts a draft for a new record: an expense of 0 in the default
// currency, dated now.
func New(cfg Config) *Machine {
	m := newMachine(cfg)
	m.draft = Draft{
		Type:       core.Expense,
		AmountText: zeroAmount,
		Date:       m.cfg.Now(),
		Currency:   m.cfg.DefaultCurrency,
	}
	return m
}

// NewForEdit starts a draft that replaces tx on save. When tx is stored in
// a currency other than the default, the amount is shown converted into the
// default currency. If that is impossible the original amount is shown and
// ErrConversionUnavailable is reported as a warning.
func NewForEdit(cfg Config, tx core.Transaction) (*Machine, error) {
	if tx.Amount.IsZero() || strings.TrimSpace(tx.Currency) == "" {
		return nil, ErrInvalidEditRecord
	}
	m := newMachine(cfg)
	orig := core.NormalizeCurrency(tx.Currency)

	shown := tx.Amount
	if orig != m.cfg.DefaultCurrency {
		switch converted, ok := core.Convert(tx.Amount, orig, m.cfg.DefaultCurrency, m.cfg.Rates); {
		case tx.ConvertedAmount != nil:
			shown = *tx.ConvertedAmount
		case ok:
			shown = converted
		default:
			m.warn(context.Background(), fmt.Errorf("%w: %s to %s", ErrConversionUnavailable, orig, m.cfg.DefaultCurrency))
		}
	}
	shown = core.Round(shown)

	m.editID = tx.ID
	m.origCurr = orig
	m.keys = keypad{amount: core.FormatAmount(shown)}
	m.draft = Draft{
		Type:     tx.Type,
		Note:     tx.Note,
		Date:     tx.Date,
		Currency: orig,
		Editing:  true,
	}
	if tx.Type == core.Transfer {
		m.draft.FromAccount = tx.Account
		m.draft.ToAccount = tx.ToAccount
	} else {
		m.draft.Account = tx.Account
		m.draft.Category = tx.Category
	}
	if m.draft.Date.IsZero() {
		m.draft.Date = m.cfg.Now()
	}
	return m, nil
}

func newMachine(cfg Config) *Machine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Discard()
	}
	if cfg.Launcher == nil {
		cfg.Launcher = nopLauncher{}
	}
	if cfg.Platform == "" {
		cfg.Platform = Android
	}
	cfg.DefaultCurrency = core.NormalizeCurrency(cfg.DefaultCurrency)
	if cfg.DefaultCurrency == "" {
		cfg.DefaultCurrency = core.DefaultCurrency
	}
	cfg.Rates = cfg.Rates.Clone()
	return &Machine{
		cfg:    cfg,
		logger: cfg.Logger.WithComponent(log.ComponentEntry),
		keys:   newKeypad(),
	}
}

// Draft returns a snapshot of the current draft.
func (m *Machine) Draft() Draft {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.draft
	d.AmountText = m.keys.amount
	d.ExpressionText = m.keys.expression
	return d
}

// press runs one keypad mutation under the in-flight guard.
func (m *Machine) press(f func(keypad) (keypad, error)) error {
	if !m.busy.CompareAndSwap(false, true) {
		return ErrInputBusy
	}
	defer m.busy.Store(false)

	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := f(m.keys)
	m.keys = next
	return err
}

func (m *Machine) Digit(d rune) error {
	return m.press(func(k keypad) (keypad, error) { return k.digit(d) })
}

func (m *Machine) Decimal() error {
	return m.press(func(k keypad) (keypad, error) { return k.decimalPoint(), nil })
}

func (m *Machine) Operator(op rune) error {
	return m.press(func(k keypad) (keypad, error) { return k.operator(op) })
}

func (m *Machine) Equals() error {
	return m.press(func(k keypad) (keypad, error) { return k.equals() })
}

func (m *Machine) Backspace() error {
	return m.press(func(k keypad) (keypad, error) { return k.backspace(), nil })
}

func (m *Machine) Clear() error {
	return m.press(func(keypad) (keypad, error) { return newKeypad(), nil })
}

// Press dispatches a single key label: a digit, "." or ",", an operator,
// "=", "⌫"/"back" or "C"/"AC".
func (m *Machine) Press(key string) error {
	switch k := strings.TrimSpace(key); k {
	case ".", ",":
		return m.Decimal()
	case "=":
		return m.Equals()
	case "⌫", "back", "backspace", "del":
		return m.Backspace()
	case "C", "AC", "clear":
		return m.Clear()
	default:
		r := []rune(k)
		if len(r) != 1 {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
		if r[0] >= '0' && r[0] <= '9' {
			return m.Digit(r[0])
		}
		if _, ok := normalizeOperator(r[0]); ok {
			return m.Operator(r[0])
		}
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
}

// Type presses each character of keys in order and stops at the first error.
func (m *Machine) Type(keys string) error {
	for _, r := range keys {
		if err := m.Press(string(r)); err != nil {
			return err
		}
	}
	return nil
}

func (m *Machine) SetType(t core.TransactionType) error {
	if !t.IsValid() {
		return core.ErrInvalidType
	}
	m.mu.Lock()
	m.draft.Type = t
	m.mu.Unlock()
	return nil
}

func (m *Machine) SetCategory(category string) {
	m.mu.Lock()
	m.draft.Category = strings.TrimSpace(category)
	m.mu.Unlock()
}

func (m *Machine) SetAccount(account string) {
	m.mu.Lock()
	m.draft.Account = strings.TrimSpace(account)
	m.mu.Unlock()
}

func (m *Machine) SetFromAccount(account string) {
	m.mu.Lock()
	m.draft.FromAccount = strings.TrimSpace(account)
	m.mu.Unlock()
}

func (m *Machine) SetToAccount(account string) {
	m.mu.Lock()
	m.draft.ToAccount = strings.TrimSpace(account)
	m.mu.Unlock()
}

func (m *Machine) SetNote(note string) {
	m.mu.Lock()
	m.draft.Note = note
	m.mu.Unlock()
}

// SetDate changes the calendar date and keeps the time of day.
func (m *Machine) SetDate(d time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.draft.Date
	y, mo, day := d.Date()
	m.draft.Date = time.Date(y, mo, day, cur.Hour(), cur.Minute(), cur.Second(), 0, cur.Location())
}

// SetTime changes the hour and minute and keeps the calendar date.
func (m *Machine) SetTime(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.draft.Date
	y, mo, day := cur.Date()
	m.draft.Date = time.Date(y, mo, day, t.Hour(), t.Minute(), 0, 0, cur.Location())
}

// Save validates the draft. A new expense moves to StepAwaitingPayment;
// anything else is emitted straight away. Validation failures leave the
// draft untouched.
func (m *Machine) Save(ctx context.Context) (Step, error) {
	m.mu.Lock()
	if m.saved != nil {
		m.mu.Unlock()
		return StepSaved, ErrDraftClosed
	}
	if err := m.validate(); err != nil {
		m.mu.Unlock()
		return StepSaved, err
	}
	record, warning := m.buildRecord()
	if m.draft.Type == core.Expense && !m.draft.Editing {
		m.pending = &record
		m.mu.Unlock()
		if warning != nil {
			m.warn(ctx, warning)
		}
		return StepAwaitingPayment, nil
	}
	m.mu.Unlock()

	if warning != nil {
		m.warn(ctx, warning)
	}
	return StepSaved, m.emit(ctx, record)
}

// Pay completes a pending expense with a payment method. Cash emits the
// record; UPI requires PayWithApp.
func (m *Machine) Pay(ctx context.Context, method PaymentMethod) error {
	switch method {
	case PaymentCash:
		record, err := m.takePending()
		if err != nil {
			return err
		}
		return m.emitPending(ctx, record)
	case PaymentUPI:
		return fmt.Errorf("%w: choose an app with PayWithApp", ErrUnknownPaymentApp)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, method)
	}
}

// PayWithApp opens the given UPI app in the background and emits the
// pending expense without waiting for the launch. A failed launch is only
// logged and reported as a warning.
func (m *Machine) PayWithApp(ctx context.Context, appID string) (LaunchTarget, error) {
	app, ok := FindPaymentApp(appID)
	if !ok {
		return LaunchTarget{}, fmt.Errorf("%w: %q", ErrUnknownPaymentApp, appID)
	}
	record, err := m.takePending()
	if err != nil {
		return LaunchTarget{}, err
	}

	target := app.Target(m.cfg.Platform)
	launchCtx := context.WithoutCancel(ctx)
	m.launches.Add(1)
	go func() {
		defer m.launches.Done()
		if err := m.cfg.Launcher.Launch(launchCtx, target); err != nil {
			m.logger.ErrorContext(launchCtx, "Payment app launch failed",
				"app", app.ID, "platform", target.Platform, log.FieldError, err)
			m.warn(launchCtx, fmt.Errorf("open %s: %w", app.Name, err))
			return
		}
		m.logger.InfoContext(launchCtx, "Payment app launched", "app", app.ID, "platform", target.Platform)
	}()

	return target, m.emitPending(ctx, record)
}

// WaitLaunches blocks until background app launches have returned.
func (m *Machine) WaitLaunches() {
	m.launches.Wait()
}

// Saved returns the emitted record once Save or Pay has succeeded.
func (m *Machine) Saved() (core.Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved == nil {
		return core.Transaction{}, false
	}
	return *m.saved, true
}

func (m *Machine) takePending() (core.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saved != nil {
		return core.Transaction{}, ErrDraftClosed
	}
	if m.pending == nil {
		return core.Transaction{}, ErrNotAwaitingPayment
	}
	record := *m.pending
	m.pending = nil
	return record, nil
}

// emitPending emits a record taken by takePending and puts it back if the
// save fails, so the payment step can be retried.
func (m *Machine) emitPending(ctx context.Context, record core.Transaction) error {
	err := m.emit(ctx, record)
	if err != nil {
		m.mu.Lock()
		if m.saved == nil {
			m.pending = &record
		}
		m.mu.Unlock()
	}
	return err
}

func (m *Machine) emit(ctx context.Context, record core.Transaction) error {
	if m.cfg.OnSave == nil {
		return ErrNoSaveFunc
	}
	if err := m.cfg.OnSave(ctx, record); err != nil {
		m.logger.ErrorContext(ctx, "Saving transaction failed", log.NewFields().
			WithTransaction(record.ID, record.Type.String(), record.Amount, record.Currency).
			WithError(err).ToSlice()...)
		return err
	}
	m.mu.Lock()
	m.saved = &record
	m.mu.Unlock()
	m.logger.InfoContext(ctx, "Transaction emitted",
		log.NewFields().WithTransaction(record.ID, record.Type.String(), record.Amount, record.Currency).ToSlice()...)
	return nil
}

// validate runs the save checks in order. Caller holds mu.
func (m *Machine) validate() error {
	d := m.draft
	if d.Type == core.Transfer {
		if d.FromAccount == "" {
			return ErrMissingSourceAccount
		}
		if d.ToAccount == "" {
			return ErrMissingDestinationAccount
		}
		if d.FromAccount == d.ToAccount {
			return ErrSameAccountTransfer
		}
	} else {
		if d.Account == "" {
			return ErrMissingAccount
		}
		if d.Category == "" {
			return ErrMissingCategory
		}
	}

	amount, err := parseOperand(m.keys.amount)
	if err != nil || amount.Sign() <= 0 {
		return ErrZeroOrInvalidAmount
	}
	if !core.WithinDigitCap(amount) {
		return ErrAmountTooLarge
	}
	return nil
}

// buildRecord turns a validated draft into the record to emit, along with
// an optional conversion warning. Caller holds mu.
func (m *Machine) buildRecord() (core.Transaction, error) {
	d := m.draft
	entered, _ := parseOperand(m.keys.amount)
	entered = core.Round(entered)
	now := m.cfg.Now()

	tx := core.Transaction{
		ID:           m.editID,
		Amount:       entered,
		Currency:     m.cfg.DefaultCurrency,
		Type:         d.Type,
		Note:         d.Note,
		Date:         d.Date,
		LastModified: now,
	}
	if tx.ID == 0 {
		tx.ID = now.UnixMilli()
	}
	if d.Type == core.Transfer {
		tx.Category = core.TransferCategory
		tx.Account = d.FromAccount
		tx.ToAccount = d.ToAccount
	} else {
		tx.Category = d.Category
		tx.Account = d.Account
	}

	var warning error
	if d.Editing && m.origCurr != m.cfg.DefaultCurrency {
		tx.Currency = m.origCurr
		if back, ok := core.Convert(entered, m.cfg.DefaultCurrency, m.origCurr, m.cfg.Rates); ok {
			tx.Amount = core.Round(back)
			converted := entered
			tx.ConvertedAmount = &converted
		} else {
			warning = fmt.Errorf("%w: saving in %s", ErrConversionUnavailable, m.origCurr)
		}
	}
	return tx, warning
}

func (m *Machine) warn(ctx context.Context, err error) {
	m.logger.WarnContext(ctx, "Entry warning", log.FieldError, err)
	if m.cfg.OnWarning != nil {
		m.cfg.OnWarning(err)
	}
}

// EnteredAmount parses the current amount text.
func (m *Machine) EnteredAmount() (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, err := parseOperand(m.keys.amount)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return d, nil
}
