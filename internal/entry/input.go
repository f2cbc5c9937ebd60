package entry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"moneytracker/internal/core"
)

// ErrPaymentRequired is returned by Submit when a new expense is valid but
// no payment method was given.
var ErrPaymentRequired = errors.New("choose a payment method")

// Input is a batch of draft edits, as sent by the HTTP API and the CLI.
// Empty fields leave the draft unchanged. Keys is a keypad sequence such
// as "12.5+3="; Amount is a plain positive number that replaces the
// amount outright and wins over Keys.
type Input struct {
	Type        string  `json:"type,omitempty"`
	Keys        string  `json:"keys,omitempty"`
	Amount      string  `json:"amount,omitempty"`
	Category    string  `json:"category,omitempty"`
	Account     string  `json:"account,omitempty"`
	FromAccount string  `json:"fromAccount,omitempty"`
	ToAccount   string  `json:"toAccount,omitempty"`
	Note        *string `json:"note,omitempty"`
	// Date is YYYY-MM-DD, "YYYY-MM-DD HH:MM" or RFC 3339. A bare date
	// keeps the draft's time of day.
	Date string `json:"date,omitempty"`
	// Payment is "cash" or a payment app ID. Only new expenses use it.
	Payment string `json:"payment,omitempty"`
}

// Apply makes the edits in order: type, amount, selections, note, date.
func (in Input) Apply(m *Machine) error {
	if s := strings.TrimSpace(in.Type); s != "" {
		t, err := core.ParseTransactionType(s)
		if err != nil {
			return err
		}
		if err := m.SetType(t); err != nil {
			return err
		}
	}

	switch {
	case strings.TrimSpace(in.Amount) != "":
		// A plain positive number only; keypad operators have no meaning here.
		amount, err := core.ParseAmount(in.Amount)
		if err != nil {
			sentinel := ErrZeroOrInvalidAmount
			if errors.Is(err, core.ErrAmountTooLarge) {
				sentinel = ErrAmountTooLarge
			}
			return fmt.Errorf("amount %q: %w: %w", in.Amount, sentinel, err)
		}
		if err := m.Clear(); err != nil {
			return err
		}
		if err := m.Type(amount.String()); err != nil {
			return fmt.Errorf("amount %q: %w", in.Amount, err)
		}
	case in.Keys != "":
		if err := m.Type(in.Keys); err != nil {
			return fmt.Errorf("keys %q: %w", in.Keys, err)
		}
	}

	if in.Category != "" {
		m.SetCategory(in.Category)
	}
	if in.Account != "" {
		m.SetAccount(in.Account)
	}
	if in.FromAccount != "" {
		m.SetFromAccount(in.FromAccount)
	}
	if in.ToAccount != "" {
		m.SetToAccount(in.ToAccount)
	}
	if in.Note != nil {
		m.SetNote(*in.Note)
	}

	if s := strings.TrimSpace(in.Date); s != "" {
		d, withTime, err := parseDate(s)
		if err != nil {
			return err
		}
		m.SetDate(d)
		if withTime {
			m.SetTime(d)
		}
	}
	return nil
}

func parseDate(s string) (time.Time, bool, error) {
	if d, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return d, false, nil
	}
	if d, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local); err == nil {
		return d, true, nil
	}
	if d, err := time.Parse(time.RFC3339, s); err == nil {
		return d, true, nil
	}
	return time.Time{}, false, fmt.Errorf("invalid date %q: use YYYY-MM-DD, YYYY-MM-DD HH:MM or RFC 3339", s)
}

// Result is the outcome of Submit.
type Result struct {
	Transaction core.Transaction `json:"transaction"`
	// Launch is set when a payment app was opened.
	Launch *LaunchTarget `json:"launch,omitempty"`
}

// Submit applies in, saves and, for a new expense, completes payment with
// in.Payment.
func Submit(ctx context.Context, m *Machine, in Input) (Result, error) {
	if err := in.Apply(m); err != nil {
		return Result{}, err
	}
	step, err := m.Save(ctx)
	if err != nil {
		return Result{}, err
	}

	var res Result
	if step == StepAwaitingPayment {
		switch p := strings.ToLower(strings.TrimSpace(in.Payment)); p {
		case "":
			return Result{}, ErrPaymentRequired
		case string(PaymentCash):
			err = m.Pay(ctx, PaymentCash)
		default:
			var target LaunchTarget
			target, err = m.PayWithApp(ctx, p)
			if err == nil {
				res.Launch = &target
			}
		}
		if err != nil {
			return Result{}, err
		}
	}

	tx, ok := m.Saved()
	if !ok {
		return Result{}, errors.New("record was not emitted")
	}
	res.Transaction = tx
	return res, nil
}
