package entry

import (
	"context"
	"testing"
	"time"

	"moneytracker/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmit_IncomeWithKeys(t *testing.T) {
	rec := &recorder{}
	m := New(rec.config())

	res, err := Submit(context.Background(), m, Input{
		Type:     "income",
		Keys:     "12.5+3=",
		Category: "Salary",
		Account:  "Bank Account",
	})
	require.NoError(t, err)
	assert.Nil(t, res.Launch)
	assert.Equal(t, "15.5", res.Transaction.Amount.String())
	assert.Equal(t, core.Income, res.Transaction.Type)
	require.Len(t, rec.saved, 1)
}

func TestSubmit_ExpenseNeedsPayment(t *testing.T) {
	rec := &recorder{}
	m := New(rec.config())

	_, err := Submit(context.Background(), m, Input{Amount: "20", Category: "Travel", Account: "Cash"})
	assert.ErrorIs(t, err, ErrPaymentRequired)
	assert.Empty(t, rec.saved)

	// The machine is still waiting; paying completes it.
	require.NoError(t, m.Pay(context.Background(), PaymentCash))
	assert.Len(t, rec.saved, 1)
}

func TestSubmit_ExpenseWithApp(t *testing.T) {
	rec := &recorder{}
	cfg := rec.config()
	cfg.Platform = IOS
	m := New(cfg)

	res, err := Submit(context.Background(), m, Input{
		Amount:   "99.99",
		Category: "Shopping",
		Account:  "Credit Card",
		Payment:  "PhonePe",
	})
	require.NoError(t, err)
	m.WaitLaunches()
	require.NotNil(t, res.Launch)
	assert.Equal(t, "phonepe://", res.Launch.URL)
	assert.Equal(t, "99.99", res.Transaction.Amount.StringFixed(2))
}

func TestSubmit_UnknownApp(t *testing.T) {
	rec := &recorder{}
	m := New(rec.config())

	_, err := Submit(context.Background(), m, Input{Amount: "5", Category: "Other", Account: "Cash", Payment: "venmo"})
	assert.ErrorIs(t, err, ErrUnknownPaymentApp)
	assert.Empty(t, rec.saved)
}

func TestSubmit_ValidationError(t *testing.T) {
	rec := &recorder{}
	m := New(rec.config())

	_, err := Submit(context.Background(), m, Input{Amount: "5", Account: "Cash", Payment: "cash"})
	assert.ErrorIs(t, err, ErrMissingCategory)
}

func TestSubmit_NegativeAmountIsRejected(t *testing.T) {
	rec := &recorder{}
	m := New(rec.config())

	_, err := Submit(context.Background(), m, Input{Type: "income", Amount: "-5", Category: "Salary", Account: "Cash"})
	assert.ErrorIs(t, err, ErrZeroOrInvalidAmount)
	assert.Empty(t, rec.saved)
	_, saved := m.Saved()
	assert.False(t, saved)
}

func TestInput_Apply(t *testing.T) {
	note := "lunch"
	tests := []struct {
		name    string
		in      Input
		check   func(t *testing.T, d Draft)
		wantErr error
	}{
		{
			name: "bare date keeps time",
			in:   Input{Date: "2025-04-02"},
			check: func(t *testing.T, d Draft) {
				assert.Equal(t, 2, d.Date.Day())
				assert.Equal(t, time.April, d.Date.Month())
				assert.Equal(t, 18, d.Date.Hour())
			},
		},
		{
			name: "rfc3339 sets time",
			in:   Input{Date: "2025-04-02T07:15:00Z"},
			check: func(t *testing.T, d Draft) {
				assert.Equal(t, 7, d.Date.Hour())
				assert.Equal(t, 15, d.Date.Minute())
			},
		},
		{
			name: "transfer fields",
			in:   Input{Type: "TRANSFER", FromAccount: "Cash", ToAccount: "Savings", Note: &note},
			check: func(t *testing.T, d Draft) {
				assert.Equal(t, core.Transfer, d.Type)
				assert.Equal(t, "Cash", d.FromAccount)
				assert.Equal(t, "Savings", d.ToAccount)
				assert.Equal(t, "lunch", d.Note)
			},
		},
		{
			name: "amount wins over keys",
			in:   Input{Keys: "7", Amount: "3.25"},
			check: func(t *testing.T, d Draft) {
				assert.Equal(t, "3.25", d.AmountText)
			},
		},
		{
			name: "amount with decimal comma",
			in:   Input{Amount: "4,5"},
			check: func(t *testing.T, d Draft) {
				assert.Equal(t, "4.5", d.AmountText)
			},
		},
		{name: "negative amount", in: Input{Amount: "-5"}, wantErr: ErrZeroOrInvalidAmount},
		{name: "amount with operator", in: Input{Amount: "5-3"}, wantErr: ErrZeroOrInvalidAmount},
		{name: "zero amount", in: Input{Amount: "0"}, wantErr: ErrZeroOrInvalidAmount},
		{name: "oversized amount", in: Input{Amount: "1234567890"}, wantErr: ErrAmountTooLarge},
		{name: "bad type", in: Input{Type: "gift"}, wantErr: core.ErrInvalidType},
		{name: "bad key", in: Input{Keys: "1q"}, wantErr: ErrInvalidKey},
		{name: "bad date", in: Input{Date: "yesterday"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New((&recorder{}).config())
			err := tt.in.Apply(m)
			if tt.check == nil {
				require.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
				return
			}
			require.NoError(t, err)
			tt.check(t, m.Draft())
		})
	}
}
