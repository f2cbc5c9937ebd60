package entry

import (
	"errors"
	"strings"

	"moneytracker/internal/core"

	"github.com/shopspring/decimal"
)

// Keypad errors. Arithmetic errors clear the draft amount and expression;
// digit errors leave it unchanged.
var (
	ErrMaxDigitsExceeded      = errors.New("amount exceeds the maximum number of integer digits")
	ErrFractionDigitsExceeded = errors.New("amount already has two decimal places")
	ErrDivisionByZero         = errors.New("division by zero")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInvalidKey             = errors.New("invalid key")
	ErrInputBusy              = errors.New("keypad input already in progress")
)

// Operators accepted by the keypad.
const (
	OpAdd      = '+'
	OpSubtract = '-'
	OpMultiply = '×'
	OpDivide   = '/'
)

const zeroAmount = "0"

// keypad is the amount/expression pair edited by key presses. Its methods
// return the next value and never mutate the receiver.
type keypad struct {
	amount     string
	expression string
}

func newKeypad() keypad {
	return keypad{amount: zeroAmount}
}

func (k keypad) digit(d rune) (keypad, error) {
	if d < '0' || d > '9' {
		return k, ErrInvalidKey
	}
	next := k.amount + string(d)
	if k.amount == zeroAmount {
		next = string(d)
	}
	whole, frac, hasPoint := strings.Cut(next, ".")
	if hasPoint && len(frac) > core.DecimalPlaces {
		return k, ErrFractionDigitsExceeded
	}
	if len(strings.TrimPrefix(whole, "-")) > core.MaxIntegerDigits {
		return k, ErrMaxDigitsExceeded
	}
	k.amount = next
	return k, nil
}

func (k keypad) decimalPoint() keypad {
	if strings.Contains(k.amount, ".") {
		return k
	}
	k.amount += "."
	return k
}

func (k keypad) operator(op rune) (keypad, error) {
	op, ok := normalizeOperator(op)
	if !ok {
		return k, ErrInvalidKey
	}
	if k.amount == zeroAmount {
		return k, nil
	}
	k.expression = k.amount + string(op)
	k.amount = zeroAmount
	return k, nil
}

// equals evaluates "left op right" where left and op come from the frozen
// expression and right is the current amount. Without a pending
// expression it is a no-op.
func (k keypad) equals() (keypad, error) {
	if k.expression == "" {
		return k, nil
	}
	ops := []rune(k.expression)
	op := ops[len(ops)-1]
	left, err := parseOperand(string(ops[:len(ops)-1]))
	if err != nil {
		return newKeypad(), ErrInvalidAmount
	}
	right, err := parseOperand(k.amount)
	if err != nil {
		return newKeypad(), ErrInvalidAmount
	}

	var result decimal.Decimal
	switch op {
	case OpAdd:
		result = left.Add(right)
	case OpSubtract:
		result = left.Sub(right)
	case OpMultiply:
		result = left.Mul(right)
	case OpDivide:
		if right.IsZero() {
			return newKeypad(), ErrDivisionByZero
		}
		result = left.Div(right)
	default:
		return newKeypad(), ErrInvalidAmount
	}

	result = core.Round(result)
	if !core.WithinDigitCap(result) {
		return newKeypad(), ErrMaxDigitsExceeded
	}
	return keypad{amount: core.FormatAmount(result)}, nil
}

func (k keypad) backspace() keypad {
	if len(k.amount) > 0 {
		k.amount = k.amount[:len(k.amount)-1]
	}
	if k.amount == "" || k.amount == "-" {
		k.amount = zeroAmount
	}
	return k
}

func normalizeOperator(op rune) (rune, bool) {
	switch op {
	case OpAdd, OpSubtract, OpMultiply, OpDivide:
		return op, true
	case '*', 'x', 'X':
		return OpMultiply, true
	case '÷':
		return OpDivide, true
	default:
		return 0, false
	}
}

// parseOperand parses keypad text such as "12", "12.", "0.5" or "-3.25".
func parseOperand(s string) (decimal.Decimal, error) {
	s = strings.TrimSuffix(s, ".")
	if s == "" || s == "-" {
		return decimal.Zero, ErrInvalidAmount
	}
	return decimal.NewFromString(s)
}
