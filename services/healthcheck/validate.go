package healthcheck

import (
	"fmt"

	"github.com/paycrest/e2e/types"
	"github.com/shopspring/decimal"
)

// ErrUnsupportedOperation is returned for operation types the reconciliation has no formula for
type ErrUnsupportedOperation struct {
	OperationType types.OperationType
}

func (e ErrUnsupportedOperation) Error() string {
	return fmt.Sprintf("reconciliation of %q operations is not implemented", e.OperationType)
}

// Equaler is a value that knows how to compare itself
type Equaler[T any] interface {
	Equal(other T) bool
}

// Match pairs an expected value with the observed one
type Match[T Equaler[T]] struct {
	Expected T
	Got      T
}

// Eq reports whether the observed value is the expected one
func (m Match[T]) Eq() bool {
	return m.Expected.Equal(m.Got)
}

func (m Match[T]) String() string {
	return fmt.Sprintf("expected %v, got %v", m.Expected, m.Got)
}

// ValidationSummary is the outcome of reconciling one wallet
type ValidationSummary struct {
	AvailableMatch Match[decimal.Decimal]
	HoldMatch      Match[decimal.Decimal]
}

// Eq reports whether both balances match
func (s ValidationSummary) Eq() bool {
	return s.AvailableMatch.Eq() && s.HoldMatch.Eq()
}

func summarize(v *EntryValidator, available, hold decimal.Decimal) ValidationSummary {
	return ValidationSummary{
		AvailableMatch: Match[decimal.Decimal]{Expected: available, Got: v.CurrentAmount},
		HoldMatch:      Match[decimal.Decimal]{Expected: hold, Got: v.CurrentHold},
	}
}

// ValidateMidState checks a merchant wallet fold against the balance a feed should leave:
//
//	pay approved          available = target - commission, hold = 0
//	pay other             available = 0, hold = 0
//	payout pending/init   available = -(target + commission), hold = target + commission
//	payout approved       available = -(target + commission), hold = 0
//	payout other          available = 0, hold = 0
func ValidateMidState(v *EntryValidator, targetAmount, commission decimal.Decimal, opType types.OperationType, status types.FeedStatus) (ValidationSummary, error) {
	zero := decimal.Zero

	switch opType {
	case types.OperationPay:
		if status == types.FeedStatusApproved {
			return summarize(v, targetAmount.Sub(commission), zero), nil
		}
		return summarize(v, zero, zero), nil

	case types.OperationPayout:
		total := targetAmount.Add(commission)
		switch status {
		case types.FeedStatusPending, types.FeedStatusInit:
			return summarize(v, total.Neg(), total), nil
		case types.FeedStatusApproved:
			return summarize(v, total.Neg(), zero), nil
		default:
			return summarize(v, zero, zero), nil
		}
	}

	return ValidationSummary{}, ErrUnsupportedOperation{OperationType: opType}
}

// ValidateTraderState checks a trader wallet fold. A trader pays the payer's amount out of
// its own balance on a pay and is credited on a payout, earning its commission either way:
//
//	pay pending/init   available = -amount, hold = amount
//	pay approved       available = -amount + commission, hold = 0
//	payout approved    available = amount + commission, hold = 0
//	other              available = 0, hold = 0
func ValidateTraderState(v *EntryValidator, amount, commission decimal.Decimal, opType types.OperationType, status types.FeedStatus) (ValidationSummary, error) {
	zero := decimal.Zero

	switch opType {
	case types.OperationPay:
		switch status {
		case types.FeedStatusPending, types.FeedStatusInit:
			return summarize(v, amount.Neg(), amount), nil
		case types.FeedStatusApproved:
			return summarize(v, amount.Neg().Add(commission), zero), nil
		default:
			return summarize(v, zero, zero), nil
		}

	case types.OperationPayout:
		if status == types.FeedStatusApproved {
			return summarize(v, amount.Add(commission), zero), nil
		}
		return summarize(v, zero, zero), nil
	}

	return ValidationSummary{}, ErrUnsupportedOperation{OperationType: opType}
}

// ValidateStoredState compares a fold of every entry of a wallet with the stored row
func ValidateStoredState(v *EntryValidator, wallet types.Wallet) ValidationSummary {
	return summarize(v, wallet.Amount, wallet.Hold)
}
