package healthcheck

import (
	"github.com/paycrest/e2e/types"
	"github.com/paycrest/e2e/utils/logger"
	"github.com/shopspring/decimal"
)

// Operation codes of the core ledger journal
const (
	OpCashin                  types.OperationCode = 1
	OpCashout                 types.OperationCode = 2
	OpHold                    types.OperationCode = 3
	OpUnhold                  types.OperationCode = 4
	OpPayment                 types.OperationCode = 5
	OpPaymentCommission       types.OperationCode = 6
	OpPaymentCommissionReturn types.OperationCode = 7
	OpPaymentCancel           types.OperationCode = 8
	OpPayoutHold              types.OperationCode = 9
	OpPayoutCommit            types.OperationCode = 10
	OpPayoutUnhold            types.OperationCode = 11
	OpPayoutCommissionHold    types.OperationCode = 12
	OpPayoutCommissionCommit  types.OperationCode = 13
	OpPayoutCommissionUnhold  types.OperationCode = 14
	OpRefund                  types.OperationCode = 15
	OpRefundCommissionReturn  types.OperationCode = 16
	OpTraderHold              types.OperationCode = 17
	OpTraderCommit            types.OperationCode = 18
	OpAgentReward             types.OperationCode = 19
)

// effect is what an entry does to one side, in multiples of the entry amount
type effect struct {
	amount int64
	hold   int64
}

type rule struct {
	name   string
	debit  effect
	credit effect
}

var (
	transfer = rule{debit: effect{amount: -1}, credit: effect{amount: 1}}
	hold     = rule{debit: effect{amount: -1, hold: 1}}
	unhold   = rule{credit: effect{amount: 1, hold: -1}}
	commit   = rule{debit: effect{hold: -1}, credit: effect{amount: 1}}
)

func named(r rule, name string) rule {
	r.name = name
	return r
}

// rules mirrors the ledger's bookkeeping by hand. It is a best-effort copy and may lag
// behind codes the platform adds.
var rules = map[types.OperationCode]rule{
	OpCashin:                  named(transfer, "cashin"),
	OpCashout:                 named(transfer, "cashout"),
	OpHold:                    named(hold, "hold"),
	OpUnhold:                  named(unhold, "unhold"),
	OpPayment:                 named(transfer, "payment"),
	OpPaymentCommission:       named(transfer, "payment_commission"),
	OpPaymentCommissionReturn: named(transfer, "payment_commission_return"),
	OpPaymentCancel:           named(transfer, "payment_cancel"),
	OpPayoutHold:              named(hold, "payout_hold"),
	OpPayoutCommit:            named(commit, "payout_commit"),
	OpPayoutUnhold:            named(unhold, "payout_unhold"),
	OpPayoutCommissionHold:    named(hold, "payout_commission_hold"),
	OpPayoutCommissionCommit:  named(commit, "payout_commission_commit"),
	OpPayoutCommissionUnhold:  named(unhold, "payout_commission_unhold"),
	OpRefund:                  named(transfer, "refund"),
	OpRefundCommissionReturn:  named(transfer, "refund_commission_return"),
	OpTraderHold:              named(hold, "trader_hold"),
	OpTraderCommit:            named(commit, "trader_commit"),
	OpAgentReward:             named(transfer, "agent_reward"),
}

// OperationName returns the ledger name of code, or "" when the code is unknown
func OperationName(code types.OperationCode) string {
	return rules[code].name
}

// EntryValidator folds journal entries into the balance they should leave on one wallet.
//
// Amounts are decimals, but the rules are an independent approximation of the ledger:
// commission math on the platform side may round differently, so a mismatch of a minor
// unit is worth confirming against the ledger before it is treated as a bug.
type EntryValidator struct {
	WalletID      int64
	CurrentAmount decimal.Decimal
	CurrentHold   decimal.Decimal
	// Unrecognized lists entry codes the rules do not cover
	Unrecognized []types.OperationCode
}

// NewEntryValidator starts a fold from a zero balance
func NewEntryValidator(walletID int64) *EntryValidator {
	return &EntryValidator{
		WalletID:      walletID,
		CurrentAmount: decimal.Zero,
		CurrentHold:   decimal.Zero,
	}
}

func (v *EntryValidator) apply(e effect, amount decimal.Decimal) {
	if e.amount != 0 {
		v.CurrentAmount = v.CurrentAmount.Add(amount.Mul(decimal.NewFromInt(e.amount)))
	}
	if e.hold != 0 {
		v.CurrentHold = v.CurrentHold.Add(amount.Mul(decimal.NewFromInt(e.hold)))
	}
}

// FeedEntryMimicLedger folds one entry. Entries that touch neither side of the wallet
// are ignored; unknown codes are logged and recorded.
func (v *EntryValidator) FeedEntryMimicLedger(entry types.Entry) {
	isDebit := entry.DebitWalletID == v.WalletID
	isCredit := entry.CreditWalletID == v.WalletID
	if !isDebit && !isCredit {
		return
	}

	r, ok := rules[entry.OperationCode]
	if !ok {
		logger.WithFields(logger.Fields{
			"EntryID":       entry.ID,
			"OperationCode": entry.OperationCode,
			"WalletID":      v.WalletID,
		}).Warnf("unknown operation code, entry skipped")
		v.Unrecognized = append(v.Unrecognized, entry.OperationCode)
		return
	}

	if isDebit {
		v.apply(r.debit, entry.Amount)
	}
	if isCredit {
		v.apply(r.credit, entry.Amount)
	}
}

// FeedAll folds entries in order
func (v *EntryValidator) FeedAll(entries []types.Entry) *EntryValidator {
	for _, entry := range entries {
		v.FeedEntryMimicLedger(entry)
	}
	return v
}
