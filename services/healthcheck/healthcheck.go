package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/paycrest/e2e/types"
	"github.com/paycrest/e2e/utils"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"golang.org/x/sync/errgroup"
)

// RateTolerance is how far a feed's target amount may drift from amount * rate
var RateTolerance = decimal.RequireFromString("0.01")

// StatusTranslation maps core feed statuses to business payment statuses
var StatusTranslation = map[types.FeedStatus]string{
	types.FeedStatusInit:     "new",
	types.FeedStatusPending:  "processing",
	types.FeedStatusApproved: "approved",
	types.FeedStatusDeclined: "declined",
}

// CoreReader reads the core ledger
type CoreReader interface {
	FeedByToken(ctx context.Context, token string) (*types.Feed, error)
	EntriesByFeed(ctx context.Context, feedID int64) ([]types.Entry, error)
	EntriesByWallet(ctx context.Context, walletID int64) ([]types.Entry, error)
	WalletsByMerchant(ctx context.Context, merchantID int64) ([]types.Wallet, error)
	WalletsByTrader(ctx context.Context, traderID int64) ([]types.Wallet, error)
}

// BusinessReader reads the business layer
type BusinessReader interface {
	PaymentByToken(ctx context.Context, token string) (*types.BusinessPayment, error)
	InteractionLogs(ctx context.Context, token string) ([]types.InteractionLog, error)
}

// Checker cross-checks one transaction across the ledger and the business layer
type Checker struct {
	core     CoreReader
	business BusinessReader
}

// NewChecker returns a Checker reading from core and business
func NewChecker(core CoreReader, business BusinessReader) *Checker {
	return &Checker{core: core, business: business}
}

// PANLeak is a test card number found in clear
type PANLeak struct {
	Source string
	PAN    string
}

// WalletReport is the reconciliation of one wallet
type WalletReport struct {
	Owner    string
	WalletID int64
	// Feed is the fold of the transaction's entries against the expected formula
	Feed ValidationSummary
	// Stored is the fold of every entry of the wallet against the stored row
	Stored       ValidationSummary
	Unrecognized []types.OperationCode
}

// HealthcheckResult collects every check of a transaction. Nothing fails until Assert or Err.
type HealthcheckResult struct {
	Token string

	Leaks []PANLeak

	TargetAmount decimal.Decimal
	RateDrift    decimal.Decimal

	ExpectedStatus string
	BusinessStatus string

	AmountMatch Match[decimal.Decimal]

	Merchant *WalletReport
	Trader   *WalletReport

	problems []string
}

// BasicHealthcheck fetches everything known about the transaction token and reconciles it
func (c *Checker) BasicHealthcheck(ctx context.Context, token string) (*HealthcheckResult, error) {
	var (
		payment *types.BusinessPayment
		logs    []types.InteractionLog
		feed    *types.Feed
		entries []types.Entry
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		payment, err = c.business.PaymentByToken(gctx, token)
		return err
	})
	g.Go(func() (err error) {
		logs, err = c.business.InteractionLogs(gctx, token)
		return err
	})
	g.Go(func() error {
		var err error
		feed, err = c.core.FeedByToken(gctx, token)
		if err != nil {
			return err
		}
		entries, err = c.core.EntriesByFeed(gctx, feed.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("BasicHealthcheck %s: %w", token, err)
	}

	result := &HealthcheckResult{Token: token}

	result.checkPANs(feed, payment, logs)
	result.checkRate(feed)
	result.checkStatus(feed, payment)
	result.checkAmount(feed, payment)

	merchant, err := c.reconcileMerchant(ctx, feed, entries)
	if err != nil {
		return nil, fmt.Errorf("BasicHealthcheck %s: %w", token, err)
	}
	result.Merchant = merchant
	if merchant == nil {
		result.problems = append(result.problems, fmt.Sprintf("merchant %d has no wallet", feed.MerchantID))
	}

	if feed.TraderID != nil {
		trader, err := c.reconcileTrader(ctx, feed, entries)
		if err != nil {
			return nil, fmt.Errorf("BasicHealthcheck %s: %w", token, err)
		}
		result.Trader = trader
		if trader == nil {
			result.problems = append(result.problems, fmt.Sprintf("trader %d has no wallet", *feed.TraderID))
		}
	}

	return result, nil
}

func (r *HealthcheckResult) checkPANs(feed *types.Feed, payment *types.BusinessPayment, logs []types.InteractionLog) {
	scan := func(source, text string) {
		for _, pan := range utils.FindPANs(text) {
			r.Leaks = append(r.Leaks, PANLeak{Source: source, PAN: pan})
		}
	}

	for _, log := range logs {
		scan(fmt.Sprintf("interaction log %d request", log.ID), log.RequestBody)
		scan(fmt.Sprintf("interaction log %d response", log.ID), log.ResponseBody)
	}
	scan("feed payload", string(feed.Payload))
	scan("business payment data", string(payment.Data))
}

func (r *HealthcheckResult) checkRate(feed *types.Feed) {
	r.TargetAmount = feed.TargetAmount
	r.RateDrift = feed.TargetAmount.Sub(feed.Amount.Mul(feed.Rate)).Abs()
}

func (r *HealthcheckResult) checkStatus(feed *types.Feed, payment *types.BusinessPayment) {
	r.ExpectedStatus = StatusTranslation[feed.Status]
	r.BusinessStatus = payment.Status
	if r.ExpectedStatus == "" {
		r.problems = append(r.problems, fmt.Sprintf("core status %q has no business translation", feed.Status))
	}
}

func (r *HealthcheckResult) checkAmount(feed *types.Feed, payment *types.BusinessPayment) {
	r.AmountMatch = Match[decimal.Decimal]{
		Expected: utils.FromSubunit(payment.Amount, 2),
		Got:      feed.Amount,
	}
}

// lowestWallet picks the lowest id wallet, preferring the feed currency
func lowestWallet(wallets []types.Wallet, currency string) *types.Wallet {
	if len(wallets) == 0 {
		return nil
	}

	sorted := append([]types.Wallet(nil), wallets...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for i := range sorted {
		if currency == "" || sorted[i].Currency == currency {
			return &sorted[i]
		}
	}
	return &sorted[0]
}

func (c *Checker) walletReport(ctx context.Context, owner string, wallet *types.Wallet, entries []types.Entry,
	validate func(v *EntryValidator) (ValidationSummary, error)) (*WalletReport, error) {
	feedFold := NewEntryValidator(wallet.ID).FeedAll(entries)
	summary, err := validate(feedFold)
	if err != nil {
		return nil, err
	}

	all, err := c.core.EntriesByWallet(ctx, wallet.ID)
	if err != nil {
		return nil, err
	}
	storedFold := NewEntryValidator(wallet.ID).FeedAll(all)

	return &WalletReport{
		Owner:        owner,
		WalletID:     wallet.ID,
		Feed:         summary,
		Stored:       ValidateStoredState(storedFold, *wallet),
		Unrecognized: append(feedFold.Unrecognized, storedFold.Unrecognized...),
	}, nil
}

func (c *Checker) reconcileMerchant(ctx context.Context, feed *types.Feed, entries []types.Entry) (*WalletReport, error) {
	wallets, err := c.core.WalletsByMerchant(ctx, feed.MerchantID)
	if err != nil {
		return nil, err
	}

	wallet := lowestWallet(wallets, feed.Currency)
	if wallet == nil {
		return nil, nil
	}

	return c.walletReport(ctx, fmt.Sprintf("merchant %d", feed.MerchantID), wallet, entries,
		func(v *EntryValidator) (ValidationSummary, error) {
			return ValidateMidState(v, feed.TargetAmount, feed.Commission, feed.OperationType, feed.Status)
		})
}

func (c *Checker) reconcileTrader(ctx context.Context, feed *types.Feed, entries []types.Entry) (*WalletReport, error) {
	wallets, err := c.core.WalletsByTrader(ctx, *feed.TraderID)
	if err != nil {
		return nil, err
	}

	wallet := lowestWallet(wallets, "")
	if wallet == nil {
		return nil, nil
	}

	return c.walletReport(ctx, fmt.Sprintf("trader %d", *feed.TraderID), wallet, entries,
		func(v *EntryValidator) (ValidationSummary, error) {
			return ValidateTraderState(v, feed.TargetAmount, feed.TraderCommission, feed.OperationType, feed.Status)
		})
}

func walletMismatches(report *WalletReport) []string {
	var lines []string
	if !report.Feed.AvailableMatch.Eq() {
		lines = append(lines, fmt.Sprintf("%s wallet %d available: %s", report.Owner, report.WalletID, report.Feed.AvailableMatch))
	}
	if !report.Feed.HoldMatch.Eq() {
		lines = append(lines, fmt.Sprintf("%s wallet %d hold: %s", report.Owner, report.WalletID, report.Feed.HoldMatch))
	}
	if !report.Stored.AvailableMatch.Eq() {
		lines = append(lines, fmt.Sprintf("%s wallet %d stored amount: %s", report.Owner, report.WalletID, report.Stored.AvailableMatch))
	}
	if !report.Stored.HoldMatch.Eq() {
		lines = append(lines, fmt.Sprintf("%s wallet %d stored hold: %s", report.Owner, report.WalletID, report.Stored.HoldMatch))
	}
	return lines
}

// Mismatches lists every failed check, one line each
func (r *HealthcheckResult) Mismatches() []string {
	lines := append([]string(nil), r.problems...)

	for _, leak := range r.Leaks {
		lines = append(lines, fmt.Sprintf("card number %s found in %s", utils.MaskPAN(leak.PAN), leak.Source))
	}

	if !r.TargetAmount.IsPositive() {
		lines = append(lines, fmt.Sprintf("target amount %s is not positive", r.TargetAmount))
	}
	if r.RateDrift.GreaterThan(RateTolerance) {
		lines = append(lines, fmt.Sprintf("target amount drifts from amount * rate by %s", r.RateDrift))
	}

	if r.ExpectedStatus != "" && r.ExpectedStatus != r.BusinessStatus {
		lines = append(lines, fmt.Sprintf("business status: expected %q, got %q", r.ExpectedStatus, r.BusinessStatus))
	}

	if !r.AmountMatch.Eq() {
		lines = append(lines, fmt.Sprintf("core amount: %s", r.AmountMatch))
	}

	for _, report := range []*WalletReport{r.Merchant, r.Trader} {
		if report != nil {
			lines = append(lines, walletMismatches(report)...)
		}
	}

	return lines
}

// Err returns every mismatch as one error, or nil
func (r *HealthcheckResult) Err() error {
	mismatches := r.Mismatches()
	if len(mismatches) == 0 {
		return nil
	}
	return errors.New(r.report(mismatches))
}

// Assert fails t with the full report when any check mismatched
func (r *HealthcheckResult) Assert(t assert.TestingT) bool {
	mismatches := r.Mismatches()
	if len(mismatches) == 0 {
		return true
	}
	return assert.Fail(t, fmt.Sprintf("healthcheck of %s failed", r.Token), r.report(mismatches))
}

func (r *HealthcheckResult) report(mismatches []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "healthcheck %s: %d mismatch(es)", r.Token, len(mismatches))
	for _, line := range mismatches {
		sb.WriteString("\n  - ")
		sb.WriteString(line)
	}
	return sb.String()
}

func (r *HealthcheckResult) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "healthcheck %s\n", r.Token)
	fmt.Fprintf(&sb, "  target amount: %s (rate drift %s)\n", r.TargetAmount, r.RateDrift)
	fmt.Fprintf(&sb, "  status: core->%q business=%q\n", r.ExpectedStatus, r.BusinessStatus)
	fmt.Fprintf(&sb, "  amount: %s\n", r.AmountMatch)
	for _, report := range []*WalletReport{r.Merchant, r.Trader} {
		if report == nil {
			continue
		}
		fmt.Fprintf(&sb, "  %s wallet %d: available %s, hold %s\n", report.Owner, report.WalletID,
			report.Feed.AvailableMatch, report.Feed.HoldMatch)
		if len(report.Unrecognized) > 0 {
			fmt.Fprintf(&sb, "    unrecognized operation codes: %v\n", report.Unrecognized)
		}
	}

	mismatches := r.Mismatches()
	if len(mismatches) == 0 {
		sb.WriteString("  OK")
	} else {
		sb.WriteString("  " + r.report(mismatches))
	}
	return sb.String()
}
