package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/paycrest/e2e/types"
)

// ErrNotFound is returned when a projection query matched no row
var ErrNotFound = errors.New("record not found")

const feedColumns = `id, token, merchant_id, trader_id, operation_type, status, currency,
	amount, COALESCE(target_amount, 0), COALESCE(rate, 1), COALESCE(commission, 0),
	COALESCE(trader_commission, 0), payload, created_at`

const entryColumns = `id, feed_id, amount, operation_code, debit_wallet_id, credit_wallet_id, created_at`

const walletColumns = `id, merchant_id, trader_id, currency, amount, hold`

// CoreRepository reads the core ledger. It never writes.
type CoreRepository struct {
	db *sql.DB
}

// NewCoreRepository returns a CoreRepository over the core ledger pool
func NewCoreRepository(db *sql.DB) *CoreRepository {
	return &CoreRepository{db: db}
}

// FeedByToken fetches the feed of a payment token
func (r *CoreRepository) FeedByToken(ctx context.Context, token string) (*types.Feed, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+feedColumns+` FROM feeds WHERE token = $1 ORDER BY id DESC LIMIT 1`, token)

	var feed types.Feed
	var traderID sql.NullInt64
	var payload []byte
	err := row.Scan(
		&feed.ID, &feed.Token, &feed.MerchantID, &traderID, &feed.OperationType, &feed.Status,
		&feed.Currency, &feed.Amount, &feed.TargetAmount, &feed.Rate, &feed.Commission,
		&feed.TraderCommission, &payload, &feed.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("FeedByToken %s: %w", token, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("FeedByToken: %w", err)
	}

	if traderID.Valid {
		feed.TraderID = &traderID.Int64
	}
	feed.Payload = payload

	return &feed, nil
}

// EntriesByFeed lists a feed's entries in creation order
func (r *CoreRepository) EntriesByFeed(ctx context.Context, feedID int64) ([]types.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE feed_id = $1 ORDER BY created_at, id`, feedID)
	if err != nil {
		return nil, fmt.Errorf("EntriesByFeed: %w", err)
	}
	return scanEntries(rows)
}

// EntriesByWallet lists every entry touching a wallet in creation order
func (r *CoreRepository) EntriesByWallet(ctx context.Context, walletID int64) ([]types.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM entries WHERE debit_wallet_id = $1 OR credit_wallet_id = $1 ORDER BY created_at, id`,
		walletID)
	if err != nil {
		return nil, fmt.Errorf("EntriesByWallet: %w", err)
	}
	return scanEntries(rows)
}

// WalletsByMerchant lists a merchant's wallets by id
func (r *CoreRepository) WalletsByMerchant(ctx context.Context, merchantID int64) ([]types.Wallet, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE merchant_id = $1 ORDER BY id`, merchantID)
	if err != nil {
		return nil, fmt.Errorf("WalletsByMerchant: %w", err)
	}
	return scanWallets(rows)
}

// WalletsByTrader lists a trader's wallets by id
func (r *CoreRepository) WalletsByTrader(ctx context.Context, traderID int64) ([]types.Wallet, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE trader_id = $1 ORDER BY id`, traderID)
	if err != nil {
		return nil, fmt.Errorf("WalletsByTrader: %w", err)
	}
	return scanWallets(rows)
}

func scanEntries(rows *sql.Rows) ([]types.Entry, error) {
	defer rows.Close()

	var entries []types.Entry
	for rows.Next() {
		var e types.Entry
		if err := rows.Scan(&e.ID, &e.FeedID, &e.Amount, &e.OperationCode, &e.DebitWalletID, &e.CreditWalletID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func scanWallets(rows *sql.Rows) ([]types.Wallet, error) {
	defer rows.Close()

	var wallets []types.Wallet
	for rows.Next() {
		var w types.Wallet
		var merchantID, traderID sql.NullInt64
		if err := rows.Scan(&w.ID, &merchantID, &traderID, &w.Currency, &w.Amount, &w.Hold); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		if merchantID.Valid {
			w.MerchantID = &merchantID.Int64
		}
		if traderID.Valid {
			w.TraderID = &traderID.Int64
		}
		wallets = append(wallets, w)
	}

	return wallets, rows.Err()
}
