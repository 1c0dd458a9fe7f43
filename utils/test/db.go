package test

import (
	"fmt"
	"time"

	"github.com/paycrest/e2e/types"
	"github.com/shopspring/decimal"
)

// CreateTestFeed creates a test feed with default or custom values
func CreateTestFeed(overrides map[string]interface{}) *types.Feed {

	// Default payload
	payload := map[string]interface{}{
		"id":                int64(1),
		"token":             "tok-test",
		"merchant_id":       int64(7),
		"operation_type":    types.OperationPay,
		"status":            types.FeedStatusApproved,
		"currency":          "RUB",
		"amount":            "1000",
		"rate":              "1",
		"commission":        "0",
		"trader_commission": "0",
	}

	// Apply overrides
	for key, value := range overrides {
		payload[key] = value
	}

	feed := &types.Feed{
		ID:               payload["id"].(int64),
		Token:            payload["token"].(string),
		MerchantID:       payload["merchant_id"].(int64),
		OperationType:    payload["operation_type"].(types.OperationType),
		Status:           payload["status"].(types.FeedStatus),
		Currency:         payload["currency"].(string),
		Amount:           toDecimal(payload["amount"]),
		Rate:             toDecimal(payload["rate"]),
		Commission:       toDecimal(payload["commission"]),
		TraderCommission: toDecimal(payload["trader_commission"]),
		CreatedAt:        time.Now(),
	}

	if target, ok := payload["target_amount"]; ok {
		feed.TargetAmount = toDecimal(target)
	} else {
		feed.TargetAmount = feed.Amount.Mul(feed.Rate)
	}

	if traderID, ok := payload["trader_id"].(int64); ok {
		feed.TraderID = &traderID
	}

	if raw, ok := payload["payload"].(string); ok {
		feed.Payload = []byte(raw)
	}

	return feed
}

// CreateTestWallet creates a merchant wallet unless trader_id is given
func CreateTestWallet(overrides map[string]interface{}) types.Wallet {
	payload := map[string]interface{}{
		"id":       int64(100),
		"currency": "RUB",
		"amount":   "0",
		"hold":     "0",
	}
	for key, value := range overrides {
		payload[key] = value
	}

	wallet := types.Wallet{
		ID:       payload["id"].(int64),
		Currency: payload["currency"].(string),
		Amount:   toDecimal(payload["amount"]),
		Hold:     toDecimal(payload["hold"]),
	}

	if traderID, ok := payload["trader_id"].(int64); ok {
		wallet.TraderID = &traderID
	} else {
		merchantID := int64(7)
		if id, ok := payload["merchant_id"].(int64); ok {
			merchantID = id
		}
		wallet.MerchantID = &merchantID
	}

	return wallet
}

// NewTestEntry builds an entry moving amount from debit to credit
func NewTestEntry(code types.OperationCode, amount interface{}, debitWalletID, creditWalletID int64) types.Entry {
	return types.Entry{
		Amount:         toDecimal(amount),
		OperationCode:  code,
		DebitWalletID:  debitWalletID,
		CreditWalletID: creditWalletID,
		CreatedAt:      time.Now(),
	}
}

func toDecimal(value interface{}) decimal.Decimal {
	switch v := value.(type) {
	case decimal.Decimal:
		return v
	case string:
		return decimal.RequireFromString(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case float64:
		return decimal.NewFromFloat(v)
	default:
		panic(fmt.Sprintf("unsupported amount %T", value))
	}
}
