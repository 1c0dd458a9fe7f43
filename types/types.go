package types

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Filter decides whether a request sent to a shared provider port belongs to a test.
// The dispatcher restores the request body before every call, so a filter may read it.
type Filter func(r *http.Request) bool

// Handler answers one request on a mock server. A returned error fails the owning test.
type Handler func(c *gin.Context) error

// MockProviderParams identifies which provider server a merchant's secret routes to
type MockProviderParams struct {
	Alias  string
	Filter Filter
}

// TestScope is what mock components need from the test that owns them
type TestScope interface {
	// Fail reports an out-of-band failure to the owning test
	Fail(err error)
	// Chapter appends an entry to the test's narrative log
	Chapter(name string, content interface{})
}

// ProviderDefinition is the capability every provider simulator exposes
type ProviderDefinition interface {
	Alias() string
	// Settings is the gateway fragment of the merchant settings routing to this mock
	Settings(secret string) map[string]interface{}
	// MockParams selects this secret's traffic on the alias port
	MockParams(secret string) MockProviderParams
}

// OperationType is the kind of a ledger feed
type OperationType string

const (
	OperationPay     OperationType = "pay"
	OperationPayout  OperationType = "payout"
	OperationRefund  OperationType = "refund"
	OperationDispute OperationType = "dispute"
)

// FeedStatus is the core ledger status of a feed
type FeedStatus string

const (
	FeedStatusInit     FeedStatus = "init"
	FeedStatusPending  FeedStatus = "pending"
	FeedStatusApproved FeedStatus = "approved"
	FeedStatusDeclined FeedStatus = "declined"
)

// OperationCode identifies the bookkeeping rule of a ledger entry
type OperationCode int

// Entry is an immutable accounting record of the core ledger journal
type Entry struct {
	ID             int64
	FeedID         int64
	Amount         decimal.Decimal
	OperationCode  OperationCode
	DebitWalletID  int64
	CreditWalletID int64
	CreatedAt      time.Time
}

// Wallet is the stored balance row of a merchant or trader
type Wallet struct {
	ID         int64
	MerchantID *int64
	TraderID   *int64
	Currency   string
	Amount     decimal.Decimal
	Hold       decimal.Decimal
}

// Feed is the core ledger record of one payment, payout, refund or dispute
type Feed struct {
	ID               int64
	Token            string
	MerchantID       int64
	TraderID         *int64
	OperationType    OperationType
	Status           FeedStatus
	Currency         string
	Amount           decimal.Decimal
	TargetAmount     decimal.Decimal
	Rate             decimal.Decimal
	Commission       decimal.Decimal
	TraderCommission decimal.Decimal
	Payload          json.RawMessage
	CreatedAt        time.Time
}

// BusinessPayment is the business layer's record of a payment, amount in minor units
type BusinessPayment struct {
	Token     string
	Status    string
	Amount    int64
	Currency  string
	Data      json.RawMessage
	CreatedAt time.Time
}

// InteractionLog is one request/response exchange the business layer had with a gateway
type InteractionLog struct {
	ID           int64
	Token        string
	Kind         string
	RequestBody  string
	ResponseBody string
	CreatedAt    time.Time
}

// Notification is a webhook the platform delivered to a merchant
type Notification struct {
	MerchantID int64
	Header     http.Header
	Body       map[string]interface{}
	Raw        []byte
}
