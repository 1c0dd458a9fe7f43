package test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/paycrest/e2e/types"
	"github.com/stretchr/testify/mock"
)

// Scope records what mock components report to their owning test
type Scope struct {
	mu       sync.Mutex
	errors   []error
	chapters []Chapter
	failed   chan struct{}
	once     sync.Once
}

// Chapter is one recorded narrative entry
type Chapter struct {
	Name    string
	Content interface{}
}

// NewScope returns an empty Scope
func NewScope() *Scope {
	return &Scope{failed: make(chan struct{})}
}

// Fail records err
func (s *Scope) Fail(err error) {
	s.mu.Lock()
	s.errors = append(s.errors, err)
	s.mu.Unlock()
	s.once.Do(func() { close(s.failed) })
}

// Chapter records a narrative entry
func (s *Scope) Chapter(name string, content interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chapters = append(s.chapters, Chapter{Name: name, Content: content})
}

// Errors returns the recorded failures
func (s *Scope) Errors() []error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]error(nil), s.errors...)
}

// Chapters returns the recorded narrative
func (s *Scope) Chapters() []Chapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Chapter(nil), s.chapters...)
}

// WaitFailure blocks until the first failure and returns it, or nil after timeout
func (s *Scope) WaitFailure(timeout time.Duration) error {
	select {
	case <-s.failed:
		return s.Errors()[0]
	case <-time.After(timeout):
		return nil
	}
}

var _ types.TestScope = (*Scope)(nil)

// MockCoreReader mocks the core ledger projections
type MockCoreReader struct {
	mock.Mock
}

// FeedByToken mocks the FeedByToken method
func (m *MockCoreReader) FeedByToken(ctx context.Context, token string) (*types.Feed, error) {
	args := m.Called(ctx, token)
	feed, _ := args.Get(0).(*types.Feed)
	return feed, args.Error(1)
}

// EntriesByFeed mocks the EntriesByFeed method
func (m *MockCoreReader) EntriesByFeed(ctx context.Context, feedID int64) ([]types.Entry, error) {
	args := m.Called(ctx, feedID)
	entries, _ := args.Get(0).([]types.Entry)
	return entries, args.Error(1)
}

// EntriesByWallet mocks the EntriesByWallet method
func (m *MockCoreReader) EntriesByWallet(ctx context.Context, walletID int64) ([]types.Entry, error) {
	args := m.Called(ctx, walletID)
	entries, _ := args.Get(0).([]types.Entry)
	return entries, args.Error(1)
}

// WalletsByMerchant mocks the WalletsByMerchant method
func (m *MockCoreReader) WalletsByMerchant(ctx context.Context, merchantID int64) ([]types.Wallet, error) {
	args := m.Called(ctx, merchantID)
	wallets, _ := args.Get(0).([]types.Wallet)
	return wallets, args.Error(1)
}

// WalletsByTrader mocks the WalletsByTrader method
func (m *MockCoreReader) WalletsByTrader(ctx context.Context, traderID int64) ([]types.Wallet, error) {
	args := m.Called(ctx, traderID)
	wallets, _ := args.Get(0).([]types.Wallet)
	return wallets, args.Error(1)
}

// MockBusinessReader mocks the business layer projections
type MockBusinessReader struct {
	mock.Mock
}

// PaymentByToken mocks the PaymentByToken method
func (m *MockBusinessReader) PaymentByToken(ctx context.Context, token string) (*types.BusinessPayment, error) {
	args := m.Called(ctx, token)
	payment, _ := args.Get(0).(*types.BusinessPayment)
	return payment, args.Error(1)
}

// InteractionLogs mocks the InteractionLogs method
func (m *MockBusinessReader) InteractionLogs(ctx context.Context, token string) ([]types.InteractionLog, error) {
	args := m.Called(ctx, token)
	logs, _ := args.Get(0).([]types.InteractionLog)
	return logs, args.Error(1)
}

// String lets a Scope show up readably in assertion output
func (s *Scope) String() string {
	return fmt.Sprintf("Scope{errors: %v, chapters: %d}", s.Errors(), len(s.Chapters()))
}
