package harness

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/paycrest/e2e/config"
	"github.com/paycrest/e2e/services/browser"
	"github.com/paycrest/e2e/services/healthcheck"
	"github.com/paycrest/e2e/services/mockserver"
	"github.com/paycrest/e2e/services/platform"
	"github.com/paycrest/e2e/storage"
	"github.com/paycrest/e2e/utils/logger"
	"github.com/redis/go-redis/v9"
)

// SharedState holds what is expensive to create and lives for the whole suite:
// database pools, mock listeners, the scheduler and the browser process
type SharedState struct {
	Config *config.Configuration

	CoreDB     *sql.DB
	BusinessDB *sql.DB
	Core       *storage.CoreRepository
	Business   *storage.BusinessRepository
	Redis      *redis.Client
	Platform   *platform.Clients
	Checker    *healthcheck.Checker

	Mocks     *mockserver.Registry
	Merchants *mockserver.MerchantServer
	Scheduler *mockserver.Scheduler
	Browser   *browser.Browser
}

// NewMockState starts the mock side only: provider registry, merchant server,
// scheduler and a browser that starts on first use
func NewMockState(conf *config.Configuration) (*SharedState, error) {
	addr := net.JoinHostPort(conf.Mock.Host, strconv.Itoa(conf.Mock.MerchantPort))
	publicBase := "http://" + net.JoinHostPort(conf.Mock.PublicHost, strconv.Itoa(conf.Mock.MerchantPort))

	merchants, err := mockserver.SpawnMerchantServer(addr, publicBase)
	if err != nil {
		return nil, fmt.Errorf("NewMockState: %w", err)
	}

	return &SharedState{
		Config:    conf,
		Mocks:     mockserver.NewRegistry(&conf.Mock),
		Merchants: merchants,
		Scheduler: mockserver.NewScheduler(),
		Browser:   browser.New(&conf.Browser),
	}, nil
}

// Setup builds the suite state against a live platform. Call it once from TestMain.
func Setup(ctx context.Context, conf *config.Configuration) (*SharedState, error) {
	shared, err := NewMockState(conf)
	if err != nil {
		return nil, err
	}

	fail := func(err error) (*SharedState, error) {
		shared.Close()
		return nil, fmt.Errorf("Setup: %w", err)
	}

	if shared.CoreDB, err = storage.DBConnection(ctx, conf.Database.CoreDSN, &conf.Database); err != nil {
		return fail(err)
	}
	if shared.BusinessDB, err = storage.DBConnection(ctx, conf.Database.BusinessDSN, &conf.Database); err != nil {
		return fail(err)
	}
	shared.Core = storage.NewCoreRepository(shared.CoreDB)
	shared.Business = storage.NewBusinessRepository(shared.BusinessDB)
	shared.Checker = healthcheck.NewChecker(shared.Core, shared.Business)

	if conf.Platform.RedisURL != "" {
		if shared.Redis, err = storage.InitializeRedis(ctx, conf.Platform.RedisURL); err != nil {
			return fail(err)
		}
	}

	shared.Platform = platform.New(&conf.Platform, storage.NewSettingsCache(shared.Redis, conf.Platform.SettingsCachePrefix))
	if err := shared.Platform.Core.Login(ctx); err != nil {
		return fail(err)
	}

	logger.WithFields(logger.Fields{
		"Core":      conf.Platform.CoreURL,
		"Business":  conf.Platform.BusinessURL,
		"Merchants": shared.Merchants.Port(),
	}).Infof("suite state ready")

	return shared, nil
}

// Close releases everything Setup acquired
func (s *SharedState) Close() {
	if s.Scheduler != nil {
		s.Scheduler.Stop()
	}
	if s.Mocks != nil {
		s.Mocks.Close()
	}
	if s.Merchants != nil {
		_ = s.Merchants.Close()
	}
	if s.Browser != nil {
		s.Browser.Close()
	}
	if s.Redis != nil {
		_ = s.Redis.Close()
	}
	for _, db := range []*sql.DB{s.CoreDB, s.BusinessDB} {
		if db != nil {
			_ = db.Close()
		}
	}
}
