package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/paycrest/e2e/config"
	"github.com/paycrest/e2e/services/mockserver"
	"github.com/paycrest/e2e/types"
	u "github.com/paycrest/e2e/utils"
	"github.com/paycrest/e2e/utils/logger"
	"github.com/spf13/cobra"
)

// logScope is the scope of requests no test owns: everything goes to the log
type logScope struct {
	alias string
}

func (s logScope) Fail(err error) {
	logger.WithFields(logger.Fields{
		"Alias": s.alias,
		"Error": fmt.Sprintf("%v", err),
	}).Errorf("mock failure")
}

func (s logScope) Chapter(name string, content interface{}) {
	logger.WithFields(logger.Fields{
		"Alias":   s.alias,
		"Content": content,
	}).Infof("%s", name)
}

// diagnosticHandler echoes what reached an alias nobody registered on
func diagnosticHandler(alias string) types.Handler {
	return func(c *gin.Context) error {
		body := mockserver.RequestBody(c)

		logger.WithFields(logger.Fields{
			"Alias":  alias,
			"Method": c.Request.Method,
			"Path":   c.Request.URL.Path,
			"Body":   string(body),
		}).Infof("diagnostic request")

		u.APIResponse(c, http.StatusOK, "success", "mock "+alias+" is up", gin.H{
			"alias":  alias,
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"query":  c.Request.URL.Query(),
		})
		return nil
	}
}

// serveMocks spawns every configured alias with a catch-all diagnostic route and
// the merchant server. The returned func stops them.
func serveMocks(conf *config.MockConfiguration) (*mockserver.Registry, *mockserver.MerchantServer, func(), error) {
	registry := mockserver.NewRegistry(conf)

	for _, alias := range conf.Aliases() {
		params := types.MockProviderParams{
			Alias:  alias,
			Filter: func(r *http.Request) bool { return true },
		}
		if _, err := registry.Register(params, logScope{alias: alias}, diagnosticHandler(alias)); err != nil {
			registry.Close()
			return nil, nil, nil, err
		}
	}

	addr := net.JoinHostPort(conf.Host, strconv.Itoa(conf.MerchantPort))
	publicBase := "http://" + net.JoinHostPort(conf.PublicHost, strconv.Itoa(conf.MerchantPort))
	merchants, err := mockserver.SpawnMerchantServer(addr, publicBase)
	if err != nil {
		registry.Close()
		return nil, nil, nil, err
	}

	stop := func() {
		registry.Close()
		_ = merchants.Close()
	}
	return registry, merchants, stop, nil
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the mock provider and merchant servers until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf := config.MockConfig()

			registry, merchants, stop, err := serveMocks(conf)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer stop()

			for _, alias := range conf.Aliases() {
				url, err := registry.URL(alias)
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				logger.WithFields(logger.Fields{
					"Alias": alias,
					"URL":   url,
				}).Infof("provider mock listening")
			}
			logger.WithFields(logger.Fields{
				"Port": merchants.Port(),
			}).Infof("merchant server listening")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			<-ctx.Done()

			logger.Infof("shutting down")
			return nil
		},
	}
}
