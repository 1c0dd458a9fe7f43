package mockserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paycrest/e2e/types"
	u "github.com/paycrest/e2e/utils"
	"github.com/paycrest/e2e/utils/logger"
)

type queuedHandler struct {
	scope   types.TestScope
	handler types.Handler
}

// MerchantServer receives the platform's merchant notifications. The platform posts to
// one callback origin per merchant id, so every merchant gets its own FIFO of handlers.
type MerchantServer struct {
	listener   net.Listener
	server     *http.Server
	publicBase string

	mu     sync.Mutex
	queues map[int64][]queuedHandler
}

// SpawnMerchantServer binds addr; publicBase is the origin the platform reaches it on
func SpawnMerchantServer(addr string, publicBase string) (*MerchantServer, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("SpawnMerchantServer: %w", err)
	}

	s := &MerchantServer{
		listener:   listener,
		publicBase: strings.TrimRight(publicBase, "/"),
		queues:     make(map[int64][]queuedHandler),
	}

	engine := gin.New()
	engine.Use(RequestLogger("merchant"))
	engine.Any("/merchant/*path", s.handle)

	s.server = &http.Server{
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logger.Fields{
				"Error": fmt.Sprintf("%v", err),
			}).Errorf("Merchant server stopped")
		}
	}()

	return s, nil
}

// Port is the bound port
func (s *MerchantServer) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// CallbackURL is the notification URL to configure for merchantID
func (s *MerchantServer) CallbackURL(merchantID int64) string {
	return fmt.Sprintf("%s/merchant/%d", s.publicBase, merchantID)
}

// Queue appends a one-shot handler for the next notification to merchantID
func (s *MerchantServer) Queue(merchantID int64, scope types.TestScope, handler types.Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[merchantID] = append(s.queues[merchantID], queuedHandler{scope: scope, handler: handler})
}

// Expect queues a handler accepting the next notification and delivers it on the channel
func (s *MerchantServer) Expect(merchantID int64, scope types.TestScope) <-chan types.Notification {
	ch := make(chan types.Notification, 1)

	s.Queue(merchantID, scope, func(c *gin.Context) error {
		raw := RequestBody(c)
		notification := types.Notification{
			MerchantID: merchantID,
			Header:     c.Request.Header.Clone(),
			Raw:        raw,
			Body:       decodeNotification(c.ContentType(), raw),
		}

		scope.Chapter(fmt.Sprintf("merchant %d notification", merchantID), u.PrettyJSON(raw))

		c.String(http.StatusOK, "OK")
		ch <- notification
		return nil
	})

	return ch
}

// Pending is the number of handlers still queued for merchantID
func (s *MerchantServer) Pending(merchantID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[merchantID])
}

// Close stops the listener
func (s *MerchantServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *MerchantServer) handle(c *gin.Context) {
	segment := strings.SplitN(strings.TrimPrefix(c.Param("path"), "/"), "/", 2)[0]
	merchantID, err := strconv.ParseInt(segment, 10, 64)
	if err != nil {
		u.APIResponse(c, http.StatusBadRequest, "error", "merchant id must be numeric", gin.H{
			"path": c.Request.URL.Path,
		})
		return
	}

	s.mu.Lock()
	queue := s.queues[merchantID]
	var next *queuedHandler
	if len(queue) > 0 {
		next = &queue[0]
		s.queues[merchantID] = queue[1:]
	}
	s.mu.Unlock()

	if next == nil {
		logger.WithFields(logger.Fields{
			"MerchantID": merchantID,
			"Method":     c.Request.Method,
			"Path":       c.Request.URL.Path,
		}).Warnf("No merchant handler queued")

		u.APIResponse(c, http.StatusOK, "error", "no merchant handler queued", gin.H{
			"merchant_id": merchantID,
			"path":        c.Request.URL.Path,
		})
		return
	}

	if err := runHandler(next.handler, c); err != nil {
		next.scope.Fail(fmt.Errorf("merchant %d notification: %w", merchantID, err))
		if !c.Writer.Written() {
			u.APIResponse(c, http.StatusInternalServerError, "error", err.Error(), nil)
		}
	}
}

func decodeNotification(contentType string, raw []byte) map[string]interface{} {
	body := map[string]interface{}{}

	if contentType == "application/x-www-form-urlencoded" {
		values, err := url.ParseQuery(string(raw))
		if err == nil {
			for key := range values {
				body[key] = values.Get(key)
			}
		}
		return body
	}

	if err := json.Unmarshal(raw, &body); err != nil {
		logger.WithFields(logger.Fields{
			"Error": fmt.Sprintf("%v", err),
		}).Debugf("Merchant notification is not JSON")
	}
	return body
}
