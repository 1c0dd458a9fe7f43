package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	fastshot "github.com/opus-domini/fast-shot"
	"github.com/paycrest/e2e/utils"
	"github.com/paycrest/e2e/utils/logger"
)

// ErrAPI is a 4xx answer of a platform API: {"error": {"code", "message"}}
type ErrAPI struct {
	Status  int
	Code    string
	Message string
}

func (e *ErrAPI) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
}

// Session is a jar of one cookie set: whatever the last response set is replayed
type Session struct {
	mu      sync.Mutex
	cookies map[string]string
}

// Capture keeps the cookies set by res
func (s *Session) Capture(res *http.Response) {
	if res == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, cookie := range res.Cookies() {
		if s.cookies == nil {
			s.cookies = map[string]string{}
		}
		s.cookies[cookie.Name] = cookie.Value
	}
}

// Cookie renders the Cookie header value, "" when nothing was captured
func (s *Session) Cookie() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	pairs := make([]string, 0, len(s.cookies))
	for name, value := range s.cookies {
		pairs = append(pairs, name+"="+value)
	}
	sort.Strings(pairs)
	return strings.Join(pairs, "; ")
}

// body is an encoded request body with its content type
type body struct {
	contentType string
	raw         string
}

func formBody(values url.Values) *body {
	return &body{contentType: "application/x-www-form-urlencoded", raw: values.Encode()}
}

func jsonBody(v interface{}) (*body, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &body{contentType: "application/json", raw: string(raw)}, nil
}

// client is the transport shared by every platform API client
type client struct {
	baseURL string
	timeout time.Duration
	session *Session
}

func newClient(baseURL string, timeout time.Duration, session *Session) *client {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &client{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout, session: session}
}

// send performs one call. >=500 answers become utils.ErrBadStatus and 4xx answers *ErrAPI;
// otherwise the raw body is returned.
func (c *client) send(ctx context.Context, method, path string, headers map[string]string, b *body) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	all := map[string]string{"Accept": "application/json"}
	for k, v := range headers {
		all[k] = v
	}
	if c.session != nil {
		if cookie := c.session.Cookie(); cookie != "" {
			all["Cookie"] = cookie
		}
	}
	if b != nil {
		all["Content-Type"] = b.contentType
	}

	builder := fastshot.NewClient(c.baseURL).
		Config().SetTimeout(c.timeout).
		Header().AddAll(all).
		Build()

	var res fastshot.Response
	var err error
	switch method {
	case http.MethodGet:
		res, err = builder.GET(path).Send()
	case http.MethodPost:
		res, err = builder.POST(path).Body().AsString(bodyString(b)).Send()
	case http.MethodPut:
		res, err = builder.PUT(path).Body().AsString(bodyString(b)).Send()
	case http.MethodDelete:
		res, err = builder.DELETE(path).Send()
	default:
		return nil, fmt.Errorf("unsupported method %s", method)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	raw, err := utils.ReadResponseBody(res.RawResponse)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if c.session != nil {
		c.session.Capture(res.RawResponse)
	}

	code := res.StatusCode()
	logger.WithFields(logger.Fields{
		"Method": method,
		"URL":    c.baseURL + path,
		"Status": code,
	}).Debugf("platform call")

	if err := utils.CheckStatus(c.baseURL+path, code, string(raw)); err != nil {
		return nil, err
	}
	if code >= http.StatusBadRequest {
		return nil, parseAPIError(code, raw)
	}

	return raw, nil
}

func bodyString(b *body) string {
	if b == nil {
		return ""
	}
	return b.raw
}

func parseAPIError(code int, raw []byte) *ErrAPI {
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error.Code == "" {
		return &ErrAPI{Status: code, Code: http.StatusText(code), Message: string(raw)}
	}
	return &ErrAPI{Status: code, Code: payload.Error.Code, Message: payload.Error.Message}
}

// decode unmarshals a JSON answer into v
func decode(raw []byte, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("failed to parse JSON response %q: %w", string(raw), err)
	}
	return nil
}
