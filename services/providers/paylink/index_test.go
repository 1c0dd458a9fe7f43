package paylink

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jarcoal/httpmock"
	"github.com/paycrest/e2e/services/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const createForm = "shop_id=paylink-secret&order_id=o-1&amount=1000&currency=RUB&description=test"

func newProvider() *Provider {
	p := New("paylink-secret", providers.WithCallbackURL("https://platform.test/callbacks/paylink"))
	p.GatewayID = "gw-1"
	return p
}

func TestProvider(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("create handler", func(t *testing.T) {
		p := newProvider()

		res := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(res)
		c.Request = httptest.NewRequest(http.MethodPost, "/invoice/create", strings.NewReader(createForm))
		c.Request.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		require.NoError(t, p.CreateHandler(StatusWait)(c))

		var data map[string]interface{}
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &data))
		assert.Equal(t, "ok", data["result"])
		assert.Equal(t, "wait", data["status"])
		assert.Equal(t, "1000.00", data["amount"])
		requisites := data["requisites"].(map[string]interface{})
		assert.Equal(t, providers.RequisiteFor("o-1").Phone, requisites["sbp_phone"])
	})

	t.Run("validation errors", func(t *testing.T) {
		p := newProvider()
		cases := map[string]string{
			"missing shop":   "order_id=o-1&amount=10&currency=RUB",
			"bad amount":     "shop_id=s&order_id=o-1&amount=ten&currency=RUB",
			"zero amount":    "shop_id=s&order_id=o-1&amount=0&currency=RUB",
			"bad currency":   "shop_id=s&order_id=o-1&amount=10&currency=rubles",
			"bad return url": "shop_id=s&order_id=o-1&amount=10&currency=RUB&success_url=::",
		}
		for name, form := range cases {
			_, err := p.CreateResponse([]byte(form), StatusWait)
			var invalid providers.ErrInvalidRequest
			assert.True(t, errors.As(err, &invalid), name)
		}

		_, err := p.CreateResponse([]byte("order_id=o-1"), StatusWait)
		assert.ErrorContains(t, err, "ShopID failed on required")
	})

	t.Run("status before create", func(t *testing.T) {
		_, err := newProvider().StatusResponse(StatusPaid)
		var noData providers.ErrNoRequestData
		assert.True(t, errors.As(err, &noData))
	})

	t.Run("status response", func(t *testing.T) {
		p := newProvider()
		_, err := p.CreateResponse([]byte(createForm), StatusWait)
		require.NoError(t, err)

		status, err := p.StatusResponse(StatusCancel)
		require.NoError(t, err)
		assert.Equal(t, StatusCancel, status["status"])
		assert.Equal(t, "o-1", status["order_id"])
	})

	t.Run("callback sign", func(t *testing.T) {
		p := newProvider()
		_, err := p.CreateResponse([]byte(createForm), StatusWait)
		require.NoError(t, err)

		body, headers, err := p.Callback(StatusPaid)
		require.NoError(t, err)
		assert.Equal(t, "application/x-www-form-urlencoded", headers["Content-Type"])

		form, err := url.ParseQuery(string(body))
		require.NoError(t, err)
		assert.Equal(t, "1000.00", form.Get("amount"))
		assert.Equal(t, "paid", form.Get("status"))
		assert.Equal(t, "3cefeec844b9591c16028d390fc35ff6", form.Get("sign"))
	})

	t.Run("send callback", func(t *testing.T) {
		httpmock.Activate()
		defer httpmock.DeactivateAndReset()

		httpmock.RegisterResponder("POST", "https://platform.test/callbacks/paylink",
			func(r *http.Request) (*http.Response, error) {
				raw, _ := io.ReadAll(r.Body)
				form, _ := url.ParseQuery(string(raw))
				if form.Get("sign") != Sign(form.Get("order_id"), form.Get("amount"), Status(form.Get("status")), "paylink-secret") {
					return httpmock.NewStringResponse(400, "sign mismatch"), nil
				}
				return httpmock.NewStringResponse(200, "YES"), nil
			})

		p := newProvider()
		_, err := p.CreateResponse([]byte(createForm), StatusWait)
		require.NoError(t, err)

		delivery, err := p.SendCallback(context.Background(), StatusPaid)
		require.NoError(t, err)
		assert.Equal(t, "YES", delivery.Body)
	})

	t.Run("send callback without endpoint", func(t *testing.T) {
		p := New("s")
		_, err := p.CreateResponse([]byte(createForm), StatusWait)
		require.NoError(t, err)

		_, err = p.SendCallback(context.Background(), StatusPaid)
		assert.ErrorContains(t, err, "no callback url")
	})
}

func TestDefinition(t *testing.T) {
	params := Definition{}.MockParams("shop-1")

	req := httptest.NewRequest(http.MethodPost, "/invoice/create", strings.NewReader("shop_id=shop-1&amount=10"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.True(t, params.Filter(req))

	req = httptest.NewRequest(http.MethodPost, "/invoice/create", strings.NewReader("shop_id=shop-2&amount=10"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	assert.False(t, params.Filter(req))

	req = httptest.NewRequest(http.MethodGet, "/invoice/status?shop_id=shop-1", nil)
	assert.True(t, params.Filter(req))

	assert.Equal(t, "shop-1", Definition{}.Settings("shop-1")["shop_id"])
}
