package aurapay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jarcoal/httpmock"
	"github.com/paycrest/e2e/services/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secret     = "aurapay-secret-key"
	createBody = `{"merchant_key":"aurapay-secret-key","order_id":"o-1","amount":1000,"currency":"RUB","type":"PAYIN","callback_url":"https://platform.test/callbacks/aurapay"}`
)

func newProvider() *Provider {
	p := New(secret)
	p.GatewayID = "gw-1"
	return p
}

func TestProvider(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("create handler", func(t *testing.T) {
		p := newProvider()

		res := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(res)
		c.Request = httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(createBody))
		require.NoError(t, p.CreateHandler(StatusWaiting)(c))

		var data struct {
			Code       int                 `json:"code"`
			Order      Order               `json:"order"`
			Requisites providers.Requisite `json:"requisites"`
		}
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &data))
		assert.Equal(t, StatusWaiting, data.Order.Status)
		assert.Equal(t, "1000.00", data.Order.Amount)
		assert.Equal(t, providers.RequisiteFor("o-1"), data.Requisites)
	})

	t.Run("payouts carry no requisites", func(t *testing.T) {
		p := newProvider()
		response, err := p.CreateResponse([]byte(strings.Replace(createBody, "PAYIN", "PAYOUT", 1)), StatusWaiting)
		require.NoError(t, err)
		assert.NotContains(t, response, "requisites")
	})

	t.Run("schema violations", func(t *testing.T) {
		p := newProvider()
		for _, body := range []string{
			`{"order_id":"o-1","amount":1000,"currency":"RUB"}`,
			`{"merchant_key":"k","order_id":"o-1","amount":"1000","currency":"RUB"}`,
			`{"merchant_key":"k","order_id":"o-1","amount":1000,"currency":"RUB","type":"REFUND"}`,
		} {
			_, err := p.CreateResponse([]byte(body), StatusWaiting)
			var invalid providers.ErrInvalidRequest
			assert.True(t, errors.As(err, &invalid), body)
		}
	})

	t.Run("status before create", func(t *testing.T) {
		_, _, err := newProvider().Callback(StatusSuccess)
		var noData providers.ErrNoRequestData
		assert.True(t, errors.As(err, &noData))
	})

	t.Run("callback encryption and sign", func(t *testing.T) {
		p := newProvider()
		_, err := p.CreateResponse([]byte(createBody), StatusWaiting)
		require.NoError(t, err)

		body, _, err := p.Callback(StatusSuccess)
		require.NoError(t, err)

		var n Notification
		require.NoError(t, json.Unmarshal(body, &n))
		assert.Equal(t, "ZTy6YXEBjXkfTxC5Kan4C4ZWU+s8keEokar5cs8TnTzWPwy2P63B6YXwyOYJxucCipKk+udoAx0TpuTaLQuNAt0lKJr4MTbv3M+eSBTWDxW504/Rb01nmOLn0wM0OtJp", n.Data)
		assert.Equal(t, "6f826499bd709776c3c3100e011086738ea11f2c141531963557fd2954c12248", n.Sign)

		order, err := Decrypt(n, secret)
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, order.Status)
		assert.Equal(t, "o-1", order.OrderID)

		_, err = Decrypt(n, "other-secret")
		assert.Error(t, err)
	})

	t.Run("send callback", func(t *testing.T) {
		httpmock.Activate()
		defer httpmock.DeactivateAndReset()

		var received *Order
		httpmock.RegisterResponder("POST", "https://platform.test/callbacks/aurapay",
			func(r *http.Request) (*http.Response, error) {
				raw, _ := io.ReadAll(r.Body)
				var n Notification
				_ = json.Unmarshal(raw, &n)
				order, err := Decrypt(n, secret)
				if err != nil {
					return httpmock.NewStringResponse(400, err.Error()), nil
				}
				received = order
				return httpmock.NewStringResponse(200, `{"code":0}`), nil
			})

		p := newProvider()
		_, err := p.CreateResponse([]byte(createBody), StatusWaiting)
		require.NoError(t, err)

		_, err = p.SendCallback(context.Background(), StatusFail)
		require.NoError(t, err)
		require.NotNil(t, received)
		assert.Equal(t, StatusFail, received.Status)
	})
}

func TestEncryptionKey(t *testing.T) {
	assert.Equal(t, []byte("aurapay-secret-k"), EncryptionKey(secret))
	assert.Equal(t, append([]byte("short"), make([]byte, 11)...), EncryptionKey("short"))
}

func TestDefinition(t *testing.T) {
	params := Definition{}.MockParams("k-1")

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"merchant_key":"k-1"}`))
	assert.True(t, params.Filter(req))

	req = httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"merchant_key":"k-2"}`))
	assert.False(t, params.Filter(req))

	req = httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`<xml/>`))
	assert.False(t, params.Filter(req))

	assert.True(t, params.Filter(httptest.NewRequest(http.MethodGet, "/api/orders/o-1?merchant_key=k-1", nil)))
	assert.Equal(t, "k-1", Definition{}.Settings("k-1")["merchant_key"])
}
