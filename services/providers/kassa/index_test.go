package kassa

import (
	"context"
	"encoding/xml"
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

const createBody = `<?xml version="1.0" encoding="UTF-8"?>
<request>
  <merchant>kassa-secret</merchant>
  <order_id>o-1</order_id>
  <amount>1000</amount>
  <currency>RUB</currency>
  <callback_url>https://platform.test/callbacks/kassa</callback_url>
</request>`

func newProvider() *Provider {
	p := New("kassa-secret")
	p.GatewayID = "gw-1"
	return p
}

func TestProvider(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("create handler answers XML", func(t *testing.T) {
		p := newProvider()

		res := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(res)
		c.Request = httptest.NewRequest(http.MethodPost, "/invoice", strings.NewReader(createBody))
		require.NoError(t, p.CreateHandler(StatusCreated)(c))

		assert.Contains(t, res.Header().Get("Content-Type"), "application/xml")

		var invoice Invoice
		require.NoError(t, xml.Unmarshal(res.Body.Bytes(), &invoice))
		assert.Equal(t, "gw-1", invoice.InvoiceID)
		assert.Equal(t, StatusCreated, invoice.Status)
		assert.Equal(t, "1000.00", invoice.Amount)
		require.NotNil(t, invoice.Requisite)
		assert.Equal(t, providers.RequisiteFor("o-1"), *invoice.Requisite)
	})

	t.Run("invalid requests", func(t *testing.T) {
		p := newProvider()
		for name, body := range map[string]string{
			"not xml":          "{}",
			"wrong root":       "<invoice><merchant>m</merchant></invoice>",
			"missing merchant": "<request><order_id>o</order_id><amount>1</amount><currency>RUB</currency></request>",
			"negative amount":  "<request><merchant>m</merchant><order_id>o</order_id><amount>-1</amount><currency>RUB</currency></request>",
		} {
			_, err := p.CreateResponse([]byte(body), StatusCreated)
			var invalid providers.ErrInvalidRequest
			assert.True(t, errors.As(err, &invalid), name)
		}
	})

	t.Run("status before create", func(t *testing.T) {
		_, err := newProvider().StatusResponse(StatusPaid)
		var noData providers.ErrNoRequestData
		assert.True(t, errors.As(err, &noData))
	})

	t.Run("status handler", func(t *testing.T) {
		p := newProvider()
		_, err := p.CreateResponse([]byte(createBody), StatusCreated)
		require.NoError(t, err)

		res := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(res)
		c.Request = httptest.NewRequest(http.MethodPost, "/invoice/status", nil)
		require.NoError(t, p.StatusHandler(StatusRejected)(c))
		assert.Contains(t, res.Body.String(), "<status>rejected</status>")
		assert.NotContains(t, res.Body.String(), "<requisite>")
	})

	t.Run("callback signature", func(t *testing.T) {
		p := newProvider()
		_, err := p.CreateResponse([]byte(createBody), StatusCreated)
		require.NoError(t, err)

		body, headers, err := p.Callback(StatusPaid)
		require.NoError(t, err)
		assert.Equal(t, "application/xml", headers["Content-Type"])
		assert.True(t, strings.HasPrefix(string(body), "<?xml"))

		var n Notification
		require.NoError(t, xml.Unmarshal(body, &n))
		assert.Equal(t, "RrFk2YBEAjKADu56OWXMT9ezFBlrNywOZ9TJDbqX0LM=", n.Signature)
	})

	t.Run("send callback", func(t *testing.T) {
		httpmock.Activate()
		defer httpmock.DeactivateAndReset()

		httpmock.RegisterResponder("POST", "https://platform.test/callbacks/kassa",
			func(r *http.Request) (*http.Response, error) {
				raw, _ := io.ReadAll(r.Body)
				var n Notification
				if err := xml.Unmarshal(raw, &n); err != nil || Signature(n, "kassa-secret") != n.Signature {
					return httpmock.NewStringResponse(403, "<error/>"), nil
				}
				return httpmock.NewStringResponse(200, "<ok/>"), nil
			})

		p := newProvider()
		_, err := p.CreateResponse([]byte(createBody), StatusCreated)
		require.NoError(t, err)

		delivery, err := p.SendCallback(context.Background(), StatusPaid)
		require.NoError(t, err)
		assert.Equal(t, "<ok/>", delivery.Body)
	})
}

func TestDefinition(t *testing.T) {
	params := Definition{}.MockParams("kassa-secret")
	assert.True(t, params.Filter(httptest.NewRequest(http.MethodPost, "/invoice", strings.NewReader(createBody))))
	assert.False(t, params.Filter(httptest.NewRequest(http.MethodPost, "/invoice",
		strings.NewReader("<request><merchant>other</merchant></request>"))))
	assert.False(t, params.Filter(httptest.NewRequest(http.MethodPost, "/invoice", strings.NewReader("{}"))))
	assert.Equal(t, "m-1", Definition{}.Settings("m-1")["merchant"])
}
