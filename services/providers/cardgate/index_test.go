package cardgate

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
	"github.com/paycrest/e2e/utils"
	"github.com/paycrest/e2e/utils/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const createBody = `{
	"order_id": "o-1",
	"amount": "1000.00",
	"currency": "RUB",
	"return_url": "https://platform.test/3ds/return",
	"callback_url": "https://platform.test/callbacks/cardgate",
	"card": {"pan": "4242424242424242", "exp_month": "12", "exp_year": "30", "cvv": "123"}
}`

// signature of "gw-1|o-1|1000.00|approved" under fixture_key.pem
const approvedSignature = "gtkBT+5FaGCsLullIRpJjC1gpciH+jWKBHEuUOHLQUVEWJG5SmxPKPX0s3LBQ+K7KmyePcpeXOv8FX4z6hoEVzJ6YHE51LDauYJVKHWAjLl2PGHNd4xDMfxmEa0HO7NSgrTpB30jtXWc7hexsGP6yjxqNJHVKHmRw1H1AkWU4RpZkX6+4GrTAejORUMshRPHye+/eCyJPXQ/V1Y8gPxTYbHCo197n3qnmDmG/dqrtx/agkywLWHi37qgJvuMpOHtDelRVbN8g5nRzi+buUgMFDxSkv24S2BpiMZ9TxBalGjIRrIPM4CILzCKanqSUrQzy00byZYpNpzQCmmexHwL6Q=="

func newProvider() *Provider {
	p := New("cardgate-key")
	p.GatewayID = "gw-1"
	return p
}

func newContext(method, target, body string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	res := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(res)
	c.Request = httptest.NewRequest(method, target, strings.NewReader(body))
	return c, res
}

func TestProvider(t *testing.T) {
	t.Run("3-DS create response", func(t *testing.T) {
		p := newProvider()
		c, res := newContext(http.MethodPost, "http://mocks:9003/v1/charges", createBody)

		require.NoError(t, p.CreateHandler(Status3DSRequired)(c))

		var data map[string]interface{}
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &data))
		assert.Equal(t, "3ds_required", data["status"])
		assert.Equal(t, "http://mocks:9003/acs/gw-1?key=cardgate-key", data["acs_url"])
		assert.Equal(t, "gw-1", data["md"])
		assert.Equal(t, "424242******4242", data["masked_card"])
		assert.NotEmpty(t, data["pa_req"])
		assert.Empty(t, utils.FindPANs(res.Body.String()))
	})

	t.Run("plain create response has no 3-DS fields", func(t *testing.T) {
		p := newProvider()
		data, err := p.CreateResponse([]byte(createBody), StatusApproved, "mocks:9003")
		require.NoError(t, err)
		assert.NotContains(t, data, "acs_url")
		assert.Equal(t, StatusApproved, Status(data["status"].(string)))
	})

	t.Run("schema violations", func(t *testing.T) {
		p := newProvider()
		cases := []string{
			`{"order_id":"o-1","amount":"1000","currency":"RUB","return_url":"x","card":{"pan":"4242424242424242","exp_month":"12","exp_year":"30","cvv":"123"}}`,
			`{"order_id":"o-1","amount":"1000.00","currency":"RUB","return_url":"x","card":{"pan":"42","exp_month":"12","exp_year":"30","cvv":"123"}}`,
			`{"order_id":"o-1","amount":"1000.00","currency":"RUB","card":{"pan":"4242424242424242","exp_month":"12","exp_year":"30","cvv":"123"}}`,
		}
		for _, body := range cases {
			_, err := p.CreateResponse([]byte(body), StatusApproved, "")
			var invalid providers.ErrInvalidRequest
			assert.True(t, errors.As(err, &invalid), body)
		}
	})

	t.Run("ACS page posts back to the return url", func(t *testing.T) {
		p := newProvider()
		_, err := p.CreateResponse([]byte(createBody), Status3DSRequired, "mocks:9003")
		require.NoError(t, err)

		c, res := newContext(http.MethodGet, "/acs/gw-1?key=cardgate-key", "")
		require.NoError(t, p.ACSHandler(true)(c))

		assert.Equal(t, "text/html; charset=utf-8", res.Header().Get("Content-Type"))
		page := res.Body.String()
		assert.Contains(t, page, `action="https://platform.test/3ds/return"`)
		assert.Contains(t, page, `name="MD" value="gw-1"`)
		assert.Contains(t, page, "WXxndy0x") // base64 of "Y|gw-1"
	})

	t.Run("ACS before create", func(t *testing.T) {
		c, _ := newContext(http.MethodGet, "/acs/gw-1", "")
		var noData providers.ErrNoRequestData
		assert.True(t, errors.As(newProvider().ACSHandler(true)(c), &noData))
	})

	t.Run("callback signature", func(t *testing.T) {
		p := newProvider()
		_, err := p.CreateResponse([]byte(createBody), StatusProcessing, "")
		require.NoError(t, err)

		body, headers, err := p.Callback(StatusApproved)
		require.NoError(t, err)
		assert.Equal(t, approvedSignature, headers["X-Signature"])

		publicKey, err := PublicKey()
		require.NoError(t, err)
		assert.NoError(t, crypto.VerifyRSA([]byte("gw-1|o-1|1000.00|approved"), headers["X-Signature"], publicKey))
		assert.Empty(t, utils.FindPANs(string(body)))
	})

	t.Run("send callback", func(t *testing.T) {
		httpmock.Activate()
		defer httpmock.DeactivateAndReset()

		publicKey, err := PublicKey()
		require.NoError(t, err)

		httpmock.RegisterResponder("POST", "https://platform.test/callbacks/cardgate",
			func(r *http.Request) (*http.Response, error) {
				raw, _ := io.ReadAll(r.Body)
				var tx Transaction
				_ = json.Unmarshal(raw, &tx)
				base := SignatureBase(tx.ID, tx.OrderID, tx.Amount, tx.Status)
				if crypto.VerifyRSA([]byte(base), r.Header.Get("X-Signature"), publicKey) != nil {
					return httpmock.NewStringResponse(401, "bad signature"), nil
				}
				return httpmock.NewStringResponse(200, "OK"), nil
			})

		p := newProvider()
		_, err = p.CreateResponse([]byte(createBody), StatusProcessing, "")
		require.NoError(t, err)

		delivery, err := p.SendCallback(context.Background(), StatusDeclined)
		require.NoError(t, err)
		assert.Equal(t, 200, delivery.Code)
	})
}

func TestDefinition(t *testing.T) {
	d := Definition{BaseURL: "http://mocks:9003"}
	settings := d.Settings("key-1")
	assert.Equal(t, "key-1", settings["api_key"])
	assert.Contains(t, settings["public_key"], "BEGIN PUBLIC KEY")

	params := d.MockParams("key-1")
	req := httptest.NewRequest(http.MethodPost, "/v1/charges", nil)
	req.Header.Set("X-Api-Key", "key-1")
	assert.True(t, params.Filter(req))

	assert.True(t, params.Filter(httptest.NewRequest(http.MethodGet, "/acs/gw-1?key=key-1", nil)))
	assert.False(t, params.Filter(httptest.NewRequest(http.MethodGet, "/acs/gw-1?key=key-2", nil)))
}
