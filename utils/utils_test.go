package utils

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestUtils(t *testing.T) {

	t.Run("ToSubunit", func(t *testing.T) {
		testCases := []struct {
			amount    decimal.Decimal
			decimals  int32
			expectVal int64
		}{
			{amount: decimal.NewFromFloat(1.23), decimals: 2, expectVal: 123},
			{amount: decimal.NewFromInt(12345), decimals: 2, expectVal: 1234500},
			{amount: decimal.RequireFromString("0.005"), decimals: 2, expectVal: 1},
		}

		for _, tc := range testCases {
			assert.Equal(t, tc.expectVal, ToSubunit(tc.amount, tc.decimals))
		}
	})

	t.Run("FromSubunit", func(t *testing.T) {
		assert.True(t, FromSubunit(100000, 2).Equal(decimal.NewFromInt(1000)))
		assert.True(t, FromSubunit(123, 2).Equal(decimal.RequireFromString("1.23")))
		assert.True(t, FromSubunit(0, 2).IsZero())
	})

	t.Run("CheckStatus", func(t *testing.T) {
		assert.NoError(t, CheckStatus("http://x", 200, ""))
		assert.NoError(t, CheckStatus("http://x", 422, "invalid"), "4xx is a valid error path")

		err := CheckStatus("http://x", 502, "bad gateway")
		var badStatus ErrBadStatus
		assert.True(t, errors.As(err, &badStatus))
		assert.Equal(t, 502, badStatus.Code)
		assert.Contains(t, err.Error(), "bad gateway")
	})

	t.Run("Delay", func(t *testing.T) {
		start := time.Now()
		assert.NoError(t, Delay(context.Background(), 20*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, Delay(ctx, time.Hour), context.Canceled)
	})

	t.Run("FindPANs", func(t *testing.T) {
		assert.Empty(t, FindPANs(`{"card":"424242******4242"}`))
		assert.Equal(t, []string{"4242424242424242"}, FindPANs(`{"pan":"4242424242424242"}`))
		assert.Equal(t, []string{"5555555555554444"}, FindPANs("card=5555555555554444&cvv=123"))
		assert.Equal(t, []string{"1111"}, FindPANs("x1111x", "1111", "2222"))
	})

	t.Run("MaskPAN", func(t *testing.T) {
		assert.Equal(t, "424242******4242", MaskPAN("4242424242424242"))
		assert.Equal(t, "220070*******1234", MaskPAN("22007012345671234"))
		assert.Equal(t, "123", MaskPAN("123"))
	})

	t.Run("CurlCommand", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "http://mock.local:18101/api/v1/orders?x=1", nil)
		req.Header.Set("Authorization", "Bearer secret")
		req.Header.Set("Content-Type", "application/json")

		cmd := CurlCommand(req, []byte(`{"name":"O'Hara"}`))
		assert.True(t, strings.HasPrefix(cmd, "curl -X POST 'http://mock.local:18101/api/v1/orders?x=1'"))
		assert.Contains(t, cmd, "-H 'Authorization: Bearer secret'")
		assert.Contains(t, cmd, `--data-raw '{"name":"O'\''Hara"}'`)
	})

	t.Run("ValidateJSONSchema", func(t *testing.T) {
		schema := []byte(`{
			"type": "object",
			"required": ["amount"],
			"additionalProperties": false,
			"properties": {"amount": {"type": "integer", "minimum": 1}}
		}`)

		assert.NoError(t, ValidateJSONSchema(schema, []byte(`{"amount": 100}`)))
		assert.Error(t, ValidateJSONSchema(schema, []byte(`{"amount": 0}`)))
		assert.Error(t, ValidateJSONSchema(schema, []byte(`{"amount": 1, "extra": true}`)))
		assert.Error(t, ValidateJSONSchema(schema, []byte(`not json`)))
	})

	t.Run("StructToMap", func(t *testing.T) {
		type payload struct {
			OrderID string `json:"order_id"`
			Amount  int    `json:"amount"`
		}

		m := StructToMap(payload{OrderID: "o-1", Amount: 10})
		assert.Equal(t, "o-1", m["order_id"])
		assert.Equal(t, float64(10), m["amount"])
	})

	t.Run("PrettyJSON", func(t *testing.T) {
		assert.Equal(t, "{\n  \"a\": 1\n}", PrettyJSON([]byte(`{"a":1}`)))
		assert.Equal(t, "plain", PrettyJSON([]byte("plain")))
	})
}
