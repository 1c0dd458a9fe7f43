package crypto

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDigests(t *testing.T) {
	t.Run("HMAC-SHA256 hex", func(t *testing.T) {
		body := `{"amount":100000,"order_id":"o-1","status":"approved"}`
		assert.Equal(t,
			"06c7b0ba3bb17dcff260b631dc6ad10a0d13043f196147e4d7095df3a29c2ca1",
			HMACSHA256Hex([]byte("brusnika-secret"), []byte(body)))
	})

	t.Run("VerifyHMACSignature", func(t *testing.T) {
		msg := []byte(`{"amount":100000,"order_id":"o-1","status":"approved"}`)
		assert.True(t, VerifyHMACSignature([]byte("brusnika-secret"), msg,
			"06c7b0ba3bb17dcff260b631dc6ad10a0d13043f196147e4d7095df3a29c2ca1"))
		assert.False(t, VerifyHMACSignature([]byte("other"), msg,
			"06c7b0ba3bb17dcff260b631dc6ad10a0d13043f196147e4d7095df3a29c2ca1"))
		assert.False(t, VerifyHMACSignature([]byte("brusnika-secret"), msg, "zz"))
	})

	t.Run("HMAC-SHA256 base64 over canonical query", func(t *testing.T) {
		query := CanonicalQuery(map[string]string{
			"status":   "success",
			"order_id": "o-1",
			"amount":   "1000.00",
		})
		assert.Equal(t, "amount=1000.00&order_id=o-1&status=success", query)
		assert.Equal(t, "4ndenuxyn/PpsxGuehZwAk11r+XOzwplce+EJA8c/sU=",
			HMACSHA256Base64([]byte("kassa-secret"), []byte(query)))
	})

	t.Run("MD5", func(t *testing.T) {
		assert.Equal(t, "3bef361c7bccfd73037700a82e4fa1ba", MD5Hex("o-1:1000.00:success:paylink-secret"))
	})

	t.Run("SHA256", func(t *testing.T) {
		assert.Equal(t, "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824", SHA256Hex([]byte("hello")))
	})
}

func TestAESECB(t *testing.T) {
	key := []byte("0123456789abcdef")

	t.Run("known vector", func(t *testing.T) {
		ciphertext, err := EncryptAESECB([]byte("hello aurapay"), key)
		assert.NoError(t, err)
		assert.Equal(t, "We2ilmw4AM+UsehvlLUkyQ==", base64.StdEncoding.EncodeToString(ciphertext))
	})

	t.Run("round trip across blocks", func(t *testing.T) {
		plaintext := []byte(strings.Repeat("payload!", 5))
		ciphertext, err := EncryptAESECB(plaintext, key)
		assert.NoError(t, err)
		assert.Len(t, ciphertext, 48)

		decrypted, err := DecryptAESECB(ciphertext, key)
		assert.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	})

	t.Run("bad input", func(t *testing.T) {
		_, err := EncryptAESECB([]byte("x"), []byte("short"))
		assert.Error(t, err)

		_, err = DecryptAESECB([]byte("not-a-block"), key)
		assert.Error(t, err)
	})
}

func generateRSAKeyPair(t *testing.T) (string, string) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	pub, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)

	privateKeyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	publicKeyPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub})
	return string(privateKeyPEM), string(publicKeyPEM)
}

func TestRSA(t *testing.T) {
	privateKeyPEM, publicKeyPEM := generateRSAKeyPair(t)

	message := []byte("pay-1|o-1|1000.00|approved")

	signature, err := SignRSA(message, privateKeyPEM)
	assert.NoError(t, err)
	assert.NoError(t, VerifyRSA(message, signature, publicKeyPEM))

	assert.Error(t, VerifyRSA([]byte("pay-1|o-1|1000.00|declined"), signature, publicKeyPEM))
	assert.Error(t, VerifyRSA(message, "%%%", publicKeyPEM))

	_, err = SignRSA(message, "not a pem")
	assert.Error(t, err)

	derived, err := PublicKeyPEM(privateKeyPEM)
	assert.NoError(t, err)
	assert.Equal(t, publicKeyPEM, derived)

	_, err = PublicKeyPEM(publicKeyPEM)
	assert.Error(t, err)
}
