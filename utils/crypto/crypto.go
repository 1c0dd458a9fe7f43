package crypto

import (
	"bytes"
	"crypto"
	"crypto/aes"
	"crypto/hmac"
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/hex"
	"encoding/pem"
	"fmt"
	"sort"
	"strings"
)

// HMACSHA256 computes the raw HMAC-SHA256 of message keyed with secret
func HMACSHA256(secret, message []byte) []byte {
	h := hmac.New(sha256.New, secret)
	h.Write(message)
	return h.Sum(nil)
}

// HMACSHA256Hex is HMACSHA256 encoded as lowercase hex
func HMACSHA256Hex(secret, message []byte) string {
	return hex.EncodeToString(HMACSHA256(secret, message))
}

// HMACSHA256Base64 is HMACSHA256 encoded as standard base64
func HMACSHA256Base64(secret, message []byte) string {
	return base64.StdEncoding.EncodeToString(HMACSHA256(secret, message))
}

// VerifyHMACSignature compares a hex signature against the expected one in constant time
func VerifyHMACSignature(secret, message []byte, signature string) bool {
	expected, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, HMACSHA256(secret, message))
}

// MD5Hex returns the lowercase hex MD5 digest of s
func MD5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// SHA256Hex returns the lowercase hex SHA-256 digest of data
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// CanonicalQuery joins params as sorted k=v pairs separated by &
func CanonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	return strings.Join(pairs, "&")
}

// PublicKeyPEM derives the PKIX public key of a PKCS#1 private key
func PublicKeyPEM(privateKeyPEM string) (string, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return "", fmt.Errorf("failed to parse PEM block")
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return "", err
	}

	pub, err := x509.MarshalPKIXPublicKey(&privateKey.PublicKey)
	if err != nil {
		return "", fmt.Errorf("failed to marshal public key: %w", err)
	}

	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pub})), nil
}

// SignRSA signs message with RSASSA-PKCS1-v1_5 over SHA-256 and returns it base64 encoded
func SignRSA(message []byte, privateKeyPEM string) (string, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return "", fmt.Errorf("failed to parse PEM block")
	}

	privateKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return "", err
	}

	digest := sha256.Sum256(message)
	signature, err := rsa.SignPKCS1v15(rand.Reader, privateKey, crypto.SHA256, digest[:])
	if err != nil {
		return "", err
	}

	return base64.StdEncoding.EncodeToString(signature), nil
}

// VerifyRSA checks a base64 RSASSA-PKCS1-v1_5 SHA-256 signature
func VerifyRSA(message []byte, signature string, publicKeyPEM string) error {
	block, _ := pem.Decode([]byte(publicKeyPEM))
	if block == nil {
		return fmt.Errorf("failed to parse PEM block")
	}

	pub, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return err
	}

	publicKey, ok := pub.(*rsa.PublicKey)
	if !ok {
		return fmt.Errorf("unsupported key type")
	}

	raw, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("signature is not base64: %w", err)
	}

	digest := sha256.Sum256(message)
	return rsa.VerifyPKCS1v15(publicKey, crypto.SHA256, digest[:], raw)
}

// EncryptAESECB encrypts plaintext with AES in ECB mode and PKCS#7 padding.
// Some gateways still require it for callback payloads.
func EncryptAESECB(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	size := block.BlockSize()
	padded := pkcs7Pad(plaintext, size)
	ciphertext := make([]byte, len(padded))
	for start := 0; start < len(padded); start += size {
		block.Encrypt(ciphertext[start:start+size], padded[start:start+size])
	}

	return ciphertext, nil
}

// DecryptAESECB reverses EncryptAESECB
func DecryptAESECB(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	size := block.BlockSize()
	if len(ciphertext) == 0 || len(ciphertext)%size != 0 {
		return nil, fmt.Errorf("ciphertext is not a multiple of the block size")
	}

	plaintext := make([]byte, len(ciphertext))
	for start := 0; start < len(ciphertext); start += size {
		block.Decrypt(plaintext[start:start+size], ciphertext[start:start+size])
	}

	return pkcs7Unpad(plaintext, size)
}

func pkcs7Pad(data []byte, size int) []byte {
	padding := size - len(data)%size
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, size int) ([]byte, error) {
	padding := int(data[len(data)-1])
	if padding == 0 || padding > size || padding > len(data) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}
