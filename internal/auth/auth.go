// Package auth provides Binance API authentication using Ed25519 signatures.
package auth

import (
	"crypto/ed25519"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// APIKeyHeader carries the API key on authenticated requests.
const APIKeyHeader = "X-MBX-APIKEY"

// Credentials holds the API key and private key for signing requests.
type Credentials struct {
	APIKey     string             // API key registered with the exchange
	PrivateKey ed25519.PrivateKey // Ed25519 private key for signing
}

// LoadCredentials loads credentials from an API key and private key file path.
func LoadCredentials(apiKey, privateKeyPath string) (*Credentials, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if privateKeyPath == "" {
		return nil, fmt.Errorf("private key path is required")
	}

	privateKey, err := LoadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}

	return &Credentials{
		APIKey:     apiKey,
		PrivateKey: privateKey,
	}, nil
}

// LoadPrivateKey loads an Ed25519 private key from a PKCS#8 PEM file.
func LoadPrivateKey(path string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	edKey, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("key is not an Ed25519 private key")
	}

	return edKey, nil
}

// SignQuery prepares the raw query string for a SIGNED endpoint: a millisecond
// timestamp parameter is added, the encoded parameters are signed, and the
// base64 signature is appended as the final parameter. The exchange verifies
// the signature against the query string exactly as sent, so the returned
// string must be used verbatim as the request's RawQuery.
func (c *Credentials) SignQuery(query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))

	payload := query.Encode()
	signature := c.signPayload(payload)

	return payload + "&signature=" + url.QueryEscape(signature)
}

// Headers returns the authentication headers for a SIGNED request.
func (c *Credentials) Headers() map[string]string {
	return map[string]string{APIKeyHeader: c.APIKey}
}

// signPayload creates a base64 Ed25519 signature over the message.
func (c *Credentials) signPayload(message string) string {
	signature := ed25519.Sign(c.PrivateKey, []byte(message))
	return base64.StdEncoding.EncodeToString(signature)
}
