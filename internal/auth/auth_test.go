package auth

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCredentials_SignQuery(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	creds := &Credentials{
		APIKey:     "test-api-key",
		PrivateKey: priv,
	}

	raw := creds.SignQuery(url.Values{"recvWindow": {"5000"}})

	// The signature covers everything before the final &signature= parameter.
	idx := strings.LastIndex(raw, "&signature=")
	if idx < 0 {
		t.Fatalf("raw query %q missing signature parameter", raw)
	}
	payload := raw[:idx]

	parsed, err := url.ParseQuery(raw)
	if err != nil {
		t.Fatalf("raw query does not parse: %v", err)
	}
	if parsed.Get("timestamp") == "" {
		t.Error("timestamp parameter is empty")
	}
	if parsed.Get("recvWindow") != "5000" {
		t.Errorf("recvWindow = %q, want %q", parsed.Get("recvWindow"), "5000")
	}

	sig, err := base64.StdEncoding.DecodeString(parsed.Get("signature"))
	if err != nil {
		t.Fatalf("signature is not valid base64: %v", err)
	}
	if !ed25519.Verify(pub, []byte(payload), sig) {
		t.Error("signature does not verify against the signed payload")
	}
}

func TestCredentials_SignQuery_NilValues(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	creds := &Credentials{APIKey: "k", PrivateKey: priv}

	raw := creds.SignQuery(nil)
	parsed, err := url.ParseQuery(raw)
	if err != nil {
		t.Fatalf("raw query does not parse: %v", err)
	}
	if parsed.Get("timestamp") == "" {
		t.Error("timestamp parameter is empty")
	}
	if parsed.Get("signature") == "" {
		t.Error("signature parameter is empty")
	}
}

func TestCredentials_Headers(t *testing.T) {
	creds := &Credentials{APIKey: "header-key"}

	headers := creds.Headers()
	if headers[APIKeyHeader] != "header-key" {
		t.Errorf("%s = %q, want %q", APIKeyHeader, headers[APIKeyHeader], "header-key")
	}
}

func TestLoadPrivateKey(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	pkcs8Bytes, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		t.Fatalf("failed to marshal PKCS#8: %v", err)
	}

	pemBlock := &pem.Block{
		Type:  "PRIVATE KEY",
		Bytes: pkcs8Bytes,
	}

	tmpFile := filepath.Join(t.TempDir(), "test-key.pem")
	if err := os.WriteFile(tmpFile, pem.EncodeToMemory(pemBlock), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	loadedKey, err := LoadPrivateKey(tmpFile)
	if err != nil {
		t.Fatalf("LoadPrivateKey failed: %v", err)
	}

	if !loadedKey.Public().(ed25519.PublicKey).Equal(pub) {
		t.Error("loaded key does not match original")
	}
}

func TestLoadPrivateKey_FileNotFound(t *testing.T) {
	_, err := LoadPrivateKey("/nonexistent/path/to/key.pem")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadPrivateKey_InvalidPEM(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "invalid.pem")
	if err := os.WriteFile(tmpFile, []byte("not a pem file"), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	_, err := LoadPrivateKey(tmpFile)
	if err == nil {
		t.Error("expected error for invalid PEM")
	}
}

func TestLoadPrivateKey_WrongKeyType(t *testing.T) {
	// An RSA key in PKCS#8 form should be rejected.
	rsaPEM := rsaTestKeyPEM(t)
	tmpFile := filepath.Join(t.TempDir(), "rsa-key.pem")
	if err := os.WriteFile(tmpFile, rsaPEM, 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	_, err := LoadPrivateKey(tmpFile)
	if err == nil {
		t.Error("expected error for non-Ed25519 key")
	}
}

func TestLoadCredentials(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	pkcs8Bytes, _ := x509.MarshalPKCS8PrivateKey(priv)
	pemBlock := &pem.Block{Type: "PRIVATE KEY", Bytes: pkcs8Bytes}
	tmpFile := filepath.Join(t.TempDir(), "test-key.pem")
	if err := os.WriteFile(tmpFile, pem.EncodeToMemory(pemBlock), 0600); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	creds, err := LoadCredentials("my-api-key", tmpFile)
	if err != nil {
		t.Fatalf("LoadCredentials failed: %v", err)
	}

	if creds.APIKey != "my-api-key" {
		t.Errorf("APIKey = %q, want %q", creds.APIKey, "my-api-key")
	}
	if creds.PrivateKey == nil {
		t.Error("PrivateKey is nil")
	}
}

func TestLoadCredentials_MissingAPIKey(t *testing.T) {
	_, err := LoadCredentials("", "/some/path")
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func rsaTestKeyPEM(t *testing.T) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate RSA key: %v", err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("failed to marshal PKCS#8: %v", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
}
