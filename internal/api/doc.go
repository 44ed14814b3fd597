// Package api provides the Binance REST client used by the pollers.
//
// Endpoints:
//   - GET /api/v3/exchangeInfo (trading rules and rate limits, weight 20)
//   - GET /api/v3/account (signed, weight 20)
//   - GET /sapi/v1/system/status (weight 1)
//
// Signed requests carry the API key in the X-MBX-APIKEY header and an
// Ed25519 signature over the encoded query string. Every response reports
// consumed weight in X-MBX-USED-WEIGHT-* headers, which the client forwards
// to the rate limiter for reconciliation.
//
// HTTP 429 and 418 responses become a RateLimitError carrying the server's
// Retry-After. Responses that arrive but fail schema validation become a
// ParseError. Everything else surfaces as APIError or a transport error.
package api
