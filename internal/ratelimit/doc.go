// Package ratelimit gates outgoing exchange requests against named limit
// buckets (REQUEST_WEIGHT, RAW_REQUESTS, ...) over rolling time windows.
//
// Bucket rules are seeded from configuration and refreshed from the limits the
// exchange declares about itself in exchangeInfo. The limiter never allows the
// granted weight inside any rolling window to exceed a bucket's limit, which
// rules out token buckets: a full bucket plus refill admits more than the limit
// inside a single window. Instead each bucket keeps a log of granted
// consumptions and expires them as the window slides.
package ratelimit
