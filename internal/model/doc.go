// Package model defines shared data types used across the metadata gatherer.
//
// Conventions:
//   - Decimal quantities (tick sizes, balances, commissions) are exchange-exact
//     decimal strings (e.g. "0.00010000"), never round-tripped through floats
//   - Timestamps: int64 microseconds since Unix epoch
//   - IDs: string for symbols and limit buckets, uuid.UUID for poll attempts
package model
