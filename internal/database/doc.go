// Package database provides connection pool management for PostgreSQL.
//
// A metad instance opens at most one pool, used by the postgres journal
// backend. The file backend needs no database at all.
package database
