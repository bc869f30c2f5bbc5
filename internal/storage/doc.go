// Package storage persists the audit trail and posted reaction-role
// sessions.
//
// Drivers:
//   - "file": JSON Lines audit log plus a session snapshot and journal
//   - "sqlite": modernc.org/sqlite database file
//   - "postgres": lib/pq, configured by DSN
package storage
