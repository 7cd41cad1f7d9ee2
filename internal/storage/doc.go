// Package storage provides key/value storage backends for session credentials.
//
// Supports four backends with different persistence and deployment tradeoffs:
//   - Memory: Process-local map, lost on exit (default for library use)
//   - File: Local JSON file with atomic writes and secure permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//   - SQL: SQLite or PostgreSQL table, schema managed by embedded migrations
//
// Backends store opaque strings. Key namespacing is the caller's concern.
package storage
