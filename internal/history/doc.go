// Package history persists finished interpretation sessions to SQLite.
package history
