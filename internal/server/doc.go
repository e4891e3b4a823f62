// Package server exposes local HTTP endpoints for monitoring a running
// interpretation session.
package server
