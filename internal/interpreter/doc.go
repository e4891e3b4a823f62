// Package interpreter implements the client side of the interpreter session
// protocol: session lifecycle over HTTP, audio segment submission with
// bounded retry, and the server-sent event stream carrying segment results.
package interpreter
