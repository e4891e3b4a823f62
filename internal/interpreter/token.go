package interpreter

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// TokenProvider supplies the bearer token for authenticated requests. The
// client fetches a token per request and never caches it; expiry and refresh
// are the provider's concern.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a TokenProvider returning a fixed token.
type StaticToken string

// Token implements TokenProvider.
func (t StaticToken) Token(ctx context.Context) (string, error) {
	if t == "" {
		return "", fmt.Errorf("static token is empty")
	}
	return string(t), nil
}

// EnvToken reads the token from an environment variable on every request, so
// an external refresher that rewrites the variable takes effect transparently.
type EnvToken string

// Token implements TokenProvider.
func (t EnvToken) Token(ctx context.Context) (string, error) {
	value := strings.TrimSpace(os.Getenv(string(t)))
	if value == "" {
		return "", fmt.Errorf("environment variable %s is empty", string(t))
	}
	return value, nil
}
