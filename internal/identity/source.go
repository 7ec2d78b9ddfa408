package identity

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/compute/metadata"
)

// TokenSource issues identity tokens scoped to an audience.
type TokenSource interface {
	IDToken(ctx context.Context, audience string) (string, error)
}

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func(ctx context.Context, audience string) (string, error)

// IDToken makes TokenSourceFunc satisfy TokenSource.
func (f TokenSourceFunc) IDToken(ctx context.Context, audience string) (string, error) {
	return f(ctx, audience)
}

// MetadataSource fetches identity tokens for the default service account
// from the platform metadata server.
type MetadataSource struct {
	client *metadata.Client
}

// NewMetadataSource builds a MetadataSource. A nil client uses the library's
// default transport.
func NewMetadataSource(client *http.Client) *MetadataSource {
	return &MetadataSource{client: metadata.NewClient(client)}
}

// IDToken implements TokenSource.
func (s *MetadataSource) IDToken(ctx context.Context, audience string) (string, error) {
	suffix := "instance/service-accounts/default/identity?audience=" + url.QueryEscape(audience) + "&format=full"
	token, err := s.client.GetWithContext(ctx, suffix)
	if err != nil {
		return "", fmt.Errorf("metadata identity request: %w", err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("metadata identity request: empty token")
	}
	return token, nil
}

// Clock abstracts time so cache expiry can be tested deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }
