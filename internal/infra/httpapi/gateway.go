package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/runoshun/tracksync/internal/domain"
)

// TokenSource provides the current access token.
type TokenSource interface {
	AccessToken() string
}

// Refresher renews or ends the session. Implemented by session.Coordinator.
type Refresher interface {
	Refresh(ctx context.Context) bool
	ForceLogout()
	NeedsRefresh() bool
}

// Gateway sends authenticated requests and recovers from expired tokens
// by refreshing once and re-issuing the request.
type Gateway struct {
	client    *Client
	tokens    TokenSource
	refresher Refresher
	log       domain.Logger
}

// NewGateway creates a Gateway.
func NewGateway(client *Client, tokens TokenSource, refresher Refresher, log domain.Logger) *Gateway {
	return &Gateway{client: client, tokens: tokens, refresher: refresher, log: log}
}

type callOptions struct {
	query   url.Values
	noRetry bool
}

// Option configures one gateway call.
type Option func(*callOptions)

// WithoutRetry disables the refresh-and-retry path; a 401 is returned as is.
func WithoutRetry() Option {
	return func(o *callOptions) { o.noRetry = true }
}

// WithQuery adds query parameters.
func WithQuery(q url.Values) Option {
	return func(o *callOptions) { o.query = q }
}

// Request sends an authenticated request and returns the 2xx response.
//
// On 401 the gateway retries at most once: with the newer token when another
// caller already refreshed, otherwise after a successful refresh. A failed
// refresh forces a logout and yields domain.ErrSessionExpired. A retry that
// is rejected again also forces a logout and returns its *APIError. Other
// non-2xx statuses are returned as *APIError.
func (g *Gateway) Request(ctx context.Context, method, path string, body any, opts ...Option) (*Response, error) {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	if !o.noRetry && g.refresher.NeedsRefresh() {
		g.log.Debug("gateway", "access token about to expire, refreshing first")
		g.refresher.Refresh(ctx)
	}

	token := g.tokens.AccessToken()
	if token == "" {
		return nil, domain.ErrNotLoggedIn
	}

	resp, err := g.send(ctx, method, path, body, o.query, token)
	if err != nil {
		return nil, err
	}
	if resp.Status != http.StatusUnauthorized || o.noRetry {
		return checked(resp)
	}

	g.log.Info("gateway", fmt.Sprintf("%s %s unauthorized", method, path))
	current := g.tokens.AccessToken()
	switch {
	case current == "":
		// Logged out while the request was in flight.
		return nil, domain.ErrSessionExpired
	case current != token:
		g.log.Debug("gateway", "token changed meanwhile, retrying with the newer one")
	default:
		if !g.refresher.Refresh(ctx) {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			g.refresher.ForceLogout()
			return nil, domain.ErrSessionExpired
		}
		current = g.tokens.AccessToken()
		if current == "" {
			return nil, domain.ErrSessionExpired
		}
	}

	resp, err = g.send(ctx, method, path, body, o.query, current)
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusUnauthorized {
		g.log.Warn("gateway", fmt.Sprintf("%s %s rejected after refresh", method, path))
		g.refresher.ForceLogout()
	}
	return checked(resp)
}

func (g *Gateway) send(ctx context.Context, method, path string, body any, query url.Values, token string) (*Response, error) {
	return g.client.Do(ctx, Request{
		Method: method,
		Path:   path,
		Body:   body,
		Query:  query,
		Token:  token,
	})
}

func checked(resp *Response) (*Response, error) {
	if !resp.OK() {
		return nil, newAPIError(resp)
	}
	return resp, nil
}

// Get is a shorthand for Request with GET.
func (g *Gateway) Get(ctx context.Context, path string, opts ...Option) (*Response, error) {
	return g.Request(ctx, http.MethodGet, path, nil, opts...)
}
