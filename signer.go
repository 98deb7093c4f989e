package lnvps

import "context"

// Signer produces the Authorization credential for a single HTTP request.
// Implementations may call out to an external signing agent, so SignHTTPRequest
// can block and should honour ctx.
type Signer interface {
	// SignHTTPRequest returns a fully formed Authorization header value
	// (scheme and encoded payload) for the exact url and method.
	// It returns "" and a nil error when no identity is active.
	SignHTTPRequest(ctx context.Context, url, method string) (string, error)
}

// SignerFunc lifts bare functions into [Signer].
type SignerFunc func(ctx context.Context, url, method string) (string, error)

// SignHTTPRequest calls f.
func (f SignerFunc) SignHTTPRequest(ctx context.Context, url, method string) (string, error) {
	return f(ctx, url, method)
}

// AnonymousSigner never produces a credential.
var AnonymousSigner Signer = SignerFunc(func(context.Context, string, string) (string, error) {
	return "", nil
})
