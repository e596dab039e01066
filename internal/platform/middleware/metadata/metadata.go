package metadata

import (
	"context"
	"net/http"
	"strings"
)

// Context keys for client metadata.
type contextKeyClientAddress struct{}
type contextKeyUserAgent struct{}

// UnknownAddress is the sentinel returned when no proxy header identifies
// the caller. It is a valid scope key: all non-identifiable clients share
// one counter, which deliberately under-throttles rather than blocking.
const UnknownAddress = "unknown"

// ClientMetadata resolves the caller address and User-Agent from the request
// and adds them to the context for handlers and services. Apply early in the
// middleware chain.
func ClientMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = context.WithValue(ctx, contextKeyClientAddress{}, ResolveClientAddress(r.Header))
		ctx = context.WithValue(ctx, contextKeyUserAgent{}, r.Header.Get("User-Agent"))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientAddress retrieves the resolved caller address from the context.
func GetClientAddress(ctx context.Context) string {
	if addr, ok := ctx.Value(contextKeyClientAddress{}).(string); ok {
		return addr
	}
	return UnknownAddress
}

// GetUserAgent retrieves the User-Agent from the context.
func GetUserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(contextKeyUserAgent{}).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects a caller address and User-Agent into a context.
// Useful for service unit tests that don't run the full middleware chain.
func WithClientMetadata(ctx context.Context, address, userAgent string) context.Context {
	ctx = context.WithValue(ctx, contextKeyClientAddress{}, address)
	ctx = context.WithValue(ctx, contextKeyUserAgent{}, userAgent)
	return ctx
}

// ResolveClientAddress derives a best-effort caller address from proxy
// headers, checking them in strict priority order and returning the first
// non-empty value. It never fails; with no usable header it returns
// UnknownAddress.
func ResolveClientAddress(h http.Header) string {
	// X-Forwarded-For can contain multiple addresses (client, proxy1, ...).
	// The left-most entry is the original client in standard proxy chains.
	if xff := strings.TrimSpace(h.Get("X-Forwarded-For")); xff != "" {
		return firstForwarded(xff)
	}

	if xri := strings.TrimSpace(h.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if vff := strings.TrimSpace(h.Get("X-Vercel-Forwarded-For")); vff != "" {
		return firstForwarded(vff)
	}

	if cf := strings.TrimSpace(h.Get("CF-Connecting-IP")); cf != "" {
		return cf
	}

	return UnknownAddress
}

func firstForwarded(value string) string {
	if idx := strings.Index(value, ","); idx != -1 {
		return strings.TrimSpace(value[:idx])
	}
	return strings.TrimSpace(value)
}
