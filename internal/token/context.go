package token

import "context"

type claimsContextKey struct{}
type rawTokenContextKey struct{}

// ContextWithClaims attaches verified stamp claims to the context.
func ContextWithClaims(ctx context.Context, claims *Claims) context.Context {
	if claims == nil {
		return ctx
	}
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext extracts the verified stamp claims from the context.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	if ctx == nil {
		return nil, false
	}
	v, ok := ctx.Value(claimsContextKey{}).(*Claims)
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// ContextWithRaw stores the raw bearer token inside the context.
func ContextWithRaw(ctx context.Context, raw string) context.Context {
	if raw == "" {
		return ctx
	}
	return context.WithValue(ctx, rawTokenContextKey{}, raw)
}

// RawFromContext returns the bearer token if it was previously attached.
func RawFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(rawTokenContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
