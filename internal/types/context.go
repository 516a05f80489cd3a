package types

import "context"

// Visitor identifies the entity a request is acting for. Exactly one of the
// two identity fields is set: UserID for authenticated requests (resolved by
// an upstream auth proxy), Token for anonymous visitors (carried in a signed
// long-lived cookie).
type Visitor struct {
	UserID string
	Token  string
}

// Authenticated reports whether the visitor carries a durable identity.
func (v Visitor) Authenticated() bool {
	return v.UserID != ""
}

// Context Keys
type contextKey string

const (
	visitorKey   contextKey = "visitor"
	requestIDKey contextKey = "request_id"
)

// WithVisitor stores the Visitor in the context.
func WithVisitor(ctx context.Context, v Visitor) context.Context {
	return context.WithValue(ctx, visitorKey, v)
}

// GetVisitor retrieves the Visitor from the context. Returns the zero
// Visitor when none has been set.
func GetVisitor(ctx context.Context) Visitor {
	v, _ := ctx.Value(visitorKey).(Visitor)
	return v
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID retrieves the request ID from the context. Returns an empty
// string when no request ID has been set.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
