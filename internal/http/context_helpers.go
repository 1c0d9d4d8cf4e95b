package httpx

import "context"

// Unexported context key types to avoid collisions across packages.
type (
	requestIDKey       struct{}
	callbackSubjectKey struct{}
)

// SetRequestIDInContext returns a child context that carries the request id.
func SetRequestIDInContext(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request id, or "" when none was assigned.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// setCallbackSubject records the job id a verified callback token was issued for.
func setCallbackSubject(ctx context.Context, sub string) context.Context {
	return context.WithValue(ctx, callbackSubjectKey{}, sub)
}

// CallbackSubjectFromContext returns the verified token subject and whether a token was verified.
func CallbackSubjectFromContext(ctx context.Context) (string, bool) {
	sub, ok := ctx.Value(callbackSubjectKey{}).(string)
	return sub, ok
}
