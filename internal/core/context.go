package core

import "context"

type contextKey string

const ctxKeyRequester contextKey = "requester"

// Requester identifies who started a run, for the run history.
type Requester struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
}

// ContextWithRequester attaches requester metadata to ctx.
func ContextWithRequester(ctx context.Context, r Requester) context.Context {
	return context.WithValue(ctx, ctxKeyRequester, r)
}

// RequesterFromContext returns the requester stored in ctx, or the zero value.
func RequesterFromContext(ctx context.Context) Requester {
	if r, ok := ctx.Value(ctxKeyRequester).(Requester); ok {
		return r
	}
	return Requester{}
}
