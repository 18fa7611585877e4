package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/followup/internal/core"
)

// withRequester records who made the request, for the run history.
func withRequester(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithRequester(ctx, core.Requester{
		IP:        r.RemoteAddr, // Already processed by chi middleware.RealIP
		UserAgent: r.UserAgent(),
	})
}
