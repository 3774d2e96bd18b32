package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/procure/internal/core"
)

// withClient tags ctx with the caller's address and user agent for the
// service's write logs. RemoteAddr has already been through TrustedRealIP.
func withClient(ctx context.Context, r *http.Request) context.Context {
	return core.ContextWithClient(ctx, r.RemoteAddr, r.UserAgent())
}
