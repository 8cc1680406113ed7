package httpapi

import "context"

// serverBaseCtx is canceled on shutdown. Background provisioning started
// with ?wait=false runs under it rather than under the request.
var serverBaseCtx = context.Background()

// SetBaseContext ties handlers and background work to ctx. nil resets it.
func SetBaseContext(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	serverBaseCtx = ctx
}

// BaseContext returns the context set by SetBaseContext.
func BaseContext() context.Context { return serverBaseCtx }

// joinContexts derives from req and additionally cancels when base is done.
// Call the returned func when the handler finishes.
func joinContexts(base, req context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(req)
	stop := context.AfterFunc(base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
