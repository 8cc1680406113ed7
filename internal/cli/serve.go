package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"llmhost/internal/deploy"
	"llmhost/internal/httpapi"
)

// serveOptions are the flags of the serve command.
type serveOptions struct {
	Addr            string
	MaxBodyBytes    int64
	GenerateTimeout time.Duration
	ShutdownTimeout time.Duration
	CORSEnabled     bool
	CORSOrigins     string
	CORSMethods     string
	CORSHeaders     string
}

// serve runs the HTTP API on ln until ctx is canceled, then shuts down
// gracefully. Endpoints created through the API are left running.
func serve(ctx context.Context, opts serveOptions, d *deploy.Deployer, ln net.Listener, log zerolog.Logger) error {
	httpapi.SetLogger(log)
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(opts.MaxBodyBytes)
	httpapi.SetGenerateTimeout(opts.GenerateTimeout)
	httpapi.SetCORSOptions(opts.CORSEnabled, splitCSV(opts.CORSOrigins), splitCSV(opts.CORSMethods), splitCSV(opts.CORSHeaders))

	srv := &http.Server{
		Handler:           httpapi.NewMux(httpapi.NewService(d)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("llmhost listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := opts.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	sctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	log.Info().Msg("shutting down")
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
		return err
	}
	if live := d.Endpoints(); len(live) > 0 {
		for _, ep := range live {
			log.Warn().Str("endpoint", ep.Name).Str("status", ep.Status).Msg("endpoint left running")
		}
	}
	return nil
}
