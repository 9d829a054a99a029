package webdavbridge

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/webdav"

	"github.com/JohnDeved/n3ds-smb/internal/logger"
	"github.com/JohnDeved/n3ds-smb/internal/smb1"
)

// ServerOptions configures the bridge's HTTP front end.
type ServerOptions struct {
	Addr     string
	ReadOnly bool
	Metrics  *Metrics

	// Username/Password enable HTTP Basic auth when both are non-empty,
	// mirroring the optional simple_dc.user_mapping the Python bridge wires
	// into its cheroot WSGI server.
	Username string
	Password string

	// NumWorkers caps concurrent in-flight requests, standing in for the
	// thread-pool size cheroot takes directly; net/http has no equivalent
	// knob since it spawns a goroutine per connection.
	NumWorkers int
}

// NewServer builds the http.Server fronting client with a webdav.Handler.
// The returned server is not started.
func NewServer(client *smb1.Client, opts ServerOptions) *http.Server {
	provider := NewProvider(client, opts.ReadOnly, opts.Metrics)
	handler := &webdav.Handler{
		Prefix:     "/",
		FileSystem: provider,
		LockSystem: webdav.NewMemLS(),
		Logger: func(r *http.Request, err error) {
			outcome := "ok"
			if err != nil {
				outcome = "error"
				logger.Warn("webdav request failed", "method", r.Method, "path", r.URL.Path, "error", err)
			}
			opts.Metrics.observeRequest(r.Method, outcome)
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if opts.NumWorkers > 0 {
		r.Use(middleware.Throttle(opts.NumWorkers))
	}
	if opts.Username != "" && opts.Password != "" {
		r.Use(middleware.BasicAuth("n3dssmb", map[string]string{opts.Username: opts.Password}))
	}
	r.Handle("/*", handler)

	return &http.Server{
		Addr:              opts.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Serve runs the bridge until ctx is canceled or the listener fails. The
// underlying SMB1 session is closed on the way out either way.
func Serve(ctx context.Context, client *smb1.Client, opts ServerOptions) error {
	srv := NewServer(client, opts)
	logger.InfoCtx(ctx, "serving webdav", "addr", opts.Addr, "readonly", opts.ReadOnly)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		_ = client.Close()
		return err
	case err := <-errCh:
		_ = client.Close()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
