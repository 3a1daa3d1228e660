package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/fabric-dosgi/dosgi-go/pkg/log"
	"github.com/fabric-dosgi/dosgi-go/pkg/transport"
)

// ErrServerStopped is returned by Serve when the server stops on its own.
var ErrServerStopped = errors.New("server stopped unexpectedly")

// ServeParams configures Serve.
type ServeParams struct {
	Config *Config
	Echo   bool
	Out    io.Writer
	Logger *slog.Logger

	// Ready, if set, receives the bound URI once the server accepts.
	Ready func(uri string)
}

func newServeCmd(app *App) *cobra.Command {
	var (
		listen string
		echo   bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept transports and print (or echo) their frames",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config
			if listen != "" {
				cfg.Listen = listen
			}
			return Serve(cmd.Context(), ServeParams{
				Config: cfg,
				Echo:   echo,
				Out:    cmd.OutOrStdout(),
				Logger: app.Logger,
			})
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "URI to listen on (tcp://host:port or tls://host:port)")
	cmd.Flags().BoolVar(&echo, "echo", true, "Send every received frame back to its sender")
	return cmd
}

// Serve runs a server until ctx is cancelled or the accept loop fails, then
// disconnects every session.
func Serve(ctx context.Context, p ServeParams) (err error) {
	plog, closeCapture, err := openCapture(p.Config, p.Logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, closeCapture())
	}()

	opts, err := p.Config.TransportOptions(p.Logger, plog)
	if err != nil {
		return err
	}

	srv, err := transport.NewFactory(opts...).Bind(p.Config.Listen)
	if err != nil {
		return err
	}

	sessions := NewSessionTable(p.Logger, p.Out, p.Echo)
	if err := srv.SetAcceptListener(sessions); err != nil {
		srv.Stop()
		return err
	}
	if err := srv.Start(); err != nil {
		srv.Stop()
		return err
	}

	p.Logger.Info("listening", "uri", srv.URI())
	if p.Ready != nil {
		p.Ready(srv.URI())
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-srv.Done()
		if ctx.Err() != nil {
			return nil
		}
		return ErrServerStopped
	})
	g.Go(func() error {
		<-gctx.Done()
		return srv.Stop()
	})
	err = g.Wait()

	stats := srv.Stats()
	p.Logger.Info("server stopped",
		"accepted", stats.Accepted,
		"rejected", stats.Rejected,
		"accept_errors", stats.AcceptErrors,
		"sessions", sessions.Len())

	return multierr.Append(err, sessions.CloseAll())
}

// openCapture builds the protocol logger: the capture file if configured,
// plus the slog adapter when tracing. The returned function closes the file.
func openCapture(cfg *Config, logger *slog.Logger) (log.Logger, func() error, error) {
	noop := func() error { return nil }

	var trace log.Logger
	if cfg.Trace {
		trace = log.NewSlogAdapter(logger).WithLevel(slog.LevelInfo)
	}
	if cfg.ProtocolLog == "" {
		return trace, noop, nil
	}

	fl, err := log.NewFileLogger(cfg.ProtocolLog)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to open protocol log: %w", err)
	}
	closeFn := func() error {
		if n := fl.Dropped(); n > 0 {
			logger.Warn("protocol log dropped events", "count", n)
		}
		return fl.Close()
	}
	if trace == nil {
		return fl, closeFn, nil
	}
	return log.NewMultiLogger(trace, fl), closeFn, nil
}
