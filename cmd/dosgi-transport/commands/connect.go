package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/fabric-dosgi/dosgi-go/pkg/connection"
	"github.com/fabric-dosgi/dosgi-go/pkg/transport"
)

// LineReader is the console input. *readline.Instance implements it.
type LineReader interface {
	Readline() (string, error)
	Close() error
}

// ConnectParams configures Connect.
type ConnectParams struct {
	Config *Config
	URIs   []string
	Input  LineReader
	Out    io.Writer
	Logger *slog.Logger
}

func newConnectCmd(app *App) *cobra.Command {
	var reconnect bool

	cmd := &cobra.Command{
		Use:   "connect [uri...]",
		Short: "Connect to a server and send console lines as frames",
		Long: `Connect dials the first reachable URI and starts an interactive console.
Every input line is sent as one frame; received frames are printed.
Type :quit to exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.Config
			if cmd.Flags().Changed("reconnect") {
				cfg.Reconnect.Enabled = reconnect
			}

			uris := args
			if len(uris) == 0 {
				uris = cfg.Connect
			}

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "dosgi> ",
				InterruptPrompt: "^C",
				EOFPrompt:       ":quit",
			})
			if err != nil {
				return fmt.Errorf("failed to create readline: %w", err)
			}

			return Connect(cmd.Context(), ConnectParams{
				Config: cfg,
				URIs:   uris,
				Input:  rl,
				Out:    rl.Stdout(),
				Logger: app.Logger,
			})
		},
	}

	cmd.Flags().BoolVar(&reconnect, "reconnect", false, "Redial with backoff after the connection fails")
	return cmd
}

// Connect dials p.URIs and runs the console until :quit, end of input or
// cancellation of ctx.
func Connect(ctx context.Context, p ConnectParams) (err error) {
	if len(p.URIs) == 0 {
		return errors.New("no URI given (pass one or set connect in the config file)")
	}

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

	var outMu sync.Mutex
	printf := func(format string, args ...any) {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintf(p.Out, format, args...)
	}

	r := connection.NewRedialer(connection.Config{
		URIs:             p.URIs,
		Options:          opts,
		Backoff:          p.Config.Reconnect.Backoff,
		DisableReconnect: !p.Config.Reconnect.Enabled,
		Logger:           p.Logger,
		Listener: transport.TransportListenerFuncs{
			Frame: func(_ transport.Transport, frame []byte) {
				printf("< %q\n", frame)
			},
			Failure: func(_ transport.Transport, err error) {
				printf("connection lost: %v\n", err)
			},
		},
	})
	r.OnConnected(func(t transport.Transport) {
		printf("connected to %s\n", t.RemoteAddr())
	})
	r.OnReconnecting(func(attempt int, err error) {
		p.Logger.Warn("redial failed", "attempt", attempt, "error", err)
	})

	if err := r.Connect(ctx); err != nil {
		p.Input.Close()
		return multierr.Append(err, r.Close())
	}

	consoleErr := RunConsole(ctx, p.Input, r.Send, printf)
	return multierr.Append(consoleErr, r.Close())
}

// RunConsole reads lines from in and sends each one as a frame until :quit,
// end of input or cancellation of ctx. It closes in before returning.
func RunConsole(ctx context.Context, in LineReader, send func([]byte) error, printf func(string, ...any)) error {
	stop := context.AfterFunc(ctx, func() { in.Close() })
	defer func() {
		if stop() {
			in.Close()
		}
	}()

	for {
		line, err := in.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) || ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}

		input := strings.TrimSpace(line)
		switch input {
		case "":
			continue
		case ":quit", ":q", ":exit":
			return nil
		case ":help":
			printf("Every line is sent as one frame.\n  :quit  disconnect and exit\n")
			continue
		}

		if err := send([]byte(input)); err != nil {
			printf("send failed: %v\n", err)
		}
	}
}
