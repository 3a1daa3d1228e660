// Package commands implements the dosgi-transport CLI commands.
package commands

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"
)

// App carries what the root command resolves for its subcommands.
type App struct {
	Config *Config
	Logger *slog.Logger
}

// NewRootCmd constructs the root command. Operational logs go to logOut.
func NewRootCmd(logOut io.Writer) *cobra.Command {
	var (
		cfgPath     string
		logLevel    string
		protocolLog string
		trace       bool
	)
	app := &App{}

	cmd := &cobra.Command{
		Use:           "dosgi-transport",
		Short:         "Serve, dial and inspect dosgi TCP transports",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			if logLevel != "" {
				if _, err := parseLevel(logLevel); err != nil {
					return err
				}
				cfg.LogLevel = logLevel
			}
			if protocolLog != "" {
				cfg.ProtocolLog = protocolLog
			}
			if trace {
				cfg.Trace = true
			}

			app.Config = cfg
			app.Logger = cfg.Logger(logOut)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to YAML config file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&protocolLog, "protocol-log", "", "Append protocol events to this CBOR capture file")
	cmd.PersistentFlags().BoolVar(&trace, "trace", false, "Log every protocol event")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newConnectCmd(app))
	cmd.AddCommand(newLogCmd())
	cmd.AddCommand(newCertCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}
