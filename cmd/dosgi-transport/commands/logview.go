package commands

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fabric-dosgi/dosgi-go/pkg/log"
)

// FilterFlags are the event filters shared by the log subcommands.
type FilterFlags struct {
	ConnID    string
	Layer     string
	Direction string
	Category  string
}

func (f *FilterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.ConnID, "conn-id", "", "Filter by connection ID prefix")
	cmd.Flags().StringVar(&f.Layer, "layer", "", "Filter by layer (transport, server)")
	cmd.Flags().StringVar(&f.Direction, "direction", "", "Filter by direction (in, out)")
	cmd.Flags().StringVar(&f.Category, "category", "", "Filter by category (frame, state, accept, error)")
}

// Filter converts the flags to a log.Filter.
func (f *FilterFlags) Filter() (log.Filter, error) {
	filter := log.Filter{ConnectionID: f.ConnID}

	if f.Layer != "" {
		l, err := parseLayer(f.Layer)
		if err != nil {
			return filter, err
		}
		filter.Layer = &l
	}
	if f.Direction != "" {
		d, err := parseDirection(f.Direction)
		if err != nil {
			return filter, err
		}
		filter.Direction = &d
	}
	if f.Category != "" {
		c, ok := log.ParseCategory(f.Category)
		if !ok {
			return filter, fmt.Errorf("invalid category: %s (must be frame, state, accept, or error)", f.Category)
		}
		filter.Category = &c
	}
	return filter, nil
}

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect protocol capture files",
	}
	cmd.AddCommand(newLogViewCmd())
	cmd.AddCommand(newLogStatsCmd())
	return cmd
}

func newLogViewCmd() *cobra.Command {
	var flags FilterFlags

	cmd := &cobra.Command{
		Use:   "view <file.dlog>",
		Short: "View a capture file in human-readable form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := flags.Filter()
			if err != nil {
				return err
			}
			return RunView(args[0], filter, cmd.OutOrStdout())
		},
	}
	flags.register(cmd)
	return cmd
}

// RunView prints every event of the capture file that matches filter.
func RunView(path string, filter log.Filter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(w, event)
	}
}

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	ts := event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z")

	var label string
	switch {
	case event.Frame != nil:
		label = "Frame"
	case event.StateChange != nil:
		label = "State"
	case event.Accept != nil:
		label = "Accept"
	case event.Error != nil:
		label = "Error"
	default:
		label = "Unknown"
	}

	dir := ""
	if event.Frame != nil {
		dir = event.Direction.String()
	}
	fmt.Fprintf(w, "%s [conn:%s] %-3s %s %s\n", ts, shortenConnID(event.ConnectionID), dir, event.Layer, label)

	if event.RemoteAddr != "" {
		fmt.Fprintf(w, "  Peer: %s", event.RemoteAddr)
		if event.Role != log.RoleUnknown {
			fmt.Fprintf(w, " (%s)", strings.ToLower(event.Role.String()))
		}
		fmt.Fprintln(w)
	}

	switch {
	case event.Frame != nil:
		fmt.Fprintf(w, "  Size: %d bytes\n", event.Frame.Size)
		if len(event.Frame.Data) > 0 {
			fmt.Fprintf(w, "  Data: %s", hex.EncodeToString(event.Frame.Data))
			if event.Frame.Truncated {
				fmt.Fprint(w, " (truncated)")
			}
			fmt.Fprintln(w)
		}
	case event.StateChange != nil:
		sc := event.StateChange
		fmt.Fprintf(w, "  Entity: %s\n", sc.Entity)
		if sc.OldState != "" {
			fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
		} else {
			fmt.Fprintf(w, "  -> %s\n", sc.NewState)
		}
		if sc.Reason != "" {
			fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
		}
	case event.Accept != nil:
		fmt.Fprintf(w, "  Listen: %s\n", event.Accept.ListenURI)
		fmt.Fprintf(w, "  Outcome: %s\n", event.Accept.Outcome)
	case event.Error != nil:
		fmt.Fprintf(w, "  Message: %s\n", event.Error.Message)
		if event.Error.Fatal {
			fmt.Fprintln(w, "  Fatal: yes")
		}
		if event.Error.Context != "" {
			fmt.Fprintf(w, "  Context: %s\n", event.Error.Context)
		}
	}

	fmt.Fprintln(w)
}

// shortenConnID returns the first 8 characters of the connection ID.
func shortenConnID(id string) string {
	if id == "" {
		return "-"
	}
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}

func parseLayer(s string) (log.Layer, error) {
	switch strings.ToLower(s) {
	case "transport":
		return log.LayerTransport, nil
	case "server":
		return log.LayerServer, nil
	default:
		return 0, fmt.Errorf("invalid layer: %s (must be transport or server)", s)
	}
}

func parseDirection(s string) (log.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return log.DirectionIn, nil
	case "out":
		return log.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}
