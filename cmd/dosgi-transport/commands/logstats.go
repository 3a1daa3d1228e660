package commands

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/fabric-dosgi/dosgi-go/pkg/log"
)

// Stats holds aggregate statistics about a capture file.
type Stats struct {
	TotalEvents      int
	EventsByCategory map[log.Category]int
	FramesIn         int
	FramesOut        int
	BytesIn          int
	BytesOut         int
	Accepted         int
	Rejected         int
	Errors           int
	FatalErrors      int
	Connections      map[string]*ConnectionStats
	Start, End       time.Time
}

// ConnectionStats holds statistics for a single connection.
type ConnectionStats struct {
	FirstSeen time.Time
	LastSeen  time.Time
	Remote    string
	Frames    int
	LastState string
}

func newLogStatsCmd() *cobra.Command {
	var flags FilterFlags

	cmd := &cobra.Command{
		Use:   "stats <file.dlog>",
		Short: "Summarize a capture file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := flags.Filter()
			if err != nil {
				return err
			}
			stats, err := CollectStats(args[0], filter)
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), stats)
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

// CollectStats reads the capture file and aggregates the matching events.
func CollectStats(path string, filter log.Filter) (*Stats, error) {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByCategory: make(map[log.Category]int),
		Connections:      make(map[string]*ConnectionStats),
	}

	for {
		event, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByCategory[event.Category]++

	if s.Start.IsZero() || event.Timestamp.Before(s.Start) {
		s.Start = event.Timestamp
	}
	if event.Timestamp.After(s.End) {
		s.End = event.Timestamp
	}

	switch {
	case event.Frame != nil:
		if event.Direction == log.DirectionIn {
			s.FramesIn++
			s.BytesIn += event.Frame.Size
		} else {
			s.FramesOut++
			s.BytesOut += event.Frame.Size
		}
	case event.Accept != nil:
		if event.Accept.Outcome == log.AcceptDelivered {
			s.Accepted++
		} else {
			s.Rejected++
		}
	case event.Error != nil:
		s.Errors++
		if event.Error.Fatal {
			s.FatalErrors++
		}
	}

	if event.ConnectionID == "" {
		return
	}
	conn, ok := s.Connections[event.ConnectionID]
	if !ok {
		conn = &ConnectionStats{FirstSeen: event.Timestamp, LastSeen: event.Timestamp}
		s.Connections[event.ConnectionID] = conn
	}
	if event.Timestamp.After(conn.LastSeen) {
		conn.LastSeen = event.Timestamp
	}
	if conn.Remote == "" {
		conn.Remote = event.RemoteAddr
	}
	if event.Frame != nil {
		conn.Frames++
	}
	if event.StateChange != nil {
		conn.LastState = event.StateChange.NewState
	}
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== dosgi Protocol Log Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.Start.Format(time.RFC3339),
			stats.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.End.Sub(stats.Start).Round(time.Millisecond))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryFrame, log.CategoryState, log.CategoryAccept, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Frames: %d in (%d bytes), %d out (%d bytes)\n",
		stats.FramesIn, stats.BytesIn, stats.FramesOut, stats.BytesOut)
	fmt.Fprintf(w, "Accepts: %d delivered, %d rejected\n", stats.Accepted, stats.Rejected)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Connections: %d\n", len(stats.Connections))
	if len(stats.Connections) > 0 {
		type connInfo struct {
			id    string
			stats *ConnectionStats
		}
		conns := make([]connInfo, 0, len(stats.Connections))
		for id, cs := range stats.Connections {
			conns = append(conns, connInfo{id, cs})
		}
		sort.Slice(conns, func(i, j int) bool {
			return conns[i].stats.FirstSeen.Before(conns[j].stats.FirstSeen)
		})

		fmt.Fprintln(w)
		for _, c := range conns {
			duration := c.stats.LastSeen.Sub(c.stats.FirstSeen).Round(time.Millisecond)
			fmt.Fprintf(w, "  [%s] %d frames, duration %s\n", shortenConnID(c.id), c.stats.Frames, duration)
			if c.stats.Remote != "" {
				fmt.Fprintf(w, "           Peer: %s\n", c.stats.Remote)
			}
			if c.stats.LastState != "" {
				fmt.Fprintf(w, "           Last state: %s\n", c.stats.LastState)
			}
		}
	}

	if stats.Errors > 0 {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Errors: %d (%d fatal)\n", stats.Errors, stats.FatalErrors)
	}
}
