package commands

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"go.uber.org/multierr"

	"github.com/fabric-dosgi/dosgi-go/pkg/transport"
)

// SessionTable is the serve command's AcceptListener. It starts every
// accepted transport, tracks it by transport ID until it is Disconnected and
// optionally echoes every frame back to its sender.
type SessionTable struct {
	logger *slog.Logger
	echo   bool

	outMu sync.Mutex
	out   io.Writer

	mu       sync.Mutex
	sessions map[uint64]transport.Transport
	wg       sync.WaitGroup
}

// NewSessionTable creates an empty table. Received frames are printed to out.
func NewSessionTable(logger *slog.Logger, out io.Writer, echo bool) *SessionTable {
	return &SessionTable{
		logger:   logger,
		echo:     echo,
		out:      out,
		sessions: make(map[uint64]transport.Transport),
	}
}

// OnAccept registers and starts t.
func (s *SessionTable) OnAccept(_ transport.TransportServer, t transport.Transport) {
	if err := t.SetTransportListener(s); err != nil {
		s.logger.Error("register transport listener", "error", err)
		t.Disconnect()
		return
	}

	s.mu.Lock()
	s.sessions[t.ID()] = t
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		<-t.Done()
		s.remove(t.ID())
	}()

	if err := t.Start(); err != nil {
		s.logger.Error("start transport", "error", err)
		t.Disconnect()
		return
	}
	s.logger.Info("session opened", "transport_id", t.ID(), "remote", t.RemoteAddr().String())
}

// OnAcceptError logs accept failures.
func (s *SessionTable) OnAcceptError(_ transport.TransportServer, err error) {
	var acceptErr *transport.AcceptError
	if errors.As(err, &acceptErr) && acceptErr.Fatal {
		s.logger.Error("accept failed, server stopped", "error", err)
		return
	}
	s.logger.Warn("accept failed", "error", err)
}

// OnFrame prints the frame and echoes it when enabled.
func (s *SessionTable) OnFrame(t transport.Transport, frame []byte) {
	s.outMu.Lock()
	fmt.Fprintf(s.out, "[%d] %q\n", t.ID(), frame)
	s.outMu.Unlock()

	if s.echo {
		if err := t.Send(frame); err != nil {
			s.logger.Debug("echo failed", "transport_id", t.ID(), "error", err)
		}
	}
}

// OnFailure logs the failure. The session is removed once the transport
// reports Done.
func (s *SessionTable) OnFailure(t transport.Transport, err error) {
	s.logger.Info("session failed", "transport_id", t.ID(), "error", err)
}

// IDs returns the IDs of live sessions in ascending order.
func (s *SessionTable) IDs() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]uint64, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the number of live sessions.
func (s *SessionTable) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// CloseAll disconnects every session and waits until all are removed.
// The returned error combines the Disconnect errors.
func (s *SessionTable) CloseAll() error {
	s.mu.Lock()
	live := make([]transport.Transport, 0, len(s.sessions))
	for _, t := range s.sessions {
		live = append(live, t)
	}
	s.mu.Unlock()

	var errs error
	for _, t := range live {
		if err := t.Disconnect(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("transport %d: %w", t.ID(), err))
		}
	}
	s.wg.Wait()
	return errs
}

func (s *SessionTable) remove(id uint64) {
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		s.logger.Info("session closed", "transport_id", id)
	}
}
