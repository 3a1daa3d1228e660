// Package log provides structured protocol event capture for dosgi transports.
//
// The package defines the Logger interface and the Event record emitted by
// transport servers and transports: accepted connections, accept failures,
// state transitions, frames and connection failures. It is separate from
// operational logging (slog); protocol capture yields a machine-readable
// trace that can be replayed with the dosgi-transport log command.
//
// # Basic Usage
//
//	// Development: print events through slog
//	opts = append(opts, transport.WithProtocolLogger(log.NewSlogAdapter(slog.Default())))
//
//	// Production: append CBOR records to a capture file
//	fl, _ := log.NewFileLogger("/var/log/dosgi/server.dlog")
//	opts = append(opts, transport.WithProtocolLogger(fl))
//
//	// Both
//	opts = append(opts, transport.WithProtocolLogger(log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()), fl)))
//
// # File Format
//
// Capture files are a stream of CBOR-encoded Event values (integer map
// keys) and conventionally use the .dlog extension.
package log
