// Command dosgi-transport serves, dials and inspects dosgi TCP transports.
//
// Usage:
//
//	dosgi-transport <command> [flags]
//
// Commands:
//
//	serve      Accept transports, print received frames and echo them back
//	connect    Dial a server and send console lines as frames
//	log view   View a protocol capture file
//	log stats  Summarize a protocol capture file
//	cert       Create a development CA and endpoint certificate
//	version    Print the framing protocol revision
//
// Examples:
//
//	# Echo server on an ephemeral port with a capture file
//	dosgi-transport serve --listen tcp://127.0.0.1:0 --protocol-log server.dlog
//
//	# Interactive client that redials after failures
//	dosgi-transport connect --reconnect tcp://127.0.0.1:7000
//
//	# TLS material for tls:// URIs
//	dosgi-transport cert --dir ./pki --name node-1 --host 10.0.0.5
//
//	# Frames of one connection
//	dosgi-transport log view --conn-id 3f2a9c1e --category frame server.dlog
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fabric-dosgi/dosgi-go/cmd/dosgi-transport/commands"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.NewRootCmd(os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
