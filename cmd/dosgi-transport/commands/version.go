package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fabric-dosgi/dosgi-go/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the framing protocol revision",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			current := version.MustCurrent()
			fmt.Fprintf(cmd.OutOrStdout(), "dosgi framing protocol %s (ALPN %s)\n", current, current.ALPN())
		},
	}
}
