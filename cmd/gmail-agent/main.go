// Gmail agent answers natural-language requests about a Gmail mailbox by
// letting a generative model read the inbox and send mail on the caller's behalf.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	// serve is the default command.
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gmail-agent",
		Short: "Natural-language assistant for a Gmail mailbox",
		Long: `gmail-agent serves POST /agent: a prompt and a Gmail access token in,
the model's answer out. The model may list the five most recent inbox
messages or send a message before answering.

The same Gmail tools are exposed to MCP clients at /mcp.`,
		Version:      version,
		SilenceUsage: true,
	}
	root.SetVersionTemplate(`{{printf "gmail-agent version %s\n" .Version}}`)

	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gmail-agent version %s\n", version)
		},
	}
}
