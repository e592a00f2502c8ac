package main

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/minnojs/pavlovia/pkg/experiment"
)

func newParamsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "params PAGE_URL",
		Short: "Print the server parameters carried by an experiment page URL",
		Long: `Print the query parameters of an experiment page URL that are addressed to
the client, i.e. those whose name starts with a double underscore, and
whether the URL marks a pilot run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			msg := experiment.ServerMessageFromURL(args[0])
			out := cmd.OutOrStdout()

			keys := make([]string, 0, len(msg))
			for k := range msg {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				fmt.Fprintf(out, "%s=%s\n", k, msg[k])
			}
			fmt.Fprintf(out, "pilot: %t\n", msg.IsPilot())
			return nil
		},
	}
}
