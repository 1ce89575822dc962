package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// install: go install ./cmd/dlv-connect
func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "dlv-connect",
		Short:         "Create native debugger connect options from connection locators",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.addFlags(cmd.PersistentFlags())

	cmd.AddCommand(
		newCreateCommand(opts),
		newServeCommand(opts),
		newDAPCommand(opts),
	)
	return cmd
}
