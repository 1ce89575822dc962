package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xhd2015/dlv-connect/telemetry"
)

func newCreateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <locator>",
		Short: "Create connect options for a locator, print them and release them",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, flush, err := newLogger(opts.verbosity, opts.logFile)
			if err != nil {
				return err
			}
			defer flush()

			factory, err := opts.newFactory(log, telemetry.Noop())
			if err != nil {
				return err
			}

			connectOpts, err := factory.CreateConnectionOptions(args[0])
			if err != nil {
				return err
			}
			defer connectOpts.Close()

			url, err := connectOpts.URL()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "URL: %s\n", url)
			fmt.Fprintf(out, "Backend: %s\n", connectOpts.Backend())
			fmt.Fprintf(out, "Encoding: %s\n", factory.Bridge().EncodingName())
			return nil
		},
	}
}
