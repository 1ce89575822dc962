package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xhd2015/dlv-connect/debug/connect"
	"github.com/xhd2015/dlv-connect/debug/dap"
	"github.com/xhd2015/dlv-connect/telemetry"
)

func newDAPCommand(opts *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "dap",
		Short: "Accept DAP attach requests and create connect options from them",
		Long: `Accept DAP attach requests and create connect options from them.

The attach arguments carry the locator in "connect" and optionally
an encoding name in "encoding". The options live until the client
sends disconnect.`,
		Args: cobra.NoArgs,
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

			ln, err := net.Listen("tcp", listen)
			if err != nil {
				return fmt.Errorf("listen %s: %w", listen, err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := dap.NewServer(dap.ServerConfig{
				Factory: factory,
				Logger:  log.WithName("dap"),
				OnAttach: func(ctx context.Context, o *connect.ConnectionOptions) error {
					url, err := o.URL()
					if err != nil {
						return err
					}
					log.Info("Attached", "url", url, "backend", o.Backend())
					return nil
				},
			})

			log.Info("DAP server listening", "address", ln.Addr().String())
			return srv.Serve(ctx, ln)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "127.0.0.1:4711", "Address to accept DAP clients on")
	return cmd
}
