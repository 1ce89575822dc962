package main

import (
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/pflag"

	"github.com/xhd2015/dlv-connect/debug"
	"github.com/xhd2015/dlv-connect/debug/connect"
	"github.com/xhd2015/dlv-connect/telemetry"
)

const (
	DLV_CONNECT_BACKEND  = "DLV_CONNECT_BACKEND"  // Native backend to use when --backend is not given
	DLV_CONNECT_ENCODING = "DLV_CONNECT_ENCODING" // Native narrow encoding when --encoding is not given
)

type rootOptions struct {
	backend   string
	encoding  string
	verbosity int
	logFile   string
}

func (o *rootOptions) addFlags(flags *pflag.FlagSet) {
	flags.StringVar(&o.backend, "backend", os.Getenv(DLV_CONNECT_BACKEND), "Native backend: 'cgo' or 'memory' (default: cgo when compiled in)")
	flags.StringVar(&o.encoding, "encoding", os.Getenv(DLV_CONNECT_ENCODING), "IANA name of the native narrow encoding (default: platform encoding)")
	flags.IntVarP(&o.verbosity, "verbosity", "v", 0, "Log verbosity, higher is chattier")
	flags.StringVar(&o.logFile, "log-file", "", "Append logs to this file instead of stderr")
}

// newFactory builds the connect options factory from flags
func (o *rootOptions) newFactory(log logr.Logger, collector telemetry.Collector) (*connect.Factory, error) {
	backend, err := debug.NewBackend(o.backend)
	if err != nil {
		return nil, err
	}

	bridge := connect.DefaultBridge()
	if o.encoding != "" {
		bridge, err = connect.BridgeByName(o.encoding)
		if err != nil {
			return nil, fmt.Errorf("invalid --encoding: %w", err)
		}
	}

	log.V(1).Info("Connect options factory ready", "backend", backend.Name(), "encoding", bridge.EncodingName())
	return connect.NewFactory(backend,
		connect.WithBridge(bridge),
		connect.WithLogger(log),
		connect.WithCollector(collector),
	), nil
}
