package headless

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-delve/delve/service/rpc2"
	"github.com/go-logr/logr"

	"github.com/xhd2015/dlv-connect/debug/connect"
)

// Locator schemes understood by Dial
const (
	SchemeConnect     = "connect"      // connect://host:port over TCP
	SchemeUnixConnect = "unix-connect" // unix-connect:///path/to/socket
)

// ErrUnsupportedLocator is returned for locators Dial cannot resolve
var ErrUnsupportedLocator = errors.New("unsupported locator")

const (
	defaultAttemptTimeout = 10 * time.Second
	defaultMaxElapsed     = 30 * time.Second
)

// DialOptions tune how Dial reaches the headless server
type DialOptions struct {
	// AttemptTimeout bounds a single dial attempt
	AttemptTimeout time.Duration
	// MaxElapsed bounds all attempts together
	MaxElapsed time.Duration
	Logger     logr.Logger
}

// Endpoint resolves a locator to a network and address for net.Dial.
// Scheme support is only checked here, at connection time; the native
// constructor accepts any text.
func Endpoint(locator string) (network string, address string, err error) {
	u, err := url.Parse(locator)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUnsupportedLocator, err)
	}

	switch u.Scheme {
	case SchemeConnect:
		if u.Hostname() == "" || u.Port() == "" {
			return "", "", fmt.Errorf("%w: %s needs host and port", ErrUnsupportedLocator, locator)
		}
		return "tcp", u.Host, nil
	case SchemeUnixConnect:
		path := u.Host + u.Path
		if path == "" {
			return "", "", fmt.Errorf("%w: %s needs a socket path", ErrUnsupportedLocator, locator)
		}
		return "unix", path, nil
	default:
		return "", "", fmt.Errorf("%w: scheme %q", ErrUnsupportedLocator, u.Scheme)
	}
}

// Dial consumes the connect options and connects to the Delve headless
// server they name. The options can be dialed only once; a second Dial
// fails with connect.ErrConsumed. Refused connections are retried with
// exponential backoff until MaxElapsed.
func Dial(ctx context.Context, opts *connect.ConnectionOptions, dialOpts DialOptions) (*rpc2.RPCClient, error) {
	log := dialOpts.Logger
	attemptTimeout := dialOpts.AttemptTimeout
	if attemptTimeout <= 0 {
		attemptTimeout = defaultAttemptTimeout
	}
	maxElapsed := dialOpts.MaxElapsed
	if maxElapsed <= 0 {
		maxElapsed = defaultMaxElapsed
	}

	locator, err := opts.Consume()
	if err != nil {
		return nil, err
	}
	network, address, err := Endpoint(locator)
	if err != nil {
		return nil, err
	}

	var conn net.Conn
	attempt := 0
	operation := func() error {
		attempt++
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		defer cancel()

		var d net.Dialer
		c, err := d.DialContext(attemptCtx, network, address)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			log.V(1).Info("Dial attempt failed", "network", network, "address", address, "attempt", attempt, "error", err.Error())
			return err
		}
		conn = c
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxElapsedTime = maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("failed to connect to headless server at %s: %w", locator, err)
	}

	log.Info("Connected to Delve headless server", "network", network, "address", address, "attempts", attempt)
	return rpc2.NewClientFromConn(conn), nil
}
