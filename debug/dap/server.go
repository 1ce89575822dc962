package dap

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/go-logr/logr"
	"github.com/google/go-dap"

	"github.com/xhd2015/dlv-connect/debug/connect"
)

// AttachHandler receives the connect options created for an attach request.
// Returning an error fails the attach and releases the options; otherwise
// they stay owned by the DAP session until disconnect.
type AttachHandler func(ctx context.Context, opts *connect.ConnectionOptions) error

// ServerConfig configures a DAP Server
type ServerConfig struct {
	Factory  *connect.Factory
	OnAttach AttachHandler
	Logger   logr.Logger
}

// Server answers DAP initialize/attach/disconnect requests, turning the
// attach locator into native connect options.
type Server struct {
	factory  *connect.Factory
	onAttach AttachHandler
	log      logr.Logger
}

// NewServer creates a DAP server
func NewServer(config ServerConfig) *Server {
	return &Server{
		factory:  config.Factory,
		onAttach: config.OnAttach,
		log:      config.Logger,
	}
}

// Serve accepts DAP connections until ctx is done or the listener fails
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to accept DAP connection: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.ServeConn(ctx, conn); err != nil {
				s.log.Error(err, "DAP session ended with error", "remote", conn.RemoteAddr().String())
			}
		}()
	}
}

// ServeConn runs one DAP session on conn and closes it when done
func (s *Server) ServeConn(ctx context.Context, conn io.ReadWriteCloser) error {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	sess := &session{
		server: s,
		reader: bufio.NewReader(conn),
		writer: conn,
	}
	defer sess.release()

	for {
		msg, err := dap.ReadProtocolMessage(sess.reader)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
				return nil
			}
			return fmt.Errorf("failed to read DAP message: %w", err)
		}

		done, err := sess.handle(ctx, msg)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// session holds the state of one DAP connection
type session struct {
	server *Server
	reader *bufio.Reader
	writer io.Writer
	seq    int
	opts   *connect.ConnectionOptions
}

func (s *session) handle(ctx context.Context, msg dap.Message) (bool, error) {
	switch req := msg.(type) {
	case *dap.InitializeRequest:
		if err := s.send(&dap.InitializeResponse{Response: s.newResponse(&req.Request, "")}); err != nil {
			return false, err
		}
		return false, s.send(&dap.InitializedEvent{Event: s.newEvent("initialized")})
	case *dap.AttachRequest:
		return false, s.send(s.attach(ctx, req))
	case *dap.DisconnectRequest:
		s.release()
		return true, s.send(&dap.DisconnectResponse{Response: s.newResponse(&req.Request, "")})
	case dap.RequestMessage:
		r := req.GetRequest()
		return false, s.send(&dap.ErrorResponse{Response: s.newResponse(r, fmt.Sprintf("unsupported request: %s", r.Command))})
	default:
		s.server.log.V(1).Info("Ignoring DAP message", "type", fmt.Sprintf("%T", msg))
		return false, nil
	}
}

func (s *session) attach(ctx context.Context, req *dap.AttachRequest) dap.Message {
	if s.opts != nil {
		return &dap.ErrorResponse{Response: s.newResponse(&req.Request, "already attached")}
	}

	opts, err := CreateFromAttach(s.server.factory, req)
	if err != nil {
		s.server.log.Error(err, "Attach failed", "requestSeq", req.Seq)
		return &dap.ErrorResponse{Response: s.newResponse(&req.Request, err.Error())}
	}
	s.opts = opts

	if s.server.onAttach != nil {
		if err := s.server.onAttach(ctx, opts); err != nil {
			s.server.log.Error(err, "Attach handler failed", "requestSeq", req.Seq)
			s.release()
			return &dap.ErrorResponse{Response: s.newResponse(&req.Request, err.Error())}
		}
	}

	s.server.log.Info("Attached", "locator", opts.Locator(), "backend", opts.Backend())
	return &dap.AttachResponse{Response: s.newResponse(&req.Request, "")}
}

func (s *session) release() {
	if s.opts == nil {
		return
	}
	if err := s.opts.Close(); err != nil {
		s.server.log.Error(err, "Failed to release connect options")
	}
	s.opts = nil
}

// newResponse builds a response; an empty errMsg means success
func (s *session) newResponse(req *dap.Request, errMsg string) dap.Response {
	s.seq++
	return dap.Response{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  s.seq,
			Type: "response",
		},
		RequestSeq: req.Seq,
		Command:    req.Command,
		Success:    errMsg == "",
		Message:    errMsg,
	}
}

func (s *session) newEvent(name string) dap.Event {
	s.seq++
	return dap.Event{
		ProtocolMessage: dap.ProtocolMessage{
			Seq:  s.seq,
			Type: "event",
		},
		Event: name,
	}
}

func (s *session) send(msg dap.Message) error {
	if err := dap.WriteProtocolMessage(s.writer, msg); err != nil {
		return fmt.Errorf("failed to write DAP message: %w", err)
	}
	return nil
}
