package control

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/thruflo/loom/internal/logging"
	"github.com/thruflo/loom/internal/netutil"
	"github.com/thruflo/loom/internal/protocol"
)

// DefaultPort is the control channel port used when none is configured.
const DefaultPort = 1221

// Server is the control channel endpoint. It owns its listening socket
// and serves one session at a time: while a session is active, further
// clients wait in the listen backlog until it ends.
type Server struct {
	host    string
	port    int
	handler Handler
	logger  *logging.Logger

	mu       sync.Mutex
	listener net.Listener
	conn     net.Conn
	running  bool
	stopping bool
}

// ServerOptions holds configuration for creating a Server.
type ServerOptions struct {
	// Host defaults to all interfaces.
	Host string
	// Port 0 picks a free port; see Addr.
	Port    int
	Handler Handler
	Logger  *logging.Logger
}

// NewServer creates a server. It does not bind until Start.
func NewServer(opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Server{
		host:    opts.Host,
		port:    opts.Port,
		handler: opts.Handler,
		logger:  logger.WithComponent("control"),
	}
}

// Start binds the listening socket. It returns once the socket is bound;
// call Serve to accept sessions.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("server already running")
	}
	if s.handler == nil {
		return fmt.Errorf("server has no handler")
	}

	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.listener = ln
	s.running = true
	s.stopping = false
	s.logger.Info("listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port returns the bound TCP port, or 0 before Start.
func (s *Server) Port() int {
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Serve accepts and serves sessions one after another until ctx is
// cancelled or Stop is called, in which case it returns nil.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return fmt.Errorf("server not started")
	}

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopped:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isStopping() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		if !s.setConn(conn) {
			conn.Close()
			return nil
		}
		s.serveSession(conn)
		s.setConn(nil)
	}
}

// Stop closes the listener and any active session. It is safe to call
// more than once.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.running = false
	s.stopping = true

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	if s.conn != nil {
		s.conn.Close()
	}
	s.logger.Info("stopped")
	return err
}

func (s *Server) isStopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

// setConn records the active session connection. It returns false if the
// server is stopping, in which case the connection must not be served.
func (s *Server) setConn(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conn != nil && s.stopping {
		return false
	}
	s.conn = conn
	return true
}

// serveSession runs the strict request/reply loop on conn until the peer
// goes away or a framing error occurs. Every decoded request gets exactly
// one reply frame.
func (s *Server) serveSession(conn net.Conn) {
	defer conn.Close()

	log := s.logger.WithFields(map[string]interface{}{
		"session": uuid.NewString()[:8],
		"peer":    conn.RemoteAddr().String(),
	})
	log.Info("session opened")

	for {
		payload, err := protocol.ReadMessage(conn)
		if err != nil {
			switch {
			case protocol.IsFramingError(err):
				log.Warn("framing error, closing session", "error", err)
			case netutil.IsExpectedCloseError(err):
				log.Info("session closed")
			default:
				log.Warn("read failed, closing session", "error", err)
			}
			return
		}

		cmd := protocol.ParseCommand(payload)
		reply := fitReply(s.handler.Handle(cmd))
		log.Debug("command", "request", payload, "reply", reply)

		if err := protocol.WriteMessage(conn, reply); err != nil {
			if netutil.IsExpectedCloseError(err) {
				log.Info("session closed before reply")
			} else {
				log.Warn("write failed, closing session", "error", err)
			}
			return
		}
	}
}

// fitReply truncates a reply so it fits in one frame without splitting
// the last rune.
func fitReply(reply string) string {
	if len(reply) < protocol.MaxFrameSize {
		return reply
	}
	cut := reply[:protocol.MaxFrameSize-1]
	// Drop a rune split by the cut. Bytes before it are kept as they are.
	for i := len(cut) - 1; i >= 0 && i >= len(cut)-utf8.UTFMax; i-- {
		if utf8.RuneStart(cut[i]) {
			if !utf8.FullRuneInString(cut[i:]) {
				cut = cut[:i]
			}
			break
		}
	}
	return strings.TrimRight(cut, "\n")
}
