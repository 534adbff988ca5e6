package dap

import (
	"fmt"
	"net"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/veloxvm/velox/internal/config"
	"github.com/veloxvm/velox/internal/vm"
)

// Server accepts debugger clients on a TCP port. Every accepted connection
// gets its own Session and its own VM over the shared loaded program, so
// one client's run never disturbs another's.
type Server struct {
	prog *vm.Program
	cfg  *config.Config
	log  commonlog.Logger

	// OnConnect, when set, is called with the running connection count each
	// time a client attaches.
	OnConnect func(count int)

	mu       sync.Mutex
	listener net.Listener
	count    int
	closed   bool
	wg       sync.WaitGroup
}

// NewServer prepares a debug server for prog. prog may be nil; clients then
// provide bytecode via uploadBytecode.
func NewServer(prog *vm.Program, cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Discover()
	}
	return &Server{
		prog: prog,
		cfg:  cfg,
		log:  commonlog.GetLogger("velox.dap.server"),
	}
}

// Listen binds the port and starts the accept loop in the background.
func (s *Server) Listen(port int) error {
	addr := fmt.Sprintf(":%d", port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("dap: cannot listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.log.Noticef("debug adapter listening on %s", listener.Addr())

	s.wg.Add(1)
	go s.acceptLoop(listener)
	return nil
}

// Addr returns the bound address, nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) acceptLoop(listener net.Listener) {
	defer s.wg.Done()
	for {
		conn, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			s.log.Errorf("accept failed: %v", err)
			return
		}

		s.mu.Lock()
		s.count++
		count := s.count
		s.mu.Unlock()

		if s.OnConnect != nil {
			s.OnConnect(count)
		}

		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	session := NewSession(NewChannel(conn, conn), s.prog, s.cfg)
	s.log.Infof("client %s attached as session %s", conn.RemoteAddr(), session.ID)
	if err := session.Serve(); err != nil {
		s.log.Errorf("session %s ended with error: %v", session.ID, err)
	}
	s.log.Infof("client %s detached", conn.RemoteAddr())
}

// Close stops accepting and waits for active sessions to finish serving.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	listener := s.listener
	s.mu.Unlock()

	var err error
	if listener != nil {
		err = listener.Close()
	}
	s.wg.Wait()
	return err
}
