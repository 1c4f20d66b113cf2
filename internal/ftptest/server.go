// Package ftptest provides an in-process FTP server backed by an in-memory
// filesystem, for tests that need a real control and data channel.
//
// The server understands the commands a passive-mode client needs for
// listing, download and upload: USER, PASS, CWD, CDUP, PWD, TYPE, EPSV, PASV,
// LIST, NLST, RETR, STOR, SYST, FEAT, NOOP and QUIT.
//
// Example:
//
//	srv := ftptest.NewServer(t)
//	_ = srv.FS().WriteFile("/pub/readme.txt", []byte("hello"))
//	addr := srv.Addr()
package ftptest

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
)

// Server is an FTP server listening on a loopback address.
type Server struct {
	listener net.Listener
	fs       *MemFS
	logger   *slog.Logger

	// users maps user names to passwords. When allowAnonymous is set,
	// "anonymous" and "ftp" log in with any password.
	users          map[string]string
	allowAnonymous bool

	welcomeMessage string
	disableEPSV    bool

	mu       sync.Mutex
	conns    map[net.Conn]struct{}
	commands []string
	wg       sync.WaitGroup

	sessions atomic.Int32
	quits    atomic.Int32
	closed   atomic.Bool
}

// NewServer starts a server on 127.0.0.1 with a random port and registers
// its shutdown with t.Cleanup.
func NewServer(t testing.TB, options ...Option) *Server {
	t.Helper()

	s, err := Start("127.0.0.1:0", options...)
	if err != nil {
		t.Fatalf("ftptest: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Start listens on addr and serves connections in the background.
func Start(addr string, options ...Option) (*Server, error) {
	s := &Server{
		fs:             NewMemFS(),
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		users:          make(map[string]string),
		allowAnonymous: true,
		welcomeMessage: "FTP Server Ready",
		conns:          make(map[net.Conn]struct{}),
	}

	for _, opt := range options {
		opt(s)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.listener = ln

	s.wg.Add(1)
	go s.serve()

	return s, nil
}

// Addr returns the "host:port" address of the control listener.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// FS returns the filesystem served by s.
func (s *Server) FS() *MemFS {
	return s.fs
}

// Commands returns every command line received so far, in order, with
// PASS arguments masked.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.commands)
}

// Sessions returns the number of control connections accepted so far.
func (s *Server) Sessions() int {
	return int(s.sessions.Load())
}

// Quits returns the number of QUIT commands received so far.
func (s *Server) Quits() int {
	return int(s.quits.Load())
}

// Close stops the listener, closes every open connection and waits for the
// session goroutines to exit.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	err := s.listener.Close()

	s.mu.Lock()
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	return err
}

func (s *Server) serve() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.logger.Warn("accept failed", "error", err)
			}
			return
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()
		s.sessions.Add(1)

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
			}()
			newSession(s, conn).serve()
		}()
	}
}

func (s *Server) record(line string) {
	s.mu.Lock()
	s.commands = append(s.commands, line)
	s.mu.Unlock()
}

func (s *Server) authenticate(user, pass string) bool {
	if s.allowAnonymous && (user == "anonymous" || user == "ftp") {
		return true
	}
	want, ok := s.users[user]
	return ok && want == pass
}
