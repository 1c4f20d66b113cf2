package ftpconn

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"
)

// mockServer provides a simple way to script server responses
type mockServer struct {
	listener net.Listener
	addr     string
	greeting string
	// handlers override the default reply for a command
	handlers map[string]func(conn *textproto.Conn, args string)

	mu sync.Mutex
	// receivedCommands records all command lines received
	receivedCommands []string
	// done channel to signal server loop exit
	done chan struct{}
}

func newMockServer(t *testing.T) *mockServer {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	return &mockServer{
		listener: l,
		addr:     l.Addr().String(),
		greeting: "220 Service ready",
		handlers: make(map[string]func(*textproto.Conn, string)),
		done:     make(chan struct{}),
	}
}

func (s *mockServer) start() {
	go func() {
		defer close(s.done)
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		fmt.Fprintf(conn, "%s\r\n", s.greeting)

		textConn := textproto.NewConn(conn)
		defer textConn.Close()

		for {
			line, err := textConn.ReadLine()
			if err != nil {
				return
			}

			cmd, args, _ := strings.Cut(line, " ")
			cmd = strings.ToUpper(cmd)

			s.mu.Lock()
			s.receivedCommands = append(s.receivedCommands, line)
			s.mu.Unlock()

			if handler, ok := s.handlers[cmd]; ok {
				handler(textConn, args)
				continue
			}

			switch cmd {
			case "USER":
				_ = textConn.PrintfLine("331 User name okay, need password.")
			case "PASS":
				_ = textConn.PrintfLine("230 User logged in, proceed.")
			case "QUIT":
				_ = textConn.PrintfLine("221 Service closing control connection.")
				return
			case "TYPE":
				_ = textConn.PrintfLine("200 Command okay.")
			case "CWD":
				_ = textConn.PrintfLine("250 Okay.")
			default:
				_ = textConn.PrintfLine("502 Command not implemented.")
			}
		}
	}()
}

func (s *mockServer) commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.receivedCommands...)
}

func (s *mockServer) stop() {
	s.listener.Close()
	<-s.done
}

// passive registers an EPSV handler backed by a data listener. Accepted
// data connections are delivered on the returned channel.
func (s *mockServer) passive(t *testing.T) chan net.Conn {
	t.Helper()

	dl, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { dl.Close() })

	conns := make(chan net.Conn, 1)
	s.handlers["EPSV"] = func(c *textproto.Conn, _ string) {
		_, port, _ := net.SplitHostPort(dl.Addr().String())
		_ = c.PrintfLine("229 Entering Extended Passive Mode (|||%s|)", port)
		go func() {
			dc, err := dl.Accept()
			if err == nil {
				conns <- dc
			}
		}()
	}
	return conns
}

func TestDial_Greeting(t *testing.T) {
	t.Parallel()

	t.Run("accepted", func(t *testing.T) {
		t.Parallel()
		ms := newMockServer(t)
		ms.start()
		defer ms.stop()

		c, err := Dial(ms.addr, WithTimeout(5*time.Second))
		if err != nil {
			t.Fatalf("Dial() error = %v", err)
		}
		if err := c.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
		// Second close is a no-op.
		if err := c.Close(); err != nil {
			t.Errorf("second Close() error = %v", err)
		}
	})

	t.Run("refused", func(t *testing.T) {
		t.Parallel()
		ms := newMockServer(t)
		ms.greeting = "421 Too many connections"
		ms.start()
		defer ms.stop()

		_, err := Dial(ms.addr)
		var pe *ProtocolError
		if !errors.As(err, &pe) {
			t.Fatalf("Dial() error = %v, want *ProtocolError", err)
		}
		if pe.Code != 421 || pe.Reply() != "421 Too many connections" {
			t.Errorf("got code %d reply %q", pe.Code, pe.Reply())
		}
	})

	t.Run("bad address", func(t *testing.T) {
		t.Parallel()
		if _, err := Dial("no-port"); err == nil {
			t.Fatal("Dial() expected error for address without port")
		}
	})

	t.Run("negative timeout", func(t *testing.T) {
		t.Parallel()
		if _, err := Dial("127.0.0.1:21", WithTimeout(-time.Second)); err == nil {
			t.Fatal("Dial() expected option error")
		}
	})
}

func TestLogin(t *testing.T) {
	t.Parallel()

	t.Run("password accepted", func(t *testing.T) {
		t.Parallel()
		ms := newMockServer(t)
		ms.start()
		defer ms.stop()

		c, err := Dial(ms.addr)
		if err != nil {
			t.Fatal(err)
		}
		defer c.Close()

		if err := c.Login("alice", "secret"); err != nil {
			t.Fatalf("Login() error = %v", err)
		}
	})

	t.Run("no password needed", func(t *testing.T) {
		t.Parallel()
		ms := newMockServer(t)
		ms.handlers["USER"] = func(c *textproto.Conn, _ string) {
			_ = c.PrintfLine("230 Welcome.")
		}
		ms.start()
		defer ms.stop()

		c, err := Dial(ms.addr)
		if err != nil {
			t.Fatal(err)
		}
		defer c.Close()

		if err := c.Login("anonymous", "x"); err != nil {
			t.Fatalf("Login() error = %v", err)
		}
		for _, cmd := range ms.commands() {
			if strings.HasPrefix(cmd, "PASS") {
				t.Errorf("PASS sent after 230 reply to USER")
			}
		}
	})

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()
		ms := newMockServer(t)
		ms.handlers["PASS"] = func(c *textproto.Conn, _ string) {
			_ = c.PrintfLine("530 Login incorrect.")
		}
		ms.start()
		defer ms.stop()

		c, err := Dial(ms.addr)
		if err != nil {
			t.Fatal(err)
		}
		defer c.Close()

		err = c.Login("alice", "wrong")
		var pe *ProtocolError
		if !errors.As(err, &pe) {
			t.Fatalf("Login() error = %v, want *ProtocolError", err)
		}
		if pe.Reply() != "530 Login incorrect." {
			t.Errorf("Reply() = %q", pe.Reply())
		}
	})
}

func TestRetrBinary(t *testing.T) {
	t.Parallel()
	ms := newMockServer(t)
	conns := ms.passive(t)
	payload := bytes.Repeat([]byte("0123456789"), 2000)

	ms.handlers["RETR"] = func(c *textproto.Conn, args string) {
		if args != "dir/file name.bin" {
			_ = c.PrintfLine("550 unexpected path %q", args)
			return
		}
		_ = c.PrintfLine("150 Opening data connection.")
		dc := <-conns
		_, _ = dc.Write(payload)
		dc.Close()
		_ = c.PrintfLine("226 Transfer complete.")
	}
	ms.start()
	defer ms.stop()

	c, err := Dial(ms.addr)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	var got bytes.Buffer
	var chunks int
	reply, err := c.RetrBinary("RETR dir/file name.bin", func(b []byte) error {
		chunks++
		if len(b) > BlockSize {
			t.Errorf("chunk of %d bytes exceeds BlockSize", len(b))
		}
		got.Write(b)
		return nil
	})
	if err != nil {
		t.Fatalf("RetrBinary() error = %v", err)
	}
	if reply != "226 Transfer complete." {
		t.Errorf("reply = %q", reply)
	}
	if !bytes.Equal(got.Bytes(), payload) {
		t.Errorf("received %d bytes, want %d", got.Len(), len(payload))
	}
	if chunks < 2 {
		t.Errorf("expected payload to arrive in several chunks, got %d", chunks)
	}

	cmds := ms.commands()
	if len(cmds) < 1 || cmds[0] != "TYPE I" {
		t.Errorf("first command = %v, want TYPE I", cmds)
	}
}

func TestRetrBinary_NegativeReply(t *testing.T) {
	t.Parallel()
	ms := newMockServer(t)
	ms.passive(t)
	ms.handlers["RETR"] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine("550 No such file.")
	}
	ms.start()
	defer ms.stop()

	c, err := Dial(ms.addr)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	_, err = c.RetrBinary("RETR missing", func([]byte) error { return nil })
	var pe *ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("RetrBinary() error = %v, want *ProtocolError", err)
	}
	if pe.Code != 550 || pe.Command != "RETR" {
		t.Errorf("got %s %d", pe.Command, pe.Code)
	}
}

func TestRetrBinary_CallbackError(t *testing.T) {
	t.Parallel()
	ms := newMockServer(t)
	conns := ms.passive(t)
	ms.handlers["LIST"] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine("150 Here comes the listing.")
		dc := <-conns
		_, _ = io.WriteString(dc, "a\r\nb\r\n")
		dc.Close()
		_ = c.PrintfLine("226 Directory send OK.")
	}
	ms.start()
	defer ms.stop()

	c, err := Dial(ms.addr)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	stop := errors.New("stop")
	_, err = c.RetrBinary("LIST", func([]byte) error { return stop })
	if !errors.Is(err, stop) {
		t.Fatalf("RetrBinary() error = %v, want callback error", err)
	}
}

func TestStorBinary(t *testing.T) {
	t.Parallel()
	ms := newMockServer(t)
	conns := ms.passive(t)

	received := make(chan []byte, 1)
	ms.handlers["STOR"] = func(c *textproto.Conn, args string) {
		_ = c.PrintfLine("150 Ok to send data.")
		dc := <-conns
		data, _ := io.ReadAll(dc)
		dc.Close()
		received <- data
		_ = c.PrintfLine("226 Transfer complete.")
	}
	ms.start()
	defer ms.stop()

	c, err := Dial(ms.addr)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	reply, err := c.StorBinary("STOR report.csv", strings.NewReader("id,total\n1,42\n"))
	if err != nil {
		t.Fatalf("StorBinary() error = %v", err)
	}
	if reply != "226 Transfer complete." {
		t.Errorf("reply = %q", reply)
	}
	if got := string(<-received); got != "id,total\n1,42\n" {
		t.Errorf("server received %q", got)
	}
}

func TestEPSVFallbackToPASV(t *testing.T) {
	t.Parallel()
	ms := newMockServer(t)

	dl, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer dl.Close()

	ms.handlers["PASV"] = func(c *textproto.Conn, _ string) {
		_, portStr, _ := net.SplitHostPort(dl.Addr().String())
		var port int
		fmt.Sscanf(portStr, "%d", &port)
		// 0.0.0.0 must be replaced by the control host.
		_ = c.PrintfLine("227 Entering Passive Mode (0,0,0,0,%d,%d).", port/256, port%256)
	}
	ms.handlers["NLST"] = func(c *textproto.Conn, _ string) {
		_ = c.PrintfLine("150 Here comes the listing.")
		dc, err := dl.Accept()
		if err != nil {
			_ = c.PrintfLine("425 Can't open data connection.")
			return
		}
		_, _ = io.WriteString(dc, "a.txt\r\n")
		dc.Close()
		_ = c.PrintfLine("226 Transfer complete.")
	}
	ms.start()
	defer ms.stop()

	c, err := Dial(ms.addr)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	var got bytes.Buffer
	if _, err := c.RetrBinary("NLST", func(b []byte) error {
		got.Write(b)
		return nil
	}); err != nil {
		t.Fatalf("RetrBinary() error = %v", err)
	}
	if got.String() != "a.txt\r\n" {
		t.Errorf("got %q", got.String())
	}

	cmds := ms.commands()
	want := []string{"TYPE I", "EPSV", "PASV", "NLST"}
	if len(cmds) < len(want) {
		t.Fatalf("commands = %v, want prefix %v", cmds, want)
	}
	for i, w := range want {
		if cmds[i] != w {
			t.Errorf("command %d = %q, want %q", i, cmds[i], w)
		}
	}
}

func TestChangeDir(t *testing.T) {
	t.Parallel()
	ms := newMockServer(t)
	ms.handlers["CWD"] = func(c *textproto.Conn, args string) {
		if args == "missing" {
			_ = c.PrintfLine("550 Failed to change directory.")
			return
		}
		_ = c.PrintfLine("250 Directory successfully changed.")
	}
	ms.start()
	defer ms.stop()

	c, err := Dial(ms.addr)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if err := c.ChangeDir("pub"); err != nil {
		t.Errorf("ChangeDir(pub) error = %v", err)
	}
	err = c.ChangeDir("missing")
	var pe *ProtocolError
	if !errors.As(err, &pe) || pe.Code != 550 {
		t.Errorf("ChangeDir(missing) error = %v, want 550", err)
	}
}

func TestClosedClient(t *testing.T) {
	t.Parallel()
	c := &Client{}
	if err := c.ChangeDir("x"); !errors.Is(err, errNotConnected) {
		t.Errorf("ChangeDir() on closed client error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close() on closed client error = %v", err)
	}
}
