package ftptest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"path"
	"strconv"
	"strings"
	"time"
)

// acceptTimeout bounds how long a transfer waits for the client to open
// the passive data connection.
const acceptTimeout = 5 * time.Second

// session represents one FTP client session.
type session struct {
	server *Server
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer

	remoteIP string

	// State
	user         string
	isLoggedIn   bool
	cwd          string
	transferType string

	// Data connection state
	pasvList net.Listener
}

// commandHandlers maps FTP commands to their handler functions.
// USER, PASS, QUIT and NOOP are handled in handleCommand.
var commandHandlers = map[string]func(*session, string){
	"CWD":  (*session).handleCWD,
	"XCWD": (*session).handleCWD,
	"CDUP": (*session).handleCDUP,
	"PWD":  (*session).handlePWD,
	"XPWD": (*session).handlePWD,
	"TYPE": (*session).handleTYPE,
	"EPSV": (*session).handleEPSV,
	"PASV": (*session).handlePASV,
	"LIST": (*session).handleLIST,
	"NLST": (*session).handleNLST,
	"RETR": (*session).handleRETR,
	"STOR": (*session).handleSTOR,
	"SYST": (*session).handleSYST,
	"FEAT": (*session).handleFEAT,
}

// commands that are allowed before login
var preLogin = map[string]bool{"SYST": true, "FEAT": true}

func newSession(server *Server, conn net.Conn) *session {
	remoteIP, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		remoteIP = conn.RemoteAddr().String()
	}

	return &session{
		server:       server,
		conn:         conn,
		reader:       bufio.NewReader(conn),
		writer:       bufio.NewWriter(conn),
		remoteIP:     remoteIP,
		cwd:          "/",
		transferType: "A",
	}
}

func (s *session) serve() {
	defer s.close()

	s.reply(220, s.server.welcomeMessage)
	s.server.logger.Debug("session_started", "remote_ip", s.remoteIP)

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				s.server.logger.Warn("read error", "remote_ip", s.remoteIP, "error", err)
			}
			return
		}

		if !s.handleCommand(line) {
			return
		}
	}
}

func (s *session) close() {
	if s.pasvList != nil {
		s.pasvList.Close()
	}
	s.conn.Close()

	s.server.logger.Debug("session closed", "remote_ip", s.remoteIP, "user", s.user)
}

// handleCommand parses and dispatches a command. It returns false when the
// session should end.
func (s *session) handleCommand(line string) bool {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return true
	}

	cmd, arg, _ := strings.Cut(line, " ")
	cmd = strings.ToUpper(cmd)

	if cmd == "PASS" {
		s.server.record("PASS ***")
	} else {
		s.server.record(line)
	}
	s.server.logger.Debug("command received", "remote_ip", s.remoteIP, "user", s.user, "cmd", cmd)

	switch cmd {
	case "USER":
		s.handleUSER(arg)
	case "PASS":
		s.handlePASS(arg)
	case "QUIT":
		s.server.quits.Add(1)
		s.reply(221, "Service closing control connection.")
		return false
	case "NOOP":
		s.reply(200, "OK.")
	default:
		handler, ok := commandHandlers[cmd]
		if !ok {
			s.reply(502, "Command not implemented.")
			return true
		}
		if !s.isLoggedIn && !preLogin[cmd] {
			s.reply(530, "Please login with USER and PASS.")
			return true
		}
		handler(s, arg)
	}
	return true
}

func (s *session) handleUSER(user string) {
	s.user = user
	s.isLoggedIn = false
	s.reply(331, "User name okay, need password.")
}

func (s *session) handlePASS(pass string) {
	if s.user == "" {
		s.reply(503, "Login with USER first.")
		return
	}
	if !s.server.authenticate(s.user, pass) {
		s.server.logger.Info("login_failed", "remote_ip", s.remoteIP, "user", s.user)
		s.reply(530, "Login incorrect.")
		return
	}
	s.isLoggedIn = true
	s.server.logger.Info("login_success", "remote_ip", s.remoteIP, "user", s.user)
	s.reply(230, "User logged in, proceed.")
}

// resolve turns a client supplied path into an absolute tree path.
func (s *session) resolve(p string) string {
	if strings.HasPrefix(p, "/") {
		return path.Clean(p)
	}
	return path.Join(s.cwd, p)
}

func (s *session) handleCWD(p string) {
	dir := s.resolve(p)
	if !s.server.fs.IsDir(dir) {
		s.reply(550, "Failed to change directory.")
		return
	}
	s.cwd = dir
	s.reply(250, "Directory successfully changed.")
}

func (s *session) handleCDUP(string) {
	s.handleCWD("..")
}

func (s *session) handlePWD(string) {
	s.reply(257, fmt.Sprintf("%q is the current directory", s.cwd))
}

func (s *session) handleSYST(string) {
	s.reply(215, "UNIX Type: L8")
}

func (s *session) handleFEAT(string) {
	s.reply(502, "Command not implemented.")
}

func (s *session) handleTYPE(arg string) {
	switch strings.ToUpper(arg) {
	case "A", "A N":
		s.transferType = "A"
		s.reply(200, "Type set to A.")
	case "I", "L 8":
		s.transferType = "I"
		s.reply(200, "Type set to I.")
	default:
		s.reply(504, "Type not supported.")
	}
}

func (s *session) listenPassive() (net.Listener, error) {
	if s.pasvList != nil {
		s.pasvList.Close()
		s.pasvList = nil
	}
	host, _, _ := net.SplitHostPort(s.conn.LocalAddr().String())
	return net.Listen("tcp", net.JoinHostPort(host, "0"))
}

func (s *session) handleEPSV(string) {
	if s.server.disableEPSV {
		s.reply(502, "Command not implemented.")
		return
	}
	ln, err := s.listenPassive()
	if err != nil {
		s.reply(425, "Can't open passive connection.")
		return
	}
	s.pasvList = ln

	_, port, _ := net.SplitHostPort(ln.Addr().String())
	s.reply(229, fmt.Sprintf("Entering Extended Passive Mode (|||%s|)", port))
}

func (s *session) handlePASV(string) {
	ln, err := s.listenPassive()
	if err != nil {
		s.reply(425, "Can't open passive connection.")
		return
	}
	s.pasvList = ln

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	ip := net.ParseIP(host).To4()
	if ip == nil {
		s.reply(425, "PASV requires IPv4, use EPSV.")
		return
	}

	s.reply(227, fmt.Sprintf("Entering Passive Mode (%d,%d,%d,%d,%d,%d).",
		ip[0], ip[1], ip[2], ip[3], port/256, port%256))
}

// connData accepts the pending passive data connection.
func (s *session) connData() (net.Conn, error) {
	if s.pasvList == nil {
		return nil, errors.New("no data connection setup")
	}
	defer func() {
		s.pasvList.Close()
		s.pasvList = nil
	}()

	if l, ok := s.pasvList.(*net.TCPListener); ok {
		_ = l.SetDeadline(time.Now().Add(acceptTimeout))
	}
	return s.pasvList.Accept()
}

// replyError sends a standard error response based on the error type.
func (s *session) replyError(err error) {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		s.reply(550, "File not found.")
	case errors.Is(err, fs.ErrExist):
		s.reply(550, "File already exists.")
	default:
		s.reply(550, "Action failed: "+err.Error())
	}
}

// listTarget resolves the optional LIST/NLST argument, ignoring flags such
// as "-a" that some clients send.
func (s *session) listTarget(arg string) string {
	if arg == "" || strings.HasPrefix(arg, "-") {
		return s.cwd
	}
	return s.resolve(arg)
}

func (s *session) handleLIST(arg string) {
	entries, err := s.server.fs.ReadDir(s.listTarget(arg))
	if err != nil {
		s.replyError(err)
		return
	}

	var buf bytes.Buffer
	for _, e := range entries {
		mode := "-rw-r--r--"
		if e.IsDir {
			mode = "drwxr-xr-x"
		}
		fmt.Fprintf(&buf, "%s 1 owner group %d %s %s\r\n",
			mode, e.Size, e.ModTime.Format("Jan 02 15:04"), e.Name)
	}

	s.sendData("LIST", buf.Bytes(), "Directory send OK.")
}

func (s *session) handleNLST(arg string) {
	entries, err := s.server.fs.ReadDir(s.listTarget(arg))
	if err != nil {
		s.replyError(err)
		return
	}

	var buf bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&buf, "%s\r\n", e.Name)
	}

	s.sendData("NLST", buf.Bytes(), "Transfer complete.")
}

func (s *session) handleRETR(p string) {
	name := s.resolve(p)
	data, err := s.server.fs.ReadFile(name)
	if err != nil {
		s.replyError(err)
		return
	}

	s.sendData("RETR", data, "Transfer complete.")
}

// sendData writes payload over the data connection, framed by the 150 and
// final replies.
func (s *session) sendData(op string, payload []byte, done string) {
	conn, err := s.connData()
	if err != nil {
		s.reply(425, "Can't open data connection.")
		return
	}
	defer conn.Close()

	s.reply(150, "Opening data connection for "+op+".")

	start := time.Now()
	n, err := conn.Write(payload)
	if err != nil {
		s.reply(426, "Connection closed; transfer aborted.")
		return
	}
	conn.Close()

	s.server.logger.Info("transfer_complete",
		"remote_ip", s.remoteIP,
		"user", s.user,
		"operation", op,
		"bytes", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.reply(226, done)
}

func (s *session) handleSTOR(p string) {
	name := s.resolve(p)
	if !s.server.fs.IsDir(path.Dir(name)) {
		s.reply(553, "Requested action not taken. File name not allowed.")
		return
	}

	conn, err := s.connData()
	if err != nil {
		s.reply(425, "Can't open data connection.")
		return
	}
	defer conn.Close()

	s.reply(150, "Opening data connection for STOR.")

	start := time.Now()
	data, err := io.ReadAll(conn)
	if err != nil {
		s.reply(426, "Connection closed; transfer aborted.")
		return
	}

	if err := s.server.fs.create(name, data); err != nil {
		s.replyError(err)
		return
	}

	s.server.logger.Info("transfer_complete",
		"remote_ip", s.remoteIP,
		"user", s.user,
		"operation", "STOR",
		"bytes", len(data),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	s.reply(226, "Transfer complete.")
}

// reply sends a response to the client.
func (s *session) reply(code int, message string) {
	fmt.Fprintf(s.writer, "%d %s\r\n", code, message)
	s.writer.Flush()
}
