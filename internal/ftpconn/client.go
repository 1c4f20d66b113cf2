// Package ftpconn implements the small FTP client surface used by the
// transport adapter: a single control connection with login, directory
// change and streaming binary transfers over a passive data connection.
//
// Every transfer returns the server's final reply as a string so callers can
// surface the reply code verbatim. Negative replies are reported as
// *ProtocolError values.
package ftpconn

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"
)

// Client represents one FTP control connection.
//
// A Client is not safe for concurrent use; it is meant to live for the
// duration of a single request.
type Client struct {
	// conn is the underlying network connection (control channel)
	conn net.Conn

	// reader is a buffered reader for the control channel
	reader *bufio.Reader

	// timeout bounds the dial and the greeting only
	timeout time.Duration

	// logger is used for debug logging
	logger *slog.Logger

	// dialer is used to establish control and data connections
	dialer *net.Dialer

	// host and port for the connection
	host string
	port string

	// disableEPSV forces PASV for data connections
	disableEPSV bool

	// currentType tracks the current transfer type to avoid redundant TYPE commands
	currentType string
}

// Dial connects to an FTP server at the given address and reads the greeting.
// The address should be in the form "host:port".
//
// Example:
//
//	c, err := ftpconn.Dial("ftp.example.com:21", ftpconn.WithTimeout(10*time.Second))
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
func Dial(addr string, options ...Option) (*Client, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	c := &Client{
		host:   host,
		port:   port,
		dialer: &net.Dialer{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	c.dialer.Timeout = c.timeout

	if err := c.connect(); err != nil {
		return nil, err
	}

	return c, nil
}

// connect establishes the control connection and reads the 220 greeting.
func (c *Client) connect() error {
	addr := net.JoinHostPort(c.host, c.port)
	c.logger.Debug("connecting to ftp server", "addr", addr)

	conn, err := c.dialer.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)

	if c.timeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			conn.Close()
			return fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	resp, err := readResponse(c.reader)
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to read greeting: %w", err)
	}
	c.logger.Debug("ftp greeting", "code", resp.Code, "message", resp.Message)

	// The timeout covers the connect step only.
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		conn.Close()
		return fmt.Errorf("failed to clear read deadline: %w", err)
	}

	if resp.Code != 220 {
		conn.Close()
		return &ProtocolError{
			Command:  "CONNECT",
			Response: resp.Message,
			Code:     resp.Code,
		}
	}

	return nil
}

// Login authenticates with the FTP server using the provided username and password.
func (c *Client) Login(username, password string) error {
	resp, err := c.sendCommand("USER", username)
	if err != nil {
		return err
	}

	// 230 means no password is required
	if resp.Code == 230 {
		return nil
	}

	if resp.Code != 331 {
		return &ProtocolError{
			Command:  "USER",
			Response: resp.Message,
			Code:     resp.Code,
		}
	}

	if _, err := c.expectCode(230, "PASS", password); err != nil {
		return err
	}

	return nil
}

// ChangeDir changes the current working directory.
func (c *Client) ChangeDir(path string) error {
	_, err := c.expect2xx("CWD", path)
	return err
}

// Type sets the transfer type (e.g., "A", "I").
func (c *Client) Type(transferType string) error {
	if c.currentType == transferType {
		return nil
	}

	if _, err := c.expectCode(200, "TYPE", transferType); err != nil {
		return err
	}

	c.currentType = transferType
	return nil
}

// Close sends QUIT and closes the control connection. Calling Close more
// than once is a no-op.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}

	// Ignore QUIT errors, we're closing anyway
	_, _ = c.sendCommand("QUIT")

	err := c.conn.Close()
	c.conn = nil
	return err
}
