package ftpconn

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Response represents an FTP server response.
type Response struct {
	// Code is the three-digit response code (e.g., 220, 550)
	Code int

	// Message is the human-readable message from the server
	Message string

	// Lines contains all lines of the response (for multi-line responses)
	Lines []string
}

// Is1xx returns true if the response code is in the 1xx range (preliminary).
func (r *Response) Is1xx() bool {
	return r.Code >= 100 && r.Code < 200
}

// Is2xx returns true if the response code is in the 2xx range (success).
func (r *Response) Is2xx() bool {
	return r.Code >= 200 && r.Code < 300
}

// String returns the full response as a string, exactly as the server sent
// it minus the line terminators.
func (r *Response) String() string {
	return strings.Join(r.Lines, "\n")
}

// errNotConnected is returned when a command is sent on a closed client.
var errNotConnected = errors.New("ftpconn: not connected")

// readResponse reads a complete FTP response from the reader.
// It handles both single-line and multi-line responses.
//
// Single-line format: "220 Welcome\r\n"
// Multi-line format:
//
//	"220-Welcome to FTP\r\n"
//	"220-This is line 2\r\n"
//	"220 Ready\r\n"
func readResponse(r *bufio.Reader) (*Response, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}

	raw := strings.TrimRight(line, "\r\n")
	line = raw
	// Some servers omit the message entirely ("226")
	if len(line) == 3 {
		line += " "
	}
	if len(line) < 4 {
		return nil, fmt.Errorf("invalid response line: %q", line)
	}

	code, err := strconv.Atoi(line[0:3])
	if err != nil || strings.ContainsAny(line[0:1], "+-") {
		return nil, fmt.Errorf("invalid response code: %q", line[0:3])
	}

	lines := []string{raw}

	if line[3] == ' ' {
		return &Response{
			Code:    code,
			Message: line[4:],
			Lines:   lines,
		}, nil
	}

	if line[3] != '-' {
		return nil, fmt.Errorf("invalid response format: %q", line)
	}

	if err := readMultiLine(r, code, &lines); err != nil {
		return nil, err
	}

	codeStr := line[0:3]
	var messageLines []string
	for _, l := range lines {
		if len(l) >= 4 && l[0:3] == codeStr && (l[3] == '-' || l[3] == ' ') {
			messageLines = append(messageLines, l[4:])
		} else {
			messageLines = append(messageLines, l)
		}
	}

	return &Response{
		Code:    code,
		Message: strings.Join(messageLines, "\n"),
		Lines:   lines,
	}, nil
}

func readMultiLine(r *bufio.Reader, code int, lines *[]string) error {
	codeStr := fmt.Sprintf("%03d", code)

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				return fmt.Errorf("unexpected EOF reading response")
			}
			return err
		}

		line = strings.TrimRight(line, "\r\n")

		// RFC 2389 continuation lines start with a space
		if len(line) > 0 && line[0] == ' ' {
			*lines = append(*lines, line)
			continue
		}

		if len(line) < 4 || line[0:3] != codeStr {
			// Free-form continuation text is allowed by RFC 959
			*lines = append(*lines, line)
			continue
		}

		*lines = append(*lines, line)

		if line[3] == ' ' {
			return nil
		}
	}
}

// sendCommand sends an FTP command and returns the response.
func (c *Client) sendCommand(command string, args ...string) (*Response, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}

	cmd := command
	if len(args) > 0 {
		cmd = command + " " + strings.Join(args, " ")
	}

	if command == "PASS" {
		c.logger.Debug("ftp command", "cmd", "PASS ***")
	} else {
		c.logger.Debug("ftp command", "cmd", cmd)
	}

	if _, err := fmt.Fprintf(c.conn, "%s\r\n", cmd); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	resp, err := readResponse(c.reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("ftp response", "code", resp.Code, "message", resp.Message)

	return resp, nil
}

// expectCode sends a command and verifies the response code matches the expected code.
func (c *Client) expectCode(expectedCode int, command string, args ...string) (*Response, error) {
	resp, err := c.sendCommand(command, args...)
	if err != nil {
		return nil, err
	}

	if resp.Code != expectedCode {
		return resp, newProtocolError(command, resp)
	}

	return resp, nil
}

// expect2xx sends a command and verifies the response is in the 2xx range (success).
func (c *Client) expect2xx(command string, args ...string) (*Response, error) {
	resp, err := c.sendCommand(command, args...)
	if err != nil {
		return nil, err
	}

	if !resp.Is2xx() {
		return resp, newProtocolError(command, resp)
	}

	return resp, nil
}
