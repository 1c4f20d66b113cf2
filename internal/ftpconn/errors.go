package ftpconn

import (
	"fmt"
	"strings"
)

// ProtocolError represents a negative or unexpected FTP reply, with the
// command that triggered it.
type ProtocolError struct {
	// Command is the FTP command that was sent (e.g., "STOR file.txt")
	Command string

	// Response is the message part of the reply (e.g., "Permission denied")
	Response string

	// Code is the numeric FTP response code (e.g., 550)
	Code int

	// Lines holds the raw reply lines when available
	Lines []string
}

func newProtocolError(command string, resp *Response) *ProtocolError {
	return &ProtocolError{
		Command:  command,
		Response: resp.Message,
		Code:     resp.Code,
		Lines:    resp.Lines,
	}
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ftp: %s failed: %s (code %d)", e.Command, e.Response, e.Code)
}

// Reply returns the server reply as it appeared on the wire, code first.
func (e *ProtocolError) Reply() string {
	if len(e.Lines) > 0 {
		return strings.Join(e.Lines, "\n")
	}
	return fmt.Sprintf("%03d %s", e.Code, e.Response)
}
