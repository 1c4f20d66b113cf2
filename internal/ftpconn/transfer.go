package ftpconn

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// BlockSize is the chunk size handed to RetrBinary callbacks.
const BlockSize = 8192

// RetrBinary runs a retrieve-style command ("RETR path", "LIST", "NLST")
// in binary mode and hands every received chunk to callback. The chunk is
// only valid until callback returns.
//
// It returns the final reply, e.g. "226 Transfer complete.".
func (c *Client) RetrBinary(cmd string, callback func([]byte) error) (string, error) {
	if err := c.Type("I"); err != nil {
		return "", err
	}

	command, args := splitCommand(cmd)
	dataConn, err := c.cmdDataConn(command, args...)
	if err != nil {
		return "", err
	}

	var copyErr error
	buf := make([]byte, BlockSize)
	for {
		n, err := dataConn.Read(buf)
		if n > 0 {
			if cbErr := callback(buf[:n]); cbErr != nil {
				copyErr = cbErr
				break
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			copyErr = fmt.Errorf("download failed: %w", err)
			break
		}
	}

	// Always finish the data connection (close and read response)
	resp, finishErr := c.finishDataConn(dataConn)

	if copyErr != nil {
		return "", copyErr
	}
	if finishErr != nil {
		return "", finishErr
	}

	return resp.String(), nil
}

// StorBinary runs a store-style command ("STOR name") in binary mode,
// streaming r to the server until EOF.
//
// It returns the final reply, e.g. "226 Transfer complete.".
func (c *Client) StorBinary(cmd string, r io.Reader) (string, error) {
	if err := c.Type("I"); err != nil {
		return "", err
	}

	command, args := splitCommand(cmd)
	dataConn, err := c.cmdDataConn(command, args...)
	if err != nil {
		return "", err
	}

	_, copyErr := io.CopyBuffer(dataConn, r, make([]byte, BlockSize))

	resp, finishErr := c.finishDataConn(dataConn)

	if copyErr != nil {
		return "", fmt.Errorf("upload failed: %w", copyErr)
	}
	if finishErr != nil {
		return "", finishErr
	}

	return resp.String(), nil
}

// splitCommand separates the verb from its argument. The argument is kept
// whole so that paths containing spaces survive.
func splitCommand(cmd string) (string, []string) {
	verb, arg, found := strings.Cut(cmd, " ")
	if !found || arg == "" {
		return verb, nil
	}
	return verb, []string{arg}
}
