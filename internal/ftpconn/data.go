package ftpconn

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
)

var (
	// pasvRegex matches the PASV response format: 227 Entering Passive Mode (h1,h2,h3,h4,p1,p2)
	pasvRegex = regexp.MustCompile(`\((\d+),(\d+),(\d+),(\d+),(\d+),(\d+)\)`)

	// epsvRegex matches the EPSV response format: 229 Entering Extended Passive Mode (|||port|)
	epsvRegex = regexp.MustCompile(`\(\|\|\|(\d+)\|\)`)
)

// parsePASV parses a PASV response and returns the host and port.
// Example: "227 Entering Passive Mode (192,168,1,1,195,149)"
// Returns: "192.168.1.1:50069" (195*256 + 149 = 50069)
func parsePASV(response string) (string, error) {
	matches := pasvRegex.FindStringSubmatch(response)
	if len(matches) != 7 {
		return "", fmt.Errorf("invalid PASV response: %s", response)
	}

	var h [4]int
	for i := 0; i < 4; i++ {
		val, err := strconv.Atoi(matches[i+1])
		if err != nil || val < 0 || val > 255 {
			return "", fmt.Errorf("invalid PASV IP part: %s", matches[i+1])
		}
		h[i] = val
	}
	host := fmt.Sprintf("%d.%d.%d.%d", h[0], h[1], h[2], h[3])

	p1, err1 := strconv.Atoi(matches[5])
	p2, err2 := strconv.Atoi(matches[6])
	if err1 != nil || err2 != nil || p1 < 0 || p1 > 255 || p2 < 0 || p2 > 255 {
		return "", fmt.Errorf("invalid PASV port parts: %s, %s", matches[5], matches[6])
	}

	return net.JoinHostPort(host, strconv.Itoa(p1*256+p2)), nil
}

// parseEPSV parses an EPSV response and returns the port.
// Example: "229 Entering Extended Passive Mode (|||6446|)"
// Returns: "6446"
func parseEPSV(response string) (string, error) {
	matches := epsvRegex.FindStringSubmatch(response)
	if len(matches) != 2 {
		return "", fmt.Errorf("invalid EPSV response: %s", response)
	}

	port, err := strconv.Atoi(matches[1])
	if err != nil || port <= 0 || port > 65535 {
		return "", fmt.Errorf("invalid EPSV port: %s", matches[1])
	}

	return matches[1], nil
}

// resolveDataAddr replaces an unroutable 0.0.0.0 PASV host with the control
// connection host.
func resolveDataAddr(pasvAddr, controlHost string) string {
	host, port, err := net.SplitHostPort(pasvAddr)
	if err != nil {
		return pasvAddr
	}

	if host == "0.0.0.0" {
		return net.JoinHostPort(controlHost, port)
	}

	return pasvAddr
}

// openDataConn opens a passive data connection, trying EPSV first and
// falling back to PASV.
func (c *Client) openDataConn() (net.Conn, error) {
	var addr string

	if !c.disableEPSV {
		if resp, err := c.sendCommand("EPSV"); err == nil {
			if resp.Code == 500 || resp.Code == 502 {
				c.disableEPSV = true
			} else if resp.Is2xx() {
				if port, parseErr := parseEPSV(resp.String()); parseErr == nil {
					addr = net.JoinHostPort(c.host, port)
				}
			}
		} else {
			return nil, fmt.Errorf("EPSV failed: %w", err)
		}
	}

	if addr == "" {
		resp, err := c.sendCommand("PASV")
		if err != nil {
			return nil, fmt.Errorf("PASV failed: %w", err)
		}

		if !resp.Is2xx() {
			return nil, newProtocolError("PASV", resp)
		}

		addr, err = parsePASV(resp.String())
		if err != nil {
			return nil, err
		}

		addr = resolveDataAddr(addr, c.host)
	}

	c.logger.Debug("opening data connection", "addr", addr)

	dataConn, err := c.dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to data port: %w", err)
	}

	return dataConn, nil
}

// cmdDataConn opens the data connection and sends a transfer command.
// The server must answer with a 1xx preliminary reply; anything else closes
// the data connection and is returned as a *ProtocolError.
func (c *Client) cmdDataConn(command string, args ...string) (net.Conn, error) {
	dataConn, err := c.openDataConn()
	if err != nil {
		return nil, err
	}

	resp, err := c.sendCommand(command, args...)
	if err != nil {
		dataConn.Close()
		return nil, err
	}

	if !resp.Is1xx() {
		dataConn.Close()
		return nil, newProtocolError(command, resp)
	}

	return dataConn, nil
}

// finishDataConn closes the data connection and reads the final reply of
// the transfer, usually "226 Transfer complete.".
func (c *Client) finishDataConn(dataConn net.Conn) (*Response, error) {
	if err := dataConn.Close(); err != nil {
		return nil, fmt.Errorf("failed to close data connection: %w", err)
	}

	resp, err := readResponse(c.reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read completion response: %w", err)
	}

	c.logger.Debug("ftp data transfer complete", "code", resp.Code, "message", resp.Message)

	if !resp.Is2xx() {
		return resp, newProtocolError("DATA_TRANSFER", resp)
	}

	return resp, nil
}
