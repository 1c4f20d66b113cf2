package ftptransport

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// DefaultPort is used when the URL does not name a port.
const DefaultPort = 21

// Endpoint is the server address and server-relative path of a request.
type Endpoint struct {
	Host string
	Port int

	// Path has exactly one leading "/" removed.
	Path string
}

// Addr returns the "host:port" dial address.
func (e Endpoint) Addr() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func endpointFromURL(rawURL string) (Endpoint, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Endpoint{}, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	host := u.Hostname()
	if host == "" {
		return Endpoint{}, fmt.Errorf("%w: missing host in %q", ErrInvalidURL, rawURL)
	}

	port := DefaultPort
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil || port < 1 || port > 65535 {
			return Endpoint{}, fmt.Errorf("%w: bad port %q", ErrInvalidURL, p)
		}
	}

	return Endpoint{
		Host: host,
		Port: port,
		Path: strings.TrimPrefix(u.Path, "/"),
	}, nil
}
