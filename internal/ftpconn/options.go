package ftpconn

import (
	"errors"
	"log/slog"
	"net"
	"time"
)

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithTimeout bounds the connect step: dialing the control connection and
// reading the greeting. Transfers have no deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		if timeout < 0 {
			return errors.New("timeout must not be negative")
		}
		c.timeout = timeout
		return nil
	}
}

// WithLogger enables debug logging using the provided logger.
// All FTP commands and responses will be logged at debug level.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// WithDialer sets a custom net.Dialer for establishing connections.
// The dialer's Timeout is overwritten by WithTimeout.
func WithDialer(dialer *net.Dialer) Option {
	return func(c *Client) error {
		if dialer != nil {
			c.dialer = dialer
		}
		return nil
	}
}

// WithDisableEPSV makes the client use PASV directly.
func WithDisableEPSV() Option {
	return func(c *Client) error {
		c.disableEPSV = true
		return nil
	}
}
