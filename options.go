package ftptransport

import (
	"errors"
	"log/slog"
	"net"
	"time"
)

// Option is a functional option for configuring an Adapter.
type Option func(*Adapter) error

// WithLogger enables debug logging using the provided logger.
// Requests, FTP commands and replies are logged at debug level.
//
// Example:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	a, _ := ftptransport.New(ftptransport.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		a.logger = logger
		return nil
	}
}

// WithDialer replaces the connection factory. Tests use it to substitute
// a scripted Conn.
func WithDialer(d Dialer) Option {
	return func(a *Adapter) error {
		if d == nil {
			return errors.New("dialer must not be nil")
		}
		a.dialer = d
		return nil
	}
}

// WithNetDialer sets the net.Dialer used for control and data connections,
// for example to pick a source address.
func WithNetDialer(d *net.Dialer) Option {
	return func(a *Adapter) error {
		a.netDialer = d
		return nil
	}
}

// WithConnectTimeout sets the connect timeout used when a Send call does
// not pass WithTimeout.
func WithConnectTimeout(timeout time.Duration) Option {
	return func(a *Adapter) error {
		if timeout < 0 {
			return errors.New("timeout must not be negative")
		}
		a.timeout = timeout
		return nil
	}
}

// WithDisableEPSV makes the default dialer open data connections with PASV
// only, for servers that mishandle EPSV. It has no effect with WithDialer.
func WithDisableEPSV() Option {
	return func(a *Adapter) error {
		a.disableEPSV = true
		return nil
	}
}

// SendOption configures a single Send call.
type SendOption func(*sendConfig)

type sendConfig struct {
	timeout time.Duration
}

// WithTimeout bounds the connect step of one request: dialing the server
// and reading its greeting. Transfers are not bounded.
func WithTimeout(timeout time.Duration) SendOption {
	return func(c *sendConfig) {
		c.timeout = timeout
	}
}
