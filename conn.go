package ftptransport

import (
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/gonzalop/ftptransport/internal/ftpconn"
)

// Conn is the FTP control connection a request runs on.
//
// RetrBinary and StorBinary return the final server reply, e.g.
// "226 Transfer complete.". Errors that carry a negative server reply
// should implement
//
//	Reply() string
//
// returning that reply; Send turns them into responses instead of errors.
type Conn interface {
	Login(username, password string) error
	ChangeDir(path string) error
	RetrBinary(cmd string, callback func([]byte) error) (string, error)
	StorBinary(cmd string, r io.Reader) (string, error)
	Close() error
}

// Dialer opens the connection for one request. A zero timeout means no
// timeout.
type Dialer interface {
	Dial(addr string, timeout time.Duration) (Conn, error)
}

// DialerFunc adapts a function to the Dialer interface.
type DialerFunc func(addr string, timeout time.Duration) (Conn, error)

// Dial calls f(addr, timeout).
func (f DialerFunc) Dial(addr string, timeout time.Duration) (Conn, error) {
	return f(addr, timeout)
}

// ftpDialer dials real servers in passive mode.
type ftpDialer struct {
	logger      *slog.Logger
	netDialer   *net.Dialer
	disableEPSV bool
}

func (d *ftpDialer) Dial(addr string, timeout time.Duration) (Conn, error) {
	opts := []ftpconn.Option{
		ftpconn.WithTimeout(timeout),
		ftpconn.WithLogger(d.logger),
	}
	if d.netDialer != nil {
		// Each request gets its own copy; ftpconn sets the timeout on it.
		nd := *d.netDialer
		opts = append(opts, ftpconn.WithDialer(&nd))
	}
	if d.disableEPSV {
		opts = append(opts, ftpconn.WithDisableEPSV())
	}

	c, err := ftpconn.Dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	return c, nil
}
