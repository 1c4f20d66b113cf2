package ftptransport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// handlerFunc runs one method on a logged-in connection.
type handlerFunc func(a *Adapter, conn Conn, req *Request, ep Endpoint) (*Response, error)

// Adapter sends LIST, NLST, RETR and STOR requests to FTP servers.
//
// Each Send opens its own connection and closes it before returning, so an
// Adapter is safe for concurrent use by multiple goroutines.
type Adapter struct {
	dialer      Dialer
	netDialer   *net.Dialer
	logger      *slog.Logger
	timeout     time.Duration
	disableEPSV bool
	handlers    map[string]handlerFunc
}

// New creates an Adapter.
//
// Example:
//
//	a, err := ftptransport.New(ftptransport.WithConnectTimeout(10 * time.Second))
//	if err != nil {
//	    return err
//	}
//	req := ftptransport.NewRequest(ftptransport.MethodRetrieve, "ftp://ftp.example.com/pub/README", nil)
//	resp, err := a.Send(req)
func New(options ...Option) (*Adapter, error) {
	a := &Adapter{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		handlers: map[string]handlerFunc{
			MethodList:     (*Adapter).list,
			MethodNameList: (*Adapter).nlst,
			MethodRetrieve: (*Adapter).retr,
			MethodStore:    (*Adapter).stor,
		},
	}

	for _, opt := range options {
		if err := opt(a); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if a.dialer == nil {
		a.dialer = &ftpDialer{logger: a.logger, netDialer: a.netDialer, disableEPSV: a.disableEPSV}
	}

	return a, nil
}

// Send runs req on a fresh connection and returns the server's reply as a
// Response.
//
// A negative FTP reply (such as "550 No such file" or "530 Login
// incorrect") is not an error: it is returned as a Response carrying that
// code and an empty body. Errors are returned for invalid requests and for
// network failures.
func (a *Adapter) Send(req *Request, options ...SendOption) (resp *Response, err error) {
	handler, ok := a.handlers[req.Method]
	if !ok {
		return nil, &UnsupportedMethodError{Method: req.Method}
	}

	creds, err := requestCredentials(req)
	if err != nil {
		return nil, err
	}

	ep, err := endpointFromURL(req.URL)
	if err != nil {
		return nil, err
	}
	if req.Method == MethodStore {
		if _, name := storeTarget(ep.Path); name == "" {
			return nil, fmt.Errorf("%w: %q", ErrNoFileName, req.URL)
		}
	}

	cfg := sendConfig{timeout: a.timeout}
	for _, opt := range options {
		opt(&cfg)
	}

	logger := a.logger.With(
		"request_id", uuid.NewString(),
		"method", req.Method,
		"host", ep.Host,
	)
	logger.Debug("sending ftp request", "path", ep.Path, "timeout", cfg.timeout)

	conn, err := a.dialer.Dial(ep.Addr(), cfg.timeout)
	if err != nil {
		if r, ok := asReplier(err); ok {
			logger.Debug("server refused connection", "reply", r.Reply())
			return protocolResponse(req, r)
		}
		return nil, fmt.Errorf("ftptransport: connecting to %s: %w", ep.Addr(), err)
	}

	defer func() {
		closeErr := conn.Close()
		if closeErr == nil {
			return
		}
		if err != nil {
			err = multierror.Append(err, fmt.Errorf("ftptransport: closing connection: %w", closeErr))
			return
		}
		logger.Warn("failed to close ftp connection", "error", closeErr)
	}()

	user, pass := anonymousUser, anonymousPassword
	if creds != nil {
		user, pass = creds.Username, creds.Password
	}
	if err := conn.Login(user, pass); err != nil {
		if r, ok := asReplier(err); ok {
			logger.Debug("login rejected", "user", user, "reply", r.Reply())
			return protocolResponse(req, r)
		}
		return nil, fmt.Errorf("ftptransport: login: %w", err)
	}

	resp, err = handler(a, conn, req, ep)
	if err != nil {
		return nil, err
	}

	logger.Debug("ftp request complete", "status", resp.StatusCode, "bytes", resp.Body.Size())
	return resp, nil
}

// Close releases resources held by the adapter. Connections never outlive
// a Send call, so there is nothing to release.
func (a *Adapter) Close() error {
	return nil
}

func (a *Adapter) list(conn Conn, req *Request, ep Endpoint) (*Response, error) {
	return a.listing(conn, req, ep, MethodList)
}

func (a *Adapter) nlst(conn Conn, req *Request, ep Endpoint) (*Response, error) {
	return a.listing(conn, req, ep, MethodNameList)
}

// listing changes into the target directory and runs LIST or NLST there.
func (a *Adapter) listing(conn Conn, req *Request, ep Endpoint, command string) (*Response, error) {
	if err := conn.ChangeDir(dirOrDot(ep.Path)); err != nil {
		return replyOrError(req, err)
	}

	var data bytes.Buffer
	reply, err := conn.RetrBinary(command, collect(&data))
	if err != nil {
		return replyOrError(req, err)
	}

	return buildTextResponse(req, &data, reply)
}

func (a *Adapter) retr(conn Conn, req *Request, ep Endpoint) (*Response, error) {
	var data bytes.Buffer
	reply, err := conn.RetrBinary("RETR "+ep.Path, collect(&data))
	if err != nil {
		return replyOrError(req, err)
	}

	return buildBinaryResponse(req, &data, reply)
}

func (a *Adapter) stor(conn Conn, req *Request, ep Endpoint) (*Response, error) {
	payload, err := uploadPayload(req)
	if err != nil {
		return nil, err
	}

	dir, name := storeTarget(ep.Path)
	if err := conn.ChangeDir(dirOrDot(dir)); err != nil {
		return replyOrError(req, err)
	}

	reply, err := conn.StorBinary("STOR "+name, bytes.NewReader(payload))
	if err != nil {
		return replyOrError(req, err)
	}

	return buildBinaryResponse(req, nil, reply)
}

// collect returns a RetrBinary callback that appends every chunk to buf.
func collect(buf *bytes.Buffer) func([]byte) error {
	return func(chunk []byte) error {
		_, err := buf.Write(chunk)
		return err
	}
}

// storeTarget splits p into the directory to change into and the file
// name to store. The directory keeps no trailing slash except for "/".
func storeTarget(p string) (dir, name string) {
	dir, name = path.Split(p)
	if len(dir) > 1 {
		dir = strings.TrimSuffix(dir, "/")
	}
	return dir, name
}

func dirOrDot(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

func asReplier(err error) (replier, bool) {
	var r replier
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// replyOrError converts a negative server reply into a Response and passes
// any other error through.
func replyOrError(req *Request, err error) (*Response, error) {
	if r, ok := asReplier(err); ok {
		return protocolResponse(req, r)
	}
	return nil, err
}

// protocolResponse builds an empty-bodied Response from a negative reply.
func protocolResponse(req *Request, r replier) (*Response, error) {
	return buildResponse(req, nil, r.Reply(), methodEncoding(req.Method))
}

func methodEncoding(method string) string {
	switch method {
	case MethodList, MethodNameList:
		return EncodingASCII
	default:
		return ""
	}
}
