package ftptransport

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication is matched by *AuthError.
	ErrAuthentication = errors.New("ftptransport: invalid form of authentication")

	// ErrMalformedCredentials is returned when a Basic Authorization header
	// has no payload or its decoded payload has no colon separator.
	ErrMalformedCredentials = errors.New("ftptransport: malformed basic credentials")

	// ErrUnsupportedMethod is matched by *UnsupportedMethodError.
	ErrUnsupportedMethod = errors.New("ftptransport: unsupported method")

	// ErrInvalidURL is returned when the request URL cannot name an FTP endpoint.
	ErrInvalidURL = errors.New("ftptransport: invalid ftp url")

	// ErrNotMultipart is returned when a STOR request body is not
	// multipart/form-data with a boundary.
	ErrNotMultipart = errors.New("ftptransport: upload body is not multipart/form-data")

	// ErrNoUploadPart is returned when a STOR multipart body has no parts.
	ErrNoUploadPart = errors.New("ftptransport: multipart body has no parts")

	// ErrNoFileName is returned when a STOR URL names a directory rather
	// than a file, as in "ftp://host/uploads/".
	ErrNoFileName = errors.New("ftptransport: store target has no file name")
)

// AuthError reports an Authorization header that does not use the Basic
// scheme.
type AuthError struct {
	// Scheme is the scheme token found in the header.
	Scheme string
}

// Error implements the error interface.
func (e *AuthError) Error() string {
	return fmt.Sprintf("ftptransport: invalid form of authentication used: %q", e.Scheme)
}

// Is makes errors.Is(err, ErrAuthentication) report true.
func (e *AuthError) Is(target error) bool {
	return target == ErrAuthentication
}

// UnsupportedMethodError reports a request method outside LIST, NLST, RETR
// and STOR.
type UnsupportedMethodError struct {
	Method string
}

// Error implements the error interface.
func (e *UnsupportedMethodError) Error() string {
	return fmt.Sprintf("ftptransport: unsupported method %q", e.Method)
}

// Is makes errors.Is(err, ErrUnsupportedMethod) report true.
func (e *UnsupportedMethodError) Is(target error) bool {
	return target == ErrUnsupportedMethod
}

// ReplyError reports an FTP reply whose leading token is not a status code.
type ReplyError struct {
	Reply string
}

// Error implements the error interface.
func (e *ReplyError) Error() string {
	return fmt.Sprintf("ftptransport: reply has no status code: %q", e.Reply)
}

// replier is implemented by errors that carry a negative FTP reply. Such
// errors become ordinary responses instead of Send failures.
type replier interface {
	error
	Reply() string
}
