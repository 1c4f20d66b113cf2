package ftptransport

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"
)

// Login used when a request carries no credentials.
const (
	anonymousUser     = "anonymous"
	anonymousPassword = "anonymous@"
)

// Credentials is an FTP user name and password.
type Credentials struct {
	Username string
	Password string
}

// requestCredentials returns req.Auth when set, otherwise the credentials
// decoded from the Authorization header. A nil result means anonymous.
func requestCredentials(req *Request) (*Credentials, error) {
	if req.Auth != nil {
		return req.Auth, nil
	}
	return credentialsFromHeader(req.Header)
}

// credentialsFromHeader reverses HTTP Basic auth: "Basic base64(user:pass)".
func credentialsFromHeader(h http.Header) (*Credentials, error) {
	value := h.Get("Authorization")
	if value == "" {
		return nil, nil
	}

	fields := strings.Fields(value)
	if len(fields) == 0 {
		return nil, nil
	}
	if fields[0] != "Basic" {
		return nil, &AuthError{Scheme: fields[0]}
	}
	if len(fields) < 2 {
		return nil, fmt.Errorf("%w: missing payload", ErrMalformedCredentials)
	}

	decoded, err := base64.StdEncoding.DecodeString(fields[1])
	if err != nil {
		return nil, fmt.Errorf("ftptransport: decoding credentials: %w", err)
	}

	username, password, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return nil, fmt.Errorf("%w: missing colon separator", ErrMalformedCredentials)
	}

	return &Credentials{Username: username, Password: password}, nil
}
