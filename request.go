package ftptransport

import (
	"encoding/base64"
	"net/http"
)

// Supported request methods. They are matched exactly and case-sensitively.
const (
	MethodList     = "LIST"
	MethodNameList = "NLST"
	MethodRetrieve = "RETR"
	MethodStore    = "STOR"
)

// ResponseHook inspects or replaces a response before Send returns it.
// Returning nil keeps the response passed in.
type ResponseHook func(*Response) *Response

// Request is a prepared request for an ftp:// URL.
type Request struct {
	// Method is one of MethodList, MethodNameList, MethodRetrieve or MethodStore.
	Method string

	// URL has the form ftp://host[:port]/path. Userinfo in the URL is
	// ignored; credentials travel in Auth or the Authorization header.
	URL string

	// Header carries Authorization and, for STOR, Content-Type.
	Header http.Header

	// Body is the multipart/form-data payload of a STOR request.
	Body []byte

	// Auth, when set, is used instead of the Authorization header.
	Auth *Credentials

	// Hooks run in order on the built response.
	Hooks []ResponseHook
}

// NewRequest returns a Request with an empty header.
func NewRequest(method, url string, body []byte) *Request {
	return &Request{
		Method: method,
		URL:    url,
		Header: make(http.Header),
		Body:   body,
	}
}

// SetBasicAuth sets the Authorization header the way net/http does, which
// is where Send looks for FTP credentials.
func (r *Request) SetBasicAuth(username, password string) {
	if r.Header == nil {
		r.Header = make(http.Header)
	}
	auth := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
	r.Header.Set("Authorization", "Basic "+auth)
}
