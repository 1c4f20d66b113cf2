package ftptransport

import (
	"bytes"
	"strconv"
	"strings"
	"unicode/utf8"
)

// EncodingASCII is the Encoding of LIST and NLST responses.
const EncodingASCII = "ascii"

// Response is the result of an FTP request.
type Response struct {
	// StatusCode is the three-digit FTP reply code, e.g. 226 or 550.
	StatusCode int

	// Reply is the final FTP reply as sent by the server, e.g.
	// "226 Transfer complete.".
	Reply string

	// Encoding is EncodingASCII for directory listings and empty for
	// binary payloads, whose bytes are never decoded.
	Encoding string

	// Body holds the payload, positioned at offset zero.
	Body *bytes.Reader

	URL     string
	Request *Request
}

// Bytes returns the whole payload regardless of the read position of Body.
func (r *Response) Bytes() []byte {
	if r.Body == nil {
		return nil
	}
	b := make([]byte, r.Body.Size())
	n, _ := r.Body.ReadAt(b, 0)
	return b[:n]
}

// Text returns the payload as a string. For EncodingASCII, bytes outside
// the ASCII range become U+FFFD.
func (r *Response) Text() string {
	b := r.Bytes()
	if r.Encoding != EncodingASCII {
		return string(b)
	}

	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if c < utf8.RuneSelf {
			sb.WriteByte(c)
		} else {
			sb.WriteRune(utf8.RuneError)
		}
	}
	return sb.String()
}

func buildTextResponse(req *Request, data *bytes.Buffer, reply string) (*Response, error) {
	return buildResponse(req, data, reply, EncodingASCII)
}

func buildBinaryResponse(req *Request, data *bytes.Buffer, reply string) (*Response, error) {
	return buildResponse(req, data, reply, "")
}

// buildResponse attaches data to a new Response and runs the request's
// response hooks. The response returned is the one the hooks leave behind.
func buildResponse(req *Request, data *bytes.Buffer, reply, encoding string) (*Response, error) {
	code, err := parseStatusCode(reply)
	if err != nil {
		return nil, err
	}

	var payload []byte
	if data != nil {
		payload = data.Bytes()
	}

	resp := &Response{
		StatusCode: code,
		Reply:      reply,
		Encoding:   encoding,
		Body:       bytes.NewReader(payload),
		URL:        req.URL,
		Request:    req,
	}

	return dispatchHooks(req.Hooks, resp), nil
}

// parseStatusCode reads the leading whitespace-delimited token of an FTP
// reply. Multi-line replies such as "226-Transfer\n226 Done" use the
// three digits before the dash.
func parseStatusCode(reply string) (int, error) {
	fields := strings.Fields(reply)
	if len(fields) == 0 {
		return 0, &ReplyError{Reply: reply}
	}

	token := fields[0]
	if len(token) > 3 && token[3] == '-' {
		token = token[:3]
	}

	code, err := strconv.Atoi(token)
	if err != nil || code < 100 || code > 999 {
		return 0, &ReplyError{Reply: reply}
	}
	return code, nil
}

// dispatchHooks runs hooks in order. A hook that returns nil keeps the
// current response. The result always has a readable Body.
func dispatchHooks(hooks []ResponseHook, resp *Response) *Response {
	for _, hook := range hooks {
		if hook == nil {
			continue
		}
		if next := hook(resp); next != nil {
			resp = next
		}
	}
	if resp.Body == nil {
		resp.Body = bytes.NewReader(nil)
	}
	return resp
}
