package ftptransport

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// RoundTrip implements http.RoundTripper so that an Adapter can serve
// ftp:// URLs for an http.Client:
//
//	t := &http.Transport{}
//	t.RegisterProtocol("ftp", adapter)
//	client := &http.Client{Transport: t}
//
// The request method must be LIST, NLST, RETR or STOR. A context deadline
// bounds the connect step. The response Status is the raw FTP reply.
func (a *Adapter) RoundTrip(hreq *http.Request) (*http.Response, error) {
	ctx := hreq.Context()
	if err := ctx.Err(); err != nil {
		closeBody(hreq)
		return nil, err
	}

	var body []byte
	if hreq.Body != nil {
		b, err := io.ReadAll(hreq.Body)
		closeBody(hreq)
		if err != nil {
			return nil, fmt.Errorf("ftptransport: reading request body: %w", err)
		}
		body = b
	}

	req := &Request{
		Method: hreq.Method,
		URL:    hreq.URL.String(),
		Header: hreq.Header.Clone(),
		Body:   body,
	}
	if req.Header == nil {
		req.Header = make(http.Header)
	}

	var opts []SendOption
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, ctx.Err()
		}
		opts = append(opts, WithTimeout(remaining))
	}

	resp, err := a.Send(req, opts...)
	if err != nil {
		return nil, err
	}

	contentType := "application/octet-stream"
	if resp.Encoding == EncodingASCII {
		contentType = "text/plain; charset=us-ascii"
	}

	header := make(http.Header)
	header.Set("Content-Type", contentType)
	header.Set("Content-Length", strconv.FormatInt(resp.Body.Size(), 10))

	return &http.Response{
		Status:        resp.Reply,
		StatusCode:    resp.StatusCode,
		Proto:         "FTP",
		ProtoMajor:    1,
		ProtoMinor:    0,
		Header:        header,
		Body:          io.NopCloser(resp.Body),
		ContentLength: resp.Body.Size(),
		Request:       hreq,
	}, nil
}

func closeBody(hreq *http.Request) {
	if hreq.Body != nil {
		hreq.Body.Close()
	}
}
