package ftptransport

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
)

// uploadPayload returns the decoded content of the first part of a
// multipart/form-data body. The remote file name comes from the URL path,
// so part names and file names are ignored, as are any further parts.
func uploadPayload(req *Request) ([]byte, error) {
	contentType := req.Header.Get("Content-Type")
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotMultipart, err)
	}
	if mediaType != "multipart/form-data" || params["boundary"] == "" {
		return nil, fmt.Errorf("%w: got %q", ErrNotMultipart, contentType)
	}

	mr := multipart.NewReader(bytes.NewReader(req.Body), params["boundary"])
	part, err := mr.NextPart()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoUploadPart
	}
	if err != nil {
		return nil, fmt.Errorf("ftptransport: reading multipart body: %w", err)
	}
	defer part.Close()

	data, err := io.ReadAll(part)
	if err != nil {
		return nil, fmt.Errorf("ftptransport: reading multipart body: %w", err)
	}
	return data, nil
}
