package umbraco

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/http"
)

const crlf = "\r\n"

// UploadMultipart posts data as a multipart/form-data body: an optional part
// named "id" carrying key, and a part named "file" carrying the filename, mime
// type and raw bytes. The body is framed by hand because the temporary-file
// endpoint rejects any deviation in part order or line discipline, with no
// partial-success path.
func (c *Client) UploadMultipart(ctx context.Context, path string, data []byte, filename, mimeType, key string) error {
	body, boundary := encodeMultipart(data, filename, mimeType, key)

	build := func(token string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Content-Type", "multipart/form-data; boundary="+boundary)
		return req, nil
	}

	c.logger.Debug("uploading multipart payload",
		"path", path, "filename", filename, "mime_type", mimeType, "size", len(data))

	if _, err := c.do(ctx, build); err != nil {
		return err
	}
	return nil
}

// encodeMultipart builds the multipart body and returns it with the boundary
// token used to frame it.
func encodeMultipart(data []byte, filename, mimeType, key string) ([]byte, string) {
	boundary := newBoundary()

	var buf bytes.Buffer

	if key != "" {
		buf.WriteString("--" + boundary + crlf)
		buf.WriteString(`Content-Disposition: form-data; name="id"` + crlf)
		buf.WriteString(crlf)
		buf.WriteString(key)
		buf.WriteString(crlf)
	}

	buf.WriteString("--" + boundary + crlf)
	buf.WriteString(fmt.Sprintf(`Content-Disposition: form-data; name="file"; filename="%s"`, filename) + crlf)
	buf.WriteString("Content-Type: " + mimeType + crlf)
	buf.WriteString(crlf)
	buf.Write(data)
	buf.WriteString(crlf + "--" + boundary + "--" + crlf)

	return buf.Bytes(), boundary
}

func newBoundary() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("boundary generation failed: %v", err))
	}
	return "----UmbpressFormBoundary" + hex.EncodeToString(b[:])
}
