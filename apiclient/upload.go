package apiclient

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
)

// Upload posts a multipart form with one file part and extra fields, and
// decodes the created record into out.
func (c *Client) Upload(ctx context.Context, path, field, filename string, file io.Reader, fields map[string]string, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}

	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        path,
		Raw:         &buf,
		ContentType: w.FormDataContentType(),
	}, out)
}
