package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/Cambar-Solutions/libamaq-web-app-sub001/internal/domain"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// MediaClient uploads files to the media service
type MediaClient struct {
	client *Client
}

// NewMediaClient creates a media client
func NewMediaClient(client *Client) *MediaClient {
	return &MediaClient{client: client}
}

// UploadFiles sends every file in one multipart request. Results come back
// in the order the files were sent.
func (c *MediaClient) UploadFiles(ctx context.Context, files []domain.LocalFile) ([]domain.UploadedFile, error) {
	if len(files) == 0 {
		return []domain.UploadedFile{}, nil
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, quoteEscaper.Replace(file.Name)))
		contentType := file.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", file.Name, err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return nil, fmt.Errorf("failed to encode %s: %w", file.Name, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode upload: %w", err)
	}

	var uploaded []domain.UploadedFile
	if err := c.client.do(ctx, http.MethodPost, "/media/upload", writer.FormDataContentType(), &body, &uploaded); err != nil {
		return nil, fmt.Errorf("failed to upload files: %w", err)
	}
	return uploaded, nil
}
