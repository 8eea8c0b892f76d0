// Package hydraxapi contains a minimal client for the Hydrax upload endpoint:
// a multipart POST of the video bytes to /{credential}. A 200 response body is an
// opaque locator string shown to the user; anything else is a failure.
package hydraxapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path"
	"strings"
)

// DefaultBaseURL is the production Hydrax upload host.
const DefaultBaseURL = "http://up.hydrax.net"

// Client uploads files to Hydrax. Zero value works with defaults; BaseURL and
// HTTPClient exist for tests.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return strings.TrimRight(c.BaseURL, "/")
	}
	return DefaultBaseURL
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

// Upload posts the file at filePath as multipart field "file" with content type
// video/mp4 to {base}/{credential}. On HTTP 200 the response body is returned as the
// locator; any other status or transport error is an error.
func (c *Client) Upload(ctx context.Context, credential, filePath, fileName string) (string, error) {
	if credential == "" {
		return "", fmt.Errorf("hydrax credential empty")
	}
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close upload file", slog.Any("err", err))
		}
	}()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, fileName))
	header.Set("Content-Type", "video/mp4")
	part, err := mw.CreatePart(header)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copy file content: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	url := c.baseURL() + "/" + path.Clean(credential)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http().Do(req)
	if err != nil {
		return "", fmt.Errorf("hydrax upload: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("hydrax upload: status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return strings.TrimSpace(string(respBody)), nil
}
