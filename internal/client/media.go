package client

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/vietddude/wacloud/internal/core/domain"
	"github.com/vietddude/wacloud/internal/infra/rpc"
	"github.com/vietddude/wacloud/internal/infra/rpc/dispatch"
)

// DefaultMediaHosts may receive the bearer token on media downloads. A
// leading dot matches any subdomain.
var DefaultMediaHosts = []string{
	"graph.facebook.com",
	"lookaside.fbsbx.com",
	".fbsbx.com",
	".fbcdn.net",
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

const (
	opUploadMedia   = "media.upload"
	opGetMediaURL   = "media.url"
	opDeleteMedia   = "media.delete"
	opDownloadMedia = "media.download"
)

// UploadMedia uploads a file and returns its media ID. The reader is
// buffered fully so the request can be replayed on retry.
func (c *Client) UploadMedia(ctx context.Context, filename, mimeType string, r io.Reader) (*domain.UploadMediaResponse, error) {
	if r == nil {
		return nil, dispatch.Validation(opUploadMedia, "file content is required")
	}
	if mimeType == "" {
		return nil, dispatch.Validation(opUploadMedia, "mime type is required")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("messaging_product", domain.MessagingProduct); err != nil {
		return nil, &dispatch.Error{Kind: dispatch.KindSerialization, Op: opUploadMedia, Err: err}
	}
	if err := w.WriteField("type", mimeType); err != nil {
		return nil, &dispatch.Error{Kind: dispatch.KindSerialization, Op: opUploadMedia, Err: err}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+quoteEscaper.Replace(filepath.Base(filename))+`"`)
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, &dispatch.Error{Kind: dispatch.KindSerialization, Op: opUploadMedia, Err: err}
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, &dispatch.Error{Kind: dispatch.KindSerialization, Op: opUploadMedia, Err: err}
	}
	if err := w.Close(); err != nil {
		return nil, &dispatch.Error{Kind: dispatch.KindSerialization, Op: opUploadMedia, Err: err}
	}

	var out domain.UploadMediaResponse
	_, err = c.do(ctx, &rpc.Request{
		Name:        opUploadMedia,
		Method:      http.MethodPost,
		Path:        "/" + c.phoneNumberID + "/media",
		Body:        buf.Bytes(),
		ContentType: w.FormDataContentType(),
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GetMediaURL resolves a media ID to a short-lived download URL.
func (c *Client) GetMediaURL(ctx context.Context, mediaID string) (*domain.MediaURL, error) {
	if mediaID == "" {
		return nil, dispatch.Validation(opGetMediaURL, "media id is required")
	}

	query := url.Values{}
	query.Set("phone_number_id", c.phoneNumberID)

	var out domain.MediaURL
	if err := c.get(ctx, opGetMediaURL, "/"+url.PathEscape(mediaID), query, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteMedia deletes uploaded media.
func (c *Client) DeleteMedia(ctx context.Context, mediaID string) error {
	if mediaID == "" {
		return dispatch.Validation(opDeleteMedia, "media id is required")
	}

	query := url.Values{}
	query.Set("phone_number_id", c.phoneNumberID)

	var out domain.SuccessResponse
	return c.delete(ctx, opDeleteMedia, "/"+url.PathEscape(mediaID), query, &out)
}

// DownloadMedia fetches the bytes behind a URL returned by GetMediaURL. The
// bearer token is attached, so only https URLs on an allowed media host or
// the configured API host are fetched.
func (c *Client) DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	if mediaURL == "" {
		return nil, dispatch.Validation(opDownloadMedia, "media url is required")
	}
	if err := c.checkMediaURL(mediaURL); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, &rpc.Request{Name: opDownloadMedia, Method: http.MethodGet, Path: mediaURL}, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) checkMediaURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return dispatch.Validation(opDownloadMedia, "media url must be absolute")
	}

	if base, err := url.Parse(c.engine.Provider.BaseURL()); err == nil &&
		strings.EqualFold(u.Scheme, base.Scheme) && strings.EqualFold(u.Host, base.Host) {
		return nil
	}

	if !strings.EqualFold(u.Scheme, "https") {
		return dispatch.Validation(opDownloadMedia, "media url must use https, got %q", u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if !allowedHost(host, c.mediaHosts) {
		return dispatch.Validation(opDownloadMedia, "media host %q is not allowed", host)
	}
	return nil
}

func allowedHost(host string, allowed []string) bool {
	for _, a := range allowed {
		if strings.HasPrefix(a, ".") {
			if strings.HasSuffix(host, a) {
				return true
			}
			continue
		}
		if host == a {
			return true
		}
	}
	return false
}
