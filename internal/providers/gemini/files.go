package gemini

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"ascendfit/internal/core"
	"ascendfit/internal/pkg/llmclient"
)

// Resumable upload protocol headers
const (
	headerUploadProtocol      = "X-Goog-Upload-Protocol"
	headerUploadCommand       = "X-Goog-Upload-Command"
	headerUploadOffset        = "X-Goog-Upload-Offset"
	headerUploadURL           = "X-Goog-Upload-URL"
	headerUploadContentLength = "X-Goog-Upload-Header-Content-Length"
	headerUploadContentType   = "X-Goog-Upload-Header-Content-Type"
)

// StartUpload opens a resumable upload session. The handshake is never retried.
func (p *Provider) StartUpload(ctx context.Context, size int64, mimeType, displayName string) (string, error) {
	body := map[string]any{"file": map[string]string{"display_name": displayName}}

	resp, err := p.client.DoRaw(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/upload/v1beta/files",
		Body:     body,
		NoRetry:  true,
		Headers: map[string]string{
			headerUploadProtocol:      "resumable",
			headerUploadCommand:       "start",
			headerUploadContentLength: strconv.FormatInt(size, 10),
			headerUploadContentType:   mimeType,
		},
	})
	if err != nil {
		return "", err
	}

	uploadURL := resp.Header.Get(headerUploadURL)
	if uploadURL == "" {
		return "", core.NewProviderError(Name, resp.StatusCode, "upload start response has no "+headerUploadURL+" header", nil)
	}
	return uploadURL, nil
}

// UploadAndFinalize sends the whole payload at offset 0 and finalizes the session.
func (p *Provider) UploadAndFinalize(ctx context.Context, uploadURL string, data []byte) (*core.RemoteFile, error) {
	resp, err := p.client.DoRaw(ctx, llmclient.Request{
		Method:   http.MethodPost,
		Endpoint: uploadURL,
		RawBody:  data,
		NoRetry:  true,
		Headers: map[string]string{
			headerUploadOffset:  "0",
			headerUploadCommand: "upload, finalize",
		},
	})
	if err != nil {
		return nil, err
	}

	file := parseFile(gjson.GetBytes(resp.Body, "file"))
	if file.Name == "" {
		return nil, core.NewProviderError(Name, resp.StatusCode, "upload finalize response has no file", nil)
	}
	return file, nil
}

// GetFile fetches the current metadata of a file ("files/abc")
func (p *Provider) GetFile(ctx context.Context, name string) (*core.RemoteFile, error) {
	resp, err := p.client.DoRaw(ctx, llmclient.Request{
		Method:   http.MethodGet,
		Endpoint: "/v1beta/" + strings.TrimPrefix(name, "/"),
	})
	if err != nil {
		return nil, err
	}
	return parseFile(gjson.ParseBytes(resp.Body)), nil
}

// DeleteFile removes an uploaded file
func (p *Provider) DeleteFile(ctx context.Context, name string) error {
	_, err := p.client.DoRaw(ctx, llmclient.Request{
		Method:   http.MethodDelete,
		Endpoint: "/v1beta/" + strings.TrimPrefix(name, "/"),
		NoRetry:  true,
	})
	return err
}

func parseFile(r gjson.Result) *core.RemoteFile {
	return &core.RemoteFile{
		Name:      r.Get("name").String(),
		URI:       r.Get("uri").String(),
		MimeType:  r.Get("mimeType").String(),
		State:     r.Get("state").String(),
		SizeBytes: r.Get("sizeBytes").String(),
	}
}
