package removebg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	models "github.com/rm-hull/deep-fry-editor/internal/models/removebg"
	log "github.com/sirupsen/logrus"
)

const DefaultBaseUrl = "https://api.remove.bg/v1.0"

// Remover strips the background from an encoded image, returning the
// encoded result.
type Remover interface {
	Remove(ctx context.Context, image []byte) ([]byte, error)
}

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type RemoteRemover struct {
	baseUrl string
	apiKey  string
	client  HTTPClient
}

func NewRemoteRemover(baseUrl, apiKey string, timeout time.Duration) Remover {
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	return &RemoteRemover{
		baseUrl: baseUrl,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// Remove uploads the image as multipart image_file with size=auto.
func (mgr *RemoteRemover) Remove(ctx context.Context, image []byte) ([]byte, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("image_file", "image.png")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to write form file: %w", err)
	}
	if err := form.WriteField("size", "auto"); err != nil {
		return nil, fmt.Errorf("failed to write form field: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("failed to close form: %w", err)
	}

	url := mgr.baseUrl + "/removebg"
	res, err := mgr.post(ctx, url, form.FormDataContentType(), &body)
	if err != nil {
		return nil, err
	}
	defer res.Close()

	data, err := io.ReadAll(res)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", url, err)
	}
	return data, nil
}

func (mgr *RemoteRemover) post(ctx context.Context, url, contentType string, body io.Reader) (io.ReadCloser, error) {
	log.WithField("url", url).Info("Requesting background removal")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", mgr.apiKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "image/png")

	res, err := mgr.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to post to %s: %w", url, err)
	}

	if res.StatusCode > 299 {
		defer res.Body.Close()
		var errResp models.ErrorResponse
		if err := json.NewDecoder(res.Body).Decode(&errResp); err == nil && len(errResp.Errors) > 0 {
			return nil, fmt.Errorf("http status response from %s: %s (%s)", url, res.Status, errResp.Message())
		}
		return nil, fmt.Errorf("http status response from %s: %s", url, res.Status)
	}

	return res.Body, nil
}
