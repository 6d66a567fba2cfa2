package diagnostics

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"emperror.dev/errors"
	"github.com/goccy/go-json"
)

// DefaultUploadAPIURL is a paste service speaking the mclo.gs upload API.
const DefaultUploadAPIURL = "https://api.mclo.gs/1/log"

const (
	ErrMissingUploadAPIURL = errors.Sentinel("diagnostics: upload api url is required")
	ErrInvalidUploadAPIURL = errors.Sentinel("diagnostics: upload api url is invalid")
)

type uploadResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	URL     string `json:"url"`
	Raw     string `json:"raw"`
	Error   string `json:"error"`
}

// UploadReport posts the report to an mclo.gs compatible endpoint and returns
// the URL it can be viewed at.
func UploadReport(ctx context.Context, apiURL string, content string) (string, error) {
	if apiURL == "" {
		return "", ErrMissingUploadAPIURL
	}
	u, err := url.Parse(apiURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", errors.WrapIff(ErrInvalidUploadAPIURL, "%s", apiURL)
	}

	body := new(bytes.Buffer)
	form := multipart.NewWriter(body)
	if err := form.WriteField("content", content); err != nil {
		return "", errors.Wrap(err, "diagnostics: failed to write form field")
	}
	if err := form.Close(); err != nil {
		return "", errors.Wrap(err, "diagnostics: failed to finalize form data")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), body)
	if err != nil {
		return "", errors.Wrap(err, "diagnostics: failed to create upload request")
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "diagnostics: failed to upload report")
	}
	defer res.Body.Close()

	b, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "diagnostics: failed to read upload response")
	}
	if res.StatusCode != http.StatusOK {
		return "", errors.Errorf("diagnostics: upload failed with status %s: %s", res.Status, string(b))
	}

	var r uploadResponse
	if err := json.Unmarshal(b, &r); err != nil {
		return "", errors.Wrap(err, "diagnostics: failed to decode upload response")
	}
	if !r.Success {
		if r.Error != "" {
			return "", errors.New(r.Error)
		}
		return "", errors.New("diagnostics: upload failed")
	}
	if r.URL == "" {
		return "", errors.New("diagnostics: upload response missing URL")
	}
	return r.URL, nil
}
