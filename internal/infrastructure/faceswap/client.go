package faceswap

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"swapbot/internal/config"
	"swapbot/internal/domain/models"
)

// Client calls the external face-swap model over HTTP. The service
// takes a stored asset path and a mode selector and responds with the
// ordered list of output asset paths.
type Client struct {
	serviceURL string
	httpClient *http.Client
}

func NewClient(cfg *config.SwapConfig) *Client {
	return &Client{
		serviceURL: cfg.ServiceURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *Client) Process(ctx context.Context, assetPath string, mode models.Mode) ([]string, error) {
	form := url.Values{}
	form.Set("file_path", assetPath)
	form.Set("mode", mode.Value())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serviceURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build swap request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("swap service unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read swap response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("swap service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var outputs []string
	if err := json.Unmarshal(body, &outputs); err != nil {
		return nil, fmt.Errorf("failed to decode swap response: %w", err)
	}
	return outputs, nil
}
