package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"swapbot/internal/config"
)

// Client talks to the Telegram Bot API. It serves both sides of the
// pipeline: downloading inbound photos by file id and delivering
// outputs and notices back to the chat.
type Client struct {
	token      string
	apiBase    string
	httpClient *http.Client
}

func NewClient(cfg *config.TelegramConfig) *Client {
	return &Client{
		token:   cfg.BotToken,
		apiBase: cfg.APIBase,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.apiBase, c.token, method)
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

type fileInfo struct {
	FilePath string `json:"file_path"`
}

// Fetch resolves a Telegram file id to a download path and returns the
// raw file bytes.
func (c *Client) Fetch(ctx context.Context, ref string) ([]byte, error) {
	body, err := json.Marshal(map[string]string{"file_id": ref})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal getFile request: %w", err)
	}

	resp, err := c.postJSON(ctx, c.methodURL("getFile"), body)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file %s: %w", ref, err)
	}

	var info fileInfo
	if err := json.Unmarshal(resp, &info); err != nil {
		return nil, fmt.Errorf("failed to decode file info: %w", err)
	}
	if info.FilePath == "" {
		return nil, fmt.Errorf("no file path returned for %s", ref)
	}

	downloadURL := fmt.Sprintf("%s/file/bot%s/%s", c.apiBase, c.token, info.FilePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file %s: %w", ref, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file download returned status %d", httpResp.StatusCode)
	}

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read file body: %w", err)
	}
	return data, nil
}

// SendPhoto uploads a local asset to the chat as a photo.
func (c *Client) SendPhoto(ctx context.Context, userID int64, assetPath, caption string) error {
	file, err := os.Open(assetPath)
	if err != nil {
		return fmt.Errorf("failed to open asset %s: %w", assetPath, err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	if err := writer.WriteField("chat_id", strconv.FormatInt(userID, 10)); err != nil {
		return fmt.Errorf("failed to write chat_id field: %w", err)
	}
	if caption != "" {
		if err := writer.WriteField("caption", caption); err != nil {
			return fmt.Errorf("failed to write caption field: %w", err)
		}
	}

	part, err := writer.CreateFormFile("photo", filepath.Base(assetPath))
	if err != nil {
		return fmt.Errorf("failed to create photo part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("failed to copy asset into request: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.methodURL("sendPhoto"), &buf)
	if err != nil {
		return fmt.Errorf("failed to build sendPhoto request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return c.doChecked(req)
}

// SendText posts a plain text message to the chat.
func (c *Client) SendText(ctx context.Context, userID int64, text string) error {
	body, err := json.Marshal(map[string]interface{}{
		"chat_id": userID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal sendMessage request: %w", err)
	}

	_, err = c.postJSON(ctx, c.methodURL("sendMessage"), body)
	return err
}

func (c *Client) postJSON(ctx context.Context, url string, body []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var api apiResponse
	if err := json.Unmarshal(respBody, &api); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if !api.OK {
		return nil, fmt.Errorf("telegram api error: %s", api.Description)
	}
	return api.Result, nil
}

func (c *Client) doChecked(req *http.Request) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var api apiResponse
	if err := json.Unmarshal(respBody, &api); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !api.OK {
		return fmt.Errorf("telegram api error: %s", api.Description)
	}
	return nil
}
