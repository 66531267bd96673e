package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

const maxReadURLChars = 50000

// ReadURL fetches a URL and converts HTML responses to markdown. Non-HTML
// responses come back as-is.
type ReadURL struct {
	client *http.Client
}

// NewReadURL creates a ReadURL tool. client may be nil.
func NewReadURL(client *http.Client) *ReadURL {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &ReadURL{client: client}
}

func (r *ReadURL) Name() string        { return "read_url" }
func (r *ReadURL) Description() string { return "Fetch a URL and return its content as markdown" }
func (r *ReadURL) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "The URL to fetch"}
		},
		"required": ["url"]
	}`)
}

func (r *ReadURL) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("parse args: %w", err)
	}
	if params.URL == "" {
		return "", fmt.Errorf("url is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, params.URL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "agentd/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch URL: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("HTTP error: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	content := string(body)
	if strings.Contains(resp.Header.Get("Content-Type"), "html") {
		md, err := htmltomarkdown.ConvertString(content)
		if err != nil {
			return "", fmt.Errorf("convert to markdown: %w", err)
		}
		content = md
	}

	if len(content) > maxReadURLChars {
		content = content[:maxReadURLChars] + "\n\n[Content truncated]"
	}
	return content, nil
}
