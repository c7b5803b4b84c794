package deepl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Error covers every way a translation request can fail: missing credential,
// transport failure, non-200 status, malformed or empty upstream response.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("deepl: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Client struct {
	AuthKey string
	BaseURL string
	client  *http.Client
}

func NewClient(authKey, baseURL string) *Client {
	return &Client{
		AuthKey: authKey,
		BaseURL: baseURL,
		client:  &http.Client{},
	}
}

// Configured reports whether an auth key is present. Rooms that need
// translation cannot be created while this is false.
func (c *Client) Configured() bool {
	return c.AuthKey != ""
}

type translateResponse struct {
	Translations []struct {
		Text string `json:"text"`
	} `json:"translations"`
}

// Translate sends text to the DeepL v2 endpoint and returns the translated
// result.
func (c *Client) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if c.AuthKey == "" {
		return "", &Error{Op: "translate", Err: fmt.Errorf("auth key is not configured")}
	}

	form := url.Values{}
	form.Set("text", text)
	form.Set("source_lang", sourceLang)
	form.Set("target_lang", targetLang)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &Error{Op: "translate", Err: fmt.Errorf("failed to create request: %w", err)}
	}

	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Authorization", "DeepL-Auth-Key "+c.AuthKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", &Error{Op: "translate", Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", &Error{Op: "translate", Err: fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))}
	}

	var tr translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", &Error{Op: "translate", Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if len(tr.Translations) == 0 {
		return "", &Error{Op: "translate", Err: fmt.Errorf("no translations returned")}
	}

	return tr.Translations[0].Text, nil
}
