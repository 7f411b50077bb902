package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Liebig-2005/farmassist/internal/common"
	"github.com/Liebig-2005/farmassist/internal/httpx"
)

// ErrInvalidResponse is returned when the backend replies with an
// unrecognized payload.
var ErrInvalidResponse = errors.New("invalid response format from server")

// ScanResult is a disease diagnosis for an uploaded crop image.
type ScanResult struct {
	Disease     string `json:"disease"`
	Description string `json:"description"`
	Treatment   string `json:"treatment"`
}

// Client proxies the opaque chatbot/scanner backend. The backend owns all
// inference; this client only shapes requests and sanitizes responses.
type Client struct {
	baseURL string
	httpCfg httpx.ClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewClient(client *http.Client, baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: httpx.ClientConfig{
			Client: client,
			Backoff: httpx.BackoffConfig{
				MaxRetries:      2,
				InitialInterval: 300 * time.Millisecond,
				MaxInterval:     2 * time.Second,
			},
		},
		circuit: httpx.NewBreaker("backend"),
	}
}

// Chat sends a message to the assistant and returns its reply.
func (c *Client) Chat(ctx context.Context, message string) (string, error) {
	body, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return "", err
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/chatbot/", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	resp, err := httpx.Do(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", backendError(resp)
	}

	var payload struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	if payload.Response == "" {
		return "", ErrInvalidResponse
	}

	return payload.Response, nil
}

// Scan uploads a crop image and returns the diagnosis. Literal asterisks in
// every text field are stripped before the result reaches any caller.
func (c *Client) Scan(ctx context.Context, filename string, image io.Reader) (ScanResult, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return ScanResult{}, err
	}
	if _, err := io.Copy(part, image); err != nil {
		return ScanResult{}, err
	}
	if err := writer.Close(); err != nil {
		return ScanResult{}, err
	}

	// The multipart body is assembled once so retried attempts can replay it.
	body := buf.Bytes()
	contentType := writer.FormDataContentType()

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/scanner/", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}

	resp, err := httpx.Do(ctx, c.httpCfg, c.circuit, buildRequest)
	if err != nil {
		return ScanResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return ScanResult{}, backendError(resp)
	}

	var payload ScanResult
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return ScanResult{}, err
	}
	if payload.Disease == "" {
		return ScanResult{}, ErrInvalidResponse
	}

	result := ScanResult{
		Disease:     common.StripStars(payload.Disease),
		Description: common.StripStars(payload.Description),
		Treatment:   common.StripStars(payload.Treatment),
	}
	if result.Disease == "" {
		result.Disease = "Unknown"
	}
	if result.Description == "" {
		result.Description = "No description available"
	}
	if result.Treatment == "" {
		result.Treatment = "No treatment information available."
	}

	return result, nil
}

// backendError surfaces the backend's detail message when it provides one.
func backendError(resp *http.Response) error {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Detail != "" {
		return fmt.Errorf("backend error: %s", payload.Detail)
	}
	return fmt.Errorf("backend error: status %d", resp.StatusCode)
}
