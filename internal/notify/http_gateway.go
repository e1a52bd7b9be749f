package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPGateway posts messages to an SMS provider's JSON endpoint.
type HTTPGateway struct {
	url    string
	apiKey string
	sender string
	http   *http.Client
}

func NewHTTPGateway(url, apiKey, sender string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		url:    url,
		apiKey: apiKey,
		sender: sender,
		http: &http.Client{
			Timeout: timeout,
		},
	}
}

type sendRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
	Sender  string `json:"sender,omitempty"`
}

func (g *HTTPGateway) Send(ctx context.Context, phone, message string) (SendResult, error) {
	body, err := json.Marshal(sendRequest{To: phone, Message: message, Sender: g.sender})
	if err != nil {
		return SendResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("sms provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return SendResult{}, fmt.Errorf("read sms provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return SendResult{Success: false, ErrorCode: fmt.Sprintf("HTTP_%d", resp.StatusCode)}, nil
	}

	var result SendResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return SendResult{}, fmt.Errorf("decode sms provider response: %w", err)
	}
	if !result.Success && result.ErrorCode == "" {
		result.ErrorCode = "UNKNOWN"
	}
	return result, nil
}
