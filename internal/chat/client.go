// Package chat talks to the external chat-completion service. It exposes
// exactly one operation: send a (system, user) message pair, get one text
// completion back. Prompt templating is an action's job, not this
// package's — the core never exposes a generic chat interface.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dcruver/orgkeep/internal/errs"
	"github.com/dcruver/orgkeep/internal/logging"
)

const serviceName = "chat"

// Client is a completion client bound to one base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient builds a Client. timeout bounds every Complete call.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

type completionRequest struct {
	System string `json:"system"`
	User   string `json:"user"`
}

type completionResponse struct {
	Completion string `json:"completion"`
}

// Complete sends one (system, user) message pair and returns the service's
// text completion.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	timer := logging.StartTimer(logging.CategoryChat, "Complete")
	defer timer.Stop()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(completionRequest{System: system, User: user})
	if err != nil {
		return "", fmt.Errorf("chat: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("chat: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logging.Get(logging.CategoryChat).Warn("completion timed out")
			return "", &errs.ServiceTimeoutError{Service: serviceName}
		}
		logging.Get(logging.CategoryChat).Warn("completion unreachable: %v", err)
		return "", &errs.ServiceUnavailableError{Service: serviceName, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &errs.ServiceUnavailableError{Service: serviceName, Err: err}
	}

	if resp.StatusCode >= 400 {
		return "", &errs.ServiceError{
			Service: serviceName,
			Code:    resp.StatusCode,
			Message: string(respBody),
		}
	}

	var out completionResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("chat: decode response: %w", err)
	}
	return out.Completion, nil
}

// Probe checks reachability without committing to a real prompt, for the
// planner's lazy external-service-availability filter.
func (c *Client) Probe(ctx context.Context) error {
	_, err := c.Complete(ctx, "ping", "ping")
	return err
}
