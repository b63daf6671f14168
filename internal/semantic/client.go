// Package semantic talks to the external semantic-search service over
// JSON-RPC 2.0 HTTP. The core never computes embeddings or similarity
// itself; this client is the only doorway to that collaborator.
package semantic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/dcruver/orgkeep/internal/errs"
	"github.com/dcruver/orgkeep/internal/logging"
)

const serviceName = "semantic"

// Client is a JSON-RPC 2.0 client bound to one base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient builds a Client. timeout bounds every individual call.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      int         `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int             `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *rpcError       `json:"error"`
}

// SearchResult is one hit from semantic_search.
type SearchResult struct {
	File       string  `json:"file"`
	Title      string  `json:"title"`
	Similarity float64 `json:"similarity"`
	NodeID     string  `json:"node_id"`
}

// ContextualResult is one hit from contextual_search, carrying body content
// and graph context rather than just a similarity score.
type ContextualResult struct {
	File      string   `json:"file"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
	Backlinks []string `json:"backlinks"`
	NodeID    string   `json:"node_id"`
}

// SemanticSearch finds notes similar to query, filtered to those at or above
// threshold, capped at limit results.
func (c *Client) SemanticSearch(ctx context.Context, query string, limit int, threshold float64) ([]SearchResult, error) {
	result, err := c.call(ctx, "semantic_search", map[string]interface{}{
		"query":     query,
		"limit":     limit,
		"threshold": threshold,
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Notes []SearchResult `json:"notes"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("semantic: decode semantic_search result: %w", err)
	}
	return out.Notes, nil
}

// ContextualSearch finds notes similar to query and returns their full
// content plus graph context, for use when an action needs more than a
// similarity ranking.
func (c *Client) ContextualSearch(ctx context.Context, query string, limit int) ([]ContextualResult, error) {
	result, err := c.call(ctx, "contextual_search", map[string]interface{}{
		"query": query,
		"limit": limit,
	})
	if err != nil {
		return nil, err
	}
	var out struct {
		Notes []ContextualResult `json:"notes"`
	}
	if err := json.Unmarshal(result, &out); err != nil {
		return nil, fmt.Errorf("semantic: decode contextual_search result: %w", err)
	}
	return out.Notes, nil
}

var embeddingCountRe = regexp.MustCompile(`\d+`)

// GenerateEmbeddings asks the service to (re)compute embeddings, force
// ignoring its own freshness check. The service replies with a free-text
// acknowledgment containing the number of notes processed; GenerateEmbeddings
// extracts that count, defaulting to 0 if none is found.
func (c *Client) GenerateEmbeddings(ctx context.Context, force bool) (count int, ack string, err error) {
	result, err := c.call(ctx, "generate_embeddings", map[string]interface{}{
		"force": force,
	})
	if err != nil {
		return 0, "", err
	}
	var message string
	if err := json.Unmarshal(result, &message); err != nil {
		return 0, "", fmt.Errorf("semantic: decode generate_embeddings result: %w", err)
	}
	if match := embeddingCountRe.FindString(message); match != "" {
		fmt.Sscanf(match, "%d", &count)
	}
	return count, message, nil
}

// AddDailyEntry appends one journal entry through the semantic service's
// gateway into the daily-note corpus. The core never writes journal notes
// directly.
func (c *Client) AddDailyEntry(ctx context.Context, timestamp time.Time, title string, points, nextSteps, tags []string) error {
	_, err := c.call(ctx, "add_daily_entry", map[string]interface{}{
		"timestamp":  timestamp.Format(time.RFC3339),
		"title":      title,
		"points":     points,
		"next_steps": nextSteps,
		"tags":       tags,
	})
	return err
}

// Probe checks reachability without side effects, for the planner's lazy
// external-service-availability filter: an action that lists this service
// in RequiresServices is left out of the plan, not failed, when Probe errors.
func (c *Client) Probe(ctx context.Context) error {
	_, err := c.SemanticSearch(ctx, "", 1, 0)
	return err
}

func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	timer := logging.StartTimer(logging.CategorySemantic, method)
	defer timer.Stop()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("semantic: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("semantic: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logging.Get(logging.CategorySemantic).Warn("%s timed out", method)
			return nil, &errs.ServiceTimeoutError{Service: serviceName}
		}
		logging.Get(logging.CategorySemantic).Warn("%s unreachable: %v", method, err)
		return nil, &errs.ServiceUnavailableError{Service: serviceName, Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &errs.ServiceUnavailableError{Service: serviceName, Err: err}
	}

	if resp.StatusCode >= 400 {
		return nil, &errs.ServiceError{
			Service: serviceName,
			Code:    resp.StatusCode,
			Message: string(respBody),
		}
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("semantic: decode response: %w", err)
	}
	if rpcResp.Error != nil {
		return nil, &errs.ServiceError{
			Service: serviceName,
			Code:    rpcResp.Error.Code,
			Message: rpcResp.Error.Message,
		}
	}
	return rpcResp.Result, nil
}
